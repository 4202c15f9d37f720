package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerdoc-labs/peerdoc/internal/auth"
	"github.com/peerdoc-labs/peerdoc/internal/peerconn"
	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// Full handshake over a websocket link: the listening side runs an incoming
// handshake, the dialing side an outgoing one, then a sync message flows.
func TestWebsocketEndToEndHandshake(t *testing.T) {
	established := make(chan *peerconn.Conn, 1)
	server := httptest.NewServer(NewWSServer(nil, func(stream io.ReadWriteCloser) {
		conn, err := peerconn.Connect(stream, "peer-a", peerconn.Incoming, peerconn.Options{})
		require.NoError(t, err)
		established <- conn
	}))
	defer server.Close()

	stream, err := DialWS(context.Background(), wsURL(server), "")
	require.NoError(t, err)

	out, err := peerconn.Connect(stream, "peer-b", peerconn.Outgoing, peerconn.Options{})
	require.NoError(t, err)
	require.Equal(t, wire.PeerID("peer-a"), out.RemoteID())

	var in *peerconn.Conn
	select {
	case in = <-established:
	case <-time.After(5 * time.Second):
		t.Fatal("server side never established")
	}
	require.Equal(t, wire.PeerID("peer-b"), in.RemoteID())

	want := &wire.SyncMessage{
		FromID:     "peer-b",
		ToID:       "peer-a",
		DocumentID: "doc-1",
		Payload:    []byte("changes"),
	}
	require.NoError(t, out.Send(want))

	got, err := in.Receive()
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, out.Close())
	require.NoError(t, in.Close())
}

func TestWebsocketAdmission(t *testing.T) {
	validator, err := auth.NewValidator("secret")
	require.NoError(t, err)

	handled := make(chan struct{}, 1)
	server := httptest.NewServer(NewWSServer(validator, func(stream io.ReadWriteCloser) {
		handled <- struct{}{}
		stream.Close()
	}))
	defer server.Close()

	// No token.
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Bad token.
	badToken, err := auth.MintToken("wrong-secret", "peer-b", time.Minute)
	require.NoError(t, err)
	_, err = DialWS(context.Background(), wsURL(server), badToken)
	require.Error(t, err)

	// Valid token.
	token, err := auth.MintToken("secret", "peer-b", time.Minute)
	require.NoError(t, err)
	stream, err := DialWS(context.Background(), wsURL(server), token)
	require.NoError(t, err)
	defer stream.Close()

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("admitted stream never reached the handler")
	}
}
