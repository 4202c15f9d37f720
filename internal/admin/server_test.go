package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peerdoc-labs/peerdoc/internal/iface"
	"github.com/peerdoc-labs/peerdoc/internal/storage"
	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

type staticRegistry struct {
	peers []wire.PeerID
}

func (r *staticRegistry) Register(iface.Connection)                   {}
func (r *staticRegistry) SendTo(wire.PeerID, *wire.SyncMessage) error { return nil }
func (r *staticRegistry) Peers() []wire.PeerID                        { return r.peers }

func get(t *testing.T, server *Server, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestHealthz(t *testing.T) {
	server := New("127.0.0.1:0", "peer-a", &staticRegistry{}, storage.NewMemory())

	code, body := get(t, server, "/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "peer-a", body["repoId"])
}

func TestPeers(t *testing.T) {
	reg := &staticRegistry{peers: []wire.PeerID{"peer-b", "peer-c"}}
	server := New("127.0.0.1:0", "peer-a", reg, storage.NewMemory())

	code, body := get(t, server, "/v1/peers")
	require.Equal(t, http.StatusOK, code)
	require.ElementsMatch(t, []interface{}{"peer-b", "peer-c"}, body["peers"])
}

func TestDocuments(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Append(context.Background(), "doc-1", []byte("x")))

	server := New("127.0.0.1:0", "peer-a", &staticRegistry{}, store)

	code, body := get(t, server, "/v1/documents")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []interface{}{"doc-1"}, body["documents"])
}

func TestMethodNotAllowed(t *testing.T) {
	server := New("127.0.0.1:0", "peer-a", &staticRegistry{}, storage.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/v1/peers", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
