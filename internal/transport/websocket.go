package transport

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peerdoc-labs/peerdoc/internal/auth"
)

const wsWriteWait = 10 * time.Second

// wsStream adapts a websocket connection to the byte-stream interface the
// framing codec expects. Frames are carried inside binary websocket
// messages; the codec's own length prefix remains authoritative, keeping the
// bytes identical to what a raw TCP peer would see.
type wsStream struct {
	conn   *websocket.Conn
	reader io.Reader
}

// NewWSStream wraps an upgraded websocket connection.
func NewWSStream(conn *websocket.Conn) io.ReadWriteCloser {
	return &wsStream{conn: conn}
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			msgType, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			s.reader = r
		}

		n, err := s.reader.Read(p)
		if err == io.EOF {
			// End of one websocket message, not of the stream.
			s.reader = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
	return s.conn.Close()
}

// StreamHandler receives each upgraded websocket stream.
type StreamHandler func(stream io.ReadWriteCloser)

// WSServer upgrades HTTP requests into peer byte streams, optionally gated
// by JWT admission.
type WSServer struct {
	upgrader  websocket.Upgrader
	validator auth.Validator // nil disables admission checks
	handle    StreamHandler
}

// NewWSServer creates a websocket peer endpoint. A nil validator admits
// every dialer.
func NewWSServer(validator auth.Validator, handle StreamHandler) *WSServer {
	return &WSServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are not browsers; origin checks do not apply.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		validator: validator,
		handle:    handle,
	}
}

// ServeHTTP implements http.Handler.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.validator != nil {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := s.validator.Validate(r.Context(), token)
		if err != nil {
			log.Printf("WARN: [WS] Rejected peer from %s: %v", r.RemoteAddr, err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		log.Printf("INFO: [WS] Admitted peer %s from %s", claims.RepoID, r.RemoteAddr)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: [WS] Upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	s.handle(NewWSStream(conn))
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// DialWS opens a websocket link to a peer endpoint, presenting token when
// non-empty.
func DialWS(ctx context.Context, url string, token string) (io.ReadWriteCloser, error) {
	headers := http.Header{}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWSStream(conn), nil
}
