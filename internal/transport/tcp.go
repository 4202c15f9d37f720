// Package transport provides the duplex byte streams the wire layer runs
// over: raw TCP links and websocket links. Both surface as io.ReadWriteCloser
// so the framing codec never sees the difference.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"
)

const dialTimeout = 10 * time.Second

// ConnHandler receives each accepted transport stream. It is expected to run
// the handshake and hand the established connection to the registry.
type ConnHandler func(conn net.Conn)

// TCPServer accepts raw TCP peer connections.
type TCPServer struct {
	addr     string
	handle   ConnHandler
	listener net.Listener
}

// NewTCPServer creates a server accepting on addr.
func NewTCPServer(addr string, handle ConnHandler) *TCPServer {
	return &TCPServer{addr: addr, handle: handle}
}

// Listen binds the accept socket. It must be called before Serve; splitting
// the two lets callers learn the bound address when listening on port 0.
func (s *TCPServer) Listen() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	log.Printf("INFO: [TCP] Listening for peers on %s", listener.Addr())
	return nil
}

// Addr returns the bound address. Valid after Listen.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts until ctx is canceled. Each accepted connection is handled
// on its own goroutine, so one peer's handshake never blocks another's.
func (s *TCPServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Println("INFO: [TCP] Listener stopped.")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handle(conn)
	}
}

// DialTCP opens a raw TCP link to a peer.
func DialTCP(ctx context.Context, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
