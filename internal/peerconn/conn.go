// Package peerconn turns a raw duplex byte stream into an established,
// identity-verified connection to a remote repo. The handshake is strictly
// sequential per direction: each side's next step depends on the other
// side's previous message, so neither half of the transport is used
// concurrently until the connection is established.
package peerconn

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

// Direction records which side dialed the connection, fixed at setup.
type Direction int

const (
	// Incoming connections wait for the remote join, then answer joined.
	Incoming Direction = iota
	// Outgoing connections send join first, then wait for joined.
	Outgoing
)

func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("connection closed")

// UnexpectedMessageError reports a structurally valid message arriving in an
// invalid position: application traffic during the handshake, or a second
// handshake message after establishment.
type UnexpectedMessageError struct {
	Got wire.MessageType
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("unexpected %q message", e.Got)
}

// HandshakeError reports a connection that never reached establishment.
type HandshakeError struct {
	Direction Direction
	Err       error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("%s handshake failed: %v", e.Direction, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Options tunes connection setup.
type Options struct {
	// MaxFrameBytes caps the size of a single frame in either direction.
	// Zero selects wire.DefaultMaxFrameBytes.
	MaxFrameBytes int
}

// Conn is an established connection to a remote repo. The receive half is
// owned by a single goroutine; the send half may be shared.
type Conn struct {
	localID   wire.PeerID
	remoteID  wire.PeerID
	direction Direction

	reader *wire.MessageReader

	writeMu sync.Mutex
	writer  *wire.MessageWriter

	closeOnce sync.Once
	closed    chan struct{}
	transport io.ReadWriter
}

// Connect performs the direction-dependent handshake over rw and returns the
// established connection. On any handshake failure — a wrong first message,
// end of stream, a decode error — the connection is abandoned and no Conn is
// ever exposed. No timeout is enforced here; callers wrap rw with transport
// deadlines if a stalled peer must not hold the handshake open forever.
func Connect(rw io.ReadWriter, localID wire.PeerID, direction Direction, opts Options) (*Conn, error) {
	codec := wire.NewCodec(opts.MaxFrameBytes)
	reader := wire.NewMessageReader(rw, codec)
	writer := wire.NewMessageWriter(rw, codec)

	var remoteID wire.PeerID
	switch direction {
	case Incoming:
		msg, err := reader.ReadMessage()
		if err != nil {
			return nil, &HandshakeError{Direction: direction, Err: err}
		}
		if msg.Type != wire.MessageJoin {
			return nil, &HandshakeError{Direction: direction, Err: &UnexpectedMessageError{Got: msg.Type}}
		}
		if err := writer.WriteMessage(wire.NewJoined(localID)); err != nil {
			return nil, &HandshakeError{Direction: direction, Err: err}
		}
		remoteID = msg.SenderID

	case Outgoing:
		if err := writer.WriteMessage(wire.NewJoin(localID)); err != nil {
			return nil, &HandshakeError{Direction: direction, Err: err}
		}
		msg, err := reader.ReadMessage()
		if err != nil {
			return nil, &HandshakeError{Direction: direction, Err: err}
		}
		if msg.Type != wire.MessageJoined {
			return nil, &HandshakeError{Direction: direction, Err: &UnexpectedMessageError{Got: msg.Type}}
		}
		remoteID = msg.SenderID

	default:
		return nil, fmt.Errorf("unknown connection direction %d", int(direction))
	}

	return &Conn{
		localID:   localID,
		remoteID:  remoteID,
		direction: direction,
		reader:    reader,
		writer:    writer,
		closed:    make(chan struct{}),
		transport: rw,
	}, nil
}

// LocalID returns the identity this side announced during the handshake.
func (c *Conn) LocalID() wire.PeerID { return c.localID }

// RemoteID returns the identity the peer announced during the handshake.
func (c *Conn) RemoteID() wire.PeerID { return c.remoteID }

// Direction returns which side dialed the connection.
func (c *Conn) Direction() Direction { return c.direction }

// Receive returns the next application message from the peer. A stray
// handshake message is narrowed into an *UnexpectedMessageError element: the
// error is returned but the stream stays usable, leaving the close-or-
// tolerate decision to the consumer. Transport and decode errors are
// terminal.
func (c *Conn) Receive() (*wire.SyncMessage, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	msg, err := c.reader.ReadMessage()
	if err != nil {
		return nil, err
	}
	sync, ok := msg.Sync()
	if !ok {
		return nil, &UnexpectedMessageError{Got: msg.Type}
	}
	return sync, nil
}

// Send wraps msg into the wire envelope and writes it. Safe for concurrent
// use; messages are delivered in send order.
func (c *Conn) Send(msg *wire.SyncMessage) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.WriteMessage(wire.NewSync(msg))
}

// Close releases the underlying transport when it supports closing. Safe to
// call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if closer, ok := c.transport.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}
