package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Frame layout: a 4-byte big-endian unsigned length L followed by exactly L
// bytes of encoded message body. No magic bytes, no version field.
const frameHeaderLen = 4

// DefaultMaxFrameBytes caps how large a single frame may claim to be. The
// wire format itself has no limit; the cap keeps a bad length prefix from
// forcing an unbounded buffer reservation.
const DefaultMaxFrameBytes = 16 << 20

// Codec converts between a byte stream and discrete Message values,
// reassembling frames that arrive fragmented across reads.
type Codec struct {
	maxFrameBytes uint32
}

// NewCodec returns a codec enforcing maxFrameBytes per frame. Zero or
// negative selects DefaultMaxFrameBytes; the length prefix is 32 bits, so a
// wider limit clamps to the largest enforceable value.
func NewCodec(maxFrameBytes int) *Codec {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	limit := uint64(maxFrameBytes)
	if limit > math.MaxUint32 {
		limit = math.MaxUint32
	}
	return &Codec{maxFrameBytes: uint32(limit)}
}

// Decode extracts one message from buf. It returns (nil, nil) when buf does
// not yet hold a complete frame, consuming nothing so the caller can retry
// after buffering more bytes. Once a full frame is present it consumes
// exactly the frame's bytes; a body that fails to decode at that point is
// terminal for the connection, because the bytes are already consumed.
func (c *Codec) Decode(buf *bytes.Buffer) (*Message, error) {
	b := buf.Bytes()
	if len(b) < frameHeaderLen {
		return nil, nil
	}

	length := binary.BigEndian.Uint32(b[:frameHeaderLen])
	if length > c.maxFrameBytes {
		return nil, &FrameSizeError{Size: length, Limit: c.maxFrameBytes}
	}
	if uint32(len(b)-frameHeaderLen) < length {
		buf.Grow(frameHeaderLen + int(length) - len(b))
		return nil, nil
	}

	body := make([]byte, length)
	copy(body, b[frameHeaderLen:frameHeaderLen+length])
	buf.Next(frameHeaderLen + int(length))

	return DecodeMessage(body)
}

// Encode appends one framed message to buf, growing it once to the exact
// size required.
func (c *Codec) Encode(msg *Message, buf *bytes.Buffer) error {
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	if uint32(len(body)) > c.maxFrameBytes {
		return &FrameSizeError{Size: uint32(len(body)), Limit: c.maxFrameBytes}
	}

	var header [frameHeaderLen]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	buf.Grow(frameHeaderLen + len(body))
	buf.Write(header[:])
	buf.Write(body)
	return nil
}

// MessageReader decodes messages from a byte stream, owning the buffer that
// bridges transport segmentation and frame boundaries. It is the read half
// of a connection; exactly one goroutine may use it.
type MessageReader struct {
	r     io.Reader
	codec *Codec
	buf   bytes.Buffer
	chunk []byte
	err   error
}

// NewMessageReader wraps r with the given codec.
func NewMessageReader(r io.Reader, codec *Codec) *MessageReader {
	return &MessageReader{r: r, codec: codec, chunk: make([]byte, 4096)}
}

// ReadMessage blocks until one complete message has arrived. It returns
// io.EOF on a clean end of stream between frames and io.ErrUnexpectedEOF
// when the stream ends inside a frame.
func (mr *MessageReader) ReadMessage() (*Message, error) {
	for {
		msg, err := mr.codec.Decode(&mr.buf)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		if mr.err != nil {
			err := mr.err
			if err == io.EOF && mr.buf.Len() > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		n, err := mr.r.Read(mr.chunk)
		if n > 0 {
			mr.buf.Write(mr.chunk[:n])
		}
		if err != nil {
			// Decode whatever arrived with the error first; surface the
			// error on the pass after that.
			mr.err = err
		}
	}
}

// MessageWriter encodes messages onto a byte stream. It is the write half
// of a connection; exactly one goroutine may use it.
type MessageWriter struct {
	w     io.Writer
	codec *Codec
	buf   bytes.Buffer
}

// NewMessageWriter wraps w with the given codec.
func NewMessageWriter(w io.Writer, codec *Codec) *MessageWriter {
	return &MessageWriter{w: w, codec: codec}
}

// WriteMessage frames and writes one message. Messages written by one
// goroutine are delivered to the peer in write order.
func (mw *MessageWriter) WriteMessage(msg *Message) error {
	mw.buf.Reset()
	if err := mw.codec.Encode(msg, &mw.buf); err != nil {
		return err
	}
	if _, err := mw.w.Write(mw.buf.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
