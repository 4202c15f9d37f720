package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func encodeFrame(t *testing.T, msg *Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewCodec(0).Encode(msg, &buf))
	return buf.Bytes()
}

// Feeding a frame one byte at a time must produce no output until the final
// byte arrives, and exactly one message after it.
func TestDecodePartialDelivery(t *testing.T) {
	want := NewSync(&SyncMessage{
		FromID:     "peer-a",
		ToID:       "peer-b",
		DocumentID: "doc-1",
		Payload:    []byte("changes"),
	})
	frame := encodeFrame(t, want)

	codec := NewCodec(0)
	var buf bytes.Buffer
	for i, b := range frame {
		msg, err := codec.Decode(&buf)
		require.NoError(t, err)
		require.Nil(t, msg, "spurious message before byte %d", i)
		buf.WriteByte(b)
	}

	msg, err := codec.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, want, msg)
	require.Zero(t, buf.Len(), "frame bytes not fully consumed")
}

func TestDecodeBackToBackFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeFrame(t, NewJoin("peer-a")))
	buf.Write(encodeFrame(t, NewJoined("peer-b")))

	codec := NewCodec(0)

	first, err := codec.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, NewJoin("peer-a"), first)

	second, err := codec.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, NewJoined("peer-b"), second)

	third, err := codec.Decode(&buf)
	require.NoError(t, err)
	require.Nil(t, third)
}

// A zero-length body is legal framing; it fails in the message model with a
// missing type field.
func TestDecodeZeroLengthBody(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x00})

	_, err := NewCodec(0).Decode(&buf)
	require.ErrorIs(t, err, ErrMissingType)
	require.Zero(t, buf.Len())
}

func TestDecodeOversizedFrame(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 1<<30)

	var buf bytes.Buffer
	buf.Write(header[:])

	_, err := NewCodec(1024).Decode(&buf)

	var sizeErr *FrameSizeError
	require.ErrorAs(t, err, &sizeErr)
	require.Equal(t, uint32(1<<30), sizeErr.Size)
}

// A limit wider than the 32-bit length prefix clamps to the largest
// enforceable value instead of wrapping to a tiny one.
func TestNewCodecClampsLimitToPrefixWidth(t *testing.T) {
	want := uint64(math.MaxInt)
	if want > math.MaxUint32 {
		want = math.MaxUint32
	}

	codec := NewCodec(math.MaxInt)
	require.Equal(t, uint32(want), codec.maxFrameBytes)
}

func TestEncodeRejectsOversizedBody(t *testing.T) {
	msg := NewSync(&SyncMessage{
		FromID:     "peer-a",
		ToID:       "peer-b",
		DocumentID: "doc-1",
		Payload:    bytes.Repeat([]byte{0xff}, 256),
	})

	var buf bytes.Buffer
	err := NewCodec(64).Encode(msg, &buf)

	var sizeErr *FrameSizeError
	require.ErrorAs(t, err, &sizeErr)
}

// The reader must reassemble frames however the transport fragments them.
func TestMessageReaderOneBytePerRead(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(encodeFrame(t, NewJoin("peer-a")))
	stream.Write(encodeFrame(t, NewJoined("peer-b")))

	mr := NewMessageReader(iotest.OneByteReader(&stream), NewCodec(0))

	first, err := mr.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, NewJoin("peer-a"), first)

	second, err := mr.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, NewJoined("peer-b"), second)

	_, err = mr.ReadMessage()
	require.ErrorIs(t, err, io.EOF)
}

func TestMessageReaderTruncatedStream(t *testing.T) {
	frame := encodeFrame(t, NewJoin("peer-a"))
	mr := NewMessageReader(bytes.NewReader(frame[:len(frame)-1]), NewCodec(0))

	_, err := mr.ReadMessage()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMessageWriterReaderPipe(t *testing.T) {
	var stream bytes.Buffer
	mw := NewMessageWriter(&stream, NewCodec(0))

	want := NewSync(&SyncMessage{
		FromID:     "peer-a",
		ToID:       "peer-b",
		DocumentID: "doc-1",
		Payload:    []byte("payload"),
	})
	require.NoError(t, mw.WriteMessage(want))
	require.NoError(t, mw.WriteMessage(NewJoin("peer-a"))) // order preserved

	mr := NewMessageReader(&stream, NewCodec(0))

	got, err := mr.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, want, got)

	next, err := mr.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, NewJoin("peer-a"), next)
}
