package wire

import (
	"errors"
	"fmt"
)

// Errors reported when a structurally valid body is missing a field its
// declared type requires. For type "message" the fields are checked in the
// order senderId, targetId, documentId, message and the first absent one is
// reported.
var (
	ErrMissingType       = errors.New("no type field")
	ErrMissingSenderID   = errors.New("no senderId field")
	ErrMissingTargetID   = errors.New("no targetId field")
	ErrMissingDocumentID = errors.New("no documentId field")
	ErrMissingMessage    = errors.New("no message field")
)

// UnknownTypeError reports a body whose type field names no known variant.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", e.Type)
}

// DecodeError reports a structurally invalid body: truncated or malformed
// encoding below the message model.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message body: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FrameSizeError reports a length prefix exceeding the codec's limit. The
// limit is a deliberate hardening measure: without it a bad peer could force
// an arbitrarily large buffer reservation with a five-byte write.
type FrameSizeError struct {
	Size, Limit uint32
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}
