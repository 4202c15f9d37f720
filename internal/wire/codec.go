package wire

import (
	"github.com/fxamacker/cbor/v2"
)

// The body of every frame is a CBOR map with text keys. Field order within
// a variant is fixed so that two compliant encoders produce identical bytes.
// Decoders must tolerate keys they do not recognize.

type joinBody struct {
	Type     string `cbor:"type"`
	SenderID string `cbor:"senderId"`
}

type syncBody struct {
	Type       string `cbor:"type"`
	SenderID   string `cbor:"senderId"`
	TargetID   string `cbor:"targetId"`
	DocumentID string `cbor:"documentId"`
	Message    []byte `cbor:"message"`
}

// rawBody is the decode side of the map. Pointer fields distinguish an
// absent key from a present-but-empty value; unrecognized keys are skipped,
// which keeps the format open to future optional fields.
type rawBody struct {
	Type       *string `cbor:"type"`
	SenderID   *string `cbor:"senderId"`
	TargetID   *string `cbor:"targetId"`
	DocumentID *string `cbor:"documentId"`
	Message    *[]byte `cbor:"message"`
}

// Encode serializes the message body. The frame length prefix is added by
// the framing codec, not here.
func (m *Message) Encode() ([]byte, error) {
	switch m.Type {
	case MessageJoin, MessageJoined:
		return cbor.Marshal(joinBody{
			Type:     string(m.Type),
			SenderID: string(m.SenderID),
		})
	case MessageSync:
		payload := m.Payload
		if payload == nil {
			// A nil slice would encode as null instead of an empty byte
			// string, which decoders reject as a missing message field.
			payload = []byte{}
		}
		return cbor.Marshal(syncBody{
			Type:       string(m.Type),
			SenderID:   string(m.SenderID),
			TargetID:   string(m.TargetID),
			DocumentID: string(m.DocumentID),
			Message:    payload,
		})
	default:
		return nil, &UnknownTypeError{Type: string(m.Type)}
	}
}

// DecodeMessage parses one frame body. It never partially constructs a
// message: either every field the declared type requires is present, or the
// corresponding missing-field error is returned and the input has no effect.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		// A zero-length body is legal at the framing layer and reaches the
		// type dispatch as an empty map.
		return nil, ErrMissingType
	}

	var raw rawBody
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Err: err}
	}

	if raw.Type == nil {
		return nil, ErrMissingType
	}
	switch MessageType(*raw.Type) {
	case MessageJoin, MessageJoined:
		if raw.SenderID == nil {
			return nil, ErrMissingSenderID
		}
		return &Message{
			Type:     MessageType(*raw.Type),
			SenderID: PeerID(*raw.SenderID),
		}, nil
	case MessageSync:
		if raw.SenderID == nil {
			return nil, ErrMissingSenderID
		}
		if raw.TargetID == nil {
			return nil, ErrMissingTargetID
		}
		if raw.DocumentID == nil {
			return nil, ErrMissingDocumentID
		}
		if raw.Message == nil {
			return nil, ErrMissingMessage
		}
		return &Message{
			Type:       MessageSync,
			SenderID:   PeerID(*raw.SenderID),
			TargetID:   PeerID(*raw.TargetID),
			DocumentID: DocumentID(*raw.DocumentID),
			Payload:    *raw.Message,
		}, nil
	default:
		return nil, &UnknownTypeError{Type: *raw.Type}
	}
}
