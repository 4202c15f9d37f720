package wire

// PeerID names one participant in the synchronization network. It is opaque
// at this layer; equality is string equality.
type PeerID string

// DocumentID names one synchronized document. Opaque at this layer.
type DocumentID string

// MessageType is the wire-level discriminant for a Message.
type MessageType string

const (
	// MessageJoin is the first message on a connection: "I am entering this
	// connection as SenderID".
	MessageJoin MessageType = "join"
	// MessageJoined acknowledges a join: "I acknowledge and I am SenderID".
	MessageJoined MessageType = "joined"
	// MessageSync carries application traffic. Only valid after the
	// handshake has completed in both directions.
	MessageSync MessageType = "message"
)

// Message is the wire envelope for everything exchanged between two peers.
// SenderID is set for every type; the remaining fields are set only when
// Type is MessageSync.
type Message struct {
	Type       MessageType
	SenderID   PeerID
	TargetID   PeerID
	DocumentID DocumentID
	Payload    []byte
}

// SyncMessage is the narrowed application message handed to the registry
// once a connection is established. Payload is opaque: it is produced and
// consumed by the synchronization logic above this layer.
type SyncMessage struct {
	FromID     PeerID
	ToID       PeerID
	DocumentID DocumentID
	Payload    []byte
}

// NewJoin builds the handshake message announcing the local identity.
func NewJoin(sender PeerID) *Message {
	return &Message{Type: MessageJoin, SenderID: sender}
}

// NewJoined builds the handshake acknowledgement carrying the local identity.
func NewJoined(sender PeerID) *Message {
	return &Message{Type: MessageJoined, SenderID: sender}
}

// NewSync wraps an application message into the wire envelope.
func NewSync(m *SyncMessage) *Message {
	return &Message{
		Type:       MessageSync,
		SenderID:   m.FromID,
		TargetID:   m.ToID,
		DocumentID: m.DocumentID,
		Payload:    m.Payload,
	}
}

// Sync unwraps the envelope into the application message. The second return
// is false for handshake messages.
func (m *Message) Sync() (*SyncMessage, bool) {
	if m.Type != MessageSync {
		return nil, false
	}
	return &SyncMessage{
		FromID:     m.SenderID,
		ToID:       m.TargetID,
		DocumentID: m.DocumentID,
		Payload:    m.Payload,
	}, true
}
