package iface

import (
	"context"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

// Connection is a single established, identity-verified link to a remote
// repo. The read half is owned by one goroutine; Send may be shared.
type Connection interface {
	RemoteID() wire.PeerID
	Receive() (*wire.SyncMessage, error)
	Send(*wire.SyncMessage) error
	Close() error
}

// Registry owns every established connection and routes sync traffic among
// them. It serializes its own mutations; connections never share state.
type Registry interface {
	Register(conn Connection)
	SendTo(target wire.PeerID, msg *wire.SyncMessage) error
	Peers() []wire.PeerID
}

// SyncHandler consumes sync messages addressed to the local repo.
type SyncHandler interface {
	HandleSync(ctx context.Context, msg *wire.SyncMessage) error
}
