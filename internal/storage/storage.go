// Package storage defines the byte-oriented document store the
// synchronization layer accumulates changes into, and its backends.
// Documents are opaque byte blobs: incremental changes are appended and
// periodically compacted into a single consolidated blob.
package storage

import (
	"context"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

// Storage is the durable home of synchronized documents.
type Storage interface {
	// Load returns the stored bytes for id, or (nil, nil) when the document
	// is not known.
	Load(ctx context.Context, id wire.DocumentID) ([]byte, error)
	// ListAll returns the ids of every stored document.
	ListAll(ctx context.Context) ([]wire.DocumentID, error)
	// Append accumulates incremental changes at the end of the document,
	// creating it when absent.
	Append(ctx context.Context, id wire.DocumentID, changes []byte) error
	// Compact replaces the accumulated bytes with a single consolidated
	// blob.
	Compact(ctx context.Context, id wire.DocumentID, fullDoc []byte) error
}
