// Package docsync connects the peer wire layer to document storage. The
// synchronization payload stays opaque here: inbound changes are accumulated
// into the store, and whole documents can be pushed to peers.
package docsync

import (
	"context"
	"fmt"
	"log"

	"github.com/peerdoc-labs/peerdoc/internal/iface"
	"github.com/peerdoc-labs/peerdoc/internal/storage"
	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

// Service implements iface.SyncHandler over a document store.
type Service struct {
	localID wire.PeerID
	store   storage.Storage
}

// New creates a sync service writing to store on behalf of localID.
func New(localID wire.PeerID, store storage.Storage) *Service {
	return &Service{localID: localID, store: store}
}

// HandleSync accumulates the incoming change payload under its document id.
func (s *Service) HandleSync(ctx context.Context, msg *wire.SyncMessage) error {
	if err := s.store.Append(ctx, msg.DocumentID, msg.Payload); err != nil {
		return fmt.Errorf("append changes from %s to document %s: %w", msg.FromID, msg.DocumentID, err)
	}
	log.Printf("INFO: [SYNC] Stored %d change bytes for document %s from peer %s",
		len(msg.Payload), msg.DocumentID, msg.FromID)
	return nil
}

// PushDocument sends the current bytes of a document to one peer.
func (s *Service) PushDocument(ctx context.Context, reg iface.Registry, to wire.PeerID, id wire.DocumentID) error {
	doc, err := s.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load document %s: %w", id, err)
	}
	if doc == nil {
		return fmt.Errorf("document %s not found", id)
	}

	return reg.SendTo(to, &wire.SyncMessage{
		FromID:     s.localID,
		ToID:       to,
		DocumentID: id,
		Payload:    doc,
	})
}
