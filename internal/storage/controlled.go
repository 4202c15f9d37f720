package storage

import (
	"context"
	"sync"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

// Controlled wraps a store and defers completion of every operation until
// Release is called, one operation per call, in arrival order. It gives
// integration tests deterministic control over how storage operations
// interleave with connection traffic.
type Controlled struct {
	inner Storage

	mu      sync.Mutex
	pending []chan struct{}
}

// NewControlled wraps inner with release gating.
func NewControlled(inner Storage) *Controlled {
	return &Controlled{inner: inner}
}

// Release lets the oldest pending operation proceed. It reports whether any
// operation was waiting.
func (c *Controlled) Release() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return false
	}
	gate := c.pending[0]
	c.pending = c.pending[1:]
	close(gate)
	return true
}

// Pending returns how many operations are blocked awaiting Release.
func (c *Controlled) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// wait blocks the calling operation until its turn is released or ctx ends.
func (c *Controlled) wait(ctx context.Context) error {
	gate := make(chan struct{})
	c.mu.Lock()
	c.pending = append(c.pending, gate)
	c.mu.Unlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controlled) Load(ctx context.Context, id wire.DocumentID) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.Load(ctx, id)
}

func (c *Controlled) ListAll(ctx context.Context) ([]wire.DocumentID, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.ListAll(ctx)
}

func (c *Controlled) Append(ctx context.Context, id wire.DocumentID, changes []byte) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.inner.Append(ctx, id, changes)
}

func (c *Controlled) Compact(ctx context.Context, id wire.DocumentID, fullDoc []byte) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.inner.Compact(ctx, id, fullDoc)
}
