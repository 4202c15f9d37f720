package storage

import (
	"context"
	"sync"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

// Memory keeps documents in a process-local map. It is the default backend
// and the substrate for tests.
type Memory struct {
	mu   sync.Mutex
	docs map[wire.DocumentID][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[wire.DocumentID][]byte)}
}

func (m *Memory) Load(_ context.Context, id wire.DocumentID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (m *Memory) ListAll(_ context.Context) ([]wire.DocumentID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]wire.DocumentID, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) Append(_ context.Context, id wire.DocumentID, changes []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[id] = append(m.docs[id], changes...)
	return nil
}

func (m *Memory) Compact(_ context.Context, id wire.DocumentID, fullDoc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := make([]byte, len(fullDoc))
	copy(doc, fullDoc)
	m.docs[id] = doc
	return nil
}

// Contains reports whether a document exists. Test helper.
func (m *Memory) Contains(id wire.DocumentID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok
}
