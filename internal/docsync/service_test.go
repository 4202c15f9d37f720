package docsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peerdoc-labs/peerdoc/internal/iface"
	"github.com/peerdoc-labs/peerdoc/internal/storage"
	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

type fakeRegistry struct {
	sent map[wire.PeerID][]*wire.SyncMessage
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{sent: make(map[wire.PeerID][]*wire.SyncMessage)}
}

func (r *fakeRegistry) Register(iface.Connection) {}

func (r *fakeRegistry) SendTo(target wire.PeerID, msg *wire.SyncMessage) error {
	r.sent[target] = append(r.sent[target], msg)
	return nil
}

func (r *fakeRegistry) Peers() []wire.PeerID { return nil }

func TestHandleSyncAppendsPayload(t *testing.T) {
	store := storage.NewMemory()
	svc := New("peer-a", store)
	ctx := context.Background()

	err := svc.HandleSync(ctx, &wire.SyncMessage{
		FromID:     "peer-b",
		ToID:       "peer-a",
		DocumentID: "doc-1",
		Payload:    []byte("change-1"),
	})
	require.NoError(t, err)

	err = svc.HandleSync(ctx, &wire.SyncMessage{
		FromID:     "peer-b",
		ToID:       "peer-a",
		DocumentID: "doc-1",
		Payload:    []byte("change-2"),
	})
	require.NoError(t, err)

	doc, err := store.Load(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, []byte("change-1change-2"), doc)
}

func TestPushDocument(t *testing.T) {
	store := storage.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "doc-1", []byte("state")))

	svc := New("peer-a", store)
	reg := newFakeRegistry()

	require.NoError(t, svc.PushDocument(ctx, reg, "peer-b", "doc-1"))

	require.Len(t, reg.sent["peer-b"], 1)
	msg := reg.sent["peer-b"][0]
	require.Equal(t, wire.PeerID("peer-a"), msg.FromID)
	require.Equal(t, wire.DocumentID("doc-1"), msg.DocumentID)
	require.Equal(t, []byte("state"), msg.Payload)

	require.Error(t, svc.PushDocument(ctx, reg, "peer-b", "missing"))
}

// With a controlled store the handler blocks until the pending operation is
// released, giving tests deterministic interleaving control.
func TestHandleSyncWithControlledStore(t *testing.T) {
	inner := storage.NewMemory()
	store := storage.NewControlled(inner)
	svc := New("peer-a", store)

	done := make(chan error, 1)
	go func() {
		done <- svc.HandleSync(context.Background(), &wire.SyncMessage{
			FromID:     "peer-b",
			ToID:       "peer-a",
			DocumentID: "doc-1",
			Payload:    []byte("x"),
		})
	}()

	require.Eventually(t, func() bool { return store.Pending() == 1 },
		5*time.Second, 10*time.Millisecond)
	require.False(t, inner.Contains("doc-1"), "write landed before release")

	require.True(t, store.Release())
	require.NoError(t, <-done)
	require.True(t, inner.Contains("doc-1"))
}
