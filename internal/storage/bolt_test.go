package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

func newBolt(t *testing.T) *Bolt {
	t.Helper()
	store, err := NewBolt(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltRoundTrip(t *testing.T) {
	store := newBolt(t)
	ctx := context.Background()

	doc, err := store.Load(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, doc)

	require.NoError(t, store.Append(ctx, "doc-1", []byte("abc")))
	require.NoError(t, store.Append(ctx, "doc-1", []byte("def")))

	doc, err = store.Load(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, []byte("abcdef"), doc)

	require.NoError(t, store.Compact(ctx, "doc-1", []byte("z")))
	doc, err = store.Load(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, []byte("z"), doc)
}

func TestBoltListAll(t *testing.T) {
	store := newBolt(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "doc-1", []byte("a")))
	require.NoError(t, store.Append(ctx, "doc-2", []byte("b")))

	ids, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []wire.DocumentID{"doc-1", "doc-2"}, ids)
}

// Reopening the database file must yield the same documents.
func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	ctx := context.Background()

	store, err := NewBolt(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "doc-1", []byte("abc")))
	require.NoError(t, store.Close())

	reopened, err := NewBolt(path)
	require.NoError(t, err)
	defer reopened.Close()

	doc, err := reopened.Load(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), doc)
}
