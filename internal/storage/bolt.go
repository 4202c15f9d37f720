package storage

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

var boltBucket = []byte("documents")

// Bolt stores documents in a single-file bbolt database, one key per
// document id.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the database at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create documents bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close releases the underlying database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) Load(_ context.Context, id wire.DocumentID) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		doc := tx.Bucket(boltBucket).Get([]byte(id))
		if doc != nil {
			// Bolt-owned bytes are only valid inside the transaction.
			out = make([]byte, len(doc))
			copy(out, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return out, nil
}

func (b *Bolt) ListAll(_ context.Context) ([]wire.DocumentID, error) {
	var ids []wire.DocumentID
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, wire.DocumentID(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ids, nil
}

func (b *Bolt) Append(_ context.Context, id wire.DocumentID, changes []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		existing := bucket.Get([]byte(id))
		doc := make([]byte, 0, len(existing)+len(changes))
		doc = append(doc, existing...)
		doc = append(doc, changes...)
		return bucket.Put([]byte(id), doc)
	})
	if err != nil {
		return fmt.Errorf("append to document %s: %w", id, err)
	}
	return nil
}

func (b *Bolt) Compact(_ context.Context, id wire.DocumentID, fullDoc []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(id), fullDoc)
	})
	if err != nil {
		return fmt.Errorf("compact document %s: %w", id, err)
	}
	return nil
}
