package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS document_changes (
	document_id TEXT      NOT NULL,
	seq         BIGSERIAL NOT NULL,
	data        BYTEA     NOT NULL,
	PRIMARY KEY (document_id, seq)
)`

// Postgres stores each document as an ordered sequence of change rows.
// Append inserts a row; Compact collapses the rows into one.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database named by dsn and ensures the schema
// exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure document_changes table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Load(ctx context.Context, id wire.DocumentID) ([]byte, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT data FROM document_changes WHERE document_id = $1 ORDER BY seq`, string(id))
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	defer rows.Close()

	var doc []byte
	found := false
	for rows.Next() {
		var chunk []byte
		if err := rows.Scan(&chunk); err != nil {
			return nil, fmt.Errorf("scan change row for document %s: %w", id, err)
		}
		doc = append(doc, chunk...)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return doc, nil
}

func (p *Postgres) ListAll(ctx context.Context) ([]wire.DocumentID, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT document_id FROM document_changes`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var ids []wire.DocumentID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, wire.DocumentID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ids, nil
}

func (p *Postgres) Append(ctx context.Context, id wire.DocumentID, changes []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO document_changes (document_id, data) VALUES ($1, $2)`, string(id), changes)
	if err != nil {
		return fmt.Errorf("append to document %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) Compact(ctx context.Context, id wire.DocumentID, fullDoc []byte) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM document_changes WHERE document_id = $1`, string(id)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO document_changes (document_id, data) VALUES ($1, $2)`, string(id), fullDoc)
		return err
	})
	if err != nil {
		return fmt.Errorf("compact document %s: %w", id, err)
	}
	return nil
}
