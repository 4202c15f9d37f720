package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/peerdoc-labs/peerdoc/internal/wire"
)

const redisKeyPrefix = "peerdoc:doc:"

// Redis stores each document as a single string value; APPEND gives the
// accumulate-changes semantics directly.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the redis server at addr and verifies it responds.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client.Close()
}

func redisKey(id wire.DocumentID) string {
	return redisKeyPrefix + string(id)
}

func (r *Redis) Load(ctx context.Context, id wire.DocumentID) ([]byte, error) {
	doc, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return doc, nil
}

func (r *Redis) ListAll(ctx context.Context) ([]wire.DocumentID, error) {
	var ids []wire.DocumentID
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, wire.DocumentID(strings.TrimPrefix(iter.Val(), redisKeyPrefix)))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ids, nil
}

func (r *Redis) Append(ctx context.Context, id wire.DocumentID, changes []byte) error {
	if err := r.client.Append(ctx, redisKey(id), string(changes)).Err(); err != nil {
		return fmt.Errorf("append to document %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Compact(ctx context.Context, id wire.DocumentID, fullDoc []byte) error {
	if err := r.client.Set(ctx, redisKey(id), fullDoc, 0).Err(); err != nil {
		return fmt.Errorf("compact document %s: %w", id, err)
	}
	return nil
}
