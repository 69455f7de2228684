// Package redis implements store.Store on Redis.
//
// Entities are stored as JSON values under prefixed keys; sorted sets keyed
// by creation time provide ordered listings. All writes that touch an
// entity and its index go through a pipeline.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/heraldhq/herald/store"
)

// compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store on a Redis client.
type Store struct {
	rdb goredis.UniversalClient
}

// New wraps an existing Redis client.
func New(client goredis.UniversalClient) *Store {
	return &Store{rdb: client}
}

// Open connects to a Redis URL (redis://host:port/db) and verifies
// connectivity before returning.
func Open(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("herald/redis: parse url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("herald/redis: connect: %w", err)
	}

	return &Store{rdb: client}, nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// isNil checks for the Redis nil reply (key not found).
func isNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// scoreFromTime converts a time to a sorted set score.
func scoreFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// getEntity retrieves and decodes a JSON entity.
func (s *Store) getEntity(ctx context.Context, key string, dest any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// marshalEntity encodes an entity for storage.
func marshalEntity(value any) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("herald/redis: marshal entity: %w", err)
	}
	return raw, nil
}
