package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idempotency:"

// IdempotencyStore remembers request keys for a limited time.
type IdempotencyStore struct {
	rdb *redis.Client
}

func (c *Client) Idempotency() *IdempotencyStore {
	return &IdempotencyStore{rdb: c.rdb}
}

func idempotencyKey(scope, key string) string {
	return idempotencyPrefix + scope + ":" + key
}

// MarkProcessed claims key within scope. It returns false when the key was
// already claimed and has not expired.
func (s *IdempotencyStore) MarkProcessed(ctx context.Context, scope, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, idempotencyKey(scope, key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis.IdempotencyStore.MarkProcessed: %w", err)
	}
	return ok, nil
}

func (s *IdempotencyStore) IsProcessed(ctx context.Context, scope, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, idempotencyKey(scope, key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis.IdempotencyStore.IsProcessed: %w", err)
	}
	return n > 0, nil
}

// Release forgets a claim so a failed request can be retried with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if err := s.rdb.Del(ctx, idempotencyKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("redis.IdempotencyStore.Release: %w", err)
	}
	return nil
}
