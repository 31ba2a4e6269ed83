package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client wraps the shared go-redis client. Pub/sub, the token blacklist and
// the idempotency store all hang off one connection pool.
type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewWithClient wraps an existing go-redis client.
func NewWithClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.Client.Ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis.Client.Close: %w", err)
	}
	return nil
}
