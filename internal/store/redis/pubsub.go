package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.Client.Publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads and a cleanup func. The payload
// channel closes when ctx is cancelled or the subscription drops.
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := c.rdb.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.Client.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// TenantNotificationsChannel carries push notifications sent for a tenant.
func TenantNotificationsChannel(tenantID uuid.UUID) string {
	return "tenant:" + tenantID.String() + ":notifications"
}
