package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minmin-app/minmin/internal/messenger"
	redisstore "github.com/minmin-app/minmin/internal/store/redis"
)

// Publisher is the pub/sub side of the Redis client.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Realtime publishes announcements to the tenant's Redis channel, which the
// WebSocket endpoint relays to connected dashboards.
type Realtime struct {
	pub Publisher
}

var _ messenger.Channel = (*Realtime)(nil) //nolint:gochecknoglobals // compile-time check

func NewRealtime(pub Publisher) *Realtime {
	return &Realtime{pub: pub}
}

func (r *Realtime) Platform() string { return "realtime" }

func (r *Realtime) Send(ctx context.Context, p messenger.Push) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notify.Realtime.Send: marshal: %w", err)
	}
	if err := r.pub.Publish(ctx, redisstore.TenantNotificationsChannel(p.TenantID), payload); err != nil {
		return fmt.Errorf("notify.Realtime.Send: %w", err)
	}
	return nil
}
