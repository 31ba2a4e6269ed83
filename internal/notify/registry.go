package notify

import (
	"github.com/minmin-app/minmin/internal/messenger"
)

// Registry holds the delivery channels keyed by platform, in registration order.
type Registry struct {
	channels map[string]messenger.Channel
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]messenger.Channel),
	}
}

// Register adds ch under ch.Platform(), replacing an earlier channel of the same platform.
func (r *Registry) Register(ch messenger.Channel) {
	platform := ch.Platform()
	if _, exists := r.channels[platform]; !exists {
		r.order = append(r.order, platform)
	}
	r.channels[platform] = ch
}

func (r *Registry) Get(platform string) (messenger.Channel, bool) {
	ch, ok := r.channels[platform]
	return ch, ok
}

// Channels returns every registered channel in registration order.
func (r *Registry) Channels() []messenger.Channel {
	out := make([]messenger.Channel, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, r.channels[p])
	}
	return out
}
