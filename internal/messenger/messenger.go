// Package messenger delivers tenant announcements to the platforms the
// restaurant's audience listens on (Expo push, a Slack staff channel).
package messenger

import (
	"context"

	"github.com/google/uuid"
)

// Push is one announcement ready for delivery. Tokens holds the Expo push
// tokens of the recipients; channels that broadcast ignore it.
type Push struct {
	NotificationID uuid.UUID `json:"notification_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	TenantName     string    `json:"tenant_name,omitempty"`
	Title          string    `json:"title"`
	Body           string    `json:"message"`
	Tokens         []string  `json:"-"`
}

// Channel abstracts one delivery platform.
type Channel interface {
	// Send delivers p. Partial failures are reported as an error after every
	// recipient was attempted.
	Send(ctx context.Context, p Push) error

	// Platform returns the channel identifier (e.g. "expo", "slack").
	Platform() string
}
