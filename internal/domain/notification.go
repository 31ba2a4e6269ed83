package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PushNotification is a tenant announcement broadcast to app users.
type PushNotification struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PushNotificationRepository interface {
	Create(ctx context.Context, n *PushNotification) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*PushNotification, error)
}

// NotificationType classifies an inbox entry.
type NotificationType string

const (
	NotificationOrderUpdate NotificationType = "Order Update"
	NotificationPromotion   NotificationType = "Promotion"
)

func (t NotificationType) Valid() bool {
	return t == NotificationOrderUpdate || t == NotificationPromotion
}

// Notification is one entry in a customer's in-app inbox.
type Notification struct {
	ID         uuid.UUID        `json:"id"`
	CustomerID uuid.UUID        `json:"customer_id"`
	Message    string           `json:"message"`
	Type       NotificationType `json:"notification_type"`
	IsRead     bool             `json:"is_read"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NotificationRepository stores inbox entries. A nil customerID in the read
// methods spans every customer.
type NotificationRepository interface {
	CreateForCustomers(ctx context.Context, customerIDs []uuid.UUID, message string, t NotificationType, at time.Time) (int64, error)
	List(ctx context.Context, customerID *uuid.UUID, limit, offset int) ([]*Notification, error)
	UnreadCount(ctx context.Context, customerID *uuid.UUID) (int, error)
	// MarkRead flags one entry as read and returns it. ErrNotFound when the
	// entry does not exist or belongs to another customer.
	MarkRead(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*Notification, error)
}
