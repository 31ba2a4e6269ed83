package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	TenantID   *uuid.UUID     `json:"tenant_id,omitempty"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Action     string         `json:"action"`   // "tenant.create", "loyalty.adjust", ...
	Resource   string         `json:"resource"` // "tenant", "branch", "loyalty", "api_key", ...
	ResourceID uuid.UUID      `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	// ListByTenant lists entries newest first. A nil tenant lists every entry.
	ListByTenant(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]*AuditEntry, error)
}
