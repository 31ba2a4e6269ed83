package v1

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/loyalty"
	"github.com/minmin-app/minmin/internal/pricing"
	"github.com/minmin-app/minmin/internal/server/middleware"
)

// MessageOutput is the plain acknowledgement returned by state changes
// without a resource body.
type MessageOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

func message(msg string) *MessageOutput {
	out := &MessageOutput{}
	out.Body.Message = msg
	return out
}

// caller returns the authenticated principal or a 401.
func caller(ctx context.Context) (middleware.Principal, error) {
	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return middleware.Principal{}, huma.Error401Unauthorized("authentication required")
	}
	return p, nil
}

func loyaltyActor(p middleware.Principal) loyalty.Actor {
	return loyalty.Actor{UserID: p.UserID, UserType: p.UserType, TenantID: p.TenantID}
}

func pricingActor(p middleware.Principal) pricing.Actor {
	return pricing.Actor{UserID: p.UserID, UserType: p.UserType, TenantID: p.TenantID}
}

// badInput turns a wrapped domain.ErrInvalidInput into a 400. Any other error
// yields nil.
func badInput(err error) error {
	if errors.Is(err, domain.ErrInvalidInput) {
		return huma.Error400BadRequest("invalid input", err)
	}
	return nil
}

// recordAudit stores an audit entry for a mutation. Failures are logged and
// never fail the request.
func recordAudit(ctx context.Context, store DataStore, p middleware.Principal, tenantID *uuid.UUID, action, resource string, resourceID uuid.UUID, details map[string]any) {
	entry := &domain.AuditEntry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ActorID:    p.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	if err := store.Audit().Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn().Err(err).
			Str("component", "audit").
			Str("action", action).
			Str("resource_id", resourceID.String()).
			Msg("failed to record audit entry")
	}
}
