package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/domain"
)

type ListAuditInput struct {
	TenantID string `query:"tenant_id" doc:"Restrict to one restaurant (admins only)"`
	Limit    int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset   int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListAuditOutput struct {
	Body []*domain.AuditEntry
}

func RegisterAuditRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "List recorded mutations, newest first",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		var tenant *uuid.UUID
		switch {
		case p.IsAdmin():
			if input.TenantID != "" {
				id, err := uuid.Parse(input.TenantID)
				if err != nil {
					return nil, huma.Error400BadRequest("tenant_id must be a UUID")
				}
				tenant = &id
			}
		case p.UserType == domain.UserTypeRestaurant && p.TenantID != nil:
			tenant = p.TenantID
		default:
			return nil, huma.Error403Forbidden("insufficient permissions")
		}

		entries, err := store.Audit().ListByTenant(ctx, tenant, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list audit entries", err)
		}
		return &ListAuditOutput{Body: entries}, nil
	})
}
