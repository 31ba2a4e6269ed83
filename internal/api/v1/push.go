package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/minmin-app/minmin/internal/domain"
)

type SendPushInput struct {
	Body struct {
		TenantID uuid.UUID `json:"tenant_id" doc:"Sending restaurant"`
		Title    string    `json:"title" minLength:"1" maxLength:"255" doc:"Notification title"`
		Message  string    `json:"message" minLength:"1" maxLength:"2000" doc:"Notification body"`
	}
}

type PushNotificationOutput struct {
	Body *domain.PushNotification
}

type ListPushInput struct {
	TenantID uuid.UUID `path:"tenantId" doc:"Tenant ID"`
}

type ListPushOutput struct {
	Body []*domain.PushNotification
}

// RegisterPushRoutes mounts the notification endpoints. notifier may be nil,
// in which case notifications are stored but not delivered.
func RegisterPushRoutes(api huma.API, store DataStore, notifier Notifier) {
	huma.Register(api, huma.Operation{
		OperationID: "send-push",
		Method:      http.MethodPost,
		Path:        "/push/send",
		Summary:     "Store a restaurant announcement and deliver it to app users",
		Tags:        []string{"Push"},
	}, func(ctx context.Context, input *SendPushInput) (*PushNotificationOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if !p.ManagesTenant(input.Body.TenantID) {
			return nil, huma.Error403Forbidden("You can only send notifications for your own restaurant.")
		}

		tenant, err := loadTenant(ctx, store, input.Body.TenantID)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		n := &domain.PushNotification{
			ID:        uuid.New(),
			TenantID:  tenant.ID,
			Title:     strings.TrimSpace(input.Body.Title),
			Message:   strings.TrimSpace(input.Body.Message),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.Notifications().Create(ctx, n); err != nil {
			return nil, huma.Error500InternalServerError("failed to store notification", err)
		}

		if notifier != nil {
			if err := notifier.Enqueue(n, tenant.RestaurantName); err != nil {
				log.Warn().Err(err).
					Str("component", "push").
					Str("notification_id", n.ID.String()).
					Msg("notification stored but not queued for delivery")
			}
		}

		recordAudit(ctx, store, p, &tenant.ID, "push.send", "push_notification", n.ID, map[string]any{"title": n.Title})
		return &PushNotificationOutput{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-push",
		Method:      http.MethodGet,
		Path:        "/push/tenant/{tenantId}",
		Summary:     "List a restaurant's notifications, newest first",
		Tags:        []string{"Push"},
	}, func(ctx context.Context, input *ListPushInput) (*ListPushOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if !canView(p, input.TenantID) {
			return nil, huma.Error403Forbidden("You do not have access to this tenant.")
		}

		list, err := store.Notifications().ListByTenant(ctx, input.TenantID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list notifications", err)
		}
		return &ListPushOutput{Body: list}, nil
	})
}
