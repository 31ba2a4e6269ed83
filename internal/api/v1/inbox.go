package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/server/middleware"
)

type ListInboxInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListInboxOutput struct {
	Body struct {
		UnreadCount int                    `json:"unread_count"`
		Results     []*domain.Notification `json:"results"`
	}
}

type MarkReadInput struct {
	ID uuid.UUID `path:"id" doc:"Notification ID"`
}

type InboxNotificationOutput struct {
	Body *domain.Notification
}

// inboxOwner scopes inbox reads and writes: admins see every inbox, everyone
// else only their own.
func inboxOwner(p middleware.Principal) *uuid.UUID {
	if p.IsAdmin() {
		return nil
	}
	id := p.UserID
	return &id
}

// RegisterInboxRoutes mounts the in-app notification inbox.
func RegisterInboxRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-inbox",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List in-app notifications, newest first",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *ListInboxInput) (*ListInboxOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		owner := inboxOwner(p)

		list, err := store.Inbox().List(ctx, owner, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list notifications", err)
		}
		unread, err := store.Inbox().UnreadCount(ctx, owner)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count notifications", err)
		}

		out := &ListInboxOutput{}
		out.Body.UnreadCount = unread
		out.Body.Results = list
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPatch,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark an in-app notification as read",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *MarkReadInput) (*InboxNotificationOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		n, err := store.Inbox().MarkRead(ctx, input.ID, inboxOwner(p))
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("Notification not found.")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to update notification", err)
		}
		return &InboxNotificationOutput{Body: n}, nil
	})
}
