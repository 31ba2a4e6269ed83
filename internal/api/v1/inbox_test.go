package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/minmin-app/minmin/internal/api/v1"
	"github.com/minmin-app/minmin/internal/domain"
)

type inboxBody struct {
	UnreadCount int                    `json:"unread_count"`
	Results     []*domain.Notification `json:"results"`
}

func TestListInbox(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	entry := &domain.Notification{
		ID: uuid.New(), CustomerID: customerID, Message: "Your order is ready",
		Type: domain.NotificationOrderUpdate, CreatedAt: time.Now(),
	}

	tests := []struct {
		name      string
		ctx       context.Context
		wantOwner *uuid.UUID
	}{
		{name: "customer_sees_own", ctx: customerCtx(customerID), wantOwner: &customerID},
		{name: "admin_sees_all", ctx: adminCtx()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			store := &mockDataStore{inbox: &mockInboxRepo{
				listFunc: func(_ context.Context, owner *uuid.UUID, limit, offset int) ([]*domain.Notification, error) {
					assert.Equal(t, tc.wantOwner, owner)
					assert.Equal(t, 5, limit)
					assert.Equal(t, 10, offset)
					return []*domain.Notification{entry}, nil
				},
				unreadFunc: func(_ context.Context, owner *uuid.UUID) (int, error) {
					assert.Equal(t, tc.wantOwner, owner)
					return 3, nil
				},
			}}
			v1.RegisterInboxRoutes(api, store)

			resp := api.GetCtx(tc.ctx, "/notifications?limit=5&offset=10")
			require.Equal(t, http.StatusOK, resp.Code)

			var body inboxBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, 3, body.UnreadCount)
			require.Len(t, body.Results, 1)
			assert.Equal(t, "Your order is ready", body.Results[0].Message)
			assert.Equal(t, domain.NotificationOrderUpdate, body.Results[0].Type)
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterInboxRoutes(api, &mockDataStore{})

		resp := api.Get("/notifications")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("store_error", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{inbox: &mockInboxRepo{
			listFunc: func(context.Context, *uuid.UUID, int, int) ([]*domain.Notification, error) {
				return nil, errors.New("db down")
			},
		}}
		v1.RegisterInboxRoutes(api, store)

		resp := api.GetCtx(customerCtx(customerID), "/notifications")
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}

func TestMarkNotificationRead(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	id := uuid.New()

	t.Run("own_entry", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{inbox: &mockInboxRepo{
			markReadFunc: func(_ context.Context, got uuid.UUID, owner *uuid.UUID) (*domain.Notification, error) {
				assert.Equal(t, id, got)
				require.NotNil(t, owner)
				assert.Equal(t, customerID, *owner)
				return &domain.Notification{ID: id, CustomerID: customerID, IsRead: true, Type: domain.NotificationPromotion}, nil
			},
		}}
		v1.RegisterInboxRoutes(api, store)

		resp := api.PatchCtx(customerCtx(customerID), "/notifications/"+id.String()+"/read")
		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Notification
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.IsRead)
	})

	t.Run("someone_elses_entry_is_not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{inbox: &mockInboxRepo{
			markReadFunc: func(context.Context, uuid.UUID, *uuid.UUID) (*domain.Notification, error) {
				return nil, domain.ErrNotFound
			},
		}}
		v1.RegisterInboxRoutes(api, store)

		resp := api.PatchCtx(customerCtx(uuid.New()), "/notifications/"+id.String()+"/read")
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Contains(t, resp.Body.String(), "Notification not found.")
	})

	t.Run("admin_marks_any", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{inbox: &mockInboxRepo{
			markReadFunc: func(_ context.Context, _ uuid.UUID, owner *uuid.UUID) (*domain.Notification, error) {
				assert.Nil(t, owner)
				return &domain.Notification{ID: id, IsRead: true}, nil
			},
		}}
		v1.RegisterInboxRoutes(api, store)

		resp := api.PatchCtx(adminCtx(), "/notifications/"+id.String()+"/read")
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("bad_id", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterInboxRoutes(api, &mockDataStore{})

		resp := api.PatchCtx(customerCtx(customerID), "/notifications/not-a-uuid/read")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}
