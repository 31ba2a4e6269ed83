package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/minmin-app/minmin/internal/api/v1"
	"github.com/minmin-app/minmin/internal/api/ws"
	"github.com/minmin-app/minmin/internal/store/postgres"
)

func registerPublicRoutes(api huma.API, svc Services) {
	v1.RegisterPublicAccountRoutes(api, svc.Auth)
}

func registerAPIRoutes(api huma.API, store *postgres.Store, svc Services) {
	v1.RegisterAccountRoutes(api, store, svc.Auth)
	v1.RegisterRestaurantRoutes(api, store)
	v1.RegisterAddressRoutes(api, store)
	v1.RegisterFeedRoutes(api, store)
	v1.RegisterLoyaltyRoutes(api, store, svc.Loyalty)
	v1.RegisterPushRoutes(api, store, svc.Notifier)
	v1.RegisterInboxRoutes(api, store)
	v1.RegisterDiscountRoutes(api, store, svc.Pricing)
	v1.RegisterUploadRoutes(api, svc.Uploader)
	v1.RegisterAuditRoutes(api, store)
}

func registerAdminRoutes(api huma.API, store *postgres.Store, svc Services) {
	v1.RegisterAPIKeyRoutes(api, store, svc.Auth)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/tenants/{tenantID}/notifications", hub.ServeTenantNotifications)
}
