package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/minmin-app/minmin/internal/api/v1"
	"github.com/minmin-app/minmin/internal/api/ws"
	"github.com/minmin-app/minmin/internal/auth"
	"github.com/minmin-app/minmin/internal/config"
	"github.com/minmin-app/minmin/internal/server/middleware"
	"github.com/minmin-app/minmin/internal/store/postgres"
	redisstore "github.com/minmin-app/minmin/internal/store/redis"
)

// Services bundles the domain services the routes call. Uploader and Notifier
// are nil when object storage or push delivery is disabled.
type Services struct {
	Auth     *auth.Service
	Loyalty  v1.LoyaltyService
	Pricing  v1.PricingService
	Uploader v1.Uploader
	Notifier v1.Notifier
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      *postgres.Store
	redis      *redisstore.Client
	wsHub      *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the background
// sweepers of the rate limiters.
func New(ctx context.Context, cfg *config.Config, store *postgres.Store, rdb *redisstore.Client, svc Services) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID", middleware.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	hub := ws.NewHub(rdb, cfg.Server.CORSOrigins)

	s := &Server{
		router: router,
		store:  store,
		redis:  rdb,
		wsHub:  hub,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Mount API routes on /api/v1 with three sub-groups:
	// 1. Public account routes (register, OTP, login, refresh, reset).
	// 2. Authenticated routes.
	// 3. Admin-only client key management.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(svc.Auth))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, cfg.Server.AuthRPS, cfg.Server.AuthBurst))

			api := humachi.New(r, apiConfig("MinMin Accounts API", "public"))
			registerPublicRoutes(api, svc)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret, svc.Auth))
			r.Use(middleware.RequireConfiguredStaff())
			r.Use(middleware.RateLimit(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateBurst))
			r.Use(middleware.Idempotency(rdb.Idempotency(), cfg.Security.IdempotencyTTL))

			api := humachi.New(r, apiConfig("MinMin API", ""))
			registerAPIRoutes(api, store, svc)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret, svc.Auth))
			r.Use(middleware.RequireAdmin())

			api := humachi.New(r, apiConfig("MinMin Admin API", "admin"))
			registerAdminRoutes(api, store, svc)
		})
	})

	// WebSocket routes. Browsers cannot set headers on the upgrade request,
	// so Auth also accepts the access_token query parameter.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret, svc.Auth))
		registerWSRoutes(r, hub)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", healthHandler(map[string]Pinger{
		"postgres": store,
		"redis":    rdb,
	}))

	return s
}

// apiConfig names one huma API. Every API but the main one serves its
// OpenAPI document, docs and schemas under a suffix so the groups sharing
// /api/v1 do not collide.
func apiConfig(title, suffix string) huma.Config {
	c := huma.DefaultConfig(title, "1.0.0")
	c.Servers = []*huma.Server{
		{URL: "/api/v1"},
	}
	if suffix != "" {
		c.OpenAPIPath += "-" + suffix
		c.DocsPath += "-" + suffix
		c.SchemasPath += "-" + suffix
	}
	return c
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("component", "server").Str("addr", s.cfg.Server.Addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
