package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/minmin-app/minmin/internal/auth"
	"github.com/minmin-app/minmin/internal/config"
	"github.com/minmin-app/minmin/internal/loyalty"
	"github.com/minmin-app/minmin/internal/mail"
	"github.com/minmin-app/minmin/internal/messenger/expo"
	"github.com/minmin-app/minmin/internal/messenger/slack"
	"github.com/minmin-app/minmin/internal/notify"
	"github.com/minmin-app/minmin/internal/pricing"
	"github.com/minmin-app/minmin/internal/secrets"
	"github.com/minmin-app/minmin/internal/server"
	"github.com/minmin-app/minmin/internal/storage"
	"github.com/minmin-app/minmin/internal/store/postgres"
	redisstore "github.com/minmin-app/minmin/internal/store/redis"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return nil, err
	}

	if cfg.Security.FieldKey != "" {
		vault, err := secrets.NewVaultFromBase64(cfg.Security.FieldKey)
		if err != nil {
			store.Close()
			return nil, err
		}
		store.EncryptFields(vault)
	}
	return store, nil
}

func newAuthService(cfg *config.Config, store *postgres.Store, blacklist auth.TokenBlacklist) *auth.Service {
	mailer := mail.New(mail.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	})

	return auth.NewService(auth.Repositories{
		Users:    store.Users(),
		Tenants:  store.Tenants(),
		Branches: store.Branches(),
		APIKeys:  store.APIKeys(),
	}, mailer, blacklist, auth.Config{
		AccessSecret:      cfg.JWT.Secret,
		RefreshSecret:     cfg.JWT.RefreshSecret,
		AccessTTL:         cfg.JWT.AccessTTL,
		RefreshTTL:        cfg.JWT.RefreshTTL,
		MaxFailedAttempts: cfg.Security.MaxFailedAttempts,
		LockoutDuration:   cfg.Security.LockoutDuration,
		OTPTTL:            cfg.Security.OTPTTL,
		StaticAPIKeys:     cfg.Security.APIKeys,
	})
}

func newDispatcher(cfg *config.Config, store *postgres.Store, rdb *redisstore.Client) *notify.Dispatcher {
	registry := notify.NewRegistry()
	registry.Register(expo.New(expo.Config{
		Endpoint:    cfg.Expo.Endpoint,
		AccessToken: cfg.Expo.AccessToken,
		BatchSize:   cfg.Expo.BatchSize,
		Timeout:     cfg.Expo.Timeout,
	}))
	registry.Register(notify.NewRealtime(rdb))
	if cfg.Slack.BotToken != "" && cfg.Slack.Channel != "" {
		registry.Register(slack.NewMirrorFromToken(cfg.Slack.BotToken, cfg.Slack.Channel))
		log.Info().Str("channel", cfg.Slack.Channel).Msg("Slack mirror enabled")
	}

	return notify.NewDispatcher(registry, store.Users(), notify.Options{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
	}).WithInbox(store.Inbox())
}

func newUploader(ctx context.Context, cfg *config.Config) (*storage.S3, error) {
	s3, err := storage.New(ctx, storage.Config{
		Endpoint:      cfg.Storage.Endpoint,
		Region:        cfg.Storage.Region,
		Bucket:        cfg.Storage.Bucket,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		UsePathStyle:  cfg.Storage.UsePathStyle,
		PresignTTL:    cfg.Storage.PresignTTL,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rdb, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	authSvc := newAuthService(cfg, store, rdb.Blacklist())
	loyaltySvc := loyalty.NewService(store.Loyalty(), store.Users(), store.Tenants())
	authSvc.SetProfileRewarder(loyaltySvc)
	pricingSvc := pricing.NewService(store.Discounts(), store.Tenants(), store.Branches(), loyaltySvc)

	dispatcher := newDispatcher(cfg, store, rdb)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	svc := server.Services{
		Auth:     authSvc,
		Loyalty:  loyaltySvc,
		Pricing:  pricingSvc,
		Notifier: dispatcher,
	}

	uploader, err := newUploader(ctx, cfg)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		log.Warn().Msg("object storage not configured; uploads disabled")
	case err != nil:
		return err
	default:
		svc.Uploader = uploader
	}

	srv := server.New(ctx, cfg, store, rdb, svc)

	// Start server in background goroutine.
	go func() {
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
