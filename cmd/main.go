// Package main Rentdesk API
//
// @title           Rentdesk API
// @version         1.0
// @description     Subscription, plan-limit and billing core of the rentdesk property management platform.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentdesk/internal/caching"
	"rentdesk/internal/config"
	"rentdesk/internal/events"
	"rentdesk/internal/handlers"
	"rentdesk/internal/jobs"
	"rentdesk/internal/logging"
	"rentdesk/internal/metrics"
	"rentdesk/internal/middleware"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"
	"rentdesk/internal/services"
	"rentdesk/pkg/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := repositories.NewStore(pool)

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		jwtSecret = randomSecret()
		logger.Warn().Msg("JWT_SECRET not set, using a generated secret; tokens will not survive a restart")
	}

	receipts, err := services.NewMinioReceiptStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL, cfg.Minio.ReceiptBucket)
	if err != nil {
		return fmt.Errorf("minio client: %w", err)
	}
	if err := receipts.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Str("bucket", cfg.Minio.ReceiptBucket).Msg("receipt bucket unavailable")
	}

	cacheSvc := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	publisher := events.Publisher(events.Noop{})
	if cfg.AMQP.URL != "" {
		publisher, err = events.Connect(cfg.AMQP.URL, cfg.AMQP.Exchange, 5, 2*time.Second)
		if err != nil {
			return err
		}
	}
	defer publisher.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	catalog := services.NewPlanCatalog(cfg.Subscription.Currency, paymentInstructions(cfg.Payments))
	tokens := services.NewTokenIssuer(jwtSecret, cfg.JWT.TokenTTL, nil)

	guard := services.NewPlanLimitService(store, catalog, m, logger)
	subscriptionSvc := services.NewSubscriptionService(services.SubscriptionDeps{
		Store:     store,
		Catalog:   catalog,
		Guard:     guard,
		Receipts:  receipts,
		Cache:     cacheSvc,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	}, services.SubscriptionSettings{
		TrialPeriod:      cfg.Subscription.TrialPeriod,
		OverdueGrace:     cfg.Subscription.OverdueGrace,
		MaxReceiptBytes:  cfg.Subscription.MaxReceiptBytes,
		ReceiptURLExpiry: cfg.Minio.PresignExpiry,
	})
	orgAdminSvc := services.NewOrganizationAdminService(services.OrganizationAdminDeps{
		Store:            store,
		Subscriptions:    subscriptionSvc,
		Tokens:           tokens,
		ImpersonationTTL: cfg.JWT.ImpersonationTTL,
		Cache:            cacheSvc,
		Publisher:        publisher,
		Metrics:          m,
		Logger:           logger,
	})
	authSvc := services.NewAuthService(store, orgAdminSvc, tokens, cacheSvc, logger, nil)
	overviewSvc := services.NewBillingOverviewService(store, catalog, cacheSvc, cfg.Subscription.OverviewTTL, cfg.Subscription.Currency, logger, nil)
	auditSvc := services.NewAuditLogsService(store.Repos().AuditLogs, nil)
	resourceSvc := services.NewResourceService(store, guard, nil)

	if cfg.Bootstrap.AdminEmail != "" && cfg.Bootstrap.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	scheduler, err := jobs.NewJobScheduler(subscriptionSvc, cfg.Subscription.LifecycleEvery, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Error().Err(err).Msg("scheduler shutdown failed")
		}
	}()

	e := newServer(serverDeps{
		logger:  logger,
		metrics: m,
		tokens:  tokens,
		orgs:    store.Repos().Organizations,
		audit:   middleware.NewAuditMiddleware(auditSvc),

		auth:         handlers.NewAuthHandlers(authSvc),
		subscription: handlers.NewSubscriptionHandlers(subscriptionSvc, guard, catalog, cfg.Subscription.MaxReceiptBytes),
		resources:    handlers.NewResourceHandlers(resourceSvc),
		admin:        handlers.NewAdminHandlers(subscriptionSvc, orgAdminSvc, overviewSvc),
		auditLogs:    handlers.NewAuditLogsHandlers(auditSvc),
		health:       handlers.NewHealthHandlers(pool, cacheSvc, receipts, version),
		jobs:         handlers.NewJobHandlers(scheduler),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Port).Str("version", version).Msg("rentdesk server starting")
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func paymentInstructions(p config.Payments) []models.PaymentInstructions {
	return []models.PaymentInstructions{
		{
			Method:        models.PaymentBankTransfer,
			BankName:      p.BankName,
			AccountName:   p.BankAccountName,
			AccountNumber: p.BankAccountNumber,
			Notes:         "Use your organization name as the transfer reference and upload the bank slip.",
		},
		{
			Method:        models.PaymentTelebirr,
			AccountName:   p.TelebirrName,
			AccountNumber: p.TelebirrNumber,
			Notes:         "Upload a screenshot of the Telebirr confirmation message.",
		},
		{
			Method:        models.PaymentCreditCard,
			AccountName:   p.CardMerchantName,
			AccountNumber: p.CardMerchantID,
			Notes:         "Pay at the merchant terminal and upload the card slip.",
		},
	}
}
