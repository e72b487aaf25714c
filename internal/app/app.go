// Package app wires configuration, storage, upstream client and services into
// one container shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/application/ingestion"
	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/auth"
	"github.com/storesync/backend/internal/infrastructure/cache"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/ecommerce"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// App holds every long-lived collaborator
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *persistence.Database
	Stores   *cache.Stores
	Registry *prometheus.Registry
	Metrics  *telemetry.SyncMetrics
	Tracer   *telemetry.TracerProvider
	Tokens   *auth.TokenService

	TenantRepo integration.TenantRepository
	Tenants    *ingestion.TenantService
	Sync       *ingestion.SyncService
	Webhooks   *ingestion.WebhookService
	Queries    *ingestion.QueryService
	Scheduler  *scheduler.SyncScheduler
}

// New builds the container. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, version string, log *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithSQL(cfg.Telemetry.DBLogFullSQL && !cfg.App.IsProduction()))
	a.DB, err = persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}
	if err = telemetry.RegisterDBTracing(a.DB.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		return nil, fmt.Errorf("db tracing: %w", err)
	}

	a.Stores, err = cache.NewStores(cache.RedisConfig{
		Enabled:  cfg.Redis.Enabled,
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.HTTP.RateLimitWindow, cfg.Redis.AllowFallback, log)
	if err != nil {
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = telemetry.NewSyncMetrics(a.Registry)

	a.Tokens = auth.NewTokenService(auth.TokenConfig{
		APIKey:         cfg.Shopify.APIKey,
		APISecret:      cfg.Shopify.APISecret,
		FallbackSecret: cfg.Auth.FallbackSecret,
		FallbackIssuer: cfg.Auth.FallbackIssuer,
		FallbackTTL:    cfg.Auth.FallbackTTL,
		Leeway:         cfg.Auth.Leeway,
	})

	shopifyCfg := ecommerce.NewShopifyConfig(cfg.Shopify.APIKey, cfg.Shopify.APISecret)
	shopifyCfg.APIVersion = cfg.Shopify.APIVersion
	shopifyCfg.Scheme = cfg.Shopify.Scheme
	shopifyCfg.PageSize = cfg.Shopify.PageSize
	shopifyCfg.Timeout = cfg.Shopify.Timeout
	upstream, err := ecommerce.NewShopifyClient(shopifyCfg, log)
	if err != nil {
		return nil, fmt.Errorf("shopify client: %w", err)
	}

	tenantRepo := persistence.NewGormTenantRepository(a.DB.DB, persistence.NewCredentialCipher(cfg.Security.CredentialKey))
	entityStore := persistence.NewGormEntityStore(a.DB.DB)
	auditLog := persistence.NewGormAuditLog(a.DB.DB)
	a.TenantRepo = tenantRepo

	reconciler := ingestion.NewReconciler(entityStore, log)
	workers := ingestion.NewEntityWorkers(upstream, reconciler, auditLog, a.Metrics, log)

	a.Tenants = ingestion.NewTenantService(tenantRepo, log)
	a.Queries = ingestion.NewQueryService(entityStore, auditLog)
	syncCfg := ingestion.DefaultSyncServiceConfig()
	if cfg.Scheduler.TenantTimeout > 0 {
		syncCfg.TenantTimeout = cfg.Scheduler.TenantTimeout
	}
	if cfg.Scheduler.LeaseMargin > 0 {
		syncCfg.LeaseMargin = cfg.Scheduler.LeaseMargin
	}
	a.Sync = ingestion.NewSyncService(tenantRepo, a.Stores.Locker, auditLog, workers, syncCfg, a.Metrics, log)
	a.Webhooks = ingestion.NewWebhookService(cfg.Shopify.APISecret, tenantRepo, reconciler, auditLog, a.Stores.Deliveries, a.Metrics, log)
	a.Webhooks.SetDeliveryTTL(cfg.Security.WebhookDeliveryTTL)

	schedCfg := scheduler.DefaultSyncSchedulerConfig()
	if cfg.Scheduler.WindowStart != "" {
		schedCfg.Window, err = integration.ParseTriggerWindow(cfg.Scheduler.WindowStart, cfg.Scheduler.WindowDuration)
		if err != nil {
			return nil, fmt.Errorf("scheduler window: %w", err)
		}
	}
	if cfg.Scheduler.Concurrency > 0 {
		schedCfg.Concurrency = cfg.Scheduler.Concurrency
	}
	if cfg.Scheduler.RunTimeout > 0 {
		schedCfg.RunTimeout = cfg.Scheduler.RunTimeout
	}
	a.Scheduler, err = scheduler.NewSyncScheduler(schedCfg, tenantRepo, a.Sync, a.Metrics, log)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Close waits for background runs and releases stores, database and tracer
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Sync != nil {
		if err := a.Sync.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("waiting for sync runs: %w", err))
		}
	}
	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Tracer != nil {
		if err := a.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
