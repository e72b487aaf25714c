package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/storesync/backend/docs"
	"github.com/storesync/backend/internal/app"
	"github.com/storesync/backend/internal/infrastructure/config"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/scheduler"
	"github.com/storesync/backend/internal/interfaces/http/handler"
	"github.com/storesync/backend/internal/interfaces/http/middleware"
	"github.com/storesync/backend/internal/interfaces/http/router"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

//	@title			storesync API
//	@version		1.0
//	@description	Shopify ingestion and reconciliation backend: webhooks, scheduled sync and the tenant query API.

//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token from the embedded app or a fallback token. Format: "Bearer {token}"

//	@securityDefinitions.apikey	CronSecret
//	@in							header
//	@name						Authorization
//	@description				Shared cron secret. Format: "Bearer {secret}"
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storesync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg, Version, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	log.Info("Database connected",
		zap.Bool("redis", container.Stores.IsDistributed()),
		zap.Bool("tracing", container.Tracer.IsEnabled()))

	var rateLimiter, clientRateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter = middleware.NewRateLimiter(container.Stores.RateLimit,
			cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, container.Metrics, log)
		clientRateLimiter = middleware.NewRateLimiter(container.Stores.RateLimit,
			cfg.HTTP.ClientRateLimitRequests, cfg.HTTP.RateLimitWindow, container.Metrics, log)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Int("client_requests", cfg.HTTP.ClientRateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	var httpMetrics *middleware.HTTPMetrics
	metricsPath := ""
	if cfg.Metrics.Enabled {
		httpMetrics = middleware.NewHTTPMetrics(container.Registry)
		metricsPath = cfg.Metrics.Path
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.Security.HSTSEnabled
	security.HSTSMaxAge = cfg.Security.HSTSMaxAge

	engine, err := router.New(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: container.Tracer.IsEnabled(),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CronSecret:     cfg.Scheduler.CronSecret,
		MetricsPath:    metricsPath,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           cors,
		Security:       security,
		Swagger: middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		},
	}, router.Dependencies{
		Logger:            log,
		Tokens:            container.Tokens,
		Tenants:           container.Tenants,
		Gatherer:          container.Registry,
		RateLimiter:       rateLimiter,
		ClientRateLimiter: clientRateLimiter,
		HTTPMetrics:       httpMetrics,
	}, router.Handlers{
		Webhook: handler.NewWebhookHandler(container.Webhooks),
		Sync:    handler.NewSyncHandler(container.Sync, container.Tenants, container.Queries),
		Query:   handler.NewQueryHandler(container.Queries),
		Cron:    handler.NewCronHandler(container.Scheduler),
		System:  handler.NewSystemHandler(container.DB, Version),
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	var trigger *scheduler.Trigger
	if cfg.Scheduler.Enabled {
		trigger = scheduler.NewTrigger(cfg.Scheduler.Interval, container.Scheduler, log)
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	exitCode := 0
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error("Sync trigger did not stop cleanly", zap.Error(err))
			exitCode = 1
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		exitCode = 1
	}
	// waits for runs started through POST /api/v1/sync/run
	if err := container.Close(shutdownCtx); err != nil {
		log.Error("Error releasing resources", zap.Error(err))
		exitCode = 1
	}

	log.Info("Server exited")
	if exitCode != 0 {
		_ = log.Sync()
		os.Exit(exitCode)
	}
}
