package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound values in db.statement
	SlowQueryThresh time.Duration
	DBName          string
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

type queryStartKey struct{}

// RegisterDBTracing installs otelgorm plus callbacks that annotate each
// statement span with table, rows affected and a slow-query event.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// annotation runs before otelgorm ends the statement span
	annotate := annotateCallback(cfg.SlowQueryThresh)
	cb := db.Callback()
	registrations := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("storesync:start_create", markQueryStart) },
		func() error { return cb.Query().Before("gorm:query").Register("storesync:start_query", markQueryStart) },
		func() error { return cb.Update().Before("gorm:update").Register("storesync:start_update", markQueryStart) },
		func() error { return cb.Delete().Before("gorm:delete").Register("storesync:start_delete", markQueryStart) },
		func() error { return cb.Row().Before("gorm:row").Register("storesync:start_row", markQueryStart) },
		func() error { return cb.Raw().Before("gorm:raw").Register("storesync:start_raw", markQueryStart) },
		func() error { return cb.Create().After("gorm:create").Before("otel:after:create").Register("storesync:annotate_create", annotate) },
		func() error { return cb.Query().After("gorm:query").Before("otel:after:query").Register("storesync:annotate_query", annotate) },
		func() error { return cb.Update().After("gorm:update").Before("otel:after:update").Register("storesync:annotate_update", annotate) },
		func() error { return cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("storesync:annotate_delete", annotate) },
		func() error { return cb.Row().After("gorm:row").Before("otel:after:row").Register("storesync:annotate_row", annotate) },
		func() error { return cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("storesync:annotate_raw", annotate) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func annotateCallback(threshold time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}

		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, db.Error.Error())
			span.RecordError(db.Error)
		}

		start, ok := ctx.Value(queryStartKey{}).(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed > threshold {
			span.SetAttributes(attribute.Bool("db.slow_query", true))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", threshold.Milliseconds()),
			))
		}
	}
}
