package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

const (
	tracerName = "github.com/storesync/backend/internal/application/ingestion"

	// auditWriteTimeout bounds SyncError writes made after the run deadline fired
	auditWriteTimeout = 5 * time.Second
)

// EntityWorker pulls one entity type for one tenant. Run never panics and
// never returns an error; failures are recorded and reported in the result.
type EntityWorker interface {
	Entity() integration.EntityType
	Run(ctx context.Context, tenant *integration.Tenant, runID uuid.UUID) integration.WorkerResult
}

// PageSource opens a delta iterator for a tenant
type PageSource[T any] func(tenant *integration.Tenant, since *time.Time) integration.PageIterator[T]

// RecordWriter reconciles one record. ok is true when the root row was written.
type RecordWriter[T any] func(ctx context.Context, record *T) (ok bool, errs []error)

// DeltaSyncWorker drives the page iterator and the reconciler for one entity type
type DeltaSyncWorker[T any] struct {
	entity  integration.EntityType
	pages   PageSource[T]
	write   RecordWriter[T]
	audit   integration.AuditLog
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewDeltaSyncWorker creates a worker for entity
func NewDeltaSyncWorker[T any](
	entity integration.EntityType,
	pages PageSource[T],
	write RecordWriter[T],
	audit integration.AuditLog,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) *DeltaSyncWorker[T] {
	return &DeltaSyncWorker[T]{
		entity:  entity,
		pages:   pages,
		write:   write,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// NewEntityWorkers builds the product, order and customer workers in run order
func NewEntityWorkers(
	upstream integration.UpstreamClient,
	reconciler *Reconciler,
	audit integration.AuditLog,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) []EntityWorker {
	return []EntityWorker{
		NewDeltaSyncWorker[integration.Product](integration.EntityProduct, upstream.ProductPages,
			func(ctx context.Context, p *integration.Product) (bool, []error) {
				id, errs := reconciler.Product(ctx, p)
				return id != uuid.Nil, errs
			}, audit, metrics, logger),
		NewDeltaSyncWorker[integration.Order](integration.EntityOrder, upstream.OrderPages,
			func(ctx context.Context, o *integration.Order) (bool, []error) {
				id, errs := reconciler.Order(ctx, o)
				return id != uuid.Nil, errs
			}, audit, metrics, logger),
		NewDeltaSyncWorker[integration.Customer](integration.EntityCustomer, upstream.CustomerPages,
			func(ctx context.Context, c *integration.Customer) (bool, []error) {
				id, errs := reconciler.Customer(ctx, c)
				return id != uuid.Nil, errs
			}, audit, metrics, logger),
	}
}

// Entity returns the entity type this worker pulls
func (w *DeltaSyncWorker[T]) Entity() integration.EntityType {
	return w.entity
}

// Run pulls every page since the tenant checkpoint and reconciles each record
func (w *DeltaSyncWorker[T]) Run(ctx context.Context, tenant *integration.Tenant, runID uuid.UUID) (result integration.WorkerResult) {
	result.Entity = w.entity
	logger := w.logger.With(
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("run_id", runID.String()),
		zap.String("entity", w.entity.String()),
	)

	ctx, span := w.tracer.Start(ctx, "sync.worker",
		trace.WithAttributes(
			attribute.String("tenant.domain", tenant.Domain),
			attribute.String("sync.entity", w.entity.String()),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s worker panicked: %v", w.entity, r)
			logger.Error("Delta sync worker panicked", zap.Any("panic", r), zap.Stack("stack"))
			w.record(ctx, logger, tenant.ID, runID, integration.SyncPhaseTopLevel, err)
			result.Halted = true
			result.TopLevel = err
			result.Errors = append(result.Errors, err)
			span.SetStatus(codes.Error, err.Error())
		}
		w.metrics.ObserveWorker(w.entity.String(), result.SyncedCount, result.Pages)
		span.SetAttributes(
			attribute.Int("sync.pages", result.Pages),
			attribute.Int("sync.synced", result.SyncedCount),
			attribute.Int("sync.failed", result.FailedCount),
		)
	}()

	it := w.pages(tenant, tenant.Since())
	for it.Next(ctx) {
		page := it.Page()
		result.Pages++
		for i := range page.Records {
			if ctx.Err() != nil {
				break
			}
			ok, errs := w.write(ctx, &page.Records[i])
			if ok {
				result.SyncedCount++
			}
			if len(errs) > 0 {
				result.FailedCount++
			}
			for _, err := range errs {
				w.record(ctx, logger, tenant.ID, runID, integration.SyncPhaseUpsert, err)
				result.Errors = append(result.Errors, err)
			}
		}
		logger.Debug("Page reconciled", zap.Int("page", page.Number), zap.Int("records", len(page.Records)))
	}

	if err := it.Err(); err != nil {
		result.Halted = true
		result.Errors = append(result.Errors, err)
		w.record(ctx, logger, tenant.ID, runID, integration.SyncPhaseFetch, err)
		span.SetStatus(codes.Error, err.Error())
	}

	logger.Info("Delta sync worker finished",
		zap.Int("pages", result.Pages),
		zap.Int("synced", result.SyncedCount),
		zap.Int("failed", result.FailedCount),
		zap.Bool("halted", result.Halted),
	)
	return result
}

// record appends a SyncError row. It runs on a detached context so a fired
// run deadline still gets recorded.
func (w *DeltaSyncWorker[T]) record(ctx context.Context, logger *zap.Logger, tenantID, runID uuid.UUID, phase integration.SyncPhase, err error) {
	w.metrics.SyncError(w.entity.String(), string(phase))
	logger.Warn("Sync error", zap.String("phase", string(phase)), zap.Error(err))

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if werr := w.audit.RecordSyncError(wctx, integration.NewSyncError(tenantID, runID, w.entity.String(), phase, err)); werr != nil {
		logger.Error("Failed to record sync error", zap.String("phase", string(phase)), zap.Error(werr))
	}
}
