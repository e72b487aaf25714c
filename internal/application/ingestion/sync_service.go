package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
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

// finalizeTimeout bounds the bookkeeping done after the workers return
const finalizeTimeout = 10 * time.Second

// SyncServiceConfig holds the per-tenant deadlines
type SyncServiceConfig struct {
	// TenantTimeout bounds one tenant run
	TenantTimeout time.Duration
	// LeaseMargin is added to TenantTimeout for the lease TTL
	LeaseMargin time.Duration
}

// DefaultSyncServiceConfig returns the default deadlines
func DefaultSyncServiceConfig() SyncServiceConfig {
	return SyncServiceConfig{
		TenantTimeout: 5 * time.Minute,
		LeaseMargin:   time.Minute,
	}
}

// LeaseTTL returns how long a tenant lease is held at most
func (c SyncServiceConfig) LeaseTTL() time.Duration {
	return c.TenantTimeout + c.LeaseMargin
}

// SyncService runs one tenant at a time under a lease: it marks the tenant
// syncing, runs every entity worker in order and stores the outcome.
type SyncService struct {
	tenants integration.TenantRepository
	locker  integration.TenantLocker
	audit   integration.AuditLog
	workers []EntityWorker
	config  SyncServiceConfig
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time

	background sync.WaitGroup
}

// NewSyncService creates a new SyncService
func NewSyncService(
	tenants integration.TenantRepository,
	locker integration.TenantLocker,
	audit integration.AuditLog,
	workers []EntityWorker,
	config SyncServiceConfig,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		tenants: tenants,
		locker:  locker,
		audit:   audit,
		workers: workers,
		config:  config,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RunTenant runs a full delta sync for one tenant and waits for it.
// It returns integration.ErrTenantLeaseHeld when another run holds the tenant.
func (s *SyncService) RunTenant(ctx context.Context, tenantID uuid.UUID) (*integration.RunResult, error) {
	return s.RunTenantIf(ctx, tenantID, nil)
}

// RunTenantIf is RunTenant for a tenant picked from an earlier listing.
// Once the lease is held the tenant is reloaded and stillDue decides whether
// it runs; integration.ErrTenantNotDue is returned when it does not.
func (s *SyncService) RunTenantIf(ctx context.Context, tenantID uuid.UUID, stillDue func(*integration.Tenant) bool) (*integration.RunResult, error) {
	lease, err := s.locker.TryAcquire(ctx, tenantID, s.config.LeaseTTL())
	if err != nil {
		return nil, err
	}
	return s.runLeased(ctx, lease, tenantID, stillDue)
}

// TriggerRun takes the tenant lease and starts the run in the background.
// The run is detached from ctx and bounded only by the tenant timeout.
func (s *SyncService) TriggerRun(ctx context.Context, tenantID uuid.UUID) error {
	lease, err := s.locker.TryAcquire(ctx, tenantID, s.config.LeaseTTL())
	if err != nil {
		return err
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.runLeased(context.WithoutCancel(ctx), lease, tenantID, nil); err != nil {
			s.logger.Error("Background sync run failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until background runs started by TriggerRun have finished
// or ctx is done.
func (s *SyncService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncService) runLeased(ctx context.Context, lease integration.Lease, tenantID uuid.UUID, stillDue func(*integration.Tenant) bool) (*integration.RunResult, error) {
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
		defer cancel()
		if err := lease.Release(rctx); err != nil {
			s.logger.Warn("Failed to release tenant lease", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.TenantTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "sync.tenant", trace.WithAttributes(attribute.String("tenant.id", tenantID.String())))
	defer span.End()

	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if stillDue != nil && !stillDue(tenant) {
		return nil, integration.ErrTenantNotDue
	}

	result := &integration.RunResult{
		RunID:     uuid.New(),
		TenantID:  tenant.ID,
		Domain:    tenant.Domain,
		StartedAt: s.now(),
	}
	if err := tenant.StartSync(result.StartedAt); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("tenant.domain", tenant.Domain), attribute.String("sync.run_id", result.RunID.String()))

	logger := s.logger.With(
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("domain", tenant.Domain),
		zap.String("run_id", result.RunID.String()),
	)
	logger.Info("Tenant sync started", zap.Timep("since", tenant.Since()))

	if err := s.tenants.SaveSyncState(ctx, tenant); err != nil {
		result.TopLevel = fmt.Errorf("failed to mark tenant syncing: %w", err)
		s.recordTopLevel(ctx, logger, tenant.ID, result.RunID, result.TopLevel)
	} else {
		for _, w := range s.workers {
			wr := w.Run(ctx, tenant, result.RunID)
			result.Workers = append(result.Workers, wr)
			if wr.TopLevel != nil && result.TopLevel == nil {
				result.TopLevel = wr.TopLevel
			}
		}
	}

	if err := s.finish(ctx, logger, tenant, result); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	if result.Outcome != integration.SyncStatusCompleted {
		span.SetStatus(codes.Error, string(result.Outcome))
	}
	return result, nil
}

// finish counts the run's SyncError rows, derives the outcome and stores it
// on the tenant. It runs detached from the run deadline.
func (s *SyncService) finish(ctx context.Context, logger *zap.Logger, tenant *integration.Tenant, result *integration.RunResult) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	reported := 0
	for _, w := range result.Workers {
		reported += w.ErrorCount()
	}
	if result.TopLevel != nil && len(result.Workers) == 0 {
		reported++
	}

	count, err := s.audit.CountSyncErrors(fctx, result.RunID)
	if err != nil {
		logger.Error("Failed to count sync errors, using in-memory count", zap.Error(err))
		count = int64(reported)
	}
	result.ErrorCount = max(int(count), reported)
	result.Outcome = integration.ComputeOutcome(result.Workers, result.ErrorCount, result.TopLevel)
	result.FinishedAt = s.now()

	if err := tenant.FinishSync(result.FinishedAt, result.Outcome, result.ErrorCount); err != nil {
		return err
	}
	if err := s.tenants.SaveSyncState(fctx, tenant); err != nil {
		logger.Error("Failed to store sync outcome", zap.Error(err))
		return fmt.Errorf("failed to store sync outcome: %w", err)
	}

	s.metrics.ObserveRun(string(result.Outcome), result.FinishedAt.Sub(result.StartedAt))
	logger.Info("Tenant sync finished",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("synced", result.SyncedCount()),
		zap.Int("errors", result.ErrorCount),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	return nil
}

func (s *SyncService) recordTopLevel(ctx context.Context, logger *zap.Logger, tenantID, runID uuid.UUID, err error) {
	s.metrics.SyncError("tenant", string(integration.SyncPhaseTopLevel))
	logger.Error("Tenant sync aborted", zap.Error(err))

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if werr := s.audit.RecordSyncError(wctx, integration.NewSyncError(tenantID, runID, "tenant", integration.SyncPhaseTopLevel, err)); werr != nil {
		logger.Error("Failed to record sync error", zap.Error(werr))
	}
}

// IsSkip reports whether a RunTenant error means the tenant was not run
// rather than that the run failed.
func IsSkip(err error) bool {
	return errors.Is(err, integration.ErrTenantLeaseHeld) ||
		errors.Is(err, integration.ErrTenantNotDue) ||
		errors.Is(err, integration.ErrTenantDisconnected) ||
		errors.Is(err, integration.ErrTenantNoCredential)
}
