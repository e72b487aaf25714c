package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/logger"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// Skip reasons reported to metrics
const (
	SkipReasonLeaseHeld    = "lease_held"
	SkipReasonDisconnected = "disconnected"
	SkipReasonDeadline     = "deadline"
	SkipReasonAlreadyRan   = "already_ran"
)

// TenantSource lists the tenants that may be scheduled
type TenantSource interface {
	FindConnected(ctx context.Context) ([]integration.Tenant, error)
}

// TenantRunner runs one tenant to completion under its lease. stillDue is
// evaluated on the reloaded tenant after the lease is taken, so a pass that
// listed the tenant before another pass ran it does not run it again.
type TenantRunner interface {
	RunTenantIf(ctx context.Context, tenantID uuid.UUID, stillDue func(*integration.Tenant) bool) (*integration.RunResult, error)
}

// SyncSchedulerConfig holds configuration for due-tenant passes
type SyncSchedulerConfig struct {
	// Window is the daily local-time trigger window
	Window integration.TriggerWindow
	// Concurrency bounds how many tenants run at once
	Concurrency int
	// RunTimeout bounds one whole pass
	RunTimeout time.Duration
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Window:      integration.DefaultTriggerWindow(),
		Concurrency: 4,
		RunTimeout:  9 * time.Minute,
	}
}

// Validate validates the configuration
func (c SyncSchedulerConfig) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("%w: run timeout must be positive", ErrInvalidConfig)
	}
	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SyncScheduler picks the tenants whose trigger window is open and runs them
// through a bounded pool.
type SyncScheduler struct {
	config  SyncSchedulerConfig
	tenants TenantSource
	runner  TenantRunner
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewSyncScheduler creates a new SyncScheduler
func NewSyncScheduler(
	config SyncSchedulerConfig,
	tenants TenantSource,
	runner TenantRunner,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SyncScheduler{
		config:  config,
		tenants: tenants,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// ListDueTenants returns the connected tenants inside their trigger window
// that have not started a run in the current occurrence.
func (s *SyncScheduler) ListDueTenants(ctx context.Context, now time.Time) ([]integration.Tenant, error) {
	connected, err := s.tenants.FindConnected(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connected tenants: %w", err)
	}
	due := make([]integration.Tenant, 0, len(connected))
	for i := range connected {
		if s.config.Window.IsDue(&connected[i], now) {
			due = append(due, connected[i])
		}
	}
	return due, nil
}

// RunDue runs one pass over the due tenants. Per-tenant failures are counted
// in the summary; only a failure to list tenants is returned as an error.
func (s *SyncScheduler) RunDue(ctx context.Context) (*integration.DueRunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	start := s.now()
	due, err := s.ListDueTenants(ctx, start)
	if err != nil {
		return nil, err
	}

	summary := &integration.DueRunSummary{Due: len(due)}
	if len(due) == 0 {
		s.logger.Debug("No tenants due for sync")
		return summary, nil
	}
	s.logger.Info("Starting due tenant sync pass",
		zap.Int("due", len(due)),
		zap.Int("concurrency", s.config.Concurrency),
	)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.config.Concurrency)

	for i := range due {
		tenant := due[i]
		if ctx.Err() != nil {
			mu.Lock()
			s.skip(summary, tenant, SkipReasonDeadline)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			// the pass deadline may fire while waiting for a pool slot
			if ctx.Err() != nil {
				mu.Lock()
				defer mu.Unlock()
				s.skip(summary, tenant, SkipReasonDeadline)
				return nil
			}
			result, err := s.runner.RunTenantIf(ctx, tenant.ID, func(t *integration.Tenant) bool {
				return s.config.Window.IsDue(t, start)
			})

			mu.Lock()
			defer mu.Unlock()
			s.collect(summary, tenant, result, err)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Due tenant sync pass completed",
		zap.Int("due", summary.Due),
		zap.Int("completed", summary.Completed),
		zap.Int("degraded", summary.Degraded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return summary, nil
}

func (s *SyncScheduler) collect(summary *integration.DueRunSummary, tenant integration.Tenant, result *integration.RunResult, err error) {
	if err != nil {
		if reason := skipReason(err); reason != "" {
			s.skip(summary, tenant, reason)
			return
		}
		summary.Failed++
		s.logger.Error("Tenant sync failed",
			logger.Tenant(tenant.ID),
			logger.ShopDomain(tenant.Domain),
			zap.Error(err),
		)
		if result == nil {
			return
		}
		summary.Results = append(summary.Results, *result)
		return
	}

	summary.Results = append(summary.Results, *result)
	switch result.Outcome {
	case integration.SyncStatusCompleted:
		summary.Completed++
	case integration.SyncStatusCompletedWithErrors:
		summary.Degraded++
	default:
		summary.Failed++
	}
}

func (s *SyncScheduler) skip(summary *integration.DueRunSummary, tenant integration.Tenant, reason string) {
	summary.Skipped++
	s.metrics.RunSkipped(reason)
	s.logger.Info("Tenant skipped",
		logger.Tenant(tenant.ID),
		logger.ShopDomain(tenant.Domain),
		zap.String("reason", reason),
	)
}

// skipReason classifies errors that mean the tenant was not run
func skipReason(err error) string {
	switch {
	case errors.Is(err, integration.ErrTenantLeaseHeld):
		return SkipReasonLeaseHeld
	case errors.Is(err, integration.ErrTenantNotDue):
		return SkipReasonAlreadyRan
	case errors.Is(err, integration.ErrTenantDisconnected), errors.Is(err, integration.ErrTenantNoCredential):
		return SkipReasonDisconnected
	default:
		return ""
	}
}
