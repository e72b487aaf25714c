package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// MockTenantSource is a mock implementation of TenantSource
type MockTenantSource struct {
	mock.Mock
}

func (m *MockTenantSource) FindConnected(ctx context.Context) ([]integration.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Tenant), args.Error(1)
}

// fakeRunner returns a scripted result per tenant and tracks concurrency
type fakeRunner struct {
	mu       sync.Mutex
	outcomes map[uuid.UUID]integration.SyncStatus
	errs     map[uuid.UUID]error
	delay    time.Duration
	calls    []uuid.UUID

	inFlight    int32
	maxInFlight int32
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outcomes: make(map[uuid.UUID]integration.SyncStatus),
		errs:     make(map[uuid.UUID]error),
	}
}

func (r *fakeRunner) RunTenantIf(ctx context.Context, tenantID uuid.UUID, _ func(*integration.Tenant) bool) (*integration.RunResult, error) {
	n := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&r.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&r.maxInFlight, cur, n) {
			break
		}
	}

	r.mu.Lock()
	r.calls = append(r.calls, tenantID)
	err := r.errs[tenantID]
	outcome, ok := r.outcomes[tenantID]
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		outcome = integration.SyncStatusCompleted
	}
	return &integration.RunResult{TenantID: tenantID, Outcome: outcome}, nil
}

// at is 00:35 UTC on a fixed day, inside the default window for UTC tenants
var at = time.Date(2026, 3, 10, 0, 35, 0, 0, time.UTC)

func connectedTenant(domain, tz string) integration.Tenant {
	return integration.Tenant{
		ID:               uuid.New(),
		Domain:           domain,
		AccessCredential: "shpat_x",
		Timezone:         tz,
		SyncStatus:       integration.SyncStatusIdle,
	}
}

func newTestScheduler(t *testing.T, cfg SyncSchedulerConfig, source TenantSource, runner TenantRunner, metrics *telemetry.SyncMetrics) *SyncScheduler {
	t.Helper()
	s, err := NewSyncScheduler(cfg, source, runner, metrics, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.now = func() time.Time { return at }
	return s
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestSyncSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*SyncSchedulerConfig)
		wantErr bool
	}{
		{"default", func(c *SyncSchedulerConfig) {}, false},
		{"zero concurrency", func(c *SyncSchedulerConfig) { c.Concurrency = 0 }, true},
		{"zero run timeout", func(c *SyncSchedulerConfig) { c.RunTimeout = 0 }, true},
		{"window past midnight", func(c *SyncSchedulerConfig) { c.Window.Start = 25 * time.Hour }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSyncSchedulerConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// ListDueTenants
// ---------------------------------------------------------------------------

func TestSyncScheduler_ListDueTenants(t *testing.T) {
	inWindow := connectedTenant("utc.myshopify.com", "UTC")
	// 00:35 UTC is 09:35 in Tokyo
	outOfWindow := connectedTenant("tokyo.myshopify.com", "Asia/Tokyo")
	badZone := connectedTenant("nowhere.myshopify.com", "Not/AZone")
	alreadyStarted := connectedTenant("started.myshopify.com", "UTC")
	startedAt := at.Add(-2 * time.Minute)
	alreadyStarted.SyncStartedAt = &startedAt
	yesterday := connectedTenant("yesterday.myshopify.com", "UTC")
	lastRun := at.Add(-24 * time.Hour)
	yesterday.SyncStartedAt = &lastRun

	source := new(MockTenantSource)
	source.On("FindConnected", mock.Anything).
		Return([]integration.Tenant{inWindow, outOfWindow, badZone, alreadyStarted, yesterday}, nil)

	s := newTestScheduler(t, DefaultSyncSchedulerConfig(), source, newFakeRunner(), nil)
	due, err := s.ListDueTenants(context.Background(), at)
	require.NoError(t, err)

	var domains []string
	for _, d := range due {
		domains = append(domains, d.Domain)
	}
	assert.ElementsMatch(t, []string{"utc.myshopify.com", "nowhere.myshopify.com", "yesterday.myshopify.com"}, domains,
		"an unknown zone falls back to UTC")
}

func TestSyncScheduler_ListDueTenants_SourceError(t *testing.T) {
	source := new(MockTenantSource)
	source.On("FindConnected", mock.Anything).Return(nil, errors.New("connection refused"))

	s := newTestScheduler(t, DefaultSyncSchedulerConfig(), source, newFakeRunner(), nil)
	_, err := s.RunDue(context.Background())
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// RunDue
// ---------------------------------------------------------------------------

func TestSyncScheduler_RunDueSummarizesOutcomes(t *testing.T) {
	ok := connectedTenant("ok.myshopify.com", "UTC")
	degraded := connectedTenant("degraded.myshopify.com", "UTC")
	failed := connectedTenant("failed.myshopify.com", "UTC")
	busy := connectedTenant("busy.myshopify.com", "UTC")
	broken := connectedTenant("broken.myshopify.com", "UTC")

	source := new(MockTenantSource)
	source.On("FindConnected", mock.Anything).
		Return([]integration.Tenant{ok, degraded, failed, busy, broken}, nil)

	runner := newFakeRunner()
	runner.outcomes[degraded.ID] = integration.SyncStatusCompletedWithErrors
	runner.outcomes[failed.ID] = integration.SyncStatusFailed
	runner.errs[busy.ID] = integration.ErrTenantLeaseHeld
	runner.errs[broken.ID] = errors.New("tenant row unreadable")

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewSyncMetrics(reg)
	s := newTestScheduler(t, DefaultSyncSchedulerConfig(), source, runner, metrics)

	summary, err := s.RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Due)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Degraded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, summary.Results, 3)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(metrics.RunsSkipped.WithLabelValues(SkipReasonLeaseHeld)))
}

func TestSyncScheduler_RunDueRespectsConcurrency(t *testing.T) {
	var tenants []integration.Tenant
	for i := 0; i < 8; i++ {
		tenants = append(tenants, connectedTenant(uuid.NewString()+".myshopify.com", "UTC"))
	}
	source := new(MockTenantSource)
	source.On("FindConnected", mock.Anything).Return(tenants, nil)

	runner := newFakeRunner()
	runner.delay = 20 * time.Millisecond
	cfg := DefaultSyncSchedulerConfig()
	cfg.Concurrency = 2

	summary, err := newTestScheduler(t, cfg, source, runner, nil).RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Completed)
	assert.LessOrEqual(t, atomic.LoadInt32(&runner.maxInFlight), int32(2))
	assert.Len(t, runner.calls, 8)
}

func TestSyncScheduler_RunDueDeadlineSkipsRemainingTenants(t *testing.T) {
	var tenants []integration.Tenant
	for i := 0; i < 4; i++ {
		tenants = append(tenants, connectedTenant(uuid.NewString()+".myshopify.com", "UTC"))
	}
	source := new(MockTenantSource)
	source.On("FindConnected", mock.Anything).Return(tenants, nil)

	runner := newFakeRunner()
	runner.delay = time.Second
	cfg := DefaultSyncSchedulerConfig()
	cfg.Concurrency = 1
	cfg.RunTimeout = 50 * time.Millisecond

	summary, err := newTestScheduler(t, cfg, source, runner, nil).RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Due)
	assert.Equal(t, 3, summary.Skipped)
	assert.Len(t, runner.calls, 1)
}

func TestSyncScheduler_NothingDue(t *testing.T) {
	source := new(MockTenantSource)
	source.On("FindConnected", mock.Anything).Return([]integration.Tenant{}, nil)
	runner := newFakeRunner()

	summary, err := newTestScheduler(t, DefaultSyncSchedulerConfig(), source, runner, nil).RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Due)
	assert.Empty(t, runner.calls)
}
