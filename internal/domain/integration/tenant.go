package integration

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus is the tenant-level sync state machine
type SyncStatus string

const (
	// SyncStatusIdle means no run has started since connect or disconnect
	SyncStatusIdle SyncStatus = "idle"
	// SyncStatusSyncing means a run is in progress
	SyncStatusSyncing SyncStatus = "syncing"
	// SyncStatusCompleted means the last run recorded no errors
	SyncStatusCompleted SyncStatus = "completed"
	// SyncStatusCompletedWithErrors means the last run finished but recorded errors
	SyncStatusCompletedWithErrors SyncStatus = "completed_with_errors"
	// SyncStatusFailed means the last run made no progress or aborted
	SyncStatusFailed SyncStatus = "failed"
)

// IsValid returns true if the status is known
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusIdle, SyncStatusSyncing, SyncStatusCompleted,
		SyncStatusCompletedWithErrors, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for the outcome states a run can end in
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusCompletedWithErrors || s == SyncStatusFailed
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Tenant
// ---------------------------------------------------------------------------

// Tenant is one connected upstream store
type Tenant struct {
	ID               uuid.UUID
	Domain           string
	AccessCredential string
	Timezone         string

	SyncStatus        SyncStatus
	SyncStartedAt     *time.Time
	SyncFinishedAt    *time.Time
	SyncCheckpointAt  *time.Time // updated_at_min for the next delta pull
	LastRunErrorCount int

	DisconnectedAt *time.Time

	// Subscription flags maintained by billing webhooks
	PlanName           string
	SubscriptionStatus string
	BillingActive      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant creates a connected tenant in the idle state
func NewTenant(domain, credential, timezone string) (*Tenant, error) {
	domain = NormalizeDomain(domain)
	if domain == "" || strings.ContainsAny(domain, "/ ") {
		return nil, ErrInvalidTenantDomain
	}
	now := time.Now().UTC()
	return &Tenant{
		ID:               uuid.New(),
		Domain:           domain,
		AccessCredential: credential,
		Timezone:         timezone,
		SyncStatus:       SyncStatusIdle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NormalizeDomain lower-cases a shop domain and strips any scheme or trailing slash
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.TrimSuffix(d, "/")
}

// IsConnected reports whether the tenant can be pulled from
func (t *Tenant) IsConnected() bool {
	return t.DisconnectedAt == nil && t.AccessCredential != ""
}

// Location resolves the tenant time zone, falling back to UTC
func (t *Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Since returns the delta checkpoint, nil on the first run
func (t *Tenant) Since() *time.Time {
	if t.SyncCheckpointAt == nil {
		return nil
	}
	since := *t.SyncCheckpointAt
	return &since
}

// StartSync moves the tenant into the syncing state.
// A stale syncing status left by an aborted run is overwritten; overlap is
// prevented by the tenant lease, not by this state.
func (t *Tenant) StartSync(now time.Time) error {
	if t.DisconnectedAt != nil {
		return ErrTenantDisconnected
	}
	if t.AccessCredential == "" {
		return ErrTenantNoCredential
	}
	t.SyncStatus = SyncStatusSyncing
	t.SyncStartedAt = &now
	t.UpdatedAt = now
	return nil
}

// FinishSync records the outcome of a run.
// The checkpoint only moves forward after a clean run so that a degraded run
// is re-pulled from the same point next time.
func (t *Tenant) FinishSync(now time.Time, outcome SyncStatus, errorCount int) error {
	if !outcome.IsTerminal() {
		return ErrInvalidSyncTransition
	}
	t.SyncStatus = outcome
	t.SyncFinishedAt = &now
	t.LastRunErrorCount = errorCount
	if outcome == SyncStatusCompleted && t.SyncStartedAt != nil {
		checkpoint := *t.SyncStartedAt
		t.SyncCheckpointAt = &checkpoint
	}
	t.UpdatedAt = now
	return nil
}

// Disconnect marks the tenant as disconnected and drops its credential
func (t *Tenant) Disconnect(now time.Time) {
	t.DisconnectedAt = &now
	t.AccessCredential = ""
	t.SyncStatus = SyncStatusIdle
	t.UpdatedAt = now
}

// Reconnect re-activates a tenant with a fresh credential
func (t *Tenant) Reconnect(credential, timezone string, now time.Time) {
	t.AccessCredential = credential
	if timezone != "" {
		t.Timezone = timezone
	}
	t.DisconnectedAt = nil
	t.UpdatedAt = now
}

// UpdateSubscription applies billing flags pushed by the platform
func (t *Tenant) UpdateSubscription(planName, status string, now time.Time) {
	t.PlanName = planName
	t.SubscriptionStatus = strings.ToLower(status)
	t.BillingActive = t.SubscriptionStatus == "active"
	t.UpdatedAt = now
}
