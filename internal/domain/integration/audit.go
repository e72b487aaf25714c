package integration

import (
	"time"

	"github.com/google/uuid"
)

// SyncPhase is where in a run a failure happened
type SyncPhase string

const (
	SyncPhaseFetch    SyncPhase = "fetch"
	SyncPhaseUpsert   SyncPhase = "upsert"
	SyncPhaseTopLevel SyncPhase = "top-level"
)

// IsValid returns true if the phase is known
func (p SyncPhase) IsValid() bool {
	return p == SyncPhaseFetch || p == SyncPhaseUpsert || p == SyncPhaseTopLevel
}

// SyncError is an append-only record of a worker-level failure
type SyncError struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	RunID     uuid.UUID
	Worker    string
	Phase     SyncPhase
	Message   string
	CreatedAt time.Time
}

// NewSyncError builds a SyncError for the given run
func NewSyncError(tenantID, runID uuid.UUID, worker string, phase SyncPhase, err error) *SyncError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &SyncError{
		ID:        uuid.New(),
		TenantID:  tenantID,
		RunID:     runID,
		Worker:    worker,
		Phase:     phase,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	}
}

// WebhookEventStatus is the dispatch result stored with a WebhookEvent
type WebhookEventStatus string

const (
	WebhookEventProcessed WebhookEventStatus = "processed"
	WebhookEventIgnored   WebhookEventStatus = "ignored"
	WebhookEventFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is an append-only copy of an accepted webhook delivery
type WebhookEvent struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Topic      string
	Payload    []byte
	Status     WebhookEventStatus
	Error      string
	ReceivedAt time.Time
}
