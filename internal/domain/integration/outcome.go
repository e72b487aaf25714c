package integration

import (
	"time"

	"github.com/google/uuid"
)

// WorkerResult is what one delta sync worker reports for one tenant
type WorkerResult struct {
	Entity      EntityType
	SyncedCount int
	FailedCount int
	Pages       int
	Halted      bool  // pagination stopped on a fetch failure
	TopLevel    error // recovered panic
	Errors      []error
}

// ErrorCount returns the number of failures the worker recorded
func (r WorkerResult) ErrorCount() int {
	return len(r.Errors)
}

// MadeProgress reports whether at least one page was fetched
func (r WorkerResult) MadeProgress() bool {
	return r.Pages > 0
}

// RunResult is the aggregated result of a tenant run
type RunResult struct {
	RunID      uuid.UUID
	TenantID   uuid.UUID
	Domain     string
	Outcome    SyncStatus
	ErrorCount int
	Workers    []WorkerResult
	TopLevel   error
	StartedAt  time.Time
	FinishedAt time.Time
}

// SyncedCount sums synced records across workers
func (r RunResult) SyncedCount() int {
	n := 0
	for _, w := range r.Workers {
		n += w.SyncedCount
	}
	return n
}

// ComputeOutcome derives the tenant outcome from the number of SyncError
// rows recorded for the run and from what the workers managed to do.
func ComputeOutcome(workers []WorkerResult, errorCount int, topLevel error) SyncStatus {
	if topLevel != nil {
		return SyncStatusFailed
	}
	if len(workers) > 0 {
		allDead := true
		for _, w := range workers {
			if !w.Halted || w.MadeProgress() {
				allDead = false
				break
			}
		}
		if allDead {
			return SyncStatusFailed
		}
	}
	if errorCount > 0 {
		return SyncStatusCompletedWithErrors
	}
	return SyncStatusCompleted
}

// DueRunSummary is what one scheduler pass reports
type DueRunSummary struct {
	Due       int
	Completed int
	Degraded  int
	Failed    int
	Skipped   int
	Results   []RunResult
}
