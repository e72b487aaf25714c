package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/integration"
)

// DuePassRunner runs one due-tenant pass
type DuePassRunner interface {
	RunDue(ctx context.Context) (*integration.DueRunSummary, error)
}

// Trigger runs a due-tenant pass on a fixed interval inside the server
// process. Deployments driven by an external timer leave it disabled.
type Trigger struct {
	interval time.Duration
	runner   DuePassRunner
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewTrigger creates a new trigger
func NewTrigger(interval time.Duration, runner DuePassRunner, logger *zap.Logger) *Trigger {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Trigger{
		interval: interval,
		runner:   runner,
		logger:   logger,
	}
}

// Start starts the trigger loop
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return ErrTriggerRunning
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Sync trigger started", zap.Duration("interval", t.interval))
	return nil
}

// Stop stops the trigger and waits for an in-flight pass or ctx
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// passes run on this goroutine, so a slow pass delays the next tick
			// instead of overlapping it
			t.tick(ctx)
		}
	}
}

func (t *Trigger) tick(ctx context.Context) {
	if _, err := t.runner.RunDue(ctx); err != nil {
		t.logger.Error("Sync pass failed", zap.Error(err))
	}
}
