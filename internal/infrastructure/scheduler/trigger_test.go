package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storesync/backend/internal/domain/integration"
	"github.com/storesync/backend/tests/testutil"
)

type countingPass struct {
	calls int32
	block chan struct{}
}

func (p *countingPass) RunDue(ctx context.Context) (*integration.DueRunSummary, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
		}
	}
	return &integration.DueRunSummary{}, nil
}

func TestTrigger_RunsPassesOnInterval(t *testing.T) {
	pass := &countingPass{}
	trigger := NewTrigger(10*time.Millisecond, pass, zaptest.NewLogger(t))

	require.NoError(t, trigger.Start(context.Background()))
	assert.ErrorIs(t, trigger.Start(context.Background()), ErrTriggerRunning)

	testutil.RequireEventually(t, func() bool { return atomic.LoadInt32(&pass.calls) >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx), "stopping twice is a no-op")
}

func TestTrigger_PassesDoNotOverlap(t *testing.T) {
	pass := &countingPass{block: make(chan struct{})}
	trigger := NewTrigger(5*time.Millisecond, pass, zaptest.NewLogger(t))
	require.NoError(t, trigger.Start(context.Background()))

	testutil.RequireEventually(t, func() bool { return atomic.LoadInt32(&pass.calls) == 1 }, time.Second, time.Millisecond)
	testutil.AssertNever(t, func() bool { return atomic.LoadInt32(&pass.calls) > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	close(pass.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
}
