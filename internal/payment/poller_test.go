package payment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerStopCancelsLoop(t *testing.T) {
	p := NewPoller(2*time.Millisecond, 1000)
	var ticks atomic.Int64
	p.Start("k", func(ctx context.Context) bool {
		ticks.Add(1)
		return false
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 2 },
		time.Second, time.Millisecond, "loop never ticked")

	p.Stop("k")
	frozen := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), frozen+1, "loop kept ticking after Stop")
}

func TestPollerStopsWhenCheckReportsDone(t *testing.T) {
	p := NewPoller(2*time.Millisecond, 1000)
	var ticks atomic.Int64
	p.Start("k", func(ctx context.Context) bool {
		return ticks.Add(1) >= 3
	})

	require.Eventually(t, func() bool { return ticks.Load() == 3 },
		time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(3), ticks.Load(), "loop kept ticking after done")
}

func TestPollerHonorsAttemptBudget(t *testing.T) {
	p := NewPoller(2*time.Millisecond, 3)
	var ticks atomic.Int64
	p.Start("k", func(ctx context.Context) bool {
		ticks.Add(1)
		return false
	})

	require.Eventually(t, func() bool { return ticks.Load() == 3 },
		time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(3), ticks.Load(), "loop exceeded its attempt budget")
}

// A loop that was stopped mid-check must not tear down the loop that
// replaced it under the same key when its goroutine finally exits.
func TestPollerSupersededLoopLeavesReplacementRunning(t *testing.T) {
	p := NewPoller(2*time.Millisecond, 1000)

	entered := make(chan struct{})
	gate := make(chan struct{})
	p.Start("k", func(ctx context.Context) bool {
		close(entered)
		<-gate
		return false
	})
	<-entered

	// The user cancels while the first check is still in flight, then
	// starts a fresh purchase whose payment gets its own loop.
	p.Stop("k")
	var ticks atomic.Int64
	p.Start("k", func(ctx context.Context) bool {
		ticks.Add(1)
		return false
	})

	// Let the first goroutine finish and run its cleanup.
	close(gate)
	time.Sleep(10 * time.Millisecond)
	before := ticks.Load()

	assert.Eventually(t, func() bool { return ticks.Load() > before },
		time.Second, time.Millisecond, "replacement loop stopped ticking")
}
