package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsJobsUntilCancelled(t *testing.T) {
	s := NewScheduler(logging.Nop())

	var ticks, failures atomic.Int32
	s.Add("tick", 5*time.Millisecond, false, func(context.Context) error {
		ticks.Add(1)
		return nil
	})
	s.Add("fail", 5*time.Millisecond, false, func(context.Context) error {
		failures.Add(1)
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return ticks.Load() >= 3 && failures.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond, "failing job must keep being scheduled")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestScheduler_RunOnStart(t *testing.T) {
	s := NewScheduler(logging.Nop())

	var runs atomic.Int32
	s.Add("startup", time.Hour, true, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_JobContextHasDeadline(t *testing.T) {
	s := NewScheduler(logging.Nop())

	got := make(chan bool, 1)
	s.Add("deadline", time.Hour, true, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		got <- ok
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case ok := <-got:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}
