// Package jobs runs the periodic maintenance tasks of the auth server:
// retention cleanup of credentials and a database keepalive that drives
// the health status.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
)

// Default schedules.
const (
	CleanupInterval   = 24 * time.Hour
	KeepaliveInterval = 10 * time.Minute
	// RunTimeout bounds a single execution of any job.
	RunTimeout = time.Minute
)

// Func is one execution of a job.
type Func func(ctx context.Context) error

type job struct {
	name       string
	interval   time.Duration
	runOnStart bool
	fn         Func
}

// Scheduler runs registered jobs on fixed intervals until its context ends.
type Scheduler struct {
	logger logging.Logger
	jobs   []job
}

func NewScheduler(logger logging.Logger) *Scheduler {
	return &Scheduler{logger: logger.With("module", "jobs")}
}

// Add registers fn to run every interval. With runOnStart the first run
// happens immediately instead of after one interval.
func (s *Scheduler) Add(name string, interval time.Duration, runOnStart bool, fn Func) {
	s.jobs = append(s.jobs, job{name: name, interval: interval, runOnStart: runOnStart, fn: fn})
}

// Run blocks until ctx is cancelled and every job loop has returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	if j.runOnStart {
		s.runOnce(ctx, j)
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j job) {
	runCtx, cancel := context.WithTimeout(ctx, RunTimeout)
	defer cancel()

	start := time.Now()
	if err := j.fn(runCtx); err != nil {
		s.logger.Error(ctx, "job failed", "job", j.name, "error", err)
		return
	}
	s.logger.Debug(ctx, "job done", "job", j.name, "duration", time.Since(start))
}
