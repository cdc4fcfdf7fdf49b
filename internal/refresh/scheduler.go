package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler calls a job on a fixed interval.
type Scheduler struct {
	job      func(context.Context) error
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewScheduler creates a Scheduler for job.
func NewScheduler(job func(context.Context) error, interval time.Duration) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs job every interval. Blocks until Stop is called or ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("scheduler started", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			slog.Debug("scheduler: triggering refresh")
			if err := s.job(ctx); err != nil {
				slog.Error("scheduler: refresh failed", "error", err)
			}
		case <-s.stop:
			slog.Info("scheduler stopped")
			return
		case <-ctx.Done():
			slog.Info("scheduler context cancelled")
			return
		}
	}
}

// Stop signals the scheduler to stop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Job adapts r.Run to the scheduler's job signature.
func (r *Refresher) Job() func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := r.Run(ctx)
		return err
	}
}
