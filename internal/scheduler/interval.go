// Package scheduler runs periodic background tasks (expiration sweep, cache
// cleanup). Tasks communicate with the core exclusively through the same
// mutation APIs foreground requests use.
package scheduler

import (
	"context"
	"time"

	"wyckoff/internal/logger"
)

// IntervalScheduler fires a task every Interval until the context is done.
// Stopping is clean: a tick either runs the task to completion or is never
// started, nothing is left half-applied.
type IntervalScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewIntervalScheduler(ctx context.Context, name string, interval time.Duration) *IntervalScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalScheduler{
		Name:     name,
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks until the context is cancelled. Run it on its own goroutine.
func (s *IntervalScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("IntervalScheduler %s: task is nil, exit", s.Name)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("IntervalScheduler %s: invalid interval=%s, exit", s.Name, s.Interval)
		return
	}

	logger.Infof("IntervalScheduler %s: started interval=%s", s.Name, s.Interval)
	if s.RunImmediately {
		task()
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("IntervalScheduler %s: ctx done, exit", s.Name)
			return
		case <-ticker.C:
			task()
		}
	}
}
