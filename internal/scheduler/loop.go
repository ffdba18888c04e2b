// Package scheduler triggers sync cycles on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Outcome is what a job reports back to the loop after one cycle.
type Outcome struct {
	Generation uint64
	Err        error
}

// Loop calls a job every Interval, spacing runs across restarts via State.
type Loop struct {
	Interval time.Duration
	State    StateStore
	Logger   *zap.Logger
	Now      func() time.Time
}

// Run blocks until ctx is done. The first run happens immediately unless the
// last recorded cycle completed less than Interval ago. An aborted last cycle
// does not delay the first run.
func (l *Loop) Run(ctx context.Context, job func(context.Context) Outcome) error {
	if l.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := l.Now
	if now == nil {
		now = time.Now
	}

	wait, err := l.initialDelay(ctx, now())
	if err != nil {
		return err
	}
	if wait > 0 {
		logger.Info("resume from state", zap.Duration("wait", wait))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()
	for {
		out := job(ctx)
		if l.State != nil {
			state := RunState{LastRun: now().Unix(), Generation: out.Generation, Status: StatusOK}
			if out.Err != nil {
				state.Status = StatusAborted
			}
			if err := l.State.Save(ctx, state); err != nil {
				logger.Warn("save scheduler state", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Loop) initialDelay(ctx context.Context, now time.Time) (time.Duration, error) {
	if l.State == nil {
		return 0, nil
	}
	last, ok, err := l.State.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load scheduler state: %w", err)
	}
	if !ok || last.Status == StatusAborted {
		return 0, nil
	}
	next := time.Unix(last.LastRun, 0).Add(l.Interval)
	if !next.After(now) {
		return 0, nil
	}
	return next.Sub(now), nil
}
