package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yieldScope/internal/metrics"
	"yieldScope/internal/model"
	"yieldScope/internal/yield"
)

type outcome int

const (
	outcomeRecorded outcome = iota
	outcomeSkipped
	outcomeFailed
)

type outcomeCounts struct {
	recorded int
	skipped  int
	failed   int
}

// fanOut processes every pair concurrently and waits for all of them.
func (s *Syncer) fanOut(ctx context.Context, log *zap.Logger, ref model.ReferenceBlock, ids []string, recordedAt time.Time) outcomeCounts {
	var g errgroup.Group
	if s.cfg.MaxConcurrency > 0 {
		g.SetLimit(s.cfg.MaxConcurrency)
	}

	var recorded, skipped, failed atomic.Int64
	for _, id := range ids {
		id := id
		g.Go(func() error {
			switch s.processPair(ctx, log.With(zap.String("pair", id)), ref, id, recordedAt) {
			case outcomeRecorded:
				recorded.Add(1)
				s.metrics.ObservePair(metrics.OutcomeRecorded)
			case outcomeSkipped:
				skipped.Add(1)
				s.metrics.ObservePair(metrics.OutcomeSkipped)
			default:
				failed.Add(1)
				s.metrics.ObservePair(metrics.OutcomeFailed)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomeCounts{
		recorded: int(recorded.Load()),
		skipped:  int(skipped.Load()),
		failed:   int(failed.Load()),
	}
}

func (s *Syncer) processPair(ctx context.Context, log *zap.Logger, ref model.ReferenceBlock, id string, recordedAt time.Time) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("pair task panicked", zap.Any("panic", r))
			result = outcomeFailed
		}
	}()

	historical, current, err := s.fetchSnapshots(ctx, id, ref.Number)
	if err != nil {
		log.Error("failed to fetch pair", zap.Uint64("block", ref.Number), zap.Error(err))
		return outcomeFailed
	}

	if current.VolumeUSD <= 0 {
		return outcomeSkipped
	}

	apr := yield.InstantaneousAPR(historical, current)
	aprWeek := s.weekAPR(ctx, log, id)

	log.Debug("pair yield",
		zap.Float64("reserve_usd", current.ReserveUSD),
		zap.Float64("volume_usd", current.VolumeUSD),
		zap.Float64("apr", apr),
		zap.Float64("apr_month", yield.MonthlyInterest(current.ReserveUSD, current.VolumeUSD-historical.VolumeUSD)),
		zap.Float64("apr_week", aprWeek),
	)

	record, err := model.NewHistoryRecord(s.cfg.DefiName, historical, current, apr, aprWeek, recordedAt)
	if err != nil {
		log.Warn("invalid history record", zap.Float64("reserve_usd", current.ReserveUSD), zap.Error(err))
		return outcomeFailed
	}

	if err := s.store.Append(ctx, record); err != nil {
		log.Error("failed to append history record", zap.Error(err))
		return outcomeFailed
	}
	return outcomeRecorded
}

// fetchSnapshots loads the historical and current snapshots concurrently; both must succeed.
func (s *Syncer) fetchSnapshots(ctx context.Context, id string, block uint64) (historical, current model.PairSnapshot, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		historical, err = s.snapshot(gctx, id, &block)
		if err != nil {
			return fmt.Errorf("historical snapshot: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		current, err = s.snapshot(gctx, id, nil)
		if err != nil {
			return fmt.Errorf("current snapshot: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.PairSnapshot{}, model.PairSnapshot{}, err
	}
	return historical, current, nil
}

// snapshot runs on its own goroutine, so a panic is turned into an error here.
func (s *Syncer) snapshot(ctx context.Context, id string, block *uint64) (snap model.PairSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.pairs.PairSnapshot(ctx, id, block)
}

// weekAPR never fails the pair: any lookup problem resolves to the sentinel.
func (s *Syncer) weekAPR(ctx context.Context, log *zap.Logger, id string) float64 {
	samples, err := s.store.PairWeekData(ctx, s.cfg.DefiName, id)
	if err != nil {
		log.Debug("week data unavailable", zap.Error(err))
		s.metrics.ObserveWeekSentinel()
		return yield.Sentinel
	}

	apr := yield.WeekSmoothedAPR(samples)
	if apr == yield.Sentinel {
		log.Debug("historical pair data size", zap.Int("samples", len(samples)))
		s.metrics.ObserveWeekSentinel()
	}
	return apr
}
