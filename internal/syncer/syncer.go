// Package syncer runs single-flight sync cycles that snapshot top pairs and
// append their yield history.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"yieldScope/internal/metrics"
	"yieldScope/internal/model"
)

const (
	DefaultDefiName  = "UniswapV2"
	DefaultPairCount = 110
	DefaultLookback  = 24 * time.Hour
)

// ErrCycleAborted wraps failures that stop a cycle before any pair is processed.
var ErrCycleAborted = errors.New("sync cycle aborted")

// BlockResolver resolves the earliest block after a unix timestamp.
type BlockResolver interface {
	BlockAfter(ctx context.Context, timestamp int64) (model.ReferenceBlock, error)
}

// PairSource reads the pair universe and per-pair snapshots.
type PairSource interface {
	TopPairs(ctx context.Context, first int) ([]string, error)
	PairSnapshot(ctx context.Context, pairID string, block *uint64) (model.PairSnapshot, error)
}

// HistoryStore persists records and serves the weekly read path.
type HistoryStore interface {
	Append(ctx context.Context, record model.HistoryRecord) error
	PairWeekData(ctx context.Context, defiName, pairID string) ([]model.WeeklySample, error)
}

// Config controls cycle behavior.
type Config struct {
	DefiName  string
	PairCount int
	Lookback  time.Duration
	// MaxConcurrency bounds concurrent pair tasks; zero or less is unbounded.
	MaxConcurrency int
}

func (c *Config) applyDefaults() {
	if c.DefiName == "" {
		c.DefiName = DefaultDefiName
	}
	if c.PairCount <= 0 {
		c.PairCount = DefaultPairCount
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
}

// Option customizes a Syncer.
type Option func(*Syncer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) {
		s.metrics = m
	}
}

// CycleResult summarizes one cycle. Err is set only when the cycle aborted.
type CycleResult struct {
	Generation     uint64
	ReferenceBlock uint64
	Pairs          int
	Recorded       int
	Skipped        int
	Failed         int
	Started        time.Time
	Duration       time.Duration
	Err            error
}

// Syncer coordinates sync cycles. At most one cycle runs at a time.
type Syncer struct {
	cfg     Config
	blocks  BlockResolver
	pairs   PairSource
	store   HistoryStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	runMu      sync.Mutex
	running    atomic.Bool
	generation atomic.Uint64
}

// New builds a Syncer with its dependencies.
func New(cfg Config, blocks BlockResolver, pairs PairSource, store HistoryStore, logger *zap.Logger, opts ...Option) (*Syncer, error) {
	if blocks == nil {
		return nil, fmt.Errorf("block resolver is nil")
	}
	if pairs == nil {
		return nil, fmt.Errorf("pair source is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("history store is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	s := &Syncer{
		cfg:    cfg,
		blocks: blocks,
		pairs:  pairs,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generation returns the number of cycles started so far.
func (s *Syncer) Generation() uint64 {
	return s.generation.Load()
}

// Running reports whether a cycle holds the run lock.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// StartCycle runs one full cycle and returns when every pair task has finished.
// A caller arriving while a cycle runs waits for it, then runs its own cycle.
// Failures are logged and reported in the result; StartCycle never panics.
func (s *Syncer) StartCycle(ctx context.Context) (res CycleResult) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	res.Generation = s.generation.Add(1)
	res.Started = s.now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: panic: %v", ErrCycleAborted, r)
			s.logger.Error("sync cycle panicked", zap.Uint64("generation", res.Generation), zap.Any("panic", r))
		}
		res.Duration = s.now().Sub(res.Started)
		status := metrics.CycleOK
		if res.Err != nil {
			status = metrics.CycleAborted
		}
		s.metrics.ObserveCycle(status, res.ReferenceBlock, res.Started, res.Duration)
	}()

	s.runCycle(ctx, &res)
	return res
}

func (s *Syncer) runCycle(ctx context.Context, res *CycleResult) {
	log := s.logger.With(zap.Uint64("generation", res.Generation))
	target := res.Started.Add(-s.cfg.Lookback).Unix()

	ref, err := s.blocks.BlockAfter(ctx, target)
	if err != nil {
		log.Error("failed to resolve reference block", zap.Int64("timestamp", target), zap.Error(err))
		res.Err = fmt.Errorf("%w: reference block: %w", ErrCycleAborted, err)
		return
	}
	res.ReferenceBlock = ref.Number

	ids, err := s.pairs.TopPairs(ctx, s.cfg.PairCount)
	if err != nil {
		log.Error("failed to fetch top pairs", zap.Int("first", s.cfg.PairCount), zap.Error(err))
		res.Err = fmt.Errorf("%w: top pairs: %w", ErrCycleAborted, err)
		return
	}
	res.Pairs = len(ids)

	log.Info("sync cycle start",
		zap.Uint64("reference_block", ref.Number),
		zap.Int("pairs", len(ids)),
		zap.Int("max_concurrency", s.cfg.MaxConcurrency),
	)

	outcomes := s.fanOut(ctx, log, ref, ids, res.Started)
	res.Recorded = outcomes.recorded
	res.Skipped = outcomes.skipped
	res.Failed = outcomes.failed

	log.Info("sync cycle complete",
		zap.Int("recorded", res.Recorded),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", s.now().Sub(res.Started)),
	)
}
