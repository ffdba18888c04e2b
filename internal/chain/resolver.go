package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"yieldScope/internal/model"
)

// ErrNoBlockAfter is returned when the chain head is not newer than the timestamp.
var ErrNoBlockAfter = errors.New("no block after timestamp")

// HeaderSource is the subset of Client used by Resolver.
type HeaderSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Resolver finds reference blocks by binary search over block timestamps.
type Resolver struct {
	source  HeaderSource
	timeout time.Duration
	logger  *zap.Logger
}

func NewResolver(source HeaderSource, timeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, timeout: timeout, logger: logger}
}

// BlockAfter returns the earliest block with a timestamp strictly greater than timestamp.
func (r *Resolver) BlockAfter(ctx context.Context, timestamp int64) (model.ReferenceBlock, error) {
	if r.source == nil {
		return model.ReferenceBlock{}, fmt.Errorf("header source is nil")
	}
	if timestamp < 0 {
		timestamp = 0
	}
	target := uint64(timestamp)

	latest, err := r.blockNumber(ctx)
	if err != nil {
		return model.ReferenceBlock{}, fmt.Errorf("latest block: %w", err)
	}
	headTs, err := r.timestampOf(ctx, latest)
	if err != nil {
		return model.ReferenceBlock{}, fmt.Errorf("block timestamp %d: %w", latest, err)
	}
	if headTs <= target {
		return model.ReferenceBlock{}, fmt.Errorf("block after %d: %w", timestamp, ErrNoBlockAfter)
	}

	// lo is always at or before the answer, hi always satisfies ts > target.
	lo, hi := uint64(0), latest
	hiTs := headTs
	steps := 0
	for lo < hi {
		mid := lo + (hi-lo)/2
		ts, err := r.timestampOf(ctx, mid)
		if err != nil {
			return model.ReferenceBlock{}, fmt.Errorf("block timestamp %d: %w", mid, err)
		}
		if ts > target {
			hi, hiTs = mid, ts
		} else {
			lo = mid + 1
		}
		steps++
	}

	r.logger.Debug("resolved reference block", zap.Int64("timestamp", timestamp), zap.Uint64("block", hi), zap.Int("steps", steps))
	return model.ReferenceBlock{Number: hi, Timestamp: int64(hiTs)}, nil
}

func (r *Resolver) blockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := r.requestContext(ctx)
	defer cancel()
	return r.source.LatestBlockNumber(ctx)
}

func (r *Resolver) timestampOf(ctx context.Context, number uint64) (uint64, error) {
	ctx, cancel := r.requestContext(ctx)
	defer cancel()
	return r.source.BlockTimestamp(ctx, number)
}

func (r *Resolver) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
