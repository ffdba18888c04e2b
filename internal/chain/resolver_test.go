package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeChain has block i at genesis + i*12 seconds.
type fakeChain struct {
	genesis uint64
	head    uint64
	calls   int
	failAt  int64
}

func (f *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	f.calls++
	if f.failAt >= 0 && number == uint64(f.failAt) {
		return 0, fmt.Errorf("header %d unavailable", number)
	}
	if number > f.head {
		return 0, fmt.Errorf("block %d beyond head", number)
	}
	return f.genesis + number*12, nil
}

func TestResolverBlockAfter(t *testing.T) {
	chain := &fakeChain{genesis: 1_600_000_000, head: 1_000_000, failAt: -1}
	resolver := NewResolver(chain, time.Second, nil)

	cases := []struct {
		ts   int64
		want uint64
	}{
		{ts: 1_600_000_000, want: 1},
		{ts: 1_600_000_011, want: 1},
		{ts: 1_600_000_012, want: 2},
		{ts: 1_599_000_000, want: 0},
		{ts: 1_600_000_000 + 999_999*12, want: 1_000_000},
	}
	for _, tc := range cases {
		ref, err := resolver.BlockAfter(context.Background(), tc.ts)
		if err != nil {
			t.Fatalf("ts %d: unexpected error: %v", tc.ts, err)
		}
		if ref.Number != tc.want {
			t.Fatalf("ts %d: block mismatch: %d != %d", tc.ts, ref.Number, tc.want)
		}
		if ref.Timestamp <= tc.ts {
			t.Fatalf("ts %d: resolved block timestamp %d not after target", tc.ts, ref.Timestamp)
		}
	}
	if chain.calls > 200 {
		t.Fatalf("too many header lookups: %d", chain.calls)
	}
}

func TestResolverHeadNotNewer(t *testing.T) {
	chain := &fakeChain{genesis: 1_600_000_000, head: 10, failAt: -1}
	resolver := NewResolver(chain, 0, nil)

	_, err := resolver.BlockAfter(context.Background(), 1_600_000_120)
	if !errors.Is(err, ErrNoBlockAfter) {
		t.Fatalf("expected ErrNoBlockAfter, got %v", err)
	}
}

func TestResolverHeaderError(t *testing.T) {
	chain := &fakeChain{genesis: 1_600_000_000, head: 1000, failAt: 500}
	resolver := NewResolver(chain, 0, nil)

	if _, err := resolver.BlockAfter(context.Background(), 1_600_000_000+400*12); err == nil {
		t.Fatalf("expected error when a header lookup fails")
	}
}
