package model

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNewHistoryRecordUsesHistoricalName(t *testing.T) {
	block := uint64(100)
	historical := PairSnapshot{PairID: "0xpair", Token0Symbol: "WETH", Token1Symbol: "USDC", ReserveUSD: 900, VolumeUSD: 50, Block: &block}
	current := PairSnapshot{PairID: "0xpair", Token0Symbol: "ETH", Token1Symbol: "USDC", ReserveUSD: 1000, VolumeUSD: 80}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	rec, err := NewHistoryRecord("UniswapV2", historical, current, 3.3, -1, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.PairName != "WETH-USDC" {
		t.Fatalf("pair name mismatch: %s", rec.PairName)
	}
	if rec.ReserveUSD != 1000 || rec.VolumeUSD != 80 {
		t.Fatalf("expected current reserve/volume, got %+v", rec)
	}
	if rec.RecordedAt.Location() != time.UTC {
		t.Fatalf("recorded_at should be UTC")
	}
}

func TestNewHistoryRecordRejectsNonFinite(t *testing.T) {
	snap := PairSnapshot{PairID: "0xpair", ReserveUSD: 0, VolumeUSD: 1}
	if _, err := NewHistoryRecord("UniswapV2", snap, snap, math.NaN(), -1, time.Now()); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for NaN apr, got %v", err)
	}
	if _, err := NewHistoryRecord("UniswapV2", snap, snap, 1, math.Inf(1), time.Now()); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for Inf apr_week, got %v", err)
	}
	if _, err := NewHistoryRecord("", snap, snap, 1, 1, time.Now()); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord for empty defi name, got %v", err)
	}
}
