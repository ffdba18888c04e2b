package storage

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"yieldScope/internal/model"
)

func TestJsonlHistoryAppendAndWeekData(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store := NewJsonlHistory(filepath.Join(t.TempDir(), "nested", "history.jsonl"), nil)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	records := []model.HistoryRecord{
		{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 100, VolumeUSD: 1, RecordedAt: now.Add(-30 * time.Hour)},
		{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 110, VolumeUSD: 2, RecordedAt: now.Add(-26 * time.Hour)},
		{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 120, VolumeUSD: 3, RecordedAt: now.Add(-1 * time.Hour)},
		{DefiName: "UniswapV2", PairID: "0xb", ReserveUSD: 999, VolumeUSD: 9, RecordedAt: now.Add(-1 * time.Hour)},
		{DefiName: "SushiSwap", PairID: "0xa", ReserveUSD: 999, VolumeUSD: 9, RecordedAt: now.Add(-1 * time.Hour)},
		{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 999, VolumeUSD: 9, RecordedAt: now.AddDate(0, 0, -8)},
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	samples, err := store.PairWeekData(ctx, "UniswapV2", "0xa")
	if err != nil {
		t.Fatalf("week data: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 daily samples, got %d: %+v", len(samples), samples)
	}
	if samples[0].ReserveUSD != 120 || samples[1].ReserveUSD != 110 {
		t.Fatalf("expected latest per day, most recent first: %+v", samples)
	}
}

func TestJsonlHistoryMissingFile(t *testing.T) {
	store := NewJsonlHistory(filepath.Join(t.TempDir(), "none.jsonl"), nil)
	samples, err := store.PairWeekData(context.Background(), "UniswapV2", "0xa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 0 {
		t.Fatalf("expected no samples")
	}
}

func TestJsonlHistoryRejectsInvalid(t *testing.T) {
	store := NewJsonlHistory(filepath.Join(t.TempDir(), "history.jsonl"), nil)
	err := store.Append(context.Background(), model.HistoryRecord{DefiName: "UniswapV2", PairID: "0xa", APR: math.NaN()})
	if !errors.Is(err, model.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestDailySamplesCapsAtWeek(t *testing.T) {
	now := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	var records []model.HistoryRecord
	for i := 0; i < 7; i++ {
		records = append(records, model.HistoryRecord{ReserveUSD: float64(i), RecordedAt: now.Add(-time.Duration(i) * 20 * time.Hour)})
	}
	samples := DailySamples(records, now)
	if len(samples) > WeekSamples {
		t.Fatalf("expected at most %d samples, got %d", WeekSamples, len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].RecordedAt.After(samples[i-1].RecordedAt) {
			t.Fatalf("samples not ordered most recent first")
		}
	}
}

func TestJsonlHistorySkipsTornLine(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "history.jsonl")
	ctx := context.Background()

	writer := NewJsonlHistory(path, nil)
	rec := model.HistoryRecord{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 100, VolumeUSD: 1, RecordedAt: now.Add(-time.Hour)}
	if err := writer.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	appendRaw(t, path, `{"defi_name":"Uni`)

	reader := NewJsonlHistory(path, nil)
	reader.now = func() time.Time { return now }
	samples, err := reader.PairWeekData(ctx, "UniswapV2", "0xa")
	if err != nil {
		t.Fatalf("torn tail must not fail the read: %v", err)
	}
	if len(samples) != 1 || samples[0].ReserveUSD != 100 {
		t.Fatalf("expected the valid record, got %+v", samples)
	}
}

func TestJsonlHistoryAppendAfterTornTail(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "history.jsonl")
	ctx := context.Background()

	first := model.HistoryRecord{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 100, VolumeUSD: 1, RecordedAt: now.Add(-30 * time.Hour)}
	if err := NewJsonlHistory(path, nil).Append(ctx, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	appendRaw(t, path, `{"defi_name":"Uni`)

	// A restarted process appends after the crash.
	store := NewJsonlHistory(path, nil)
	store.now = func() time.Time { return now }
	second := model.HistoryRecord{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 120, VolumeUSD: 3, RecordedAt: now.Add(-time.Hour)}
	if err := store.Append(ctx, second); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n"); len(lines) != 3 {
		t.Fatalf("expected torn line kept on its own line, got %d lines:\n%s", len(lines), data)
	}

	samples, err := store.PairWeekData(ctx, "UniswapV2", "0xa")
	if err != nil {
		t.Fatalf("week data: %v", err)
	}
	if len(samples) != 2 || samples[0].ReserveUSD != 120 || samples[1].ReserveUSD != 100 {
		t.Fatalf("expected both valid records, got %+v", samples)
	}
}

func TestJsonlHistoryIndexSeesLaterAppends(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store := NewJsonlHistory(filepath.Join(t.TempDir(), "history.jsonl"), nil)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Append(ctx, model.HistoryRecord{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 100, VolumeUSD: 1, RecordedAt: now.Add(-30 * time.Hour)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	samples, err := store.PairWeekData(ctx, "UniswapV2", "0xa")
	if err != nil || len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d err=%v", len(samples), err)
	}

	if err := store.Append(ctx, model.HistoryRecord{DefiName: "UniswapV2", PairID: "0xa", ReserveUSD: 120, VolumeUSD: 3, RecordedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	samples, err = store.PairWeekData(ctx, "UniswapV2", "0xa")
	if err != nil || len(samples) != 2 || samples[0].ReserveUSD != 120 {
		t.Fatalf("index missed the later append: %+v err=%v", samples, err)
	}

	// Records age out of the index as the clock moves.
	store.now = func() time.Time { return now.AddDate(0, 0, 7) }
	samples, err = store.PairWeekData(ctx, "UniswapV2", "0xa")
	if err != nil || len(samples) != 0 {
		t.Fatalf("expected aged-out records to be dropped: %+v err=%v", samples, err)
	}
}

func appendRaw(t *testing.T, path, data string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteString(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}
