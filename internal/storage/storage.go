package storage

import (
	"context"
	"sort"
	"time"

	"yieldScope/internal/model"
)

// WeekSamples is the number of daily samples returned by PairWeekData.
const WeekSamples = 7

// History is the append and weekly read path for pair history records.
type History interface {
	Append(ctx context.Context, record model.HistoryRecord) error
	PairWeekData(ctx context.Context, defiName, pairID string) ([]model.WeeklySample, error)
}

// DailySamples keeps the latest record of each UTC day within the week before now,
// most recent first, capped at WeekSamples.
func DailySamples(records []model.HistoryRecord, now time.Time) []model.WeeklySample {
	cutoff := weekCutoff(now)
	latest := make(map[string]model.HistoryRecord)
	for _, rec := range records {
		if !rec.RecordedAt.After(cutoff) || rec.RecordedAt.After(now) {
			continue
		}
		day := rec.RecordedAt.UTC().Format(time.DateOnly)
		if prev, ok := latest[day]; !ok || rec.RecordedAt.After(prev.RecordedAt) {
			latest[day] = rec
		}
	}

	samples := make([]model.WeeklySample, 0, len(latest))
	for _, rec := range latest {
		samples = append(samples, model.WeeklySample{
			ReserveUSD: rec.ReserveUSD,
			VolumeUSD:  rec.VolumeUSD,
			RecordedAt: rec.RecordedAt,
		})
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].RecordedAt.After(samples[j].RecordedAt)
	})
	if len(samples) > WeekSamples {
		samples = samples[:WeekSamples]
	}
	return samples
}

func weekCutoff(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, -WeekSamples)
}
