package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidRecord is returned when a history record fails validation.
var ErrInvalidRecord = errors.New("invalid history record")

// HistoryRecord is one per-pair snapshot appended to the history store.
type HistoryRecord struct {
	DefiName   string    `json:"defi_name"`
	PairID     string    `json:"pair_id"`
	PairName   string    `json:"pair_name"`
	ReserveUSD float64   `json:"reserve_usd"`
	VolumeUSD  float64   `json:"volume_usd"`
	APR        float64   `json:"apr"`
	APRWeek    float64   `json:"apr_week"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewHistoryRecord assembles a record from the historical and current snapshots.
// The pair name comes from the historical snapshot, reserve and volume from the current one.
func NewHistoryRecord(defiName string, historical, current PairSnapshot, apr, aprWeek float64, recordedAt time.Time) (HistoryRecord, error) {
	rec := HistoryRecord{
		DefiName:   defiName,
		PairID:     current.PairID,
		PairName:   historical.PairName(),
		ReserveUSD: current.ReserveUSD,
		VolumeUSD:  current.VolumeUSD,
		APR:        apr,
		APRWeek:    aprWeek,
		RecordedAt: recordedAt.UTC(),
	}
	if err := rec.Validate(); err != nil {
		return HistoryRecord{}, err
	}
	return rec, nil
}

// Validate checks required fields and rejects non-finite numbers.
func (r HistoryRecord) Validate() error {
	if r.DefiName == "" {
		return fmt.Errorf("%w: defi name is empty", ErrInvalidRecord)
	}
	if r.PairID == "" {
		return fmt.Errorf("%w: pair id is empty", ErrInvalidRecord)
	}
	fields := []struct {
		name  string
		value float64
	}{
		{"reserve_usd", r.ReserveUSD},
		{"volume_usd", r.VolumeUSD},
		{"apr", r.APR},
		{"apr_week", r.APRWeek},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidRecord, f.name)
		}
	}
	return nil
}
