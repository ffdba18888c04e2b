// Package yield derives fee-based annualized rates from pair reserve and volume.
package yield

import (
	"math"

	"yieldScope/internal/model"
)

const (
	// FeeRate is the per-trade fee fraction accruing to liquidity providers.
	FeeRate = 0.003

	DaysPerYear  = 365
	DaysPerMonth = 30

	// Sentinel marks a week-smoothed rate with insufficient history.
	Sentinel = -1.0

	minWeekSamples = 2
)

// AnnualInterest compounds the daily fee return of volume over liquidity for a year,
// as a percentage. Zero liquidity yields NaN.
func AnnualInterest(liquidity, volume float64) float64 {
	return compound(liquidity, volume, DaysPerYear)
}

// MonthlyInterest is AnnualInterest over a 30 day horizon.
func MonthlyInterest(liquidity, volume float64) float64 {
	return compound(liquidity, volume, DaysPerMonth)
}

func compound(liquidity, volume float64, days int) float64 {
	if liquidity == 0 {
		return math.NaN()
	}
	daily := volume / liquidity * FeeRate
	return (math.Pow(1+daily, float64(days)) - 1) * 100
}

// InstantaneousAPR uses the volume traded between previous and current against the
// current reserve. Negative deltas are not clamped.
func InstantaneousAPR(previous, current model.PairSnapshot) float64 {
	delta := current.VolumeUSD - previous.VolumeUSD
	return AnnualInterest(current.ReserveUSD, delta)
}

// WeekSmoothedAPR averages daily sample volumes against the first sample's reserve.
// It returns Sentinel when fewer than two samples exist or the rate is undefined.
func WeekSmoothedAPR(samples []model.WeeklySample) float64 {
	if len(samples) < minWeekSamples {
		return Sentinel
	}

	var total float64
	for _, s := range samples {
		total += s.VolumeUSD
	}
	apr := AnnualInterest(samples[0].ReserveUSD, total/float64(len(samples)))
	if !Valid(apr) {
		return Sentinel
	}
	return apr
}

// Valid reports whether v is a finite rate.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
