package model

import "time"

// WeeklySample is one daily history sample used for week-smoothed yield.
type WeeklySample struct {
	ReserveUSD float64   `json:"reserve_usd"`
	VolumeUSD  float64   `json:"volume_usd"`
	RecordedAt time.Time `json:"recorded_at"`
}
