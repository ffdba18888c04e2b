package model

// PairSnapshot captures a pair's reserve and cumulative volume at a point in time.
// Block is set when the snapshot is pinned to a historical block.
type PairSnapshot struct {
	PairID       string  `json:"pair_id"`
	Token0Symbol string  `json:"token0_symbol"`
	Token1Symbol string  `json:"token1_symbol"`
	ReserveUSD   float64 `json:"reserve_usd"`
	VolumeUSD    float64 `json:"volume_usd"`
	Block        *uint64 `json:"block,omitempty"`
}

// Historical reports whether the snapshot is pinned to a block.
func (s PairSnapshot) Historical() bool {
	return s.Block != nil
}

// PairName returns the display name "SYM0-SYM1".
func (s PairSnapshot) PairName() string {
	return s.Token0Symbol + "-" + s.Token1Symbol
}
