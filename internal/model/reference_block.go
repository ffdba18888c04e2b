package model

// ReferenceBlock is the block resolved for a target timestamp.
type ReferenceBlock struct {
	Number    uint64 `json:"number"`
	Timestamp int64  `json:"timestamp"`
}
