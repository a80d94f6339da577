package model

import "time"

// PendingCount is a point-in-time view of one pending counter.
type PendingCount struct {
	Entity           EntityType `json:"entity"`
	Count            int64      `json:"count"`
	LastReconciledAt time.Time  `json:"last_reconciled_at"`
	At               time.Time  `json:"at"`
}

// CountsSnapshot is what subscribers receive on every counter change.
type CountsSnapshot struct {
	Counts []PendingCount `json:"counts"`
	At     time.Time      `json:"at"`
}
