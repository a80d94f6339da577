package model

import "time"

// Optional is a column value as seen in a change-feed image.
// Present=false means the column was not part of the image at all.
type Optional[T any] struct {
	Present bool
	Null    bool
	Value   T
}

// Known wraps a non-null present value.
func Known[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: v}
}

// NullOf is a present SQL NULL.
func NullOf[T any]() Optional[T] {
	return Optional[T]{Present: true, Null: true}
}

// PartialRow is a before/after image from the change feed. Columns that were
// not delivered stay unknown.
type PartialRow struct {
	ID              string
	ApprovedAt      Optional[time.Time]
	StatusID        Optional[int64]
	RejectionReason Optional[string]
}

type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// NormalizedEvent is a change-feed event for one tracked entity.
// Before is nil on insert, After is nil on delete.
type NormalizedEvent struct {
	Type   EntityType
	Op     Operation
	Before *PartialRow
	After  *PartialRow
}

// EntityID returns the id carried by whichever image is set.
func (e NormalizedEvent) EntityID() string {
	if e.After != nil && e.After.ID != "" {
		return e.After.ID
	}
	if e.Before != nil {
		return e.Before.ID
	}
	return ""
}
