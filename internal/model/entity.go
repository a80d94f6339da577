package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type EntityType string

const (
	EntitySellerApplication EntityType = "seller_application"
	EntityProduct           EntityType = "product"
)

// TrackedEntities lists every entity type that has a pending counter.
var TrackedEntities = []EntityType{EntitySellerApplication, EntityProduct}

func (t EntityType) String() string { return string(t) }

func (t EntityType) Valid() bool {
	return t == EntitySellerApplication || t == EntityProduct
}

// Table returns the backing table name.
func (t EntityType) Table() string {
	switch t {
	case EntitySellerApplication:
		return "seller_applications"
	case EntityProduct:
		return "products"
	default:
		return ""
	}
}

// Plural is the path segment used by the HTTP API.
func (t EntityType) Plural() string {
	switch t {
	case EntitySellerApplication:
		return "applications"
	case EntityProduct:
		return "products"
	default:
		return ""
	}
}

// ParseEntityType accepts the type name, its table name or its API path segment.
func ParseEntityType(s string) (EntityType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "seller_application", "seller_applications", "application", "applications":
		return EntitySellerApplication, true
	case "product", "products":
		return EntityProduct, true
	default:
		return "", false
	}
}

// EntityTypeForTable maps a CDC source table to its entity type.
func EntityTypeForTable(table string) (EntityType, bool) {
	switch table {
	case "seller_applications":
		return EntitySellerApplication, true
	case "products":
		return EntityProduct, true
	default:
		return "", false
	}
}

// ApprovalState is the decoded approval axis.
type ApprovalState string

const (
	StatePending  ApprovalState = "pending"
	StateApproved ApprovalState = "approved"
	StateRejected ApprovalState = "rejected"
)

func (s ApprovalState) String() string { return string(s) }

// Status is the status_id foreign key. It only carries meaning once approved.
type Status int64

const (
	StatusNone      Status = 0
	StatusActive    Status = 1
	StatusSuspended Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	default:
		return "none"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "active":
		*s = StatusActive
	case "suspended":
		*s = StatusSuspended
	case "none", "":
		*s = StatusNone
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// RejectedSentinel is stored in approved_at to mark an explicit rejection.
var RejectedSentinel = time.Unix(0, 0).UTC()

// IsRejectedSentinel reports whether t is the rejection marker.
func IsRejectedSentinel(t time.Time) bool {
	return t.Equal(RejectedSentinel)
}

// DecodeApproval turns the legacy approved_at encoding into an explicit state.
// absent = pending, sentinel = rejected, anything else = approved at that time.
func DecodeApproval(approvedAt sql.NullTime) (ApprovalState, *time.Time) {
	if !approvedAt.Valid {
		return StatePending, nil
	}
	if IsRejectedSentinel(approvedAt.Time) {
		return StateRejected, nil
	}
	t := approvedAt.Time
	return StateApproved, &t
}

// EncodeApproval is the inverse of DecodeApproval.
func EncodeApproval(state ApprovalState, decidedAt time.Time) sql.NullTime {
	switch state {
	case StateApproved:
		return sql.NullTime{Time: decidedAt, Valid: true}
	case StateRejected:
		return sql.NullTime{Time: RejectedSentinel, Valid: true}
	default:
		return sql.NullTime{}
	}
}

// EntityRow is the storage shape shared by seller_applications and products.
type EntityRow struct {
	ID              string         `db:"id"`
	ApprovedAt      sql.NullTime   `db:"approved_at"`
	StatusID        sql.NullInt64  `db:"status_id"`
	RejectionReason sql.NullString `db:"rejection_reason"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// Entity is the decoded view the workflow engine works with.
type Entity struct {
	Type            EntityType    `json:"type"`
	ID              string        `json:"id"`
	State           ApprovalState `json:"state"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
	Status          Status        `json:"status,omitempty"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (r EntityRow) Decode(t EntityType) Entity {
	state, decidedAt := DecodeApproval(r.ApprovedAt)
	e := Entity{
		Type:      t,
		ID:        r.ID,
		State:     state,
		DecidedAt: decidedAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.StatusID.Valid {
		e.Status = Status(r.StatusID.Int64)
	}
	if r.RejectionReason.Valid {
		e.RejectionReason = r.RejectionReason.String
	}
	return e
}

// Partial returns the row as a fully known PartialRow.
func (r EntityRow) Partial() PartialRow {
	p := PartialRow{ID: r.ID}
	p.ApprovedAt = Optional[time.Time]{Present: true, Null: !r.ApprovedAt.Valid, Value: r.ApprovedAt.Time}
	p.StatusID = Optional[int64]{Present: true, Null: !r.StatusID.Valid, Value: r.StatusID.Int64}
	p.RejectionReason = Optional[string]{Present: true, Null: !r.RejectionReason.Valid, Value: r.RejectionReason.String}
	return p
}

// IsActive reports Approved with status Active.
func (e Entity) IsActive() bool {
	return e.State == StateApproved && e.Status == StatusActive
}

// IsSuspended reports Approved with status Suspended.
func (e Entity) IsSuspended() bool {
	return e.State == StateApproved && e.Status == StatusSuspended
}
