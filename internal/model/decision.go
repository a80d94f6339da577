package model

import "time"

type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionSuspend  Action = "suspend"
	ActionActivate Action = "activate"
)

func (a Action) String() string { return string(a) }

// Decision is one row of the approval_decisions log.
type Decision struct {
	ID        string     `db:"id" json:"id"`
	Entity    EntityType `db:"entity" json:"entity"`
	EntityID  string     `db:"entity_id" json:"entity_id"`
	Action    Action     `db:"action" json:"action"`
	FromState string     `db:"from_state" json:"from_state"`
	ToState   string     `db:"to_state" json:"to_state"`
	Reason    string     `db:"reason" json:"reason,omitempty"`
	AdminID   int64      `db:"admin_id" json:"admin_id"`
	DecidedAt time.Time  `db:"decided_at" json:"decided_at"`
}

// StateLabel renders an entity's combined state, e.g. "approved/active".
func StateLabel(e Entity) string {
	if e.State == StateApproved && e.Status != StatusNone {
		return e.State.String() + "/" + e.Status.String()
	}
	return e.State.String()
}

// Suspension is a row of the suspensions ledger.
type Suspension struct {
	Entity      EntityType `db:"entity"`
	EntityID    string     `db:"entity_id"`
	Reason      string     `db:"reason"`
	SuspendedAt time.Time  `db:"suspended_at"`
}
