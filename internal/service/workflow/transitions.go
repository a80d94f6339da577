package workflow

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/repository"
)

type ledgerOp int

const (
	ledgerNone ledgerOp = iota
	ledgerUpsert
	ledgerDelete
)

// plan is the write set for one transition, derived from the locked row.
type plan struct {
	update repository.EntityUpdate
	ledger ledgerOp
	after  model.EntityRow
}

// planTransition is the state machine:
//
//	Pending  -approve->  Approved/Active
//	Pending  -reject->   Rejected (terminal)
//	Approved -suspend->  Approved/Suspended (repeatable; refreshes the ledger)
//	Suspended -activate-> Approved/Active
func planTransition(action model.Action, before model.EntityRow, t model.EntityType, reason string, now time.Time) (plan, error) {
	cur := before.Decode(t)
	p := plan{after: before}

	switch action {
	case model.ActionApprove:
		if cur.State != model.StatePending {
			return plan{}, invalid(action, cur)
		}
		approvedAt := model.EncodeApproval(model.StateApproved, now)
		status := sql.NullInt64{Int64: int64(model.StatusActive), Valid: true}
		noReason := sql.NullString{}
		p.update = repository.EntityUpdate{ApprovedAt: &approvedAt, StatusID: &status, RejectionReason: &noReason}

	case model.ActionReject:
		if cur.State != model.StatePending {
			return plan{}, invalid(action, cur)
		}
		rejectedAt := model.EncodeApproval(model.StateRejected, now)
		why := sql.NullString{String: reason, Valid: true}
		p.update = repository.EntityUpdate{ApprovedAt: &rejectedAt, RejectionReason: &why}

	case model.ActionSuspend:
		if cur.State != model.StateApproved {
			return plan{}, invalid(action, cur)
		}
		status := sql.NullInt64{Int64: int64(model.StatusSuspended), Valid: true}
		why := sql.NullString{String: reason, Valid: true}
		p.update = repository.EntityUpdate{StatusID: &status, RejectionReason: &why}
		p.ledger = ledgerUpsert

	case model.ActionActivate:
		if !cur.IsSuspended() {
			return plan{}, invalid(action, cur)
		}
		status := sql.NullInt64{Int64: int64(model.StatusActive), Valid: true}
		noReason := sql.NullString{}
		p.update = repository.EntityUpdate{StatusID: &status, RejectionReason: &noReason}
		p.ledger = ledgerDelete

	default:
		return plan{}, fmt.Errorf("%w: unknown action %q", model.ErrValidation, action)
	}

	if p.update.ApprovedAt != nil {
		p.after.ApprovedAt = *p.update.ApprovedAt
	}
	if p.update.StatusID != nil {
		p.after.StatusID = *p.update.StatusID
	}
	if p.update.RejectionReason != nil {
		p.after.RejectionReason = *p.update.RejectionReason
	}
	p.after.UpdatedAt = now
	return p, nil
}

func invalid(action model.Action, cur model.Entity) error {
	return fmt.Errorf("%w: cannot %s %s %s while %s", model.ErrInvalidState, action, cur.Type, cur.ID, model.StateLabel(cur))
}
