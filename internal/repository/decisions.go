package repository

import (
	"context"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmoiron/sqlx"
)

// DecisionsRepository appends to the approval_decisions log. Debezium ships the
// table to ClickHouse, where CHDecisionsRepository reads it back.
type DecisionsRepository interface {
	// Insert writes a single decision. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, d model.Decision) error
}

type DecisionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewDecisionsRepository(db *sqlx.DB) *DecisionsRepositoryImpl {
	return &DecisionsRepositoryImpl{db: db}
}

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *DecisionsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

func (r *DecisionsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, d model.Decision) error {
	const q = `
		INSERT INTO approval_decisions
		    (id, entity, entity_id, action, from_state, to_state, reason, admin_id, decided_at)
		VALUES
		    (?,  ?,      ?,         ?,      ?,          ?,        ?,      ?,        ?)
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			d.ID, d.Entity.String(), d.EntityID, d.Action.String(), d.FromState, d.ToState, d.Reason, d.AdminID, d.DecidedAt,
		)
		return err
	})
}
