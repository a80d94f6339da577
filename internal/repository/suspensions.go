package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmoiron/sqlx"
)

// SuspensionRepository is the suspension ledger: one row per currently
// suspended entity.
type SuspensionRepository interface {
	Upsert(ctx context.Context, tx *sqlx.Tx, t model.EntityType, id, reason string) error
	Delete(ctx context.Context, tx *sqlx.Tx, t model.EntityType, id string) error
	Get(ctx context.Context, t model.EntityType, id string) (*model.Suspension, error)
}

type suspensionRepo struct {
	db *sqlx.DB
}

func NewSuspensionRepository(db *sqlx.DB) SuspensionRepository { return &suspensionRepo{db: db} }

// Upsert is idempotent on (entity, entity_id): a repeat suspension refreshes
// the reason and timestamp instead of adding a row.
func (r *suspensionRepo) Upsert(ctx context.Context, tx *sqlx.Tx, t model.EntityType, id, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO suspensions (entity, entity_id, reason, suspended_at)
		VALUES (?, ?, ?, NOW(6))
		ON DUPLICATE KEY UPDATE
		    reason       = VALUES(reason),
		    suspended_at = VALUES(suspended_at)
	`, t.String(), id, reason)
	return err
}

func (r *suspensionRepo) Delete(ctx context.Context, tx *sqlx.Tx, t model.EntityType, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM suspensions WHERE entity = ? AND entity_id = ?`, t.String(), id)
	return err
}

// Get returns nil when the entity has no ledger row.
func (r *suspensionRepo) Get(ctx context.Context, t model.EntityType, id string) (*model.Suspension, error) {
	var s model.Suspension
	err := r.db.GetContext(ctx, &s, `
		SELECT entity, entity_id, reason, suspended_at
		  FROM suspensions
		 WHERE entity = ? AND entity_id = ? LIMIT 1
	`, t.String(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
