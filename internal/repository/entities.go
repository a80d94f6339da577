package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/pending"
	"github.com/jmoiron/sqlx"
)

// EntitiesRepository reads and writes seller_applications and products. Both
// tables share the approval columns, so one implementation serves both.
type EntitiesRepository interface {
	GetRow(ctx context.Context, t model.EntityType, id string) (model.EntityRow, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, t model.EntityType, id string) (model.EntityRow, error)
	Update(ctx context.Context, tx *sqlx.Tx, t model.EntityType, id string, u EntityUpdate) error
	CountPending(ctx context.Context, t model.EntityType, f pending.Filter) (int64, error)
	ListPending(ctx context.Context, t model.EntityType, f pending.Filter, limit, offset int) ([]model.EntityRow, error)
}

// EntityUpdate lists the columns to write; nil fields are left untouched.
type EntityUpdate struct {
	ApprovedAt      *sql.NullTime
	StatusID        *sql.NullInt64
	RejectionReason *sql.NullString
}

type EntitiesRepositoryImpl struct {
	db *sqlx.DB
}

func NewEntitiesRepository(db *sqlx.DB) *EntitiesRepositoryImpl {
	return &EntitiesRepositoryImpl{db: db}
}

var _ EntitiesRepository = (*EntitiesRepositoryImpl)(nil)

const entityColumns = `id, approved_at, status_id, rejection_reason, created_at, updated_at`

func tableFor(t model.EntityType) (string, error) {
	table := t.Table()
	if table == "" {
		return "", fmt.Errorf("%w: unknown entity type %q", model.ErrValidation, t)
	}
	return table, nil
}

// pendingWhere renders the pending predicate as SQL. It must agree with
// pending.Evaluator.IsPending.
func pendingWhere(f pending.Filter) string {
	var conds []string
	if f.ApprovedAtNull {
		conds = append(conds, "approved_at IS NULL")
	}
	if f.ReasonNullOrEmpty {
		conds = append(conds, "(rejection_reason IS NULL OR rejection_reason = '')")
	}
	if len(conds) == 0 {
		return "1 = 1"
	}
	return strings.Join(conds, " AND ")
}

func (r *EntitiesRepositoryImpl) GetRow(ctx context.Context, t model.EntityType, id string) (model.EntityRow, error) {
	table, err := tableFor(t)
	if err != nil {
		return model.EntityRow{}, err
	}
	var row model.EntityRow
	err = r.db.GetContext(ctx, &row, `SELECT `+entityColumns+` FROM `+table+` WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EntityRow{}, fmt.Errorf("%s %s: %w", t, id, model.ErrNotFound)
	}
	return row, err
}

// GetForUpdate locks the row for the rest of tx.
func (r *EntitiesRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, t model.EntityType, id string) (model.EntityRow, error) {
	table, err := tableFor(t)
	if err != nil {
		return model.EntityRow{}, err
	}
	var row model.EntityRow
	err = tx.GetContext(ctx, &row, `SELECT `+entityColumns+` FROM `+table+` WHERE id = ? FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EntityRow{}, fmt.Errorf("%s %s: %w", t, id, model.ErrNotFound)
	}
	return row, err
}

// Update expects the row to be locked by GetForUpdate in the same tx.
func (r *EntitiesRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, t model.EntityType, id string, u EntityUpdate) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	var sb strings.Builder
	args := make([]any, 0, 4)
	sb.WriteString(`UPDATE ` + table + ` SET `)
	if u.ApprovedAt != nil {
		sb.WriteString(`approved_at = ?, `)
		args = append(args, *u.ApprovedAt)
	}
	if u.StatusID != nil {
		sb.WriteString(`status_id = ?, `)
		args = append(args, *u.StatusID)
	}
	if u.RejectionReason != nil {
		sb.WriteString(`rejection_reason = ?, `)
		args = append(args, *u.RejectionReason)
	}
	sb.WriteString(`updated_at = NOW(6) WHERE id = ?`)
	args = append(args, id)

	_, err = tx.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *EntitiesRepositoryImpl) CountPending(ctx context.Context, t model.EntityType, f pending.Filter) (int64, error) {
	table, err := tableFor(t)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table+` WHERE `+pendingWhere(f)); err != nil {
		return 0, err
	}
	return n, nil
}

// ListPending returns the review queue, oldest submission first.
func (r *EntitiesRepositoryImpl) ListPending(ctx context.Context, t model.EntityType, f pending.Filter, limit, offset int) ([]model.EntityRow, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + entityColumns + ` FROM ` + table + ` WHERE ` + pendingWhere(f) +
		` ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`
	var rows []model.EntityRow
	if err := r.db.SelectContext(ctx, &rows, q, limit, offset); err != nil {
		return nil, err
	}
	return rows, nil
}
