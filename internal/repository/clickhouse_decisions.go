package repository

import (
	"context"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHDecisionsRepository lists decisions from ClickHouse (final view).
type CHDecisionsRepository interface {
	List(ctx context.Context, entity model.EntityType, entityID string, limit, offset int) ([]model.Decision, error)
}

type chDecisionsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHDecisionsRepository(ch *sqlx.DB) CHDecisionsRepository {
	return &chDecisionsRepository{ch: ch}
}

func (r *chDecisionsRepository) List(ctx context.Context, entity model.EntityType, entityID string, limit, offset int) ([]model.Decision, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, entity, entity_id, action, from_state, to_state, reason, admin_id, decided_at
		FROM marketplace.decisions_latest
		WHERE 1 = 1
	`
	args := []any{}

	if entity != "" {
		q += " AND entity = ?"
		args = append(args, entity.String())
	}
	if entityID != "" {
		q += " AND entity_id = ?"
		args = append(args, entityID)
	}

	q += " ORDER BY decided_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Decision
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
