package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/guard"
	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/metrics"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/pending"
	"github.com/jmehdipour/marketplace-admin/internal/repository"
	"github.com/jmehdipour/marketplace-admin/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Counter is the slice of the aggregator the engine needs.
type Counter interface {
	SetDirect(t model.EntityType, id string, delta int64)
	Evaluator() pending.Evaluator
}

// Engine validates and executes approval transitions. Each transition is one
// transaction: lock row, check state, update row, touch the suspension ledger,
// append the decision log.
type Engine struct {
	db          *sqlx.DB
	entities    repository.EntitiesRepository
	suspensions repository.SuspensionRepository
	decisions   repository.DecisionsRepository
	counter     Counter
	guard       *guard.Guard
	log         *zap.Logger
	now         func() time.Time
}

func New(
	db *sqlx.DB,
	entities repository.EntitiesRepository,
	suspensions repository.SuspensionRepository,
	decisions repository.DecisionsRepository,
	counter Counter,
	g *guard.Guard,
	log *zap.Logger,
) *Engine {
	if g == nil {
		g = guard.New(0, nil)
	}
	return &Engine{
		db:          db,
		entities:    entities,
		suspensions: suspensions,
		decisions:   decisions,
		counter:     counter,
		guard:       g,
		log:         logger.OrNop(log).Named("workflow"),
		now:         time.Now,
	}
}

// Request identifies the entity, the acting admin and, for reject and
// suspend, the reason.
type Request struct {
	Type    model.EntityType
	ID      string
	Reason  string
	AdminID int64
}

func (e *Engine) Approve(ctx context.Context, req Request) (model.Entity, error) {
	return e.transition(ctx, model.ActionApprove, req)
}

func (e *Engine) Reject(ctx context.Context, req Request) (model.Entity, error) {
	return e.transition(ctx, model.ActionReject, req)
}

func (e *Engine) Suspend(ctx context.Context, req Request) (model.Entity, error) {
	return e.transition(ctx, model.ActionSuspend, req)
}

func (e *Engine) Activate(ctx context.Context, req Request) (model.Entity, error) {
	return e.transition(ctx, model.ActionActivate, req)
}

// Get returns the decoded entity.
func (e *Engine) Get(ctx context.Context, t model.EntityType, id string) (model.Entity, error) {
	if !t.Valid() {
		return model.Entity{}, fmt.Errorf("%w: unknown entity type %q", model.ErrValidation, t)
	}
	var row model.EntityRow
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		row, err = e.entities.GetRow(ctx, t, id)
		return err
	})
	if err != nil {
		return model.Entity{}, err
	}
	return row.Decode(t), nil
}

// Queue lists pending entities using the same predicate as the counters.
func (e *Engine) Queue(ctx context.Context, t model.EntityType, limit, offset int) ([]model.Entity, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", model.ErrValidation, t)
	}
	var rows []model.EntityRow
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = e.entities.ListPending(ctx, t, e.counter.Evaluator().Filter(t), limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Decode(t))
	}
	return out, nil
}

func (e *Engine) transition(ctx context.Context, action model.Action, req Request) (model.Entity, error) {
	reason, err := validate(action, req)
	if err != nil {
		e.observe(req.Type, action, err)
		return model.Entity{}, err
	}
	now := e.now().UTC().Truncate(time.Microsecond)

	var before, after model.EntityRow
	err = e.guard.Do(ctx, func(ctx context.Context) error {
		tx, err := e.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		before, err = e.entities.GetForUpdate(ctx, tx, req.Type, req.ID)
		if err != nil {
			return err
		}

		p, err := planTransition(action, before, req.Type, reason, now)
		if err != nil {
			return err
		}

		if err := e.entities.Update(ctx, tx, req.Type, req.ID, p.update); err != nil {
			return fmt.Errorf("update %s: %w", req.Type, err)
		}

		switch p.ledger {
		case ledgerUpsert:
			if err := e.suspensions.Upsert(ctx, tx, req.Type, req.ID, reason); err != nil {
				return fmt.Errorf("suspension ledger upsert: %w", err)
			}
		case ledgerDelete:
			if err := e.suspensions.Delete(ctx, tx, req.Type, req.ID); err != nil {
				return fmt.Errorf("suspension ledger delete: %w", err)
			}
		}

		if err := e.decisions.Insert(ctx, tx, model.Decision{
			ID:        util.NewID(),
			Entity:    req.Type,
			EntityID:  req.ID,
			Action:    action,
			FromState: model.StateLabel(before.Decode(req.Type)),
			ToState:   model.StateLabel(p.after.Decode(req.Type)),
			Reason:    reason,
			AdminID:   req.AdminID,
			DecidedAt: now,
		}); err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", action, err)
		}
		after = p.after
		return nil
	})
	e.observe(req.Type, action, err)
	if err != nil {
		return model.Entity{}, err
	}

	if delta := e.pendingDelta(req.Type, before, after); delta != 0 {
		e.counter.SetDirect(req.Type, req.ID, delta)
	}

	e.log.Info("transition applied",
		zap.String("entity", req.Type.String()),
		zap.String("id", req.ID),
		zap.String("action", action.String()),
		zap.Int64("admin_id", req.AdminID))

	return after.Decode(req.Type), nil
}

// pendingDelta is the counter movement implied by the write: only a flip of
// the pending predicate moves it.
func (e *Engine) pendingDelta(t model.EntityType, before, after model.EntityRow) int64 {
	ev := e.counter.Evaluator()
	was, _ := ev.IsPending(t, before.Partial())
	now, _ := ev.IsPending(t, after.Partial())
	switch {
	case was && !now:
		return -1
	case !was && now:
		return 1
	default:
		return 0
	}
}

func validate(action model.Action, req Request) (string, error) {
	if !req.Type.Valid() {
		return "", fmt.Errorf("%w: unknown entity type %q", model.ErrValidation, req.Type)
	}
	if strings.TrimSpace(req.ID) == "" {
		return "", fmt.Errorf("%w: empty id", model.ErrValidation)
	}
	switch action {
	case model.ActionReject, model.ActionSuspend:
		reason, err := util.NormalizeReason(req.Reason)
		if err != nil {
			return "", fmt.Errorf("%w: %v", model.ErrValidation, err)
		}
		return reason, nil
	default:
		return "", nil
	}
}

func (e *Engine) observe(t model.EntityType, action model.Action, err error) {
	metrics.TransitionsTotal.WithLabelValues(t.String(), action.String(), resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
