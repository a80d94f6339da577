package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"go.uber.org/zap"
)

// Reconcilable is the aggregator's full-recount side.
type Reconcilable interface {
	Reconcile(ctx context.Context, t model.EntityType) error
	Requests() <-chan model.EntityType
}

// Reconciler recounts every tracked type at startup and on each tick, and
// serves out-of-band requests in between. It runs in one goroutine, so
// reconciles never overlap.
type Reconciler struct {
	Agg      Reconcilable
	Interval time.Duration
	Types    []model.EntityType
	Log      *zap.Logger
}

func NewReconciler(agg Reconcilable, interval time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{
		Agg:      agg,
		Interval: interval,
		Types:    model.TrackedEntities,
		Log:      logger.OrNop(log).Named("reconciler"),
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		r.Interval = 3 * time.Second
	}

	r.all(ctx)

	tick := time.NewTicker(r.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			r.all(ctx)
		case t := <-r.Agg.Requests():
			r.one(ctx, t)
		}
	}
}

func (r *Reconciler) all(ctx context.Context) {
	for _, t := range r.Types {
		if ctx.Err() != nil {
			return
		}
		r.one(ctx, t)
	}
}

func (r *Reconciler) one(ctx context.Context, t model.EntityType) {
	if err := r.Agg.Reconcile(ctx, t); err != nil && ctx.Err() == nil {
		logger.OrNop(r.Log).Warn("reconcile failed, keeping last count",
			zap.String("entity", t.String()), zap.Error(err))
	}
}
