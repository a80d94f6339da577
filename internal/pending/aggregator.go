package pending

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/guard"
	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/metrics"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"go.uber.org/zap"
)

// CountStore runs the full "count rows where pending" query.
type CountStore interface {
	CountPending(ctx context.Context, t model.EntityType, f Filter) (int64, error)
}

// RowReader loads a full row when a change event image is incomplete.
type RowReader interface {
	GetRow(ctx context.Context, t model.EntityType, id string) (model.EntityRow, error)
}

// Publisher receives a snapshot after every counter change.
type Publisher interface {
	Publish(model.CountsSnapshot)
}

type source int

const (
	fromFeed source = iota
	fromDirect
)

// echo remembers a flip already applied for an id so the same flip arriving
// through the other path is absorbed instead of counted twice.
type echo struct {
	delta   int64
	src     source
	expires time.Time
}

// counter is one entity type's pending count. count is read lock-free;
// mutations and the echo table are serialized by mu.
type counter struct {
	mu         sync.Mutex
	count      atomic.Int64
	reconciled atomic.Int64 // unix nanos of last successful reconcile
	echoes     map[string]echo
}

type Options struct {
	EchoTTL   time.Duration
	Publisher Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

// Aggregator keeps per-entity-type pending counters, moved incrementally by
// predicate flips and overwritten by reconciliation.
type Aggregator struct {
	eval     Evaluator
	store    CountStore
	rows     RowReader
	guard    *guard.Guard
	pub      Publisher
	log      *zap.Logger
	echoTTL  time.Duration
	now      func() time.Time
	counters map[model.EntityType]*counter
	kick     chan model.EntityType
}

func NewAggregator(eval Evaluator, store CountStore, rows RowReader, g *guard.Guard, opts Options) *Aggregator {
	if opts.EchoTTL <= 0 {
		opts.EchoTTL = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if g == nil {
		g = guard.New(0, nil)
	}

	a := &Aggregator{
		eval:     eval,
		store:    store,
		rows:     rows,
		guard:    g,
		pub:      opts.Publisher,
		log:      logger.OrNop(opts.Logger).Named("aggregator"),
		echoTTL:  opts.EchoTTL,
		now:      opts.Now,
		counters: make(map[model.EntityType]*counter, len(model.TrackedEntities)),
		kick:     make(chan model.EntityType, len(model.TrackedEntities)*4),
	}
	for _, t := range model.TrackedEntities {
		a.counters[t] = &counter{echoes: make(map[string]echo)}
	}
	return a
}

func (a *Aggregator) Evaluator() Evaluator { return a.eval }

// Read is a non-blocking snapshot of one counter.
func (a *Aggregator) Read(t model.EntityType) int64 {
	c, ok := a.counters[t]
	if !ok {
		return 0
	}
	return c.count.Load()
}

func (a *Aggregator) Count(t model.EntityType) model.PendingCount {
	pc := model.PendingCount{Entity: t, At: a.now()}
	c, ok := a.counters[t]
	if !ok {
		return pc
	}
	pc.Count = c.count.Load()
	if ns := c.reconciled.Load(); ns > 0 {
		pc.LastReconciledAt = time.Unix(0, ns).UTC()
	}
	return pc
}

func (a *Aggregator) Snapshot() model.CountsSnapshot {
	s := model.CountsSnapshot{At: a.now()}
	for _, t := range model.TrackedEntities {
		s.Counts = append(s.Counts, a.Count(t))
	}
	return s
}

// OnEvent moves the counter only when the event flips the pending predicate.
func (a *Aggregator) OnEvent(ctx context.Context, ev model.NormalizedEvent) {
	if _, ok := a.counters[ev.Type]; !ok {
		return
	}
	id := ev.EntityID()

	wasPending := false
	if ev.Before != nil {
		p, known := a.eval.IsPending(ev.Type, *ev.Before)
		if !known {
			// the before-image cannot be recovered by a read; recount instead
			a.log.Debug("before image incomplete, requesting reconcile",
				zap.String("entity", ev.Type.String()), zap.String("id", id))
			metrics.FeedEventsTotal.WithLabelValues(ev.Type.String(), "unknown").Inc()
			a.RequestReconcile(ev.Type)
			return
		}
		wasPending = p
	}

	isPendingNow := false
	if ev.After != nil {
		p, known := a.eval.IsPending(ev.Type, *ev.After)
		if !known {
			var err error
			p, err = a.readPending(ctx, ev.Type, id)
			if err != nil {
				a.log.Warn("full read after incomplete image failed",
					zap.String("entity", ev.Type.String()), zap.String("id", id), zap.Error(err))
				metrics.FeedEventsTotal.WithLabelValues(ev.Type.String(), "unknown").Inc()
				a.RequestReconcile(ev.Type)
				return
			}
		}
		isPendingNow = p
	}

	if wasPending == isPendingNow {
		metrics.FeedEventsTotal.WithLabelValues(ev.Type.String(), "noop").Inc()
		return
	}

	delta := int64(-1)
	if isPendingNow {
		delta = 1
	}
	if a.apply(ev.Type, id, delta, fromFeed) {
		metrics.FeedEventsTotal.WithLabelValues(ev.Type.String(), "applied").Inc()
	} else {
		metrics.FeedEventsTotal.WithLabelValues(ev.Type.String(), "absorbed").Inc()
	}
}

func (a *Aggregator) readPending(ctx context.Context, t model.EntityType, id string) (bool, error) {
	if a.rows == nil || id == "" {
		return false, errors.New("no row reader")
	}
	var row model.EntityRow
	err := a.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		row, err = a.rows.GetRow(ctx, t, id)
		return err
	})
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p, _ := a.eval.IsPending(t, row.Partial())
	return p, nil
}

// SetDirect applies a change the workflow engine made itself, ahead of the
// change feed. A non-empty id lets the later feed event for the same flip be
// absorbed.
func (a *Aggregator) SetDirect(t model.EntityType, id string, delta int64) {
	if delta == 0 {
		return
	}
	a.apply(t, id, delta, fromDirect)
}

// apply reports false when the delta was absorbed as an echo.
func (a *Aggregator) apply(t model.EntityType, id string, delta int64, src source) bool {
	c, ok := a.counters[t]
	if !ok {
		return false
	}
	now := a.now()

	c.mu.Lock()
	if id != "" {
		if e, ok := c.echoes[id]; ok && e.src != src && e.delta == delta && now.Before(e.expires) {
			delete(c.echoes, id)
			c.mu.Unlock()
			return false
		}
		c.echoes[id] = echo{delta: delta, src: src, expires: now.Add(a.echoTTL)}
	}

	next := c.count.Load() + delta
	clamped := next < 0
	if clamped {
		next = 0
	}
	c.count.Store(next)
	c.mu.Unlock()

	if clamped {
		a.log.Warn("pending counter would go negative, clamped",
			zap.String("entity", t.String()), zap.Int64("delta", delta))
		a.RequestReconcile(t)
	}
	a.publish()
	return true
}

// Reconcile overwrites the counter with a full count from the store. On
// failure the last known value is kept.
func (a *Aggregator) Reconcile(ctx context.Context, t model.EntityType) error {
	c, ok := a.counters[t]
	if !ok {
		return nil
	}

	var n int64
	err := a.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = a.store.CountPending(ctx, t, a.eval.Filter(t))
		return err
	})
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues(t.String(), "error").Inc()
		return err
	}

	now := a.now()
	c.mu.Lock()
	prev := c.count.Swap(n)
	c.reconciled.Store(now.UnixNano())
	for id, e := range c.echoes {
		if !now.Before(e.expires) {
			delete(c.echoes, id)
		}
	}
	c.mu.Unlock()

	if prev != n {
		a.log.Debug("reconcile corrected drift",
			zap.String("entity", t.String()), zap.Int64("was", prev), zap.Int64("now", n))
	}
	metrics.ReconcileTotal.WithLabelValues(t.String(), "ok").Inc()
	a.publish()
	return nil
}

// RequestReconcile asks the scheduler for an out-of-band reconcile.
func (a *Aggregator) RequestReconcile(t model.EntityType) {
	select {
	case a.kick <- t:
	default:
	}
}

// Requests delivers out-of-band reconcile requests.
func (a *Aggregator) Requests() <-chan model.EntityType { return a.kick }

func (a *Aggregator) publish() {
	snap := a.Snapshot()
	for _, pc := range snap.Counts {
		metrics.PendingItems.WithLabelValues(pc.Entity.String()).Set(float64(pc.Count))
	}
	if a.pub != nil {
		a.pub.Publish(snap)
	}
}
