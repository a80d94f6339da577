package notify

import (
	"context"
	"fmt"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/service/workflow"
)

// Counts is the aggregator's read side.
type Counts interface {
	Count(t model.EntityType) model.PendingCount
	Snapshot() model.CountsSnapshot
}

// Workflow is the approval engine.
type Workflow interface {
	Approve(ctx context.Context, req workflow.Request) (model.Entity, error)
	Reject(ctx context.Context, req workflow.Request) (model.Entity, error)
	Suspend(ctx context.Context, req workflow.Request) (model.Entity, error)
	Activate(ctx context.Context, req workflow.Request) (model.Entity, error)
}

// Port is what the presentation layer talks to.
type Port struct {
	counts Counts
	hub    *Hub
	flow   Workflow
}

func NewPort(counts Counts, hub *Hub, flow Workflow) *Port {
	return &Port{counts: counts, hub: hub, flow: flow}
}

func (p *Port) GetPendingCount(t model.EntityType) (model.PendingCount, error) {
	if !t.Valid() {
		return model.PendingCount{}, fmt.Errorf("%w: unknown entity type %q", model.ErrValidation, t)
	}
	return p.counts.Count(t), nil
}

func (p *Port) Snapshot() model.CountsSnapshot { return p.counts.Snapshot() }

// SubscribeToCounts calls cb with the current snapshot and then with every
// change, from a dedicated goroutine, until the returned func is called or
// ctx ends.
func (p *Port) SubscribeToCounts(ctx context.Context, cb func(model.CountsSnapshot)) (unsubscribe func()) {
	ch, cancel := p.hub.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		cb(p.counts.Snapshot())
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case s, ok := <-ch:
				if !ok {
					return
				}
				cb(s)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (p *Port) Approve(ctx context.Context, req workflow.Request) (model.Entity, error) {
	return p.flow.Approve(ctx, req)
}

func (p *Port) Reject(ctx context.Context, req workflow.Request) (model.Entity, error) {
	return p.flow.Reject(ctx, req)
}

func (p *Port) Suspend(ctx context.Context, req workflow.Request) (model.Entity, error) {
	return p.flow.Suspend(ctx, req)
}

func (p *Port) Activate(ctx context.Context, req workflow.Request) (model.Entity, error) {
	return p.flow.Activate(ctx, req)
}
