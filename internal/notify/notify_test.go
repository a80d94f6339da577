package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/service/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func snap(products, apps int64) model.CountsSnapshot {
	return model.CountsSnapshot{Counts: []model.PendingCount{
		{Entity: model.EntitySellerApplication, Count: apps},
		{Entity: model.EntityProduct, Count: products},
	}}
}

func productCount(s model.CountsSnapshot) int64 {
	for _, c := range s.Counts {
		if c.Entity == model.EntityProduct {
			return c.Count
		}
	}
	return -1
}

func TestHubDeliversLatestToSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	for i := int64(1); i <= 5; i++ {
		h.Publish(snap(i, 0))
	}
	got := <-ch
	require.EqualValues(t, 5, productCount(got))
}

func TestHubSubscribeGetsCurrentAndCancelCloses(t *testing.T) {
	h := NewHub()
	h.Publish(snap(2, 1))

	ch, cancel := h.Subscribe()
	require.Equal(t, 1, h.Subscribers())
	require.EqualValues(t, 2, productCount(<-ch))

	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, h.Subscribers())

	h.Publish(snap(3, 1)) // no panic on closed subscriber
}

type recorder struct {
	mu    sync.Mutex
	snaps []model.CountsSnapshot
}

func (r *recorder) Publish(s model.CountsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func TestMultiPublishesToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, nil, b}.Publish(snap(1, 1))
	require.Len(t, a.snaps, 1)
	require.Len(t, b.snaps, 1)
}

func TestRedisBroadcasterStoresAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan model.CountsSnapshot, 4)
	watching := make(chan error, 1)
	go func() {
		watching <- Watch(ctx, rdb, "pending:counts", nil, func(s model.CountsSnapshot) { received <- s })
	}()
	require.Eventually(t, func() bool { return len(mr.PubSubChannels("pending:counts")) == 1 }, time.Second, 5*time.Millisecond)

	b := NewRedisBroadcaster(rdb, "pending:counts", "pending:counts:latest", nil)
	go func() { _ = b.Run(ctx) }()
	b.Publish(snap(4, 2))

	select {
	case s := <-received:
		require.EqualValues(t, 4, productCount(s))
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}

	latest, ok, err := Latest(ctx, rdb, "pending:counts:latest")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 4, productCount(latest))

	cancel()
	require.NoError(t, <-watching)
}

func TestLatestMissingKey(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, ok, err := Latest(context.Background(), rdb, "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

type staticCounts struct{ s model.CountsSnapshot }

func (c staticCounts) Count(t model.EntityType) model.PendingCount {
	for _, pc := range c.s.Counts {
		if pc.Entity == t {
			return pc
		}
	}
	return model.PendingCount{Entity: t}
}

func (c staticCounts) Snapshot() model.CountsSnapshot { return c.s }

type stubFlow struct{ err error }

func (f stubFlow) Approve(_ context.Context, r workflow.Request) (model.Entity, error) {
	return model.Entity{Type: r.Type, ID: r.ID, State: model.StateApproved}, f.err
}
func (f stubFlow) Reject(_ context.Context, r workflow.Request) (model.Entity, error) {
	return model.Entity{Type: r.Type, ID: r.ID, State: model.StateRejected}, f.err
}
func (f stubFlow) Suspend(_ context.Context, r workflow.Request) (model.Entity, error) {
	return model.Entity{Type: r.Type, ID: r.ID}, f.err
}
func (f stubFlow) Activate(_ context.Context, r workflow.Request) (model.Entity, error) {
	return model.Entity{Type: r.Type, ID: r.ID}, f.err
}

func TestPortCounts(t *testing.T) {
	p := NewPort(staticCounts{snap(7, 3)}, NewHub(), stubFlow{})

	pc, err := p.GetPendingCount(model.EntityProduct)
	require.NoError(t, err)
	require.EqualValues(t, 7, pc.Count)

	_, err = p.GetPendingCount("crop")
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestPortSubscribeToCounts(t *testing.T) {
	hub := NewHub()
	p := NewPort(staticCounts{snap(1, 0)}, hub, stubFlow{})

	var mu sync.Mutex
	var seen []int64
	unsubscribe := p.SubscribeToCounts(context.Background(), func(s model.CountsSnapshot) {
		mu.Lock()
		seen = append(seen, productCount(s))
		mu.Unlock()
	})

	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(seen) == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(snap(2, 0))
	require.Eventually(t, func() bool { mu.Lock(); defer mu.Unlock(); return len(seen) == 2 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	require.Zero(t, hub.Subscribers())
	mu.Lock()
	require.Equal(t, []int64{1, 2}, seen)
	mu.Unlock()
}

func TestPortDelegatesWorkflow(t *testing.T) {
	p := NewPort(staticCounts{}, NewHub(), stubFlow{err: model.ErrInvalidState})
	_, err := p.Approve(context.Background(), workflow.Request{Type: model.EntityProduct, ID: "p1"})
	require.True(t, errors.Is(err, model.ErrInvalidState))
}
