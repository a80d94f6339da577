package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/cdc"
	"github.com/jmehdipour/marketplace-admin/internal/kafka"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	failFirst bool
	committed []int64
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if s.failFirst {
		s.failFirst = false
		s.mu.Unlock()
		return kafka.Message{}, errors.New("broker unavailable")
	}
	if len(s.msgs) > 0 {
		m := s.msgs[0]
		s.msgs = s.msgs[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *fakeSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, m.Offset)
	return nil
}

func (s *fakeSource) commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.NormalizedEvent
}

func (r *recordingSink) OnEvent(_ context.Context, ev model.NormalizedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) snapshot() []model.NormalizedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.NormalizedEvent(nil), r.events...)
}

func productUpdate(offset int64, id, reason string) kafka.Message {
	return kafka.Message{
		Topic:  "marketplace.marketplace.products",
		Offset: offset,
		Value: []byte(fmt.Sprintf(
			`{"op":"u","source":{"table":"products"},"before":{"id":%q,"approved_at":null,"rejection_reason":null},"after":{"id":%q,"approved_at":null,"rejection_reason":%q}}`,
			id, id, reason)),
	}
}

func TestFeedListenerDeliversAndCommits(t *testing.T) {
	src := &fakeSource{failFirst: true}
	for i := 0; i < 20; i++ {
		src.msgs = append(src.msgs, productUpdate(int64(i), fmt.Sprintf("P%d", i%3), fmt.Sprintf("r%d", i)))
	}
	src.msgs = append(src.msgs, kafka.Message{Offset: 20, Value: []byte(`{"op":`)}) // poison

	sink := &recordingSink{}
	fl := NewFeedListener(src, cdc.NewNormalizer("us", nil), sink, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fl.Run(ctx) }()

	require.Eventually(t, func() bool { return src.commits() == 21 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	events := sink.snapshot()
	require.Len(t, events, 20)

	// per-id order is preserved across shards
	last := map[string]int{}
	for _, ev := range events {
		var n int
		_, err := fmt.Sscanf(ev.After.RejectionReason.Value, "r%d", &n)
		require.NoError(t, err)
		if prev, ok := last[ev.EntityID()]; ok {
			require.Greater(t, n, prev)
		}
		last[ev.EntityID()] = n
	}
}

func TestShardOfIsStable(t *testing.T) {
	ev := model.NormalizedEvent{Type: model.EntityProduct, After: &model.PartialRow{ID: "P1"}}
	first := shardOf(ev, 8)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, shardOf(ev, 8))
	}
	require.Less(t, first, 8)
}
