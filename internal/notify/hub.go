// Package notify exposes pending counts and workflow results to the
// presentation layer: an in-process subscriber hub, a Redis fan-out for other
// instances, and the Port that ties them to the workflow engine.
package notify

import (
	"sync"

	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/jmehdipour/marketplace-admin/internal/pending"
)

// Hub fans count snapshots out to in-process subscribers. A slow subscriber
// only ever misses intermediate snapshots; it always gets the latest.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan model.CountsSnapshot
	next   uint64
	latest *model.CountsSnapshot
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan model.CountsSnapshot)}
}

var _ pending.Publisher = (*Hub)(nil)

func (h *Hub) Publish(s model.CountsSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = &s
	for _, ch := range h.subs {
		offer(ch, s)
	}
}

// offer replaces a buffered stale snapshot instead of blocking.
func offer(ch chan model.CountsSnapshot, s model.CountsSnapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

// Subscribe returns a channel that receives the latest snapshot (if any)
// immediately and every later one. cancel closes the channel.
func (h *Hub) Subscribe() (<-chan model.CountsSnapshot, func()) {
	ch := make(chan model.CountsSnapshot, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	if h.latest != nil {
		ch <- *h.latest
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Multi publishes to several publishers in order.
type Multi []pending.Publisher

func (m Multi) Publish(s model.CountsSnapshot) {
	for _, p := range m {
		if p != nil {
			p.Publish(s)
		}
	}
}
