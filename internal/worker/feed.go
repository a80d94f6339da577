package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jmehdipour/marketplace-admin/internal/kafka"
	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"go.uber.org/zap"
)

// Source is the change feed: the Kafka consumer in production.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Normalizer decodes a raw payload; ok=false means discard.
type Normalizer interface {
	Normalize(value []byte, topic string) (model.NormalizedEvent, bool)
}

// EventSink consumes normalized events (the pending aggregator).
type EventSink interface {
	OnEvent(ctx context.Context, ev model.NormalizedEvent)
}

// FeedListener:
// - fetches change events from Kafka,
// - normalizes them,
// - fans out to processors sharded by entity id so events for one row stay ordered,
// - commits after the sink has seen the event (at-least-once).
type FeedListener struct {
	Source     Source
	Normalizer Normalizer
	Sink       EventSink
	Workers    int
	Log        *zap.Logger
}

func NewFeedListener(src Source, norm Normalizer, sink EventSink, workers int, log *zap.Logger) *FeedListener {
	return &FeedListener{
		Source:     src,
		Normalizer: norm,
		Sink:       sink,
		Workers:    workers,
		Log:        logger.OrNop(log).Named("feed"),
	}
}

type item struct {
	msg kafka.Message
	ev  model.NormalizedEvent
}

// Run blocks until ctx is cancelled and all processors have drained.
func (w *FeedListener) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 4
	}
	log := logger.OrNop(w.Log)

	shards := make([]chan item, w.Workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan item, 64)
		wg.Add(1)
		go func(in <-chan item) {
			defer wg.Done()
			for it := range in {
				w.Sink.OnEvent(ctx, it.ev)
				w.commit(ctx, it.msg)
			}
		}(shards[i])
	}

	defer func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
		log.Info("feed listener stopped")
	}()

	log.Info("feed listener started", zap.Int("workers", w.Workers))
	for {
		m, err := w.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		ev, ok := w.Normalizer.Normalize(m.Value, m.Topic)
		if !ok {
			// poison or irrelevant: commit and skip
			w.commit(ctx, m)
			continue
		}

		ch := shards[shardOf(ev, len(shards))]
		select {
		case ch <- item{msg: m, ev: ev}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *FeedListener) commit(ctx context.Context, m kafka.Message) {
	if err := w.Source.Commit(ctx, m); err != nil && ctx.Err() == nil {
		logger.OrNop(w.Log).Warn("kafka commit failed",
			zap.String("topic", m.Topic), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

func shardOf(ev model.NormalizedEvent, n int) int {
	h := xxhash.New()
	_, _ = h.WriteString(ev.Type.String())
	_, _ = h.WriteString(ev.EntityID())
	return int(h.Sum64() % uint64(n))
}
