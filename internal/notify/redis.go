package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jmehdipour/marketplace-admin/internal/logger"
	"github.com/jmehdipour/marketplace-admin/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroadcaster mirrors snapshots to Redis: the latest one under key and
// each one on channel. Publish never blocks; bursts coalesce to the newest
// snapshot.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
	key     string
	log     *zap.Logger

	mu      sync.Mutex
	pending *model.CountsSnapshot
	wake    chan struct{}
}

func NewRedisBroadcaster(rdb *redis.Client, channel, key string, log *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		rdb:     rdb,
		channel: channel,
		key:     key,
		log:     logger.OrNop(log).Named("redis-broadcaster"),
		wake:    make(chan struct{}, 1),
	}
}

func (b *RedisBroadcaster) Publish(s model.CountsSnapshot) {
	b.mu.Lock()
	b.pending = &s
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Run ships snapshots until ctx is cancelled.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.wake:
		}

		b.mu.Lock()
		s := b.pending
		b.pending = nil
		b.mu.Unlock()
		if s == nil {
			continue
		}
		if err := b.ship(ctx, *s); err != nil && ctx.Err() == nil {
			b.log.Warn("publish counts failed", zap.Error(err))
		}
	}
}

func (b *RedisBroadcaster) ship(ctx context.Context, s model.CountsSnapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := b.rdb.Pipeline()
	pipe.Set(ctx, b.key, payload, 0)
	pipe.Publish(ctx, b.channel, payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Latest reads the last snapshot stored under key; ok=false when none.
func Latest(ctx context.Context, rdb *redis.Client, key string) (model.CountsSnapshot, bool, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.CountsSnapshot{}, false, nil
	}
	if err != nil {
		return model.CountsSnapshot{}, false, err
	}
	var s model.CountsSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.CountsSnapshot{}, false, err
	}
	return s, true, nil
}

// Watch calls fn for every snapshot published on channel until ctx is
// cancelled. Undecodable messages are skipped.
func Watch(ctx context.Context, rdb *redis.Client, channel string, log *zap.Logger, fn func(model.CountsSnapshot)) error {
	log = logger.OrNop(log)
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var s model.CountsSnapshot
			if err := json.Unmarshal([]byte(m.Payload), &s); err != nil {
				log.Debug("skipping undecodable counts message", zap.Error(err))
				continue
			}
			fn(s)
		}
	}
}
