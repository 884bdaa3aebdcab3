package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus fans events out through redis PUBLISH/SUBSCRIBE, one channel per partner.
type RedisBus struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewRedis(rdb *redis.Client, prefix string, log *zap.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, prefix: prefix, log: log, done: make(chan struct{})}
}

// Channel returns the redis channel that carries a partner's events.
func (b *RedisBus) Channel(partnerID uint64) string {
	return fmt.Sprintf("%s:partner:%d", b.prefix, partnerID)
}

func (b *RedisBus) Publish(ctx context.Context, partnerID uint64, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.Channel(partnerID), body).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, partnerID uint64) (<-chan Event, func(), error) {
	ps := b.rdb.Subscribe(ctx, b.Channel(partnerID))
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe to %s: %w", b.Channel(partnerID), err)
	}

	out := make(chan Event, subscriberBuffer)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.log.Sugar().Warnw("discarding malformed event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				case <-b.done:
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// Close ends every open subscription. The redis client itself is owned by
// the container.
func (b *RedisBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
