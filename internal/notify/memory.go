package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type subscription struct {
	ch   chan Event
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub is the in-process bus. Delivery never blocks the publisher; events for
// a subscriber whose buffer is full are dropped.
type Hub struct {
	mu    sync.RWMutex
	subs  map[uint64]map[*subscription]struct{}
	log   *zap.Logger
	close sync.Once
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[uint64]map[*subscription]struct{}),
		log:  log,
	}
}

func (h *Hub) Publish(_ context.Context, partnerID uint64, evt Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[partnerID] {
		select {
		case sub.ch <- evt:
		default:
			h.log.Sugar().Warnw("dropping event for slow subscriber",
				"partner_id", partnerID, "type", evt.Meta.Type)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, partnerID uint64) (<-chan Event, func(), error) {
	sub := &subscription{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[partnerID] == nil {
		h.subs[partnerID] = make(map[*subscription]struct{})
	}
	h.subs[partnerID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.unregister(partnerID, sub)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return sub.ch, cancel, nil
}

func (h *Hub) unregister(partnerID uint64, sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[partnerID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, partnerID)
		}
	}
	sub.close()
}

// Subscribers returns the number of live subscriptions for the partner.
func (h *Hub) Subscribers(partnerID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[partnerID])
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.close.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for pid, subs := range h.subs {
			for sub := range subs {
				sub.close()
			}
			delete(h.subs, pid)
		}
	})
	return nil
}
