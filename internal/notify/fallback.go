package notify

import (
	"context"

	"go.uber.org/zap"
)

// FallbackBus drops every event. It backs deployments without a bus.
type FallbackBus struct {
	log *zap.Logger
}

func NewFallback(log *zap.Logger) Bus {
	return &FallbackBus{log: log}
}

func (b *FallbackBus) Publish(_ context.Context, partnerID uint64, evt Event) error {
	b.log.Sugar().Warnw("notification bus disabled: skipped publish",
		"partner_id", partnerID, "type", evt.Meta.Type)
	return nil
}

func (b *FallbackBus) Subscribe(context.Context, uint64) (<-chan Event, func(), error) {
	return nil, nil, ErrSubscribeUnsupported
}

func (b *FallbackBus) Close() error {
	return nil
}
