// Package notify delivers per-partner notification events. A publisher
// addresses one partner at a time; subscribers receive only the events
// addressed to the partner they subscribed for.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSubscribeUnsupported is returned by drivers that can only publish.
var ErrSubscribeUnsupported = errors.New("notification bus does not support subscriptions")

type Meta struct {
	// Unique event ID
	ID string `json:"id"`
	// Event name, e.g. task_chat/new_message
	Type string `json:"type"`
	// Timestamp when the event was emitted
	Time time.Time `json:"time"`
}

type Event struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// NewEvent stamps a fresh envelope around data.
func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode event data: %w", err)
	}
	return Event{
		Meta: Meta{
			ID:   uuid.NewString(),
			Type: eventType,
			Time: time.Now().UTC(),
		},
		Data: raw,
	}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

type Publisher interface {
	Publish(ctx context.Context, partnerID uint64, evt Event) error
	Close() error
}

type Subscriber interface {
	// Subscribe streams events addressed to partnerID until ctx is done or
	// the returned cancel func is called. The channel is closed afterwards.
	Subscribe(ctx context.Context, partnerID uint64) (<-chan Event, func(), error)
}

type Bus interface {
	Publisher
	Subscriber
}

// subscriberBuffer bounds how many undelivered events a slow subscriber may hold.
const subscriberBuffer = 32
