package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPBus publishes to a topic exchange with routing key partner.<id>.
// Subscribers get an exclusive auto-delete queue bound to their key.
type AMQPBus struct {
	conn     *amqp.Connection
	exchange string
	log      *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

func NewAMQP(conn *amqp.Connection, exchange string, log *zap.Logger) (*AMQPBus, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPBus{conn: conn, exchange: exchange, log: log, done: make(chan struct{})}, nil
}

// RoutingKey returns the topic key for a partner.
func RoutingKey(partnerID uint64) string {
	return fmt.Sprintf("partner.%d", partnerID)
}

func (b *AMQPBus) Publish(ctx context.Context, partnerID uint64, evt Event) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	key := RoutingKey(partnerID)
	err = ch.PublishWithContext(ctx, b.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   evt.Meta.ID,
		Type:        evt.Meta.Type,
		Timestamp:   time.Now(),
		Body:        body,
	})
	if err == nil {
		b.log.Sugar().Debugw("published", "key", key, "exchange", b.exchange)
	}
	return err
}

func (b *AMQPBus) Subscribe(ctx context.Context, partnerID uint64) (<-chan Event, func(), error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, err
	}
	if err := ch.QueueBind(q.Name, RoutingKey(partnerID), b.exchange, false, nil); err != nil {
		ch.Close()
		return nil, nil, err
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, nil, err
	}

	out := make(chan Event, subscriberBuffer)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		// closing the channel deletes the exclusive queue
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal(d.Body, &evt); err != nil {
					b.log.Sugar().Warnw("discarding malformed event", "key", d.RoutingKey, "error", err)
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

// Close ends every open subscription. The connection itself is owned by the
// container.
func (b *AMQPBus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
