package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openbounty/commerce-api/internal/eventbus"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "commerce.events"
	routingKey   = "commerce.events.dispatch"
	queueName    = "commerce.events.dispatch.q"
)

// eventEnvelope is the wire form of one (event, handler) delivery.
type eventEnvelope struct {
	EventID   string           `json:"eventId"`
	EventName string           `json:"eventName"`
	Handler   string           `json:"handler"`
	Payload   eventbus.Payload `json:"payload"`
	CreatedAt time.Time        `json:"createdAt"`
}

// RabbitBackend delivers bus events through RabbitMQ: Deliver publishes a
// persistent envelope per (event, handler) pair and the consumer side feeds
// them back into the bus dispatcher. Redelivery on crash gives the bus its
// at-least-once guarantee across process restarts.
type RabbitBackend struct {
	ch     *amqp.Channel
	log    *slog.Logger
	router *Router
}

// NewRabbitBackend sets up the exchange, queue, and binding once at startup.
func NewRabbitBackend(ch *amqp.Channel, log *slog.Logger) (*RabbitBackend, error) {
	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitBackend{ch: ch, log: log}, nil
}

func (b *RabbitBackend) Start(d eventbus.Dispatcher) error {
	b.router = NewRouter(b.ch, b.log, WithPrefetch(50))
	b.router.Register(queueName, JSONHandler[eventEnvelope]{
		HandleFunc: func(ctx context.Context, env eventEnvelope) error {
			d(ctx, eventbus.Event{
				ID:        env.EventID,
				Name:      env.EventName,
				Payload:   env.Payload,
				CreatedAt: env.CreatedAt,
			}, env.Handler)
			return nil
		},
	})
	return b.router.Start()
}

func (b *RabbitBackend) Deliver(ctx context.Context, ev eventbus.Event, handlerName string) error {
	body, err := json.Marshal(eventEnvelope{
		EventID:   ev.ID,
		EventName: ev.Name,
		Handler:   handlerName,
		Payload:   ev.Payload,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}
	if err := b.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close stops consuming; the AMQP channel itself is owned and closed by
// bootstrap.
func (b *RabbitBackend) Close(context.Context) error {
	if b.router == nil {
		return nil
	}
	return b.router.Stop()
}

var _ eventbus.Backend = (*RabbitBackend)(nil)
