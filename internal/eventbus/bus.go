package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_events_emitted_total",
			Help: "Total number of events emitted, by event name",
		},
		[]string{"event"},
	)

	listenerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_listener_failures_total",
			Help: "Listener errors and panics, by event and handler",
		},
		[]string{"event", "handler"},
	)
)

// Bus is the process-wide publish/subscribe dispatcher. Construct exactly one
// in bootstrap and pass it to every component that emits or registers; there
// is no package-level instance.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Handler

	backend Backend
	log     EventLog
	logger  *slog.Logger
}

// New wires the bus to its delivery backend and starts the backend with the
// bus dispatch function.
func New(backend Backend, log EventLog, logger *slog.Logger) (*Bus, error) {
	b := &Bus{
		listeners: map[string][]Handler{},
		backend:   backend,
		log:       log,
		logger:    logger,
	}
	if err := backend.Start(b.Dispatch); err != nil {
		return nil, fmt.Errorf("start backend: %w", err)
	}
	return b, nil
}

// Register adds a handler for an event name. Synchronous dispatch preserves
// registration order. Not safe to call concurrently with Emit during
// startup races; register everything before serving traffic.
func (b *Bus) Register(eventName string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[eventName] = append(b.listeners[eventName], h)
}

// Emit records the event durably, then dispatches it to every registered
// handler: inline when async is false, through the backend otherwise.
// Emitting with zero listeners records the event and returns nil. Handler
// failures never surface here; they are logged and counted per handler.
func (b *Bus) Emit(ctx context.Context, name string, p Payload, async bool) error {
	ev := Event{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   p,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.log.Append(ctx, ev); err != nil {
		return fmt.Errorf("record event %s: %w", name, err)
	}
	eventsEmitted.WithLabelValues(name).Inc()

	b.mu.RLock()
	handlers := make([]Handler, len(b.listeners[name]))
	copy(handlers, b.listeners[name])
	b.mu.RUnlock()

	for _, h := range handlers {
		if async {
			if err := b.backend.Deliver(ctx, ev, h.Name()); err != nil {
				b.logger.Error("event delivery enqueue failed",
					"event", name, "handler", h.Name(), "err", err)
				listenerFailures.WithLabelValues(name, h.Name()).Inc()
			}
			continue
		}
		b.Dispatch(ctx, ev, h.Name())
	}
	return nil
}

// Dispatch runs one handler with panic and error isolation. Backends call
// this for out-of-band deliveries; Emit calls it for inline ones. One failing
// listener must not block the others for the same event.
func (b *Bus) Dispatch(ctx context.Context, ev Event, handlerName string) {
	h := b.lookup(ev.Name, handlerName)
	if h == nil {
		b.logger.Warn("no such handler for event", "event", ev.Name, "handler", handlerName)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			listenerFailures.WithLabelValues(ev.Name, handlerName).Inc()
			b.logger.Error("listener panicked",
				"event", ev.Name, "handler", handlerName, "panic", fmt.Sprint(r))
		}
	}()

	if err := h.Handle(ctx, ev.Payload); err != nil {
		listenerFailures.WithLabelValues(ev.Name, handlerName).Inc()
		b.logger.Error("listener failed",
			"event", ev.Name, "handler", handlerName, "event_id", ev.ID, "err", err)
		return
	}

	// Audit only; best effort.
	if err := b.log.MarkProcessed(ctx, ev.ID); err != nil {
		b.logger.Warn("mark processed failed", "event_id", ev.ID, "err", err)
	}
}

func (b *Bus) lookup(eventName, handlerName string) Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.listeners[eventName] {
		if h.Name() == handlerName {
			return h
		}
	}
	return nil
}

// Close drains in-flight asynchronous work. Call during shutdown, after the
// HTTP server has stopped accepting traffic.
func (b *Bus) Close(ctx context.Context) error {
	return b.backend.Close(ctx)
}
