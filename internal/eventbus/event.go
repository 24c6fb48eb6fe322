package eventbus

import (
	"context"
	"time"
)

// Payload is the opaque key/value body of an event. Keep it minimal and
// fetch-the-rest-from-storage: listeners load aggregates by id.
type Payload map[string]any

func (p Payload) GetString(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Event is the persisted record of one emission. Processed is an audit flag,
// not a delivery guarantee: delivery stays at-least-once.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	Processed bool      `json:"processed"`
}

// EventLog durably records events before dispatch, for audit and replay.
type EventLog interface {
	Append(ctx context.Context, ev Event) error
	MarkProcessed(ctx context.Context, id string) error
}

// NopLog discards events. Useful in tests and tools that do not need audit.
type NopLog struct{}

func (NopLog) Append(context.Context, Event) error         { return nil }
func (NopLog) MarkProcessed(context.Context, string) error { return nil }

// Handler reacts to one event. Handle must be idempotent: the bus delivers
// at-least-once and a crash mid-dispatch can replay an event.
type Handler interface {
	Name() string
	Handle(ctx context.Context, p Payload) error
}

type funcHandler struct {
	name string
	fn   func(ctx context.Context, p Payload) error
}

func (h funcHandler) Name() string                                { return h.name }
func (h funcHandler) Handle(ctx context.Context, p Payload) error { return h.fn(ctx, p) }

// Listener adapts a named function into a Handler.
func Listener(name string, fn func(ctx context.Context, p Payload) error) Handler {
	return funcHandler{name: name, fn: fn}
}
