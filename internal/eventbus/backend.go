package eventbus

import (
	"context"
	"errors"
	"sync"
)

// Dispatcher executes one (event, handler) pair; the bus provides it to the
// backend at Start.
type Dispatcher func(ctx context.Context, ev Event, handlerName string)

// Backend is the pluggable delivery mechanism behind the bus: inline
// synchronous execution, an in-process worker pool, or a broker.
type Backend interface {
	Start(d Dispatcher) error
	Deliver(ctx context.Context, ev Event, handlerName string) error
	Close(ctx context.Context) error
}

// InlineBackend executes deliveries synchronously on the caller goroutine.
// Used in tests and single-process deployments without a broker.
type InlineBackend struct {
	d Dispatcher
}

func NewInlineBackend() *InlineBackend { return &InlineBackend{} }

func (b *InlineBackend) Start(d Dispatcher) error { b.d = d; return nil }

func (b *InlineBackend) Deliver(ctx context.Context, ev Event, handlerName string) error {
	b.d(ctx, ev, handlerName)
	return nil
}

func (b *InlineBackend) Close(context.Context) error { return nil }

var ErrBackendClosed = errors.New("event backend closed")

type delivery struct {
	ev      Event
	handler string
}

// WorkerBackend delivers through a bounded in-process queue drained by a
// fixed pool of goroutines. Deliveries run detached from the emitter's
// request context.
type WorkerBackend struct {
	workers int
	jobs    chan delivery
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewWorkerBackend(workers, buffer int) *WorkerBackend {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 64
	}
	return &WorkerBackend{
		workers: workers,
		jobs:    make(chan delivery, buffer),
	}
}

func (b *WorkerBackend) Start(d Dispatcher) error {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for job := range b.jobs {
				d(context.Background(), job.ev, job.handler)
			}
		}()
	}
	return nil
}

// Deliver holds the read lock across the channel send so Close cannot close
// the queue underneath a blocked sender. Workers keep draining until Close
// closes the channel, so the send always completes or the context ends it.
func (b *WorkerBackend) Deliver(ctx context.Context, ev Event, handlerName string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBackendClosed
	}

	select {
	case b.jobs <- delivery{ev: ev, handler: handlerName}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting deliveries and waits for queued work to drain.
func (b *WorkerBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.jobs)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
