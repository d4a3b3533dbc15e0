// Package bus implements the Event Bus component.
//
// Feature code subscribes to named server-pushed events without touching the
// connection. On returns an unsubscribe handle so cleanup is structural
// rather than relying on callers keeping the identical handler reference.
// Handlers run sequentially on the single dispatch goroutine; ordering
// between events is whatever the transport delivered.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dabbawala/ordersync/internal/connection"
)

// Handler receives the raw payload of a named event.
type Handler func(payload json.RawMessage)

// conn is the slice of the Connection Manager the bus needs.
type conn interface {
	Emit(event string, payload any) error
	Frames() <-chan connection.Frame
}

// Stats contains dispatch counters.
type Stats struct {
	Dispatched int64
	Unhandled  int64
}

// Bus routes inbound frames to registered handlers and forwards
// client-originated events to the connection.
type Bus struct {
	conn   conn
	logger *slog.Logger

	mu     sync.Mutex
	nextID int64
	subs   map[string]map[int64]Handler

	statsMu    sync.Mutex
	dispatched int64
	unhandled  int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Event Bus.
func New(c conn, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		conn:   c,
		logger: logger.With("component", "bus"),
		subs:   make(map[string]map[int64]Handler),
	}
}

// On registers a handler for a named event and returns its unsubscribe
// function. Unsubscribing twice is harmless.
func (b *Bus) On(event string, h func(payload json.RawMessage)) (off func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	if b.subs[event] == nil {
		b.subs[event] = make(map[int64]Handler)
	}
	b.subs[event][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[event], id)
	}
}

// Off removes every handler for the event. Prefer the unsubscribe handle
// from On: this bulk form also removes other subscribers' handlers.
func (b *Bus) Off(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, event)
}

// Emit pushes a client-originated event to the server. When disconnected the
// event is dropped, not queued; callers needing delivery guarantees build
// their own retry on top.
func (b *Bus) Emit(event string, payload any) {
	if err := b.conn.Emit(event, payload); err != nil {
		b.logger.Debug("emit dropped", "event", event, "error", err)
	}
}

// Start launches the dispatch loop.
func (b *Bus) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-b.conn.Frames():
				if !ok {
					return
				}
				b.dispatch(frame)
			}
		}
	}()

	return nil
}

// Stop halts the dispatch loop.
func (b *Bus) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("bus stop timed out")
	}
	return nil
}

// Stats returns dispatch counters.
func (b *Bus) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return Stats{Dispatched: b.dispatched, Unhandled: b.unhandled}
}

// dispatch invokes every handler registered for the frame's event.
func (b *Bus) dispatch(frame connection.Frame) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[frame.Event]))
	for _, h := range b.subs[frame.Event] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	if len(handlers) == 0 {
		b.logger.Debug("no handler for event", "event", frame.Event)
		b.statsMu.Lock()
		b.unhandled++
		b.statsMu.Unlock()
		return
	}

	for _, h := range handlers {
		h(frame.Data)
	}

	b.statsMu.Lock()
	b.dispatched++
	b.statsMu.Unlock()
}
