package rooms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dabbawala/ordersync/internal/connection"
	"github.com/dabbawala/ordersync/internal/model"
)

// fakeConn implements the conn interface for tests.
type fakeConn struct {
	mu        sync.Mutex
	connected bool
	emitted   []emittedEvent
	lifecycle chan connection.LifecycleEvent
}

type emittedEvent struct {
	event   string
	payload any
}

func newFakeConn(connected bool) *fakeConn {
	return &fakeConn{
		connected: connected,
		lifecycle: make(chan connection.LifecycleEvent, 16),
	}
}

func (f *fakeConn) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emittedEvent{event, payload})
	return nil
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) SubscribeLifecycle() <-chan connection.LifecycleEvent {
	return f.lifecycle
}

func (f *fakeConn) joins() []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emittedEvent, len(f.emitted))
	copy(out, f.emitted)
	return out
}

func TestJoinRooms(t *testing.T) {
	fc := newFakeConn(true)
	c := NewController(fc, nil)

	c.JoinRooms("agent-7", model.RoleDelivery)

	joins := fc.joins()
	if len(joins) != 1 {
		t.Fatalf("emitted %d events, want 1", len(joins))
	}
	if joins[0].event != EventJoin {
		t.Errorf("event = %q, want %q", joins[0].event, EventJoin)
	}
	p, ok := joins[0].payload.(JoinPayload)
	if !ok {
		t.Fatalf("payload type = %T, want JoinPayload", joins[0].payload)
	}
	if p.UserID != "agent-7" || p.Role != model.RoleDelivery {
		t.Errorf("payload = %+v", p)
	}
	if p.Nonce == "" {
		t.Error("expected non-empty nonce")
	}
}

func TestJoinRoomsNoOps(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		userID    string
		role      model.Role
	}{
		{"disconnected", false, "agent-7", model.RoleDelivery},
		{"missing user", true, "", model.RoleDelivery},
		{"missing role", true, "agent-7", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := newFakeConn(tt.connected)
			c := NewController(fc, nil)

			c.JoinRooms(tt.userID, tt.role) // must not panic or emit

			if n := len(fc.joins()); n != 0 {
				t.Errorf("emitted %d events, want 0", n)
			}
		})
	}
}

func TestRejoinAfterReconnect(t *testing.T) {
	fc := newFakeConn(true)
	c := NewController(fc, nil)
	c.Bind("agent-7", model.RoleDelivery)

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(ctx)

	// Two reconnect cycles; only connected events should trigger joins.
	fc.lifecycle <- connection.LifecycleEvent{Kind: connection.LifecycleConnected}
	fc.lifecycle <- connection.LifecycleEvent{Kind: connection.LifecycleDisconnected}
	fc.lifecycle <- connection.LifecycleEvent{Kind: connection.LifecycleConnectError}
	fc.lifecycle <- connection.LifecycleEvent{Kind: connection.LifecycleConnected}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(fc.joins()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	joins := fc.joins()
	if len(joins) != 2 {
		t.Fatalf("joins = %d, want 2", len(joins))
	}
	for _, j := range joins {
		if j.event != EventJoin {
			t.Errorf("event = %q, want %q", j.event, EventJoin)
		}
	}
}

func TestNoRejoinWithoutIdentity(t *testing.T) {
	fc := newFakeConn(true)
	c := NewController(fc, nil)

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(ctx)

	fc.lifecycle <- connection.LifecycleEvent{Kind: connection.LifecycleConnected}

	time.Sleep(100 * time.Millisecond)
	if n := len(fc.joins()); n != 0 {
		t.Errorf("emitted %d events without bound identity, want 0", n)
	}
}

func TestUnbindStopsRejoin(t *testing.T) {
	fc := newFakeConn(true)
	c := NewController(fc, nil)
	c.Bind("agent-7", model.RoleDelivery)
	c.Unbind()

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(ctx)

	fc.lifecycle <- connection.LifecycleEvent{Kind: connection.LifecycleConnected}

	time.Sleep(100 * time.Millisecond)
	if n := len(fc.joins()); n != 0 {
		t.Errorf("emitted %d events after Unbind, want 0", n)
	}
}
