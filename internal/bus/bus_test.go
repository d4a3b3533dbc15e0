package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dabbawala/ordersync/internal/connection"
)

// fakeConn implements the conn interface for tests.
type fakeConn struct {
	mu      sync.Mutex
	err     error
	emitted []string
	frames  chan connection.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan connection.Frame, 16)}
}

func (f *fakeConn) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.emitted = append(f.emitted, event)
	return nil
}

func (f *fakeConn) Frames() <-chan connection.Frame {
	return f.frames
}

func (f *fakeConn) push(event, data string) {
	f.frames <- connection.Frame{Event: event, Data: json.RawMessage(data)}
}

func startBus(t *testing.T, fc *fakeConn) *Bus {
	t.Helper()
	b := New(fc, nil)
	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { b.Stop(ctx) })
	return b
}

func waitForCount(t *testing.T, mu *sync.Mutex, n *int, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := *n
		mu.Unlock()
		if got >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("handler invocations never reached %d", want)
}

func TestDispatch(t *testing.T) {
	fc := newFakeConn()
	b := startBus(t, fc)

	var mu sync.Mutex
	var calls int
	var lastPayload string

	b.On("assigned_order_update", func(p json.RawMessage) {
		mu.Lock()
		calls++
		lastPayload = string(p)
		mu.Unlock()
	})

	fc.push("assigned_order_update", `{"_id":"x","status":"Preparing"}`)
	waitForCount(t, &mu, &calls, 1)

	mu.Lock()
	defer mu.Unlock()
	if lastPayload != `{"_id":"x","status":"Preparing"}` {
		t.Errorf("payload = %s", lastPayload)
	}
}

func TestUnsubscribeHandle(t *testing.T) {
	fc := newFakeConn()
	b := startBus(t, fc)

	var mu sync.Mutex
	var aCalls, bCalls int

	offA := b.On("ev", func(json.RawMessage) { mu.Lock(); aCalls++; mu.Unlock() })
	b.On("ev", func(json.RawMessage) { mu.Lock(); bCalls++; mu.Unlock() })

	fc.push("ev", `{}`)
	waitForCount(t, &mu, &bCalls, 1)

	offA()
	offA() // double unsubscribe is harmless

	fc.push("ev", `{}`)
	waitForCount(t, &mu, &bCalls, 2)

	mu.Lock()
	defer mu.Unlock()
	if aCalls != 1 {
		t.Errorf("unsubscribed handler called %d times, want 1", aCalls)
	}
}

func TestOffRemovesAllHandlers(t *testing.T) {
	fc := newFakeConn()
	b := startBus(t, fc)

	var mu sync.Mutex
	var calls, otherCalls int

	b.On("ev", func(json.RawMessage) { mu.Lock(); calls++; mu.Unlock() })
	b.On("ev", func(json.RawMessage) { mu.Lock(); calls++; mu.Unlock() })
	b.On("other", func(json.RawMessage) { mu.Lock(); otherCalls++; mu.Unlock() })

	b.Off("ev")

	fc.push("ev", `{}`)
	fc.push("other", `{}`)
	waitForCount(t, &mu, &otherCalls, 1)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("bulk-removed handlers called %d times, want 0", calls)
	}
}

func TestEmitDroppedWhenDisconnected(t *testing.T) {
	fc := newFakeConn()
	fc.err = errors.New("not connected")
	b := New(fc, nil)

	// Must not panic or block.
	b.Emit("order_status_update", map[string]string{"orderId": "x"})

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.emitted) != 0 {
		t.Errorf("emitted %d events while disconnected, want 0", len(fc.emitted))
	}
}

func TestEmitPassthrough(t *testing.T) {
	fc := newFakeConn()
	b := New(fc, nil)

	b.Emit("order_status_update", map[string]string{"orderId": "x"})

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.emitted) != 1 || fc.emitted[0] != "order_status_update" {
		t.Errorf("emitted = %v", fc.emitted)
	}
}

func TestUnhandledEventsCounted(t *testing.T) {
	fc := newFakeConn()
	b := startBus(t, fc)

	fc.push("mystery_event", `{}`)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.Stats().Unhandled == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("Unhandled = %d, want 1", b.Stats().Unhandled)
}
