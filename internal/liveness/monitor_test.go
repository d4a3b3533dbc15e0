package liveness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dabbawala/ordersync/internal/model"
)

type fakeConn struct {
	mu        sync.Mutex
	connected bool
	connects  int
	dialErr   error
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) Connect(ctx context.Context, creds model.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.dialErr != nil {
		return f.dialErr
	}
	f.connected = true
	return nil
}

func (f *fakeConn) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type fakeJoiner struct {
	mu    sync.Mutex
	joins int
}

func (f *fakeJoiner) Rejoin() {
	f.mu.Lock()
	f.joins++
	f.mu.Unlock()
}

func (f *fakeJoiner) joinCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joins
}

type fakeCreds struct {
	mu    sync.Mutex
	creds model.Credentials
	ok    bool
}

func (f *fakeCreds) Snapshot() (model.Credentials, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds, f.ok
}

func startMonitor(t *testing.T, conn *fakeConn, joiner *fakeJoiner, creds *fakeCreds) *Monitor {
	t.Helper()
	m := New(Config{Interval: 20 * time.Millisecond}, conn, joiner, creds, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Stop(ctx)
	})
	return m
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestReconnectsWhenDown(t *testing.T) {
	conn := &fakeConn{}
	joiner := &fakeJoiner{}
	creds := &fakeCreds{creds: model.Credentials{UserID: "u1", Role: model.RoleDelivery}, ok: true}

	startMonitor(t, conn, joiner, creds)

	waitFor(t, func() bool { return conn.connectCount() >= 1 }, "monitor never reconnected")
	waitFor(t, func() bool { return joiner.joinCount() >= 1 }, "monitor never re-joined")
}

func TestRejoinsWhileConnected(t *testing.T) {
	conn := &fakeConn{connected: true}
	joiner := &fakeJoiner{}
	creds := &fakeCreds{creds: model.Credentials{UserID: "u1"}, ok: true}

	startMonitor(t, conn, joiner, creds)

	// Healthy connection: no redial, but membership is still re-asserted.
	waitFor(t, func() bool { return joiner.joinCount() >= 2 }, "no periodic re-join")
	if n := conn.connectCount(); n != 0 {
		t.Errorf("connects = %d on a healthy connection, want 0", n)
	}
}

func TestNoopWithoutCredentials(t *testing.T) {
	conn := &fakeConn{}
	joiner := &fakeJoiner{}
	creds := &fakeCreds{ok: false}

	startMonitor(t, conn, joiner, creds)

	time.Sleep(100 * time.Millisecond)
	if conn.connectCount() != 0 || joiner.joinCount() != 0 {
		t.Errorf("monitor acted while logged out: connects=%d joins=%d",
			conn.connectCount(), joiner.joinCount())
	}
}

func TestSkipsJoinWhenReconnectFails(t *testing.T) {
	conn := &fakeConn{dialErr: errors.New("refused")}
	joiner := &fakeJoiner{}
	creds := &fakeCreds{creds: model.Credentials{UserID: "u1"}, ok: true}

	startMonitor(t, conn, joiner, creds)

	waitFor(t, func() bool { return conn.connectCount() >= 2 }, "monitor gave up retrying")
	if n := joiner.joinCount(); n != 0 {
		t.Errorf("joins = %d while never connected, want 0", n)
	}
}

func TestStopHaltsChecks(t *testing.T) {
	conn := &fakeConn{connected: true}
	joiner := &fakeJoiner{}
	creds := &fakeCreds{creds: model.Credentials{UserID: "u1"}, ok: true}

	m := New(Config{Interval: 10 * time.Millisecond}, conn, joiner, creds, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return joiner.joinCount() >= 1 }, "monitor never ran")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	before := joiner.joinCount()
	time.Sleep(60 * time.Millisecond)
	if after := joiner.joinCount(); after != before {
		t.Errorf("checks continued after Stop: %d -> %d", before, after)
	}
}
