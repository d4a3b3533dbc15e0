// Package session ties the sync stack's lifetime to the authentication
// lifecycle. Login brings the whole stack up in order; logout tears it
// down unconditionally. Nothing else in the module starts or stops the
// connection.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dabbawala/ordersync/internal/connection"
	"github.com/dabbawala/ordersync/internal/model"
)

// conn is the slice of the Connection Manager the bridge drives.
type conn interface {
	Connect(ctx context.Context, creds model.Credentials) error
	Disconnect() error
	SubscribeLifecycle() <-chan connection.LifecycleEvent
}

// membership is the slice of the Room Membership Controller the bridge drives.
type membership interface {
	Bind(userID string, role model.Role)
	Unbind()
	Rejoin()
}

// reconciler is the slice of the Order State Reconciler the bridge drives.
type reconciler interface {
	SetIdentity(userID string)
	Clear()
	Resync(ctx context.Context) error
}

// Bridge reacts to credential transitions and drives the stack accordingly.
type Bridge struct {
	store  CredentialStore
	conn   conn
	rooms  membership
	rec    reconciler
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Guards the cancel func of the in-flight login, so a logout can abort
	// a slow bounded-retry dial instead of queueing behind it.
	loginMu     sync.Mutex
	loginCancel context.CancelFunc
}

// NewBridge creates a new Session Bridge.
func NewBridge(store CredentialStore, c conn, rooms membership, rec reconciler, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		store:  store,
		conn:   c,
		rooms:  rooms,
		rec:    rec,
		logger: logger.With("component", "session"),
	}
}

// Start begins watching credential changes and connection lifecycle. If a
// session already exists in the store, it is brought up immediately.
func (b *Bridge) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	changes := b.store.Subscribe()
	lifecycle := b.conn.SubscribeLifecycle()

	if creds, ok := b.store.Snapshot(); ok {
		b.startLogin(ctx, creds)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ch := <-changes:
				if ch.LoggedIn {
					b.startLogin(ctx, ch.Creds)
				} else {
					b.cancelLogin()
					b.logout()
				}
			case ev := <-lifecycle:
				if ev.Kind != connection.LifecycleConnected {
					continue
				}
				// Reconnected after an outage: membership is re-declared by
				// the rooms controller; the lists need a full correction.
				if err := b.rec.Resync(ctx); err != nil {
					b.logger.Warn("resync after reconnect failed", "error", err)
				}
			}
		}
	}()

	b.logger.Info("session bridge started")
	return nil
}

// Stop halts the watcher. It does not tear the session down; callers that
// want that log out first.
func (b *Bridge) Stop(ctx context.Context) error {
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
		b.logger.Info("session bridge stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startLogin runs login on its own goroutine under a fresh cancelable
// context. The change loop stays responsive while the dial sequence (which
// can span the full backoff schedule) is in flight.
func (b *Bridge) startLogin(parent context.Context, creds model.Credentials) {
	b.loginMu.Lock()
	if b.loginCancel != nil {
		b.loginCancel()
	}
	ctx, cancel := context.WithCancel(parent)
	b.loginCancel = cancel
	b.loginMu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.login(ctx, creds)
	}()
}

// cancelLogin aborts any in-flight login dial.
func (b *Bridge) cancelLogin() {
	b.loginMu.Lock()
	if b.loginCancel != nil {
		b.loginCancel()
		b.loginCancel = nil
	}
	b.loginMu.Unlock()
}

// login brings the stack up for an authenticated identity: bind identity
// first so the connected event already finds it, then dial, then resync.
func (b *Bridge) login(ctx context.Context, creds model.Credentials) {
	b.logger.Info("session established", "user_id", creds.UserID, "role", creds.Role)

	b.rec.SetIdentity(creds.UserID)
	b.rooms.Bind(creds.UserID, creds.Role)

	if err := b.conn.Connect(ctx, creds); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// The liveness monitor retries on its next tick.
		b.logger.Error("connect at login failed", "error", err)
		return
	}

	b.rooms.Rejoin()

	if err := b.rec.Resync(ctx); err != nil {
		b.logger.Warn("initial resync failed", "error", err)
	}
}

// logout tears the stack down unconditionally, even if the connection
// already looks dead. A half-open socket must never outlive its session.
func (b *Bridge) logout() {
	b.logger.Info("session ended, tearing down")

	if err := b.conn.Disconnect(); err != nil {
		b.logger.Warn("disconnect at logout", "error", err)
	}
	b.rooms.Unbind()
	b.rec.Clear()
}
