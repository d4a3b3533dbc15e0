// Package rooms implements the Room Membership Controller.
//
// Room membership does not survive a reconnect on the server side, so the
// controller re-declares the client's interest set ({userId, role}) after
// every observed connection, not just the first one.
package rooms

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dabbawala/ordersync/internal/connection"
	"github.com/dabbawala/ordersync/internal/model"
)

// EventJoin is the outbound membership declaration event.
const EventJoin = "join"

// JoinPayload is the membership declaration sent to the server.
type JoinPayload struct {
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
	Nonce  string     `json:"nonce"` // per-process id so the server can de-duplicate
}

// conn is the slice of the Connection Manager the controller needs.
type conn interface {
	Emit(event string, payload any) error
	IsConnected() bool
	SubscribeLifecycle() <-chan connection.LifecycleEvent
}

// Controller declares room membership for the current identity.
type Controller struct {
	conn   conn
	logger *slog.Logger
	nonce  string

	mu     sync.Mutex
	userID string
	role   model.Role

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a new Room Membership Controller.
func NewController(c conn, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		conn:   c,
		logger: logger.With("component", "rooms"),
		nonce:  uuid.NewString(),
	}
}

// Bind records the identity used for automatic re-joins after reconnects.
func (c *Controller) Bind(userID string, role model.Role) {
	c.mu.Lock()
	c.userID = userID
	c.role = role
	c.mu.Unlock()
}

// Unbind forgets the identity so re-joins stop after logout.
func (c *Controller) Unbind() {
	c.mu.Lock()
	c.userID = ""
	c.role = ""
	c.mu.Unlock()
}

// JoinRooms sends a membership declaration over the live connection.
// It never fails loudly: missing identity or a dead connection is a no-op.
// The server de-duplicates repeated declarations, so callers may invoke it
// as often as they like.
func (c *Controller) JoinRooms(userID string, role model.Role) {
	if userID == "" || role == "" {
		return
	}
	if !c.conn.IsConnected() {
		return
	}

	payload := JoinPayload{UserID: userID, Role: role, Nonce: c.nonce}
	if err := c.conn.Emit(EventJoin, payload); err != nil {
		c.logger.Warn("join declaration failed", "user_id", userID, "role", role, "error", err)
		return
	}
	c.logger.Debug("joined rooms", "user_id", userID, "role", role)
}

// Rejoin re-declares membership with the bound identity. A no-op when no
// identity is bound.
func (c *Controller) Rejoin() {
	c.mu.Lock()
	userID, role := c.userID, c.role
	c.mu.Unlock()
	c.JoinRooms(userID, role)
}

// Start watches connection lifecycle events and re-joins after every
// successful (re)connection with the bound identity.
func (c *Controller) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	events := c.conn.SubscribeLifecycle()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if ev.Kind != connection.LifecycleConnected {
					continue
				}
				c.Rejoin()
			}
		}
	}()

	return nil
}

// Stop halts the lifecycle watcher.
func (c *Controller) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("rooms controller stop timed out")
	}
	return nil
}
