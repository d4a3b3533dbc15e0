// Package liveness provides the periodic safety net over the connection
// layer. Event-driven reconnects handle the common failure modes; the
// monitor catches whatever falls through, such as a connection that died
// without firing a close event or a join emit that was swallowed by a
// mid-flight reconnect.
package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dabbawala/ordersync/internal/model"
)

// Connection is the slice of the connection manager the monitor drives.
type Connection interface {
	IsConnected() bool
	Connect(ctx context.Context, creds model.Credentials) error
}

// Joiner re-issues room membership. Joins are idempotent server-side, so
// repeating one is harmless.
type Joiner interface {
	Rejoin()
}

// CredentialSource reports the currently authenticated identity, if any.
type CredentialSource interface {
	Snapshot() (model.Credentials, bool)
}

// Config holds monitor settings.
type Config struct {
	Interval time.Duration // Check interval (default: 45s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 45 * time.Second}
}

// Monitor periodically verifies the connection is up and membership held.
type Monitor struct {
	cfg    Config
	conn   Connection
	joiner Joiner
	creds  CredentialSource
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Monitor.
func New(cfg Config, conn Connection, joiner Joiner, creds CredentialSource, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Monitor{
		cfg:    cfg,
		conn:   conn,
		joiner: joiner,
		creds:  creds,
		logger: logger.With("component", "liveness"),
	}
}

// Start begins the check loop.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("liveness monitor started", "interval", m.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the monitor.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("liveness monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.check()
		}
	}
}

// check is one liveness pass: no credentials means logged out and nothing
// to verify. Otherwise make sure the socket is up, then re-assert room
// membership as a backstop.
func (m *Monitor) check() {
	creds, ok := m.creds.Snapshot()
	if !ok {
		return
	}

	if !m.conn.IsConnected() {
		m.logger.Warn("connection down at liveness check, reconnecting")
		if err := m.conn.Connect(m.ctx, creds); err != nil {
			m.logger.Error("liveness reconnect failed", "error", err)
			return
		}
	}

	m.joiner.Rejoin()
}
