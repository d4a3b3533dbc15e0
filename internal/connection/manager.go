package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dabbawala/ordersync/internal/model"
)

// Manager owns the process-wide connection for an authenticated session.
// All components reach the socket through it; none hold a Client directly.
type Manager interface {
	// Connect is idempotent: a no-op when already connected, otherwise it
	// tears down any stale client and dials with bounded backoff. Concurrent
	// callers collapse into a single attempt.
	Connect(ctx context.Context, creds model.Credentials) error

	// Disconnect tears the connection down and stops any pending
	// reconnection. Safe to call at any time, including before Connect.
	Disconnect() error

	// IsConnected reports whether the socket is currently live.
	IsConnected() bool

	// Emit sends a client-originated event. It returns ErrNotConnected when
	// there is no live socket; nothing is queued.
	Emit(event string, payload any) error

	// Frames returns the channel of decoded inbound frames.
	Frames() <-chan Frame

	// SubscribeLifecycle returns a new channel receiving lifecycle events.
	// Slow subscribers miss events rather than blocking the manager.
	SubscribeLifecycle() <-chan LifecycleEvent

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	// Collapses concurrent Connect calls (liveness monitor vs. session
	// bridge) into one dial sequence.
	sf singleflight.Group

	frames chan Frame

	mu       sync.Mutex
	client   Client
	creds    model.Credentials
	hasCreds bool
	// gen is bumped by every Disconnect. A dial sequence that started under
	// an older generation refuses to install its client, so a background
	// redial can never outlive the logout that should have killed it.
	gen int64

	subMu sync.Mutex
	subs  []chan LifecycleEvent

	statsMu     sync.Mutex
	reconnects  int64
	framesIn    int64
	parseErrors int64
	dropped     int64
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:    cfg,
		logger: logger.With("component", "connection"),
		frames: make(chan Frame, cfg.FrameBufferSize),
	}
}

// Connect establishes the session connection.
func (m *manager) Connect(ctx context.Context, creds model.Credentials) error {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	return m.connect(ctx, creds, gen)
}

// connect runs one dial sequence pinned to a generation. The singleflight
// key includes the generation so a fresh login never collapses into a dial
// sequence that a logout has already invalidated.
func (m *manager) connect(ctx context.Context, creds model.Credentials, gen int64) error {
	_, err, _ := m.sf.Do(strconv.FormatInt(gen, 10), func() (any, error) {
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return nil, ErrSuperseded
		}
		if m.client != nil && m.client.IsConnected() {
			m.mu.Unlock()
			return nil, nil
		}
		stale := m.client
		m.client = nil
		m.creds = creds
		m.hasCreds = true
		m.mu.Unlock()

		if stale != nil {
			stale.Close()
		}

		return nil, m.dial(ctx, creds, gen)
	})
	return err
}

// dial attempts the connection up to MaxAttempts times with exponential
// backoff. On exhaustion the manager stays disconnected until the next
// explicit Connect. A Disconnect during the sequence moves the generation
// on, and the sequence aborts instead of installing a client.
func (m *manager) dial(ctx context.Context, creds model.Credentials, gen int64) error {
	clientCfg := ClientConfig{
		URL:          m.cfg.URL,
		Token:        creds.Token,
		DialTimeout:  m.cfg.DialTimeout,
		PingInterval: m.cfg.PingInterval,
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.FrameBufferSize,
	}

	wait := m.cfg.ReconnectBaseDelay
	var lastErr error

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > m.cfg.ReconnectMaxDelay {
				wait = m.cfg.ReconnectMaxDelay
			}
		}

		m.mu.Lock()
		moved := m.gen != gen
		m.mu.Unlock()
		if moved {
			return ErrSuperseded
		}

		c := NewClient(clientCfg, m.logger)
		if err := c.Connect(ctx); err != nil {
			lastErr = err
			m.logger.Warn("connection attempt failed",
				"attempt", attempt,
				"max_attempts", m.cfg.MaxAttempts,
				"error", err,
			)
			m.broadcast(LifecycleEvent{Kind: LifecycleConnectError, Reason: err.Error()})
			continue
		}

		m.mu.Lock()
		if m.gen != gen {
			// Logged out while the handshake was in flight.
			m.mu.Unlock()
			c.Close()
			return ErrSuperseded
		}
		m.client = c
		m.mu.Unlock()

		go m.readLoop(c)

		m.logger.Info("connected", "url", m.cfg.URL, "attempt", attempt)
		m.broadcast(LifecycleEvent{Kind: LifecycleConnected})
		return nil
	}

	return fmt.Errorf("connect: attempts exhausted: %w", lastErr)
}

// Disconnect tears down the connection and forgets the credentials so no
// background reconnect can revive it.
func (m *manager) Disconnect() error {
	m.mu.Lock()
	c := m.client
	m.client = nil
	wasConnected := c != nil && c.IsConnected()
	m.hasCreds = false
	m.creds = model.Credentials{}
	m.gen++
	m.mu.Unlock()

	if c != nil {
		c.Close()
	}
	if wasConnected {
		m.broadcast(LifecycleEvent{Kind: LifecycleDisconnected, Reason: "logout"})
	}
	return nil
}

// IsConnected reports current connection state.
func (m *manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil && m.client.IsConnected()
}

// Emit marshals and sends a client-originated event frame.
func (m *manager) Emit(event string, payload any) error {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()

	if c == nil || !c.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	raw, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", event, err)
	}
	return c.Send(raw)
}

// Frames returns the decoded inbound frame channel.
func (m *manager) Frames() <-chan Frame {
	return m.frames
}

// SubscribeLifecycle registers a lifecycle event subscriber.
func (m *manager) SubscribeLifecycle() <-chan LifecycleEvent {
	ch := make(chan LifecycleEvent, 16)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	return ManagerStats{
		Connected:      m.IsConnected(),
		Reconnects:     m.reconnects,
		FramesReceived: m.framesIn,
		ParseErrors:    m.parseErrors,
		FramesDropped:  m.dropped,
	}
}

// broadcast fans a lifecycle event out to all subscribers without blocking.
func (m *manager) broadcast(ev LifecycleEvent) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// readLoop decodes inbound frames from a client and triggers reconnection
// when the client reports an error or goes stale.
func (m *manager) readLoop(c Client) {
	for {
		select {
		case err := <-c.Errors():
			m.handleDrop(c, err)
			return

		case msg, ok := <-c.Messages():
			if !ok {
				// Closed underneath us; a buffered error may explain why.
				err := ErrNotConnected
				select {
				case err = <-c.Errors():
				default:
				}
				m.handleDrop(c, err)
				return
			}
			m.handleMessage(msg)
		}
	}
}

// handleMessage decodes one wire frame and forwards it non-blockingly.
func (m *manager) handleMessage(msg TimestampedMessage) {
	var frame Frame
	if err := json.Unmarshal(msg.Data, &frame); err != nil || frame.Event == "" {
		m.logger.Warn("unparseable frame", "error", err)
		m.statsMu.Lock()
		m.parseErrors++
		m.statsMu.Unlock()
		return
	}

	m.statsMu.Lock()
	m.framesIn++
	m.statsMu.Unlock()

	select {
	case m.frames <- frame:
	default:
		m.logger.Warn("frame buffer full, dropping", "event", frame.Event)
		m.statsMu.Lock()
		m.dropped++
		m.statsMu.Unlock()
	}
}

// handleDrop reacts to a dead client. Supersession (a newer Connect already
// replaced it) and logout (Disconnect cleared the client first) are silent;
// a genuine failure broadcasts disconnected and dials again with the
// credentials of the last successful Connect.
func (m *manager) handleDrop(c Client, cause error) {
	m.mu.Lock()
	superseded := m.client != c
	creds, hasCreds := m.creds, m.hasCreds
	gen := m.gen
	if !superseded {
		m.client = nil
	}
	m.mu.Unlock()

	c.Close()

	if superseded {
		return
	}

	m.logger.Warn("connection lost", "error", cause)
	m.broadcast(LifecycleEvent{Kind: LifecycleDisconnected, Reason: cause.Error()})

	if !hasCreds {
		return
	}

	m.statsMu.Lock()
	m.reconnects++
	m.statsMu.Unlock()

	// The redial is pinned to the generation observed at drop time: if a
	// logout lands mid-backoff the sequence aborts instead of reviving the
	// session with stale credentials.
	if err := m.connect(context.Background(), creds, gen); err != nil {
		if errors.Is(err, ErrSuperseded) {
			return
		}
		m.logger.Warn("reconnection attempts exhausted, staying disconnected", "error", err)
	}
}
