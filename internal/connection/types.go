package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrSuperseded      = errors.New("connect superseded by logout")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Frame is the wire envelope for every event in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// LifecycleKind classifies a connection lifecycle notification.
type LifecycleKind string

const (
	LifecycleConnected    LifecycleKind = "connected"
	LifecycleDisconnected LifecycleKind = "disconnected"
	LifecycleConnectError LifecycleKind = "connect_error"
)

// LifecycleEvent is a connection state notification fanned out to
// subscribers (room controller, session bridge, UI indicators).
type LifecycleEvent struct {
	Kind   LifecycleKind
	Reason string // human-readable cause, empty for clean transitions
}

// ClientConfig configures a single WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://orders.example.com/socket)
	Token        string        // Session token sent as Authorization header
	DialTimeout  time.Duration // Handshake timeout
	PingInterval time.Duration // How often to send keepalive pings
	PingTimeout  time.Duration // Max time without ping/pong before stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:  10 * time.Second,
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL                string        // WebSocket URL
	DialTimeout        time.Duration // Handshake timeout per attempt
	WriteTimeout       time.Duration // Write deadline for sends
	PingInterval       time.Duration // Keepalive ping period
	PingTimeout        time.Duration // Stale-connection threshold
	MaxAttempts        int           // Bounded attempts per Connect call
	ReconnectBaseDelay time.Duration // Base wait between attempts
	ReconnectMaxDelay  time.Duration // Cap on the backoff wait
	FrameBufferSize    int           // Buffer size for the decoded frame channel
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DialTimeout:        10 * time.Second,
		WriteTimeout:       5 * time.Second,
		PingInterval:       30 * time.Second,
		PingTimeout:        90 * time.Second,
		MaxAttempts:        5,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		FrameBufferSize:    256,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	Connected      bool
	Reconnects     int64
	FramesReceived int64
	ParseErrors    int64
	FramesDropped  int64
}
