package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultDialTimeout        = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 90 * time.Second
	DefaultMaxAttempts        = 5
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultFrameBufferSize    = 256
	DefaultRemovalDelay       = 2 * time.Second
	DefaultLivenessInterval   = 45 * time.Second
)

func (c *AgentConfig) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.Connection.DialTimeout == 0 {
		c.Connection.DialTimeout = DefaultDialTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.MaxAttempts == 0 {
		c.Connection.MaxAttempts = DefaultMaxAttempts
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.FrameBufferSize == 0 {
		c.Connection.FrameBufferSize = DefaultFrameBufferSize
	}

	if c.Sync.RemovalDelay == 0 {
		c.Sync.RemovalDelay = DefaultRemovalDelay
	}
	if c.Sync.LivenessInterval == 0 {
		c.Sync.LivenessInterval = DefaultLivenessInterval
	}
}
