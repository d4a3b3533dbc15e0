package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *AgentConfig) Validate() error {
	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.Connection.WSURL == "" {
		return errors.New("connection.ws_url is required")
	}
	if !strings.HasPrefix(c.Connection.WSURL, "ws://") && !strings.HasPrefix(c.Connection.WSURL, "wss://") {
		return fmt.Errorf("connection.ws_url must be a ws:// or wss:// URL, got %q", c.Connection.WSURL)
	}

	if c.Auth.UserID == "" {
		return errors.New("auth.user_id is required")
	}
	if !c.Auth.Role.Valid() {
		return fmt.Errorf("auth.role must be one of customer, delivery, admin, got %q", c.Auth.Role)
	}

	if c.Connection.MaxAttempts < 1 {
		return errors.New("connection.max_attempts must be >= 1")
	}
	if c.Connection.FrameBufferSize < 1 {
		return errors.New("connection.frame_buffer_size must be >= 1")
	}
	if c.Connection.ReconnectBaseDelay > c.Connection.ReconnectMaxDelay {
		return errors.New("connection.reconnect_base_delay must not exceed reconnect_max_delay")
	}

	if c.Sync.RemovalDelay < 0 {
		return errors.New("sync.removal_delay must not be negative")
	}
	if c.Sync.LivenessInterval <= 0 {
		return errors.New("sync.liveness_interval must be positive")
	}

	return nil
}
