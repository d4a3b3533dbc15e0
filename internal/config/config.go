package config

import (
	"time"

	"github.com/dabbawala/ordersync/internal/model"
)

// AgentConfig is the root configuration for an agent sync client.
type AgentConfig struct {
	Auth       AuthConfig       `yaml:"auth"`
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Sync       SyncConfig       `yaml:"sync"`
}

// AuthConfig holds static session credentials for headless use. Interactive
// clients source credentials from their credential store instead.
type AuthConfig struct {
	Token  string     `yaml:"token"`
	UserID string     `yaml:"user_id"`
	Role   model.Role `yaml:"role"`
}

// Credentials converts the auth section into a credential snapshot.
func (a AuthConfig) Credentials() model.Credentials {
	return model.Credentials{Token: a.Token, UserID: a.UserID, Role: a.Role}
}

// APIConfig holds REST API settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ConnectionConfig holds WebSocket connection settings.
type ConnectionConfig struct {
	WSURL              string        `yaml:"ws_url"`
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	MaxAttempts        int           `yaml:"max_attempts"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	FrameBufferSize    int           `yaml:"frame_buffer_size"`
}

// SyncConfig holds reconciler and liveness settings.
type SyncConfig struct {
	RemovalDelay     time.Duration `yaml:"removal_delay"`
	LivenessInterval time.Duration `yaml:"liveness_interval"`
}
