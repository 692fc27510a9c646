// WebSocket session configuration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// SocketConfig contains WebSocket session settings.
type SocketConfig struct {
	Enabled           bool          `yaml:"enabled"`             // Run a socket session in serve mode
	URL               string        `yaml:"url"`                 // ws:// or wss:// endpoint
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`     // Initial reconnect delay
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"` // Reconnect delay cap
	QueueSize         int           `yaml:"queue_size"`          // Outgoing message buffer
}

// Validate checks socket settings. Disabled sockets skip all checks.
func (s *SocketConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.URL == "" {
		return fmt.Errorf("socket.url is required when socket is enabled")
	}
	if !strings.HasPrefix(s.URL, "ws://") && !strings.HasPrefix(s.URL, "wss://") {
		return fmt.Errorf("socket.url must use ws:// or wss://: %s", s.URL)
	}
	if s.QueueSize < 0 {
		return fmt.Errorf("socket.queue_size must not be negative: %d", s.QueueSize)
	}
	return nil
}
