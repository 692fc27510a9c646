// Package monitoring - types.go defines shared types.
//
// DESIGN: Config and event types used across the client, socket manager
// and CLI. Defined here once to avoid duplication and circular imports.
package monitoring

import "time"

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// FetchEvent captures one fetch through the client, from cache lookup to
// final outcome.
type FetchEvent struct {
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	Key            string    `json:"key"`
	URL            string    `json:"url"`
	CacheState     string    `json:"cache_state"` // miss, fresh, stale
	Background     bool      `json:"background"`  // stale-while-revalidate refresh
	Attempts       int       `json:"attempts"`
	StatusCode     int       `json:"status_code,omitempty"`
	BodySize       int       `json:"body_size"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
}

// SocketEvent captures a socket lifecycle transition.
type SocketEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	URL       string    `json:"url"`
	Event     string    `json:"event"` // connected, disconnected, message
	Attempt   int       `json:"attempt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"`
}
