// Package config loads and validates the fetch-relay configuration.
//
// DESIGN: Configuration comes from YAML files with ${VAR:-default} env
// expansion, plus a small set of env overrides for log redirection.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - client.go:     Fetch client and cache settings
//   - socket.go:     WebSocket session settings
//   - monitoring.go: Logging and telemetry settings
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for fetch-relay.
type Config struct {
	Server     ServerConfig     `yaml:"server"`     // Debug HTTP server settings
	Client     ClientConfig     `yaml:"client"`     // Fetch and retry settings
	Cache      CacheConfig      `yaml:"cache"`      // Response cache settings
	Socket     SocketConfig     `yaml:"socket"`     // WebSocket session settings
	Signing    SigningConfig    `yaml:"signing"`    // AWS SigV4 request signing
	Monitoring MonitoringConfig `yaml:"monitoring"` // Telemetry and logging
}

// SigningConfig enables SigV4 signing of outgoing requests.
type SigningConfig struct {
	Enabled bool   `yaml:"enabled"` // Attach the signing hook
	Service string `yaml:"service"` // AWS service name, e.g. "execute-api"
	Region  string `yaml:"region"`  // Optional region override
}

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	// Pattern matches ${VAR:-default} or ${VAR}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// This allows sandboxed runners to redirect log paths without modifying
// the base config files.
func (c *Config) applyEnvOverrides() {
	// SESSION_TELEMETRY_LOG overrides the telemetry log path
	if envPath := os.Getenv("SESSION_TELEMETRY_LOG"); envPath != "" {
		c.Monitoring.TelemetryPath = envPath
		c.Monitoring.TelemetryEnabled = true
	}

	// FETCH_RELAY_CACHE_DB overrides the sqlite cache path
	if envPath := os.Getenv("FETCH_RELAY_CACHE_DB"); envPath != "" {
		c.Cache.SQLitePath = envPath
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Socket.Validate(); err != nil {
		return err
	}

	if c.Signing.Enabled && c.Signing.Service == "" {
		return fmt.Errorf("signing.service is required when signing is enabled")
	}

	return nil
}
