// Fetch client and cache configuration.
//
// DESIGN: Freshness windows live on the client config because they are
// evaluated per lookup, not stamped on cache entries. The cache section
// only controls the store itself (hard cap, janitor, sqlite backing).
package config

import (
	"fmt"
	"time"
)

// ServerConfig contains debug HTTP server settings for `serve` mode.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Max time to read request
	WriteTimeout time.Duration `yaml:"write_timeout"` // Max time to write response
}

// ClientConfig contains fetch, retry, and freshness settings.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`        // Prefix for relative fetch keys
	Retry          *int          `yaml:"retry"`           // Retries after the first attempt; unset means the client default, 0 means none
	RetryDelay     time.Duration `yaml:"retry_delay"`     // Initial backoff delay
	Jitter         bool          `yaml:"jitter"`          // Randomize backoff delays
	StaleTime      time.Duration `yaml:"stale_time"`      // Serve without revalidation below this age
	CacheTime      time.Duration `yaml:"cache_time"`      // Hard expiry for cached responses
	Transform      string        `yaml:"transform"`       // Optional gjson path applied to response bodies
	RefreshTimeout time.Duration `yaml:"refresh_timeout"` // Deadline for background refreshes
}

// CacheConfig contains response cache store settings.
type CacheConfig struct {
	MaxAge          time.Duration `yaml:"max_age"`          // Janitor hard cap on entry age
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // Janitor sweep interval
	SQLitePath      string        `yaml:"sqlite_path"`      // Optional persistent backing store
}

// Validate checks server settings. Port zero means the debug server is off.
func (s *ServerConfig) Validate() error {
	if s.Port == 0 {
		return nil
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", s.Port)
	}
	if s.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required when server.port is set")
	}
	if s.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required when server.port is set")
	}
	return nil
}

// Validate checks fetch client settings.
func (c *ClientConfig) Validate() error {
	if c.Retry != nil && *c.Retry < 0 {
		return fmt.Errorf("client.retry must not be negative: %d", *c.Retry)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("client.retry_delay must not be negative: %s", c.RetryDelay)
	}
	if c.StaleTime < 0 || c.CacheTime < 0 {
		return fmt.Errorf("client freshness windows must not be negative")
	}
	if c.StaleTime > 0 && c.CacheTime > 0 && c.StaleTime > c.CacheTime {
		return fmt.Errorf("client.stale_time (%s) must not exceed client.cache_time (%s)", c.StaleTime, c.CacheTime)
	}
	return nil
}

// Validate checks cache store settings.
func (c *CacheConfig) Validate() error {
	if c.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must not be negative: %s", c.MaxAge)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative: %s", c.CleanupInterval)
	}
	return nil
}
