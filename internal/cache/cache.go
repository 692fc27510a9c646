// Package cache provides staleness-aware in-memory caching for the fetch
// client.
//
// DESIGN: Entries record only when they were cached; the freshness and
// expiry windows are supplied per lookup, because the fetch client carries
// them in its per-request options. A lookup classifies the entry as:
//   - fresh:   age < staleTime  → serve as-is, no network
//   - stale:   age < cacheTime  → serve as-is, caller refreshes in background
//   - expired: age >= cacheTime → entry dropped, reported as a miss
//
// An optional backing Store (see store.go, sqlite.go) persists entries
// across restarts: writes go through to the store, and a memory miss falls
// back to a store read. A janitor goroutine prunes entries older than the
// hard MaxAge cap; semantic expiry is always decided at lookup time.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Default janitor settings.
const (
	DefaultMaxAge          = 24 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// State classifies a cache lookup.
type State int

const (
	// StateMiss means no usable entry exists; the caller must fetch.
	StateMiss State = iota
	// StateFresh means the entry is inside the staleness window.
	StateFresh
	// StateStale means the entry is usable but due for a background refresh.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "miss"
	}
}

// Cache is a process-wide key/value cache shared by any number of fetch
// resources. All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	stats   Stats

	clock    Clock
	store    Store
	maxAge   time.Duration
	interval time.Duration

	stopChan chan struct{}
	stopped  bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets a custom clock. Useful for testing staleness windows.
func WithClock(clk Clock) Option {
	return func(c *Cache) { c.clock = clk }
}

// WithStore sets a backing store. Writes go through to the store; memory
// misses fall back to a store read.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithMaxAge sets the hard upper bound on entry age enforced by the
// janitor. Lookup-time expiry still uses the caller's cacheTime.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithCleanupInterval sets how often the janitor prunes old entries.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates a Cache and starts its janitor goroutine.
// Call Close to stop the janitor.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:  make(map[string]Entry),
		clock:    realClock{},
		maxAge:   DefaultMaxAge,
		interval: DefaultCleanupInterval,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.janitor()

	return c
}

// Lookup classifies the entry for key against the given windows.
// An expired entry is removed and reported as StateMiss. On a memory miss
// the backing store is consulted; a stored entry is re-classified against
// the same windows and repopulated into memory when still usable.
func (c *Cache) Lookup(ctx context.Context, key string, staleTime, cacheTime time.Duration) (Entry, State) {
	now := c.clock.Now()

	c.mu.Lock()
	ent, ok := c.entries[key]
	if ok {
		state := ent.classify(now, staleTime, cacheTime)
		if state == StateMiss {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		if state != StateMiss {
			c.stats.hit()
			return ent, state
		}
		c.stats.miss()
		return Entry{}, StateMiss
	}
	c.mu.Unlock()

	if c.store != nil {
		ent, found, err := c.store.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache store read failed")
		} else if found {
			state := ent.classify(now, staleTime, cacheTime)
			if state != StateMiss {
				c.mu.Lock()
				if !c.stopped {
					c.entries[key] = ent
				}
				c.mu.Unlock()
				c.stats.hit()
				return ent, state
			}
		}
	}

	c.stats.miss()
	return Entry{}, StateMiss
}

// Set stores value under key, timestamped now. Write-through to the
// backing store uses the janitor's MaxAge as the persisted TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	ent := Entry{Value: value, CachedAt: c.clock.Now()}

	c.mu.Lock()
	if !c.stopped {
		c.entries[key] = ent
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Set(ctx, key, ent, c.maxAge); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache store write failed")
		}
	}
}

// Delete removes key from memory and the backing store.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if existed {
		c.stats.evict()
	}

	if c.store != nil {
		if err := c.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache store delete failed")
		}
	}
}

// Has reports whether key has an entry younger than cacheTime.
func (c *Cache) Has(key string, cacheTime time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ent, ok := c.entries[key]
	if !ok {
		return false
	}
	return ent.classify(c.clock.Now(), 0, cacheTime) != StateMiss
}

// Clear drops every in-memory entry. The backing store is not touched.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}

// Len returns the number of in-memory entries, including ones the janitor
// has not pruned yet.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of hit/miss/eviction counters.
func (c *Cache) Stats() Snapshot {
	return c.stats.snapshot()
}

// Close stops the janitor and releases the entry map.
// The backing store, if any, is closed as well.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopChan)
	c.entries = nil
	c.mu.Unlock()

	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// janitor periodically prunes entries older than MaxAge.
func (c *Cache) janitor() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			cutoff := c.clock.Now().Add(-c.maxAge)
			c.mu.Lock()
			if !c.stopped {
				for key, ent := range c.entries {
					if ent.CachedAt.Before(cutoff) {
						delete(c.entries, key)
						c.stats.evict()
					}
				}
			}
			c.mu.Unlock()
		}
	}
}
