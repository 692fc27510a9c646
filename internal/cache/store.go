package cache

import (
	"context"
	"time"
)

// Store is an optional persistent backing for the in-memory cache.
// Implementations must preserve Entry.CachedAt exactly: staleness is
// re-evaluated from the original timestamp when an entry is read back.
//
// SQLiteStore (sqlite.go) is the bundled implementation. For multi-instance
// deployments, implement Store with Redis or similar.
type Store interface {
	// Get retrieves an entry. Returns false when the key is absent or the
	// stored TTL has lapsed.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set persists an entry. The ttl is a hard retention bound; semantic
	// expiry still happens at lookup time in the memory layer.
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error

	// Delete removes an entry. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}
