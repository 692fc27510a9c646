package cache

import "time"

// Clock provides the cache's notion of time.
// The default implementation uses time.Now; tests substitute a fake to
// drive entries through the staleness and expiry windows.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
