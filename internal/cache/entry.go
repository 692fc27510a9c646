package cache

import "time"

// Entry is one cached value plus its creation timestamp.
// Freshness is not a property of the entry itself: the same entry can be
// fresh for one caller and expired for another, depending on the windows
// they pass to Lookup.
type Entry struct {
	Value    []byte
	CachedAt time.Time
}

// Age returns how old the entry is at the given instant.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// classify maps the entry's age onto a lookup state.
// staleTime <= 0 means entries are never considered fresh;
// cacheTime <= 0 means entries never expire.
func (e Entry) classify(now time.Time, staleTime, cacheTime time.Duration) State {
	age := e.Age(now)
	if cacheTime > 0 && age >= cacheTime {
		return StateMiss
	}
	if staleTime > 0 && age < staleTime {
		return StateFresh
	}
	return StateStale
}
