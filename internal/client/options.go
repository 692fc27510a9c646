package client

import "time"

// Defaults applied when an Options field is left unset. These mirror the
// usual "a few retries, half a minute of freshness" starting point; they
// are illustrative, not a contract.
const (
	DefaultRetry      = 3
	DefaultRetryDelay = time.Second
	DefaultStaleTime  = 30 * time.Second
	DefaultCacheTime  = 5 * time.Minute
)

// Retries sets an explicit retry count inline: Options{Retry: Retries(0)}
// makes exactly one attempt.
func Retries(n int) *int {
	return &n
}

// Options is the per-request options bag.
type Options struct {
	// Retry is the number of additional attempts after the first failure.
	// Nil means DefaultRetry; an explicit zero means a single attempt.
	Retry *int

	// RetryDelay is the delay before the first retry; subsequent retries
	// double it (delay * 2^(n-1)).
	RetryDelay time.Duration

	// StaleTime is the window in which a cached value is served without
	// any network activity.
	StaleTime time.Duration

	// CacheTime is the window after which a cached value is discarded and
	// refetched synchronously. Must be >= StaleTime to be meaningful.
	CacheTime time.Duration

	// Transform is an optional gjson path applied to the response body;
	// the extracted fragment is what gets cached and returned. A path
	// that does not match, or a non-JSON body, is a terminal error.
	Transform string

	// Jitter randomizes retry delays. Off by default so backoff timing
	// is exact.
	Jitter bool
}

// withDefaults fills zero fields with the package defaults.
func (o Options) withDefaults() Options {
	retry := DefaultRetry
	if o.Retry != nil {
		retry = *o.Retry
	}
	if retry < 0 {
		retry = 0
	}
	o.Retry = &retry
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.StaleTime == 0 {
		o.StaleTime = DefaultStaleTime
	}
	if o.CacheTime == 0 {
		o.CacheTime = DefaultCacheTime
	}
	return o
}
