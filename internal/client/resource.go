package client

import (
	"context"
	"sync"
	"time"

	"github.com/hookline/fetch-relay/internal/cache"
)

// Snapshot is the reactive read a Resource exposes: the current data, an
// in-progress flag, and the last terminal error.
type Snapshot struct {
	Data    []byte
	Loading bool
	Err     error
}

// Resource binds one request key to its reactive state. Consumers read
// State (or watch Updates) while Load, Refetch and Invalidate drive the
// cache underneath.
//
// A Resource with an empty key is disabled: Load never touches the
// network and the snapshot stays {nil, false, nil}.
type Resource struct {
	client *Client
	key    string
	opts   Options

	mu    sync.Mutex
	state Snapshot
	subs  []chan Snapshot
	seq   uint64 // guards stale background results from clobbering newer state
}

// NewResource creates a Resource for key with the given options.
func (c *Client) NewResource(key string, opts Options) *Resource {
	return &Resource{
		client: c,
		key:    key,
		opts:   opts.withDefaults(),
	}
}

// Disabled reports whether the resource has an empty key.
func (r *Resource) Disabled() bool { return r.key == "" }

// Key returns the request key.
func (r *Resource) Key() string { return r.key }

// State returns the current snapshot.
func (r *Resource) State() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Updates returns a channel receiving every state transition. The channel
// is buffered; a slow consumer drops intermediate snapshots rather than
// blocking the resource.
func (r *Resource) Updates() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

// setState replaces the snapshot and notifies watchers. Returns the
// sequence number of this transition.
func (r *Resource) setState(s Snapshot) uint64 {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.state = s
	subs := r.subs
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
	return seq
}

// setStateIfCurrent applies s only when no newer transition happened since
// seq was observed. Discarded results belong to superseded fetches.
func (r *Resource) setStateIfCurrent(seq uint64, s Snapshot) {
	r.mu.Lock()
	if r.seq != seq {
		r.mu.Unlock()
		return
	}
	r.seq++
	r.state = s
	subs := r.subs
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Load performs the mount-time read and returns the resulting snapshot.
//
// Cache fresh: the cached value lands in the snapshot with no network
// call. Cache stale: the cached value lands immediately (Loading false)
// and a background refresh updates the snapshot when it resolves. Miss:
// the snapshot passes through {Loading: true} while a synchronous fetch
// runs.
func (r *Resource) Load(ctx context.Context) Snapshot {
	if r.Disabled() {
		return r.State()
	}

	ent, state := r.client.cache.Lookup(ctx, r.key, r.opts.StaleTime, r.opts.CacheTime)
	switch state {
	case cache.StateFresh:
		r.client.metrics.RecordCacheHit(false)
		r.setState(Snapshot{Data: ent.Value})
		return r.State()

	case cache.StateStale:
		r.client.metrics.RecordCacheHit(true)
		seq := r.setState(Snapshot{Data: ent.Value})
		r.spawnRefresh(seq)
		return r.State()
	}

	r.client.metrics.RecordCacheMiss()
	return r.fetchInto(ctx, r.State().Data)
}

// Refetch drops the cache entry and fetches synchronously.
func (r *Resource) Refetch(ctx context.Context) Snapshot {
	if r.Disabled() {
		return r.State()
	}
	r.client.cache.Delete(ctx, r.key)
	return r.fetchInto(ctx, r.State().Data)
}

// Invalidate drops the cache entry without refetching. The current
// snapshot is left as-is.
func (r *Resource) Invalidate(ctx context.Context) {
	if r.Disabled() {
		return
	}
	r.client.cache.Delete(ctx, r.key)
}

// fetchInto runs a synchronous fetch, publishing the loading transition
// first. prev keeps the previous data visible while loading.
func (r *Resource) fetchInto(ctx context.Context, prev []byte) Snapshot {
	seq := r.setState(Snapshot{Data: prev, Loading: true})

	data, err := r.client.fetch(ctx, r.key, r.opts, false)
	if err != nil {
		// A superseded fetch must not mutate state; its successor owns it.
		r.setStateIfCurrent(seq, Snapshot{Data: prev, Err: err})
		return r.State()
	}

	r.setStateIfCurrent(seq, Snapshot{Data: data})
	return r.State()
}

// spawnRefresh revalidates a stale entry in the background and silently
// replaces the snapshot on success. Failures keep the stale data.
func (r *Resource) spawnRefresh(seq uint64) {
	r.client.wg.Add(1)
	go func() {
		defer r.client.wg.Done()

		v, err, _ := r.client.refresh.Do(r.key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), r.client.cfg.RefreshTimeout)
			defer cancel()

			start := time.Now()
			data, err := r.client.fetch(ctx, r.key, r.opts, true)
			if r.client.fetchLog != nil {
				r.client.fetchLog.LogRefresh(r.key, err == nil, time.Since(start))
			}
			return data, err
		})
		if err != nil {
			return
		}
		if data, ok := v.([]byte); ok {
			r.setStateIfCurrent(seq, Snapshot{Data: data})
		}
	}()
}
