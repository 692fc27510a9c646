// Package hooks provides named extension points with prioritized handlers.
//
// DESIGN: Modules register callbacks against string-named points; a central
// Registry dispatches payloads to all handlers for a point. Handlers run in
// ascending priority order (lower = earlier, registration order breaks ties).
// A failing handler never aborts its siblings and never reaches the invoker:
// the failure is logged and forwarded to the PointError extension point,
// except when the failure itself happened inside PointError (log only, so a
// broken error handler cannot recurse).
//
// The Registry is an explicit value, not a package-level singleton. Callers
// own their registry and inject it where dispatch is needed.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler is a callback attached to an extension point.
// The payload type depends on the point; built-in points document theirs
// in points.go. Returning a non-nil error marks the handler as failed.
type Handler func(ctx context.Context, payload any) error

// UnregisterFunc removes the handler instance it was returned for.
// Calling it more than once is a no-op.
type UnregisterFunc func()

type handlerEntry struct {
	fn       Handler
	priority int
	seq      uint64
}

// Registry maps extension point names to ordered handler lists.
// All methods are safe for concurrent use. Separate Invoke calls for the
// same point are not mutually exclusive; they may interleave.
type Registry struct {
	mu     sync.RWMutex
	points map[string][]*handlerEntry
	seq    uint64
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		points: make(map[string][]*handlerEntry),
	}
}

// Register attaches fn to the named point with the given priority.
// Lower priority runs earlier; equal priorities run in registration order.
// The returned function unregisters exactly this handler instance, even if
// the same fn was registered multiple times.
func (r *Registry) Register(point string, fn Handler, priority int) UnregisterFunc {
	if fn == nil {
		return func() {}
	}

	r.mu.Lock()
	r.seq++
	entry := &handlerEntry{fn: fn, priority: priority, seq: r.seq}
	list := append(r.points[point], entry)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	r.points[point] = list
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.remove(point, entry)
		})
	}
}

// remove deletes a single entry by identity. The point's slot disappears
// when its handler list becomes empty.
func (r *Registry) remove(point string, entry *handlerEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.points[point]
	for i, e := range list {
		if e == entry {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.points, point)
	} else {
		r.points[point] = list
	}
}

// Invoke runs every handler registered for point, in priority order, with
// the given payload. A point with no handlers is a no-op, not an error.
//
// Handler failures (returned errors and panics) are isolated: siblings
// still run, the invoker never sees the error. Each failure is forwarded
// to PointError with an ErrorPayload, unless point is already PointError.
// Invoke returns only after every handler has settled.
func (r *Registry) Invoke(ctx context.Context, point string, payload any) {
	r.mu.RLock()
	list := r.points[point]
	handlers := make([]*handlerEntry, len(list))
	copy(handlers, list)
	r.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	for _, entry := range handlers {
		if err := safeCall(ctx, entry.fn, payload); err != nil {
			r.dispatchError(ctx, point, payload, err)
		}
	}
}

// safeCall runs a handler, converting panics into errors.
func safeCall(ctx context.Context, fn Handler, payload any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return fn(ctx, payload)
}

// dispatchError forwards a handler failure to the PointError point.
// Failures inside PointError itself are only logged; forwarding them again
// would recurse forever through a broken error handler.
func (r *Registry) dispatchError(ctx context.Context, point string, payload any, err error) {
	log.Warn().
		Str("point", point).
		Err(err).
		Msg("hook handler failed")

	if point == PointError {
		return
	}

	r.Invoke(ctx, PointError, &ErrorPayload{
		FailingPoint: point,
		Payload:      payload,
		Err:          err,
	})
}

// HandlerCount returns the number of handlers registered for point.
func (r *Registry) HandlerCount(point string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.points[point])
}

// Points returns the sorted names of all points with at least one handler.
func (r *Registry) Points() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.points))
	for name := range r.points {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Clear removes all handlers for the named points, or every handler when
// called with no arguments.
func (r *Registry) Clear(points ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(points) == 0 {
		r.points = make(map[string][]*handlerEntry)
		return
	}
	for _, p := range points {
		delete(r.points, p)
	}
}
