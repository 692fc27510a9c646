package hooks_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/fetch-relay/internal/hooks"
)

// =============================================================================
// REGISTRATION & ORDERING
// =============================================================================

func TestRegistry_PriorityOrder(t *testing.T) {
	r := hooks.NewRegistry()
	var order []string

	r.Register("point", func(ctx context.Context, payload any) error {
		order = append(order, "late")
		return nil
	}, 20)
	r.Register("point", func(ctx context.Context, payload any) error {
		order = append(order, "early")
		return nil
	}, 5)
	r.Register("point", func(ctx context.Context, payload any) error {
		order = append(order, "mid")
		return nil
	}, 10)

	r.Invoke(context.Background(), "point", nil)

	assert.Equal(t, []string{"early", "mid", "late"}, order)
}

func TestRegistry_EqualPriorityRunsInRegistrationOrder(t *testing.T) {
	r := hooks.NewRegistry()
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		r.Register("point", func(ctx context.Context, payload any) error {
			order = append(order, i)
			return nil
		}, 0)
	}

	r.Invoke(context.Background(), "point", nil)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRegistry_UnregisterRemovesExactlyOneHandler(t *testing.T) {
	r := hooks.NewRegistry()
	var calls []string

	mk := func(name string) hooks.Handler {
		return func(ctx context.Context, payload any) error {
			calls = append(calls, name)
			return nil
		}
	}

	unregA := r.Register("point", mk("a"), 0)
	r.Register("point", mk("b"), 0)
	r.Register("point", mk("c"), 0)
	require.Equal(t, 3, r.HandlerCount("point"))

	unregA()
	assert.Equal(t, 2, r.HandlerCount("point"))

	r.Invoke(context.Background(), "point", nil)
	assert.Equal(t, []string{"b", "c"}, calls)

	// Second call is a no-op.
	unregA()
	assert.Equal(t, 2, r.HandlerCount("point"))
}

func TestRegistry_UnregisterSameFuncRegisteredTwice(t *testing.T) {
	r := hooks.NewRegistry()
	count := 0
	fn := func(ctx context.Context, payload any) error {
		count++
		return nil
	}

	unreg1 := r.Register("point", fn, 0)
	r.Register("point", fn, 0)

	unreg1()
	r.Invoke(context.Background(), "point", nil)

	// Only the first instance was removed.
	assert.Equal(t, 1, count)
}

func TestRegistry_EmptyPointRemovedAfterLastUnregister(t *testing.T) {
	r := hooks.NewRegistry()
	unreg := r.Register("point", func(ctx context.Context, payload any) error {
		return nil
	}, 0)

	assert.Equal(t, []string{"point"}, r.Points())
	unreg()
	assert.Empty(t, r.Points())
}

// =============================================================================
// INVOCATION & ERROR ISOLATION
// =============================================================================

func TestRegistry_InvokeEmptyPointIsNoOp(t *testing.T) {
	r := hooks.NewRegistry()

	assert.NotPanics(t, func() {
		r.Invoke(context.Background(), "nobody-home", "payload")
	})
}

func TestRegistry_FailingHandlerDoesNotAbortSiblings(t *testing.T) {
	r := hooks.NewRegistry()
	var ran []string

	r.Register("point", func(ctx context.Context, payload any) error {
		ran = append(ran, "first")
		return errors.New("boom")
	}, 0)
	r.Register("point", func(ctx context.Context, payload any) error {
		ran = append(ran, "second")
		return nil
	}, 1)

	r.Invoke(context.Background(), "point", nil)

	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestRegistry_PanickingHandlerIsIsolated(t *testing.T) {
	r := hooks.NewRegistry()
	ran := false

	r.Register("point", func(ctx context.Context, payload any) error {
		panic("kaboom")
	}, 0)
	r.Register("point", func(ctx context.Context, payload any) error {
		ran = true
		return nil
	}, 1)

	assert.NotPanics(t, func() {
		r.Invoke(context.Background(), "point", nil)
	})
	assert.True(t, ran)
}

func TestRegistry_FailureForwardedToErrorPoint(t *testing.T) {
	r := hooks.NewRegistry()
	failure := errors.New("handler broke")
	var captured *hooks.ErrorPayload

	r.Register(hooks.PointError, func(ctx context.Context, payload any) error {
		captured = payload.(*hooks.ErrorPayload)
		return nil
	}, 0)
	r.Register("point", func(ctx context.Context, payload any) error {
		return failure
	}, 0)

	r.Invoke(context.Background(), "point", "original-payload")

	require.NotNil(t, captured)
	assert.Equal(t, "point", captured.FailingPoint)
	assert.Equal(t, "original-payload", captured.Payload)
	assert.ErrorIs(t, captured.Err, failure)
}

func TestRegistry_ErrorPointFailureDoesNotRecurse(t *testing.T) {
	r := hooks.NewRegistry()
	invocations := 0

	r.Register(hooks.PointError, func(ctx context.Context, payload any) error {
		invocations++
		return errors.New("the error handler is itself broken")
	}, 0)
	r.Register("point", func(ctx context.Context, payload any) error {
		return errors.New("boom")
	}, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Invoke(context.Background(), "point", nil)
	}()
	<-done

	// One forward for the original failure; the error handler's own failure
	// is swallowed instead of being forwarded again.
	assert.Equal(t, 1, invocations)
}

// =============================================================================
// INTROSPECTION
// =============================================================================

func TestRegistry_Introspection(t *testing.T) {
	r := hooks.NewRegistry()
	noop := func(ctx context.Context, payload any) error { return nil }

	r.Register("b", noop, 0)
	r.Register("a", noop, 0)
	r.Register("a", noop, 0)

	assert.Equal(t, 2, r.HandlerCount("a"))
	assert.Equal(t, 1, r.HandlerCount("b"))
	assert.Equal(t, 0, r.HandlerCount("missing"))
	assert.Equal(t, []string{"a", "b"}, r.Points())
}

func TestRegistry_ClearSinglePoint(t *testing.T) {
	r := hooks.NewRegistry()
	noop := func(ctx context.Context, payload any) error { return nil }

	r.Register("a", noop, 0)
	r.Register("b", noop, 0)

	r.Clear("a")
	assert.Equal(t, 0, r.HandlerCount("a"))
	assert.Equal(t, 1, r.HandlerCount("b"))

	r.Clear()
	assert.Empty(t, r.Points())
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestRegistry_ConcurrentRegisterAndInvoke(t *testing.T) {
	r := hooks.NewRegistry()
	noop := func(ctx context.Context, payload any) error { return nil }

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				unreg := r.Register("point", noop, j)
				r.Invoke(context.Background(), "point", j)
				unreg()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.HandlerCount("point"))
}
