package callbacks

import (
	"context"
	"errors"
	"testing"

	"github.com/amp-labs/amp-workflow/binder"
	"github.com/amp-labs/amp-workflow/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type host struct {
	calls   []string
	Flagged bool
}

func (h *host) add(s string) {
	h.calls = append(h.calls, s)
}

func record(name string) Callable[*host] {
	return Func(func(_ context.Context, h *host) error {
		h.add(name)

		return nil
	})
}

func wrapRecord(name string) Callable[*host] {
	return Wrap(func(ctx context.Context, h *host, next Next) error {
		h.add(name + ":pre")
		err := next(ctx)
		h.add(name + ":post")

		return err
	})
}

func failWith(name string, err error) Callable[*host] {
	return Func(func(_ context.Context, h *host) error {
		h.add(name)

		return err
	})
}

func persist(h *host) func(context.Context) Result {
	return func(context.Context) Result {
		h.add("persist")

		return Continue()
	}
}

func transition() *binder.TransitionContext {
	return binder.NewTransitionContext("new", "accepted", "accept", []any{"alice"}, map[string]any{"custom_attr": "x"}, nil)
}

func TestRunOrdering(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()
	reg.Add(PhaseEnter, Before, record("before1"))
	reg.Add(PhaseEnter, Before, record("before2"))
	reg.Add(PhaseEnter, Around, wrapRecord("around1"))
	reg.Add(PhaseEnter, Around, wrapRecord("around2"))
	reg.Add(PhaseEnter, After, record("after1"))
	reg.Add(PhaseEnter, After, record("after2"))
	require.NoError(t, reg.Err())

	h := &host{}
	res := reg.Run(t.Context(), PhaseEnter, "accepted", h, transition(), persist(h))

	assert.True(t, res.Continued())
	assert.Equal(t, []string{
		"before1", "before2",
		"around1:pre", "around2:pre",
		"persist",
		"around2:post", "around1:post",
		"after1", "after2",
	}, h.calls)
}

func TestRunHaltInBefore(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()
	reg.Add(PhaseTransition, Before, record("before1"))
	reg.Add(PhaseTransition, Before, failWith("before2", Halt("not today")))
	reg.Add(PhaseTransition, Before, record("before3"))
	reg.Add(PhaseTransition, Around, wrapRecord("around"))
	reg.Add(PhaseTransition, After, record("after"))

	h := &host{}
	res := reg.Run(t.Context(), PhaseTransition, "accept", h, transition(), persist(h))

	assert.True(t, res.IsHalted())
	assert.Equal(t, "not today", res.Reason)
	assert.Equal(t, []string{"before1", "before2"}, h.calls)
}

func TestRunAroundWithoutNextHalts(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()
	reg.Add(PhaseExit, Around, Wrap(func(_ context.Context, h *host, _ Next) error {
		h.add("around")

		return nil
	}))
	reg.Add(PhaseExit, After, record("after"))

	h := &host{}
	res := reg.Run(t.Context(), PhaseExit, "new", h, transition(), persist(h))

	assert.True(t, res.IsHalted())
	assert.Empty(t, res.Reason)
	assert.Equal(t, []string{"around"}, h.calls)
}

func TestRunAroundSeesInnerHalt(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()

	var seen error

	reg.Add(PhaseTransition, Around, Wrap(func(ctx context.Context, _ *host, next Next) error {
		seen = next(ctx)

		return nil
	}))

	h := &host{}
	res := reg.Run(t.Context(), PhaseTransition, "accept", h, transition(), func(context.Context) Result {
		return Halted("inner")
	})

	reason, ok := IsHalt(seen)
	require.True(t, ok)
	assert.Equal(t, "inner", reason)

	// Swallowing the signal does not undo the halt.
	assert.True(t, res.IsHalted())
	assert.Equal(t, "inner", res.Reason)
}

func TestRunAroundSwallowsFailure(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()
	reg.Add(PhaseTransition, Around, Wrap(func(ctx context.Context, h *host, next Next) error {
		if err := next(ctx); errors.Is(err, errBoom) {
			h.add("rescued")
		}

		return nil
	}))
	reg.Add(PhaseTransition, After, record("after"))

	h := &host{}
	res := reg.Run(t.Context(), PhaseTransition, "accept", h, transition(), func(context.Context) Result {
		return Failed(errBoom)
	})

	assert.True(t, res.IsHalted())
	assert.Equal(t, []string{"rescued"}, h.calls)
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	t.Run("before error", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry[*host]()
		reg.Add(PhaseEnter, Before, failWith("before", errBoom))

		h := &host{}
		res := reg.Run(t.Context(), PhaseEnter, "accepted", h, transition(), persist(h))

		assert.True(t, res.IsFailed())
		require.ErrorIs(t, res.Err, errBoom)
		assert.Equal(t, []string{"before"}, h.calls)
	})

	t.Run("inner error skips afters", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry[*host]()
		reg.Add(PhaseEnter, After, record("after"))

		h := &host{}
		res := reg.Run(t.Context(), PhaseEnter, "accepted", h, transition(), func(context.Context) Result {
			return Failed(errBoom)
		})

		require.ErrorIs(t, res.Err, errBoom)
		assert.Empty(t, h.calls)
	})

	t.Run("after error stops later afters", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry[*host]()
		reg.Add(PhaseEnter, After, failWith("after1", errBoom))
		reg.Add(PhaseEnter, After, record("after2"))

		h := &host{}
		res := reg.Run(t.Context(), PhaseEnter, "accepted", h, transition(), persist(h))

		require.ErrorIs(t, res.Err, errBoom)
		assert.Equal(t, []string{"persist", "after1"}, h.calls)
	})

	t.Run("halt in after is an error", func(t *testing.T) {
		t.Parallel()

		reg := NewRegistry[*host]()
		reg.Add(PhaseEnter, After, failWith("after", Halt("too late")))

		h := &host{}
		res := reg.Run(t.Context(), PhaseEnter, "accepted", h, transition(), persist(h))

		assert.True(t, res.IsFailed())
		require.ErrorIs(t, res.Err, ErrHaltInAfter)
		assert.Contains(t, res.Err.Error(), "too late")
	})
}

func TestRunFilters(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()
	reg.Add(PhaseEnter, Before, record("only-accepted"), Only("accepted"))
	reg.Add(PhaseEnter, Before, record("except-accepted"), Except("accepted"))
	reg.Add(PhaseEnter, Before, record("only-accept-event"), OnlyEvents("accept"))
	reg.Add(PhaseEnter, Before, record("except-accept-event"), ExceptEvents("accept"))
	reg.Add(PhaseEnter, Before, record("if-flagged"), If(guard.Expr("Flagged")))
	reg.Add(PhaseEnter, Before, record("unless-flagged"), Unless(guard.Expr("Flagged")))

	h := &host{}
	res := reg.Run(t.Context(), PhaseEnter, "accepted", h, transition(), persist(h))
	require.True(t, res.Continued())
	assert.Equal(t, []string{"only-accepted", "only-accept-event", "unless-flagged", "persist"}, h.calls)

	h = &host{Flagged: true}
	tc := binder.NewTransitionContext("accepted", "archived", "archive", nil, nil, nil)
	res = reg.Run(t.Context(), PhaseEnter, "archived", h, tc, persist(h))
	require.True(t, res.Continued())
	assert.Equal(t, []string{"except-accepted", "except-accept-event", "if-flagged", "persist"}, h.calls)
}

func TestRunGuardError(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()
	reg.Add(PhaseEnter, After, record("after"), If(guard.Method("Missing")))

	h := &host{}
	res := reg.Run(t.Context(), PhaseEnter, "accepted", h, transition(), persist(h))

	require.ErrorIs(t, res.Err, guard.ErrNoSuchMethod)
	assert.Equal(t, []string{"persist"}, h.calls)
}

func TestPrependSkipClone(t *testing.T) {
	t.Parallel()

	parent := NewRegistry[*host]()
	parent.Add(PhaseTransition, Before, record("first"), Named("first"))
	parent.Add(PhaseTransition, Before, record("second"), Named("second"))

	child := parent.Clone()
	child.Add(PhaseTransition, Before, record("zeroth"), Prepend())
	assert.True(t, child.Skip(PhaseTransition, Before, "second"))
	assert.False(t, child.Skip(PhaseTransition, Before, "unknown"))
	assert.False(t, child.Skip(PhaseExit, After, "second"))

	h := &host{}
	child.Run(t.Context(), PhaseTransition, "accept", h, transition(), persist(h))
	assert.Equal(t, []string{"zeroth", "first", "persist"}, h.calls)

	h = &host{}
	parent.Run(t.Context(), PhaseTransition, "accept", h, transition(), persist(h))
	assert.Equal(t, []string{"first", "second", "persist"}, h.calls)

	assert.Equal(t, 2, parent.Len())
	assert.Equal(t, 2, child.Len())
	require.Len(t, child.Registrations(PhaseTransition, Before), 2)
	assert.Equal(t, "first", child.Registrations(PhaseTransition, Before)[1].Name)
}

func TestRegistryErrors(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()
	reg.Add(PhaseEnter, Around, record("plain"))
	reg.Add(PhaseEnter, Before, wrapRecord("wrapping"))
	reg.Add(PhaseEnter, After, Callable[*host]{})
	reg.Add(PhaseEnter, After, record("bad-guard"), If(guard.Expr("Flagged &&")))

	err := reg.Err()
	require.ErrorIs(t, err, ErrAroundRequired)
	require.ErrorIs(t, err, ErrNotAround)
	require.ErrorIs(t, err, ErrNilCallable)
	require.ErrorIs(t, err, guard.ErrInvalidExpression)
	assert.Equal(t, 0, reg.Len())
}

func TestBoundCallable(t *testing.T) {
	t.Parallel()

	var got []any

	reg := NewRegistry[*host]()
	reg.Add(PhaseEnter, After, Bound(binder.Params(binder.Arg("to"), binder.Arg("custom_attr")),
		func(_ context.Context, _ *host, args binder.Args) error {
			got = args.Values()

			return nil
		}))

	var wrapped []any

	reg.Add(PhaseEnter, Around, BoundWrap(binder.Params(binder.Arg("from"), binder.RestArgs("rest")),
		func(ctx context.Context, _ *host, args binder.Args, next Next) error {
			wrapped = args.Values()

			return next(ctx)
		}))

	h := &host{}
	res := reg.Run(t.Context(), PhaseEnter, "accepted", h, transition(), persist(h))
	require.True(t, res.Continued())

	assert.Equal(t, []any{"accepted", "x"}, got)
	assert.Equal(t, []any{"new", "alice"}, wrapped)
}

func TestNestedPhases(t *testing.T) {
	t.Parallel()

	reg := NewRegistry[*host]()

	for _, phase := range Phases() {
		reg.Add(phase, Before, record("before_"+phase.String()))
		reg.Add(phase, After, record("after_"+phase.String()))
	}

	h := &host{}
	tc := transition()

	res := reg.Run(t.Context(), PhaseTransition, tc.Event, h, tc, func(ctx context.Context) Result {
		return reg.Run(ctx, PhaseExit, tc.From, h, tc, func(ctx context.Context) Result {
			return reg.Run(ctx, PhaseEnter, tc.To, h, tc, persist(h))
		})
	})

	require.True(t, res.Continued())
	assert.Equal(t, []string{
		"before_transition", "before_exit", "before_enter",
		"persist",
		"after_enter", "after_exit", "after_transition",
	}, h.calls)
}

func TestResult(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Continue().AsError())
	require.ErrorIs(t, Failed(errBoom).AsError(), errBoom)

	reason, ok := IsHalt(Halted("why").AsError())
	require.True(t, ok)
	assert.Equal(t, "why", reason)

	assert.Equal(t, "transition halted", Halt("").Error())
	assert.Equal(t, "transition halted: why", Halt("why").Error())
	assert.Equal(t, OutcomeHalted, FromError(Halt("x")).Outcome)
	assert.Equal(t, "failed", OutcomeFailed.String())
}
