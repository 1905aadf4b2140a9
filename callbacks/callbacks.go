// Package callbacks runs the hooks registered around a workflow transition.
//
// A transition nests three phases: the transition phase (keyed by event
// name) wraps the exit phase (keyed by the state being left), which wraps the
// enter phase (keyed by the state being entered), which wraps persistence.
// Each phase runs its before callbacks in order, then its around callbacks
// nested outermost-first, then the inner work, then its after callbacks.
//
// A callback stops the chain by returning Halt. The chain reports that as an
// explicit Result instead of an error, so no further callback runs and the
// new state is not persisted.
package callbacks

import (
	"context"
	"errors"

	"github.com/amp-labs/amp-workflow/binder"
)

var (
	// ErrAroundRequired is recorded when a callable that cannot wrap is registered in the around position.
	ErrAroundRequired = errors.New("around callbacks must accept a next function")
	// ErrNotAround is recorded when a wrapping callable is registered as before or after.
	ErrNotAround = errors.New("callable wraps next but is not registered as around")
	// ErrHaltInAfter is returned when an after callback halts; the transition has already run by then.
	ErrHaltInAfter = errors.New("after callbacks cannot halt")
	// ErrNilCallable is recorded when registering an empty Callable.
	ErrNilCallable = errors.New("callable is not set")
)

// Phase is one of the nested stages of a transition.
type Phase int

const (
	// PhaseTransition wraps the whole attempt and is keyed by event name.
	PhaseTransition Phase = iota
	// PhaseExit wraps leaving a state and is keyed by the state left.
	PhaseExit
	// PhaseEnter wraps entering a state and is keyed by the state entered.
	PhaseEnter
)

func (p Phase) String() string {
	switch p {
	case PhaseTransition:
		return "transition"
	case PhaseExit:
		return "exit"
	case PhaseEnter:
		return "enter"
	default:
		return "unknown"
	}
}

// Phases lists the phases outermost first.
func Phases() []Phase {
	return []Phase{PhaseTransition, PhaseExit, PhaseEnter}
}

// Position orders a callback relative to the work of its phase.
type Position int

const (
	Before Position = iota
	Around
	After
)

func (p Position) String() string {
	switch p {
	case Before:
		return "before"
	case Around:
		return "around"
	case After:
		return "after"
	default:
		return "unknown"
	}
}

// Next continues the chain from inside an around callback. It returns nil
// when the rest of the chain completed, a halt signal when it halted, or
// the error that escaped it.
type Next func(ctx context.Context) error

// Callable is the body of a callback together with the parameters it
// declares. Build one with Func, Bound, Wrap, BoundWrap or Method.
type Callable[T any] struct {
	label string
	sig   binder.Signature
	wraps bool
	fn    func(ctx context.Context, host T, args binder.Args, next Next) error
}

// Func is a callback that takes no transition data.
func Func[T any](fn func(ctx context.Context, host T) error) Callable[T] {
	return Callable[T]{
		label: "func",
		fn: func(ctx context.Context, host T, _ binder.Args, _ Next) error {
			return fn(ctx, host)
		},
	}
}

// Bound is a callback receiving the values bound to sig.
func Bound[T any](sig binder.Signature, fn func(ctx context.Context, host T, args binder.Args) error) Callable[T] {
	return Callable[T]{
		label: "func",
		sig:   sig,
		fn: func(ctx context.Context, host T, args binder.Args, _ Next) error {
			return fn(ctx, host, args)
		},
	}
}

// Wrap is an around callback. It must call next to let the rest of the chain run.
func Wrap[T any](fn func(ctx context.Context, host T, next Next) error) Callable[T] {
	return Callable[T]{
		label: "func",
		wraps: true,
		fn: func(ctx context.Context, host T, _ binder.Args, next Next) error {
			return fn(ctx, host, next)
		},
	}
}

// BoundWrap is an around callback receiving the values bound to sig.
func BoundWrap[T any](
	sig binder.Signature,
	fn func(ctx context.Context, host T, args binder.Args, next Next) error,
) Callable[T] {
	return Callable[T]{label: "func", sig: sig, wraps: true, fn: fn}
}

// Signature returns the declared parameters.
func (c Callable[T]) Signature() binder.Signature {
	return c.sig
}

// Wraps reports whether the callable expects a next function.
func (c Callable[T]) Wraps() bool {
	return c.wraps
}

func (c Callable[T]) String() string {
	return c.label
}

func (c Callable[T]) call(ctx context.Context, host T, tc *binder.TransitionContext, next Next) error {
	var args binder.Args
	if !c.sig.Empty() {
		args = binder.Bind(c.sig, tc)
	}

	return c.fn(ctx, host, args, next)
}
