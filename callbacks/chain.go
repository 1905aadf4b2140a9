package callbacks

import (
	"context"
	"fmt"

	"github.com/amp-labs/amp-workflow/binder"
)

// Run executes one phase around inner. key selects Only/Except filtering
// (see Only). inner is the work the phase wraps: the next phase, or
// persistence for the innermost one.
//
// Before callbacks run in order and may halt. Around callbacks nest in
// registration order; one that returns without calling next halts the
// chain. After callbacks run in order once everything inside succeeded.
func (r *Registry[T]) Run(
	ctx context.Context,
	phase Phase,
	key string,
	host T,
	tc *binder.TransitionContext,
	inner func(ctx context.Context) Result,
) Result {
	for _, reg := range r.chains[phase][Before] {
		ok, err := reg.applies(ctx, key, host, tc)
		if err != nil {
			return Failed(err)
		}

		if !ok {
			continue
		}

		if res := FromError(reg.Callable.call(ctx, host, tc, nil)); !res.Continued() {
			return res
		}
	}

	arounds, err := r.applicable(ctx, phase, Around, key, host, tc)
	if err != nil {
		return Failed(err)
	}

	res := r.runArounds(ctx, arounds, host, tc, inner)
	if !res.Continued() {
		return res
	}

	for _, reg := range r.chains[phase][After] {
		ok, err := reg.applies(ctx, key, host, tc)
		if err != nil {
			return Failed(err)
		}

		if !ok {
			continue
		}

		err = reg.Callable.call(ctx, host, tc, nil)
		if reason, halted := IsHalt(err); halted {
			return Failed(fmt.Errorf("%w: %s %s %s: %s", ErrHaltInAfter, reg.Name, After, phase, reason))
		}

		if err != nil {
			return Failed(err)
		}
	}

	return Continue()
}

func (r *Registry[T]) applicable(
	ctx context.Context,
	phase Phase,
	pos Position,
	key string,
	host T,
	tc *binder.TransitionContext,
) ([]*Registration[T], error) {
	var out []*Registration[T]

	for _, reg := range r.chains[phase][pos] {
		ok, err := reg.applies(ctx, key, host, tc)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, reg)
		}
	}

	return out, nil
}

// runArounds nests arounds[0] outermost. The result of the innermost work
// travels back out through each around's next.
func (r *Registry[T]) runArounds(
	ctx context.Context,
	arounds []*Registration[T],
	host T,
	tc *binder.TransitionContext,
	inner func(ctx context.Context) Result,
) Result {
	if len(arounds) == 0 {
		return inner(ctx)
	}

	var (
		called   bool
		innerRes Result
	)

	next := func(ctx context.Context) error {
		if called {
			return innerRes.AsError()
		}

		called = true
		innerRes = r.runArounds(ctx, arounds[1:], host, tc, inner)

		return innerRes.AsError()
	}

	res := FromError(arounds[0].Callable.call(ctx, host, tc, next))

	switch {
	case !res.Continued():
		return res
	case !called:
		// The around callback chose not to continue.
		return Halted("")
	case innerRes.IsHalted():
		return innerRes
	case innerRes.IsFailed():
		// The around callback swallowed the failure.
		return Halted("")
	default:
		return Continue()
	}
}
