package binder

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TransitionContext carries the data of one in-flight transition attempt.
// It exists only while the attempt runs.
type TransitionContext struct {
	ID        uuid.UUID
	From      string
	To        string
	Event     string
	Args      []any
	StartedAt time.Time

	attributes map[string]any
	names      []string
}

// NewTransitionContext captures the caller's arguments and attributes. The
// inputs are copied, so the caller may reuse them.
func NewTransitionContext(from, to, event string, args []any, attrs map[string]any, names []string) *TransitionContext {
	attributes := maps.Clone(attrs)
	if attributes == nil {
		attributes = make(map[string]any)
	}

	return &TransitionContext{
		ID:         uuid.New(),
		From:       from,
		To:         to,
		Event:      event,
		Args:       slices.Clone(args),
		StartedAt:  time.Now(),
		attributes: attributes,
		names:      slices.Clone(names),
	}
}

// Attributes returns a copy of the named attributes.
func (tc *TransitionContext) Attributes() map[string]any {
	return maps.Clone(tc.attributes)
}

// Attribute returns one named attribute.
func (tc *TransitionContext) Attribute(name string) (any, bool) {
	v, ok := tc.attributes[name]

	return v, ok
}

// SetAttribute lets a callback hand a value to the callbacks that run after it.
func (tc *TransitionContext) SetAttribute(name string, value any) {
	tc.attributes[name] = value
}

// NamedArguments lists the names given to positional arguments.
func (tc *TransitionContext) NamedArguments() []string {
	return slices.Clone(tc.names)
}

// Named returns the positional argument registered under name.
func (tc *TransitionContext) Named(name string) (any, bool) {
	i := slices.Index(tc.names, name)
	if i < 0 || i >= len(tc.Args) {
		return nil, false
	}

	return tc.Args[i], true
}

// Values maps every named argument to its positional value.
func (tc *TransitionContext) Values() map[string]any {
	out := make(map[string]any, len(tc.names))

	for i, name := range tc.names {
		if i < len(tc.Args) {
			out[name] = tc.Args[i]
		}
	}

	return out
}

// It's considered good practice to use unexported custom types for context keys.
type contextKey string

const transitionKey contextKey = "transition"

// WithTransition stores tc in ctx for callbacks and guards.
func WithTransition(ctx context.Context, tc *TransitionContext) context.Context {
	return context.WithValue(ctx, transitionKey, tc)
}

// TransitionFrom returns the transition carried by ctx, if any.
func TransitionFrom(ctx context.Context) (*TransitionContext, bool) {
	if ctx == nil {
		return nil, false
	}

	tc, ok := ctx.Value(transitionKey).(*TransitionContext)

	return tc, ok && tc != nil
}
