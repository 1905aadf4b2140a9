package callbacks

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/amp-labs/amp-workflow/binder"
	"github.com/amp-labs/amp-workflow/guard"
)

// Registration is one callback attached to a phase and position.
type Registration[T any] struct {
	Name     string
	Phase    Phase
	Position Position
	Callable Callable[T]

	only         []string
	except       []string
	onlyEvents   []string
	exceptEvents []string
	condition    guard.Condition
	prepend      bool
}

// Option configures a registration.
type Option func(*options)

type options struct {
	name         string
	only         []string
	except       []string
	onlyEvents   []string
	exceptEvents []string
	guards       []guard.Option
	prepend      bool
}

// Named labels the registration so it can be skipped later.
func Named(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Only runs the callback when the phase key is one of keys: the event name
// for the transition phase, the state left for exit, the state entered for enter.
func Only(keys ...string) Option {
	return func(o *options) {
		o.only = append(o.only, keys...)
	}
}

// Except skips the callback when the phase key is one of keys.
func Except(keys ...string) Option {
	return func(o *options) {
		o.except = append(o.except, keys...)
	}
}

// OnlyEvents runs the callback only for the named events, whatever the phase.
func OnlyEvents(events ...string) Option {
	return func(o *options) {
		o.onlyEvents = append(o.onlyEvents, events...)
	}
}

// ExceptEvents skips the callback for the named events, whatever the phase.
func ExceptEvents(events ...string) Option {
	return func(o *options) {
		o.exceptEvents = append(o.exceptEvents, events...)
	}
}

// If runs the callback only when every guard holds.
func If(guards ...guard.Guard) Option {
	return func(o *options) {
		o.guards = append(o.guards, guard.If(guards...))
	}
}

// Unless skips the callback when any guard holds.
func Unless(guards ...guard.Guard) Option {
	return func(o *options) {
		o.guards = append(o.guards, guard.Unless(guards...))
	}
}

// Prepend puts the callback ahead of those already registered.
func Prepend() Option {
	return func(o *options) {
		o.prepend = true
	}
}

// Registry holds the callbacks of one host type, per phase and position.
// It is built before any transition runs and only read afterwards.
type Registry[T any] struct {
	chains map[Phase]map[Position][]*Registration[T]
	errs   []error
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{chains: make(map[Phase]map[Position][]*Registration[T])}
}

// Add registers a callback.
func (r *Registry[T]) Add(phase Phase, pos Position, c Callable[T], opts ...Option) *Registry[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg := &Registration[T]{
		Name:         o.name,
		Phase:        phase,
		Position:     pos,
		Callable:     c,
		only:         o.only,
		except:       o.except,
		onlyEvents:   o.onlyEvents,
		exceptEvents: o.exceptEvents,
		condition:    guard.New(o.guards...),
		prepend:      o.prepend,
	}

	if reg.Name == "" {
		reg.Name = c.label
	}

	switch {
	case c.fn == nil:
		r.errs = append(r.errs, fmt.Errorf("%w: %s %s", ErrNilCallable, pos, phase))

		return r
	case pos == Around && !c.wraps:
		r.errs = append(r.errs, fmt.Errorf("%w: %s", ErrAroundRequired, reg.Name))

		return r
	case pos != Around && c.wraps:
		r.errs = append(r.errs, fmt.Errorf("%w: %s %s %s", ErrNotAround, reg.Name, pos, phase))

		return r
	}

	if err := reg.condition.Err(); err != nil {
		r.errs = append(r.errs, fmt.Errorf("callback %s: %w", reg.Name, err))

		return r
	}

	if r.chains[phase] == nil {
		r.chains[phase] = make(map[Position][]*Registration[T])
	}

	if o.prepend {
		r.chains[phase][pos] = append([]*Registration[T]{reg}, r.chains[phase][pos]...)
	} else {
		r.chains[phase][pos] = append(r.chains[phase][pos], reg)
	}

	return r
}

// Skip removes every registration with the given name from a phase and
// position. It reports whether anything was removed.
func (r *Registry[T]) Skip(phase Phase, pos Position, name string) bool {
	chain := r.chains[phase][pos]
	kept := slices.DeleteFunc(slices.Clone(chain), func(reg *Registration[T]) bool {
		return reg.Name == name
	})

	if len(kept) == len(chain) {
		return false
	}

	r.chains[phase][pos] = kept

	return true
}

// Clone copies the registry so a derived host type can extend or skip
// callbacks without touching its parent.
func (r *Registry[T]) Clone() *Registry[T] {
	out := NewRegistry[T]()
	out.errs = slices.Clone(r.errs)

	for phase, positions := range r.chains {
		out.chains[phase] = make(map[Position][]*Registration[T], len(positions))
		for pos, chain := range positions {
			out.chains[phase][pos] = slices.Clone(chain)
		}
	}

	return out
}

// Registrations lists the callbacks of one phase and position in run order.
func (r *Registry[T]) Registrations(phase Phase, pos Position) []*Registration[T] {
	return slices.Clone(r.chains[phase][pos])
}

// Len counts every registration.
func (r *Registry[T]) Len() int {
	n := 0

	for _, positions := range r.chains {
		for _, chain := range positions {
			n += len(chain)
		}
	}

	return n
}

// Err joins the problems found while registering.
func (r *Registry[T]) Err() error {
	return errors.Join(r.errs...)
}

// applies decides whether reg runs for this phase key and transition.
func (reg *Registration[T]) applies(ctx context.Context, key string, host T, tc *binder.TransitionContext) (bool, error) {
	if len(reg.only) > 0 && !slices.Contains(reg.only, key) {
		return false, nil
	}

	if slices.Contains(reg.except, key) {
		return false, nil
	}

	event := ""
	if tc != nil {
		event = tc.Event
	}

	if len(reg.onlyEvents) > 0 && !slices.Contains(reg.onlyEvents, event) {
		return false, nil
	}

	if slices.Contains(reg.exceptEvents, event) {
		return false, nil
	}

	if reg.condition.Empty() {
		return true, nil
	}

	ok, err := reg.condition.Apply(ctx, host)
	if err != nil {
		return false, fmt.Errorf("callback %s condition: %w", reg.Name, err)
	}

	return ok, nil
}
