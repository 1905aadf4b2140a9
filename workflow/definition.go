package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/amp-labs/amp-workflow/callbacks"
	"github.com/amp-labs/amp-workflow/graph"
	"go.opentelemetry.io/otel/trace"
)

// Definition binds a workflow graph to a host type: the callbacks, rescue
// handlers and always handlers every Machine of that host type runs. Build
// it once, before any transition, then share it between machines.
type Definition[T any] struct {
	spec           *graph.Spec
	callbacks      *callbacks.Registry[T]
	rescuers       []rescuer[T]
	always         []AlwaysFunc[T]
	config         Config
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	errs           []error
}

// Option configures a Definition.
type Option func(*defOptions)

type defOptions struct {
	config         *Config
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(o *defOptions) {
		o.config = &cfg
	}
}

// WithLogger sets the base logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *defOptions) {
		o.logger = l
	}
}

// WithTracerProvider sets the tracer provider; the global one is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *defOptions) {
		o.tracerProvider = tp
	}
}

// Define starts the definition of host type T over spec.
func Define[T any](spec *graph.Spec, opts ...Option) *Definition[T] {
	var o defOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := DefaultConfig()
	if o.config != nil {
		cfg = *o.config
	}

	d := &Definition[T]{
		spec:           spec,
		callbacks:      callbacks.NewRegistry[T](),
		config:         cfg,
		logger:         o.logger,
		tracerProvider: o.tracerProvider,
	}

	if spec == nil {
		d.errs = append(d.errs, fmt.Errorf("%w: nil spec", ErrInvalidDefinition))
	}

	return d
}

// Derive copies the definition for a specialised host. The copy may add or
// skip callbacks and handlers without affecting d. A non-nil spec replaces
// the graph, typically one built with graph.Extend.
func (d *Definition[T]) Derive(spec *graph.Spec) *Definition[T] {
	out := &Definition[T]{
		spec:           d.spec,
		callbacks:      d.callbacks.Clone(),
		rescuers:       slices.Clone(d.rescuers),
		always:         slices.Clone(d.always),
		config:         d.config,
		logger:         d.logger,
		tracerProvider: d.tracerProvider,
		errs:           slices.Clone(d.errs),
	}

	if spec != nil {
		out.spec = spec
	}

	return out
}

func (d *Definition[T]) Spec() *graph.Spec {
	return d.spec
}

func (d *Definition[T]) Config() Config {
	return d.config
}

// Callbacks exposes the registry, mostly for inspection.
func (d *Definition[T]) Callbacks() *callbacks.Registry[T] {
	return d.callbacks
}

// Err reports every problem found while defining callbacks.
func (d *Definition[T]) Err() error {
	err := errors.Join(append(slices.Clone(d.errs), d.callbacks.Err())...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	return nil
}

// On registers a callback for any phase and position.
func (d *Definition[T]) On(
	phase callbacks.Phase,
	pos callbacks.Position,
	c callbacks.Callable[T],
	opts ...callbacks.Option,
) *Definition[T] {
	d.callbacks.Add(phase, pos, c, opts...)

	return d
}

// Skip removes named callbacks, typically ones inherited through Derive.
func (d *Definition[T]) Skip(phase callbacks.Phase, pos callbacks.Position, name string) bool {
	return d.callbacks.Skip(phase, pos, name)
}

// BeforeTransition runs c before every transition, keyed by event name.
func (d *Definition[T]) BeforeTransition(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseTransition, callbacks.Before, c, opts...)
}

func (d *Definition[T]) AroundTransition(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseTransition, callbacks.Around, c, opts...)
}

func (d *Definition[T]) AfterTransition(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseTransition, callbacks.After, c, opts...)
}

// BeforeExit runs c before leaving a state, keyed by the state left.
func (d *Definition[T]) BeforeExit(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseExit, callbacks.Before, c, opts...)
}

func (d *Definition[T]) AroundExit(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseExit, callbacks.Around, c, opts...)
}

func (d *Definition[T]) AfterExit(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseExit, callbacks.After, c, opts...)
}

// BeforeEnter runs c before entering a state, keyed by the state entered.
func (d *Definition[T]) BeforeEnter(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseEnter, callbacks.Before, c, opts...)
}

func (d *Definition[T]) AroundEnter(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseEnter, callbacks.Around, c, opts...)
}

func (d *Definition[T]) AfterEnter(c callbacks.Callable[T], opts ...callbacks.Option) *Definition[T] {
	return d.On(callbacks.PhaseEnter, callbacks.After, c, opts...)
}

// EnsureAfterTransitions runs fn after every transition, whether it
// committed, halted or failed. An error from fn is added to the outcome.
func (d *Definition[T]) EnsureAfterTransitions(fn func(ctx context.Context, host T) error) *Definition[T] {
	return d.AroundTransition(callbacks.Wrap(func(ctx context.Context, host T, next callbacks.Next) error {
		err := next(ctx)

		return combineEnsure(err, fn(ctx, host))
	}), callbacks.Prepend(), callbacks.Named("ensure_after_transitions"))
}

// OnErrorOption configures OnError.
type OnErrorOption[T any] func(*onError[T])

type onError[T any] struct {
	rescue   RescueFunc[T]
	ensure   func(ctx context.Context, host T) error
	only     []string
	callback []callbacks.Option
}

// Rescue handles the matched error. Returning nil swallows it and the
// attempt is reported as halted.
func Rescue[T any](fn RescueFunc[T]) OnErrorOption[T] {
	return func(o *onError[T]) {
		o.rescue = fn
	}
}

// Ensure runs fn after every covered transition, failed or not.
func Ensure[T any](fn func(ctx context.Context, host T) error) OnErrorOption[T] {
	return func(o *onError[T]) {
		o.ensure = fn
	}
}

// ForEvents limits OnError to the named events.
func ForEvents[T any](events ...string) OnErrorOption[T] {
	return func(o *onError[T]) {
		o.only = append(o.only, events...)
	}
}

// When adds callback conditions, such as callbacks.If, to OnError.
func When[T any](opts ...callbacks.Option) OnErrorOption[T] {
	return func(o *onError[T]) {
		o.callback = append(o.callback, opts...)
	}
}

// OnError wraps transitions so errors matching m are handed to a Rescue
// function before they reach the rescue handlers. Unlike RescueFrom, it runs
// inside the transition, so Ensure sees the error before the attempt ends.
// Swallowing an error raised after the state was saved fails the attempt
// with callbacks.ErrHaltInAfter.
func (d *Definition[T]) OnError(m ErrorMatcher, opts ...OnErrorOption[T]) *Definition[T] {
	var o onError[T]
	for _, opt := range opts {
		opt(&o)
	}

	cbOpts := append([]callbacks.Option{callbacks.Prepend(), callbacks.Named("on_error")}, o.callback...)
	if len(o.only) > 0 {
		cbOpts = append(cbOpts, callbacks.OnlyEvents(o.only...))
	}

	return d.AroundTransition(callbacks.Wrap(func(ctx context.Context, host T, next callbacks.Next) error {
		err := next(ctx)

		if _, halted := callbacks.IsHalt(err); err != nil && !halted && m.Match(err) && o.rescue != nil {
			err = o.rescue(ctx, host, err)
		}

		if o.ensure != nil {
			err = combineEnsure(err, o.ensure(ctx, host))
		}

		return err
	}), cbOpts...)
}

// RescueFrom registers handler for errors matching m that escape a
// transition. Handlers are tried in registration order and the first match
// suppresses the error. The handler's own error is returned to the caller.
func (d *Definition[T]) RescueFrom(m ErrorMatcher, handler RescueFunc[T]) *Definition[T] {
	if m == nil || handler == nil {
		d.errs = append(d.errs, errors.New("rescue_from needs a matcher and a handler")) //nolint:err113

		return d
	}

	d.rescuers = append(d.rescuers, rescuer[T]{matcher: m, handler: handler})

	return d
}

// Always registers a handler run exactly once after every attempt, in
// registration order, whatever its outcome. Its errors are joined to the
// error returned by Fire and never suppressed.
func (d *Definition[T]) Always(handler AlwaysFunc[T]) *Definition[T] {
	if handler == nil {
		d.errs = append(d.errs, errors.New("always needs a handler")) //nolint:err113

		return d
	}

	d.always = append(d.always, handler)

	return d
}

// combineEnsure merges the outcome of a wrapped transition with the error of
// an ensure function. An ensure error replaces a halt signal.
func combineEnsure(err, ensureErr error) error {
	if ensureErr == nil {
		return err
	}

	if _, halted := callbacks.IsHalt(err); err == nil || halted {
		return ensureErr
	}

	return errors.Join(err, ensureErr)
}
