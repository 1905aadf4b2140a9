// Package workflow runs workflow graphs against host objects: it resolves an
// event against the current state, runs the transition, exit and enter
// callback phases around persistence, and applies rescue and always handlers
// to the whole attempt.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/amp-labs/amp-workflow/binder"
	"github.com/amp-labs/amp-workflow/callbacks"
	"github.com/amp-labs/amp-workflow/graph"
	"github.com/amp-labs/amp-workflow/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
)

// AttemptPhase is the step an attempt is at.
type AttemptPhase int

const (
	PhaseIdle AttemptPhase = iota
	PhaseResolving
	PhaseGuarding
	PhaseRunning
)

func (p AttemptPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolving:
		return "resolving"
	case PhaseGuarding:
		return "guarding"
	case PhaseRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Machine is one workflow instance: a host object, its store and the
// definition it follows. A Machine runs one attempt at a time; a Fire issued
// while another is in flight, including from inside a callback, fails with
// ErrTransitionInProgress.
type Machine[T any] struct {
	def   *Definition[T]
	host  T
	store Store

	inFlight *atomic.Bool
	phase    AttemptPhase
	tc       *binder.TransitionContext

	halted        bool
	haltedBecause string
}

// MachineOption configures New.
type MachineOption func(*machineOptions)

type machineOptions struct {
	store Store
}

// WithStore sets where the state is loaded from and persisted to.
func WithStore(store Store) MachineOption {
	return func(o *machineOptions) {
		o.store = store
	}
}

// New binds host to def. Without WithStore, a host implementing Store is its
// own store; otherwise state lives in a MemoryStore.
func New[T any](def *Definition[T], host T, opts ...MachineOption) (*Machine[T], error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}

	if err := def.Err(); err != nil {
		return nil, err
	}

	var o machineOptions
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		if s, ok := any(host).(Store); ok {
			store = s
		} else {
			store = NewMemoryStore("")
		}
	}

	return &Machine[T]{
		def:      def,
		host:     host,
		store:    store,
		inFlight: atomic.NewBool(false),
	}, nil
}

func (m *Machine[T]) Host() T {
	return m.host
}

func (m *Machine[T]) Definition() *Definition[T] {
	return m.def
}

func (m *Machine[T]) Store() Store {
	return m.store
}

// Phase is the step of the attempt in flight, PhaseIdle between attempts.
func (m *Machine[T]) Phase() AttemptPhase {
	return m.phase
}

// TransitionContext is the context of the attempt in flight, nil otherwise.
func (m *Machine[T]) TransitionContext() *binder.TransitionContext {
	return m.tc
}

// Halted reports whether the last attempt was halted by a callback.
func (m *Machine[T]) Halted() bool {
	return m.halted
}

// HaltedBecause is the reason given by the callback that halted the last attempt.
func (m *Machine[T]) HaltedBecause() string {
	return m.haltedBecause
}

// CurrentState loads the stored state. An empty store means the initial state.
func (m *Machine[T]) CurrentState(ctx context.Context) (*graph.State, error) {
	name, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow state: %w", err)
	}

	if name == "" {
		return m.def.spec.InitialState(), nil
	}

	state := m.def.spec.State(name)
	if state == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, name)
	}

	return state, nil
}

// Is reports whether the instance is in the named state.
func (m *Machine[T]) Is(ctx context.Context, state string) (bool, error) {
	current, err := m.CurrentState(ctx)
	if err != nil {
		return false, err
	}

	return current.Name() == state, nil
}

// Can reports whether firing event now would find a transition. Guards are
// evaluated, callbacks are not run.
func (m *Machine[T]) Can(ctx context.Context, event string) (bool, error) {
	current, err := m.CurrentState(ctx)
	if err != nil {
		return false, err
	}

	ev := current.FindEvent(event)
	if ev == nil {
		return false, nil
	}

	to, err := ev.Evaluate(ctx, m.host)
	if err != nil {
		return false, err
	}

	return to != nil, nil
}

// AvailableEvents lists the events declared on the current state.
func (m *Machine[T]) AvailableEvents(ctx context.Context) ([]string, error) {
	current, err := m.CurrentState(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(current.Events()))
	for _, ev := range current.Events() {
		names = append(names, ev.Name())
	}

	return names, nil
}

// FireOption supplies arguments to one attempt.
type FireOption func(*fireOptions)

type fireOptions struct {
	args  []any
	attrs map[string]any
}

// Args passes positional event arguments, named by the workflow's event args.
func Args(args ...any) FireOption {
	return func(o *fireOptions) {
		o.args = append(o.args, args...)
	}
}

// Attr sets one transition context attribute.
func Attr(key string, value any) FireOption {
	return func(o *fireOptions) {
		if o.attrs == nil {
			o.attrs = make(map[string]any)
		}

		o.attrs[key] = value
	}
}

// Attrs sets transition context attributes.
func Attrs(attrs map[string]any) FireOption {
	return func(o *fireOptions) {
		if o.attrs == nil {
			o.attrs = make(map[string]any, len(attrs))
		}

		maps.Copy(o.attrs, attrs)
	}
}

// Fire runs event against the current state.
//
// A halted attempt is not an error: the Result reports it, unless the
// definition's config sets RaiseOnHalt. An event the current state does not
// declare fails with a NoSuchEventError, and an event whose guards all fail
// with a NoMatchingTransitionError. Errors that escape the attempt are
// offered to the rescue handlers, then always handlers run.
func (m *Machine[T]) Fire(ctx context.Context, event string, opts ...FireOption) (Result, error) {
	res, err := m.fire(ctx, event, opts)
	if err == nil && res.Halted() && m.def.config.RaiseOnHalt {
		return res, &HaltedError{Event: event, State: res.From, Reason: res.Reason}
	}

	return res, err
}

// FireStrict is Fire with halted attempts reported as a HaltedError.
func (m *Machine[T]) FireStrict(ctx context.Context, event string, opts ...FireOption) (Result, error) {
	res, err := m.fire(ctx, event, opts)
	if err == nil && res.Halted() {
		return res, &HaltedError{Event: event, State: res.From, Reason: res.Reason}
	}

	return res, err
}

func (m *Machine[T]) fire(ctx context.Context, event string, opts []FireOption) (res Result, err error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return Result{Event: event}, fmt.Errorf("%w: cannot fire %s", ErrTransitionInProgress, event)
	}
	defer m.inFlight.Store(false)

	var o fireOptions
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()

	m.halted, m.haltedBecause = false, ""

	ctx, span := m.startFireSpan(ctx, event)
	defer func() { endSpan(span, res, err) }()

	ctx = logger.With(ctx, "workflow", m.def.spec.Name(), "event", event)

	res, err = m.attempt(ctx, event, o)

	span.SetAttributes(attribute.String("from_state", res.From), attribute.String("to_state", res.To))

	if err != nil {
		res, err = m.rescue(ctx, res, err)
	}

	if alwaysErr := m.runAlways(ctx, res, err); alwaysErr != nil {
		err = errors.Join(err, alwaysErr)
	}

	m.observe(ctx, res, err, time.Since(start))

	return res, err
}

// attempt resolves the event and runs the callback phases around persistence.
func (m *Machine[T]) attempt(ctx context.Context, event string, o fireOptions) (Result, error) {
	res := Result{Event: event}

	m.phase = PhaseResolving

	defer func() {
		m.phase = PhaseIdle
		m.tc = nil
	}()

	from, err := m.CurrentState(ctx)
	if err != nil {
		return res, err
	}

	res.From = from.Name()
	res.State = from.Name()

	ev := from.FindEvent(event)
	if ev == nil {
		return res, &NoSuchEventError{Event: event, State: from.Name()}
	}

	m.phase = PhaseGuarding

	to, err := ev.Evaluate(ctx, m.host)
	if err != nil {
		return res, WrapTransitionError(event, from.Name(), "", err)
	}

	if to == nil {
		return res, &NoMatchingTransitionError{Event: event, State: from.Name()}
	}

	m.phase = PhaseRunning

	res.To = to.Name()

	tc := binder.NewTransitionContext(from.Name(), to.Name(), event, o.args, o.attrs, m.def.spec.EventArgs())
	m.tc = tc
	res.AttemptID = tc.ID

	ctx = binder.WithTransition(ctx, tc)
	ctx = logger.With(ctx, "attempt_id", tc.ID.String(), "from", from.Name(), "to", to.Name())

	if m.def.config.LogTransitions {
		m.log(ctx).Debug("firing workflow event")
	}

	var (
		persisted any
		wrote     bool
	)

	reg := m.def.callbacks

	out := reg.Run(ctx, callbacks.PhaseTransition, event, m.host, tc, func(ctx context.Context) callbacks.Result {
		return reg.Run(ctx, callbacks.PhaseExit, from.Name(), m.host, tc, func(ctx context.Context) callbacks.Result {
			return reg.Run(ctx, callbacks.PhaseEnter, to.Name(), m.host, tc, func(ctx context.Context) callbacks.Result {
				value, err := m.persist(ctx, to.Name())
				if err != nil {
					return callbacks.Failed(err)
				}

				persisted, wrote = value, true

				return callbacks.Continue()
			})
		})
	})

	if wrote {
		res.State = to.Name()
		res.Persisted = persisted
	}

	switch out.Outcome {
	case callbacks.OutcomeContinue:
		res.Outcome = OutcomeCommitted

		return res, nil
	case callbacks.OutcomeHalted:
		if wrote {
			// A halt reaching this point cannot undo the write.
			late := fmt.Errorf("%w: %s was already saved", callbacks.ErrHaltInAfter, to.Name())
			if out.Reason != "" {
				late = fmt.Errorf("%w: %s", late, out.Reason)
			}

			return res, WrapTransitionError(event, from.Name(), to.Name(),
				logger.AnnotateError(late, "attempt_id", tc.ID.String()))
		}

		res.Outcome = OutcomeHalted
		res.Reason = out.Reason
		m.halted, m.haltedBecause = true, out.Reason

		return res, nil
	default:
		return res, WrapTransitionError(event, from.Name(), to.Name(),
			logger.AnnotateError(out.Err, "attempt_id", tc.ID.String()))
	}
}

func (m *Machine[T]) persist(ctx context.Context, to string) (any, error) {
	ctx, span := m.startPersistSpan(ctx, to)
	defer span.End()

	value, err := m.store.Persist(ctx, to)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to persist state %s: %w", to, err)
	}

	return value, nil
}

func (m *Machine[T]) log(ctx context.Context) *slog.Logger {
	return logger.From(ctx, m.def.logger)
}

// observe logs the outcome and records its metrics.
func (m *Machine[T]) observe(ctx context.Context, res Result, err error, elapsed time.Duration) {
	outcome := res.Outcome.String()

	switch {
	case errors.Is(err, ErrNoSuchEvent):
		outcome = outcomeNoSuchEvent
	case errors.Is(err, ErrNoMatchingTransition):
		outcome = outcomeNoTransition
	case err != nil:
		outcome = outcomeError
	}

	m.recordMetrics(res.Event, res.From, res.To, outcome, elapsed.Seconds())

	if !m.def.config.LogTransitions {
		return
	}

	log := m.log(ctx)

	if traceID, spanID := traceIDs(ctx); traceID != "" {
		log = log.With("trace_id", traceID, "span_id", spanID)
	}

	switch {
	case err != nil:
		log.Error("workflow transition failed",
			"from", res.From, "to", res.To, "outcome", outcome, "error", err)
	case res.Halted():
		log.Info("workflow transition halted",
			"from", res.From, "to", res.To, "reason", res.Reason)
	case res.WasRescued():
		log.Warn("workflow transition error rescued",
			"from", res.From, "to", res.To, "error", res.Rescued)
	default:
		log.Info("workflow transition committed",
			"from", res.From, "to", res.State, "duration", elapsed)
	}
}
