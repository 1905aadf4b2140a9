package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/amp-labs/amp-workflow/binder"
	"github.com/amp-labs/amp-workflow/callbacks"
	"github.com/amp-labs/amp-workflow/graph"
	"github.com/amp-labs/amp-workflow/guard"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Approved bool
	Priority int

	calls    []string
	received []any
}

func (d *document) record(name string) {
	d.calls = append(d.calls, name)
}

func (d *document) IsApproved() bool {
	return d.Approved
}

func (d *document) Notify(to string, customAttr string) {
	d.received = append(d.received, to, customAttr)
}

func (d *document) Collect(to string, extra map[string]any) {
	d.received = append(d.received, to, extra)
}

var (
	errBase     = errors.New("base failure")
	errSpecific = fmt.Errorf("specific failure: %w", errBase)
	errBoom     = errors.New("boom")
)

func exampleSpec(t *testing.T, name string) *graph.Spec {
	t.Helper()

	b := graph.NewBuilder(name)
	b.State("new").Event("accept", "accepted")
	b.State("accepted").Event("archive", "archived")
	b.State("archived")

	spec, err := b.Build()
	require.NoError(t, err)

	return spec
}

func testDefinition(t *testing.T, spec *graph.Spec, opts ...Option) *Definition[*document] {
	t.Helper()

	cfg := DefaultConfig()
	cfg.MetricsEnabled = false
	cfg.TracingEnabled = false

	opts = append([]Option{WithConfig(cfg), WithLogger(slogt.New(t))}, opts...)

	return Define[*document](spec, opts...)
}

func newMachine(t *testing.T, def *Definition[*document], doc *document, store Store) *Machine[*document] {
	t.Helper()

	m, err := New(def, doc, WithStore(store))
	require.NoError(t, err)

	return m
}

func recorder(name string) callbacks.Callable[*document] {
	return callbacks.Func(func(_ context.Context, d *document) error {
		d.record(name)

		return nil
	})
}

func wrapRecorder(name string) callbacks.Callable[*document] {
	return callbacks.Wrap(func(ctx context.Context, d *document, next callbacks.Next) error {
		d.record(name + ":pre")
		err := next(ctx)
		d.record(name + ":post")

		return err
	})
}

func halter(name, reason string) callbacks.Callable[*document] {
	return callbacks.Func(func(_ context.Context, d *document) error {
		d.record(name)

		return callbacks.Halt(reason)
	})
}

func failer(name string, err error) callbacks.Callable[*document] {
	return callbacks.Func(func(_ context.Context, d *document) error {
		d.record(name)

		return err
	})
}

func TestExampleScenario(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := NewMemoryStore("")
	m := newMachine(t, testDefinition(t, exampleSpec(t, "example")), &document{}, store)

	res, err := m.Fire(ctx, "accept")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Equal(t, "new", res.From)
	assert.Equal(t, "accepted", res.State)
	assert.Equal(t, "accepted", res.Persisted)
	assert.True(t, res.Changed())
	assert.Equal(t, "accepted", store.State())

	res, err = m.Fire(ctx, "archive")
	require.NoError(t, err)
	assert.Equal(t, "archived", res.State)

	current, err := m.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "archived", current.Name())

	_, err = m.Fire(ctx, "accept")
	require.ErrorIs(t, err, ErrNoSuchEvent)

	var noEvent *NoSuchEventError
	require.ErrorAs(t, err, &noEvent)
	assert.Equal(t, "accept", noEvent.Event)
	assert.Equal(t, "archived", noEvent.State)
	assert.Equal(t, "there is no event accept defined for the archived state", err.Error())
	assert.Equal(t, int64(2), store.Writes())
}

func TestUndeclaredEventsFail(t *testing.T) {
	t.Parallel()

	spec := exampleSpec(t, "undeclared")
	def := testDefinition(t, spec)

	for _, state := range spec.States() {
		for _, event := range spec.UniqueEventNames() {
			if state.FindEvent(event) != nil {
				continue
			}

			store := NewMemoryStore(state.Name())
			m := newMachine(t, def, &document{}, store)

			_, err := m.Fire(t.Context(), event)
			require.ErrorIs(t, err, ErrNoSuchEvent, "%s on %s", event, state.Name())
			assert.Zero(t, store.Writes())
		}
	}
}

func guardedSpec(t *testing.T) *graph.Spec {
	t.Helper()

	b := graph.NewBuilder("guarded")
	b.State("draft").
		EventFunc("publish", func(eb *graph.EventBuilder) {
			eb.To("published", guard.If(guard.Method("IsApproved")))
		}).
		EventFunc("route", func(eb *graph.EventBuilder) {
			eb.To("urgent", guard.If(guard.Expr("Priority > 1")))
			eb.To("normal", guard.If(guard.Expr("Priority > 0")))
			eb.To("backlog")
		})
	b.State("published")
	b.State("urgent")
	b.State("normal")
	b.State("backlog")

	spec, err := b.Build()
	require.NoError(t, err)

	return spec
}

func TestNoMatchingTransitionWritesNothing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore("")
	def := testDefinition(t, guardedSpec(t))
	def.BeforeTransition(recorder("before"))

	doc := &document{}
	m := newMachine(t, def, doc, store)

	res, err := m.Fire(t.Context(), "publish")
	require.ErrorIs(t, err, ErrNoMatchingTransition)
	require.NotErrorIs(t, err, ErrNoSuchEvent)
	assert.Equal(t, OutcomeNone, res.Outcome)
	assert.False(t, res.Changed())
	assert.Empty(t, res.To)
	assert.Zero(t, store.Writes())
	assert.Empty(t, doc.calls)

	doc.Approved = true

	res, err = m.Fire(t.Context(), "publish")
	require.NoError(t, err)
	assert.Equal(t, "published", res.State)
}

func TestFirstMatchingTransitionWins(t *testing.T) {
	t.Parallel()

	def := testDefinition(t, guardedSpec(t))

	tests := []struct {
		priority int
		want     string
	}{
		{priority: 5, want: "urgent"},
		{priority: 1, want: "normal"},
		{priority: 0, want: "backlog"},
	}

	for _, tt := range tests {
		for range 3 {
			m := newMachine(t, def, &document{Priority: tt.priority}, NewMemoryStore(""))

			res, err := m.Fire(t.Context(), "route")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.State, "priority %d", tt.priority)
		}
	}
}

func TestCallbackPhasesNest(t *testing.T) {
	t.Parallel()

	doc := &document{}
	def := testDefinition(t, exampleSpec(t, "phases"))

	for _, phase := range callbacks.Phases() {
		def.On(phase, callbacks.Before, recorder("before_"+phase.String()))
		def.On(phase, callbacks.Around, wrapRecorder("around_"+phase.String()))
		def.On(phase, callbacks.After, recorder("after_"+phase.String()))
	}

	store := StoreFuncs{PersistFunc: func(_ context.Context, state string) (any, error) {
		doc.record("persist")

		return state, nil
	}}

	m := newMachine(t, def, doc, store)

	_, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before_transition", "around_transition:pre",
		"before_exit", "around_exit:pre",
		"before_enter", "around_enter:pre",
		"persist",
		"around_enter:post", "after_enter",
		"around_exit:post", "after_exit",
		"around_transition:post", "after_transition",
	}, doc.calls)
}

func TestHaltShortCircuits(t *testing.T) {
	t.Parallel()

	doc := &document{}
	store := NewMemoryStore("")
	def := testDefinition(t, exampleSpec(t, "halting")).
		BeforeTransition(recorder("first")).
		BeforeTransition(halter("second", "not ready")).
		BeforeTransition(recorder("third")).
		BeforeEnter(recorder("enter")).
		AfterTransition(recorder("after"))

	m := newMachine(t, def, doc, store)

	res, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)
	assert.Equal(t, OutcomeHalted, res.Outcome)
	assert.Equal(t, "not ready", res.Reason)
	assert.Equal(t, "new", res.State)
	assert.False(t, res.Changed())
	assert.True(t, m.Halted())
	assert.Equal(t, "not ready", m.HaltedBecause())
	assert.Equal(t, []string{"first", "second"}, doc.calls)
	assert.Zero(t, store.Writes())

	_, err = m.FireStrict(t.Context(), "accept")
	require.ErrorIs(t, err, ErrHalted)

	var halted *HaltedError
	require.ErrorAs(t, err, &halted)
	assert.Equal(t, "not ready", halted.Reason)
	assert.Equal(t, "new", halted.State)
}

func TestHaltStateResetsBetweenAttempts(t *testing.T) {
	t.Parallel()

	doc := &document{}
	def := testDefinition(t, exampleSpec(t, "halt_reset")).
		BeforeTransition(halter("gate", "closed"), callbacks.Unless(guard.Method("IsApproved")))

	m := newMachine(t, def, doc, NewMemoryStore(""))

	_, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)
	assert.True(t, m.Halted())

	doc.Approved = true

	res, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)
	assert.True(t, res.Committed())
	assert.False(t, m.Halted())
	assert.Empty(t, m.HaltedBecause())
}

func TestRaiseOnHalt(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MetricsEnabled = false
	cfg.TracingEnabled = false
	cfg.RaiseOnHalt = true

	def := Define[*document](exampleSpec(t, "raise_on_halt"), WithConfig(cfg)).
		AroundTransition(callbacks.Wrap(func(context.Context, *document, callbacks.Next) error {
			return nil
		}))

	m := newMachine(t, def, &document{}, NewMemoryStore(""))

	res, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, ErrHalted)
	assert.True(t, res.Halted())
	assert.Empty(t, res.Reason)
}

func TestArgumentBinding(t *testing.T) {
	t.Parallel()

	b := graph.NewBuilder("binding").EventArgs("actor")
	b.State("new").Event("accept", "accepted")
	b.State("accepted")

	spec, err := b.Build()
	require.NoError(t, err)

	doc := &document{}

	var seen binder.Args

	def := testDefinition(t, spec).
		AfterEnter(callbacks.Method[*document]("Notify", binder.Arg("to"), binder.Arg("custom_attr"))).
		AfterEnter(callbacks.Method[*document]("Collect", binder.Arg("to"), binder.KeyRest("rest"))).
		BeforeTransition(callbacks.Bound(binder.Params(binder.Arg("from"), binder.RestArgs("rest")),
			func(_ context.Context, _ *document, args binder.Args) error {
				seen = args

				return nil
			}))

	m := newMachine(t, def, doc, NewMemoryStore(""))

	_, err = m.Fire(t.Context(), "accept",
		Args("alice", 42),
		Attr("custom_attr", "x"),
		Attrs(map[string]any{"note": "hi"}))
	require.NoError(t, err)

	assert.Equal(t, []any{
		"accepted", "x",
		"accepted", map[string]any{"custom_attr": "x", "note": "hi"},
	}, doc.received)

	assert.Equal(t, []any{"new"}, seen.Positional)
	assert.Equal(t, []any{"alice", 42}, seen.Rest)
}

func TestTransitionContextLifecycle(t *testing.T) {
	t.Parallel()

	var (
		m          *Machine[*document]
		during     *binder.TransitionContext
		fromCtx    *binder.TransitionContext
		phase      AttemptPhase
		nestedErr  error
		afterwards *binder.TransitionContext
	)

	def := testDefinition(t, exampleSpec(t, "lifecycle")).
		BeforeTransition(callbacks.Func(func(ctx context.Context, _ *document) error {
			during = m.TransitionContext()
			fromCtx, _ = binder.TransitionFrom(ctx)
			phase = m.Phase()
			_, nestedErr = m.Fire(ctx, "accept")

			return nil
		})).
		Always(func(context.Context, *document, Result, error) error {
			afterwards = m.TransitionContext()

			return nil
		})

	m = newMachine(t, def, &document{}, NewMemoryStore(""))

	res, err := m.Fire(t.Context(), "accept", Attr("k", "v"))
	require.NoError(t, err)

	require.NotNil(t, during)
	assert.Same(t, during, fromCtx)
	assert.Equal(t, res.AttemptID, during.ID)
	assert.Equal(t, "new", during.From)
	assert.Equal(t, "accepted", during.To)
	assert.Equal(t, "accept", during.Event)
	assert.Equal(t, PhaseRunning, phase)
	require.ErrorIs(t, nestedErr, ErrTransitionInProgress)

	assert.Nil(t, afterwards)
	assert.Nil(t, m.TransitionContext())
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestTransitionContextClearedOnFailure(t *testing.T) {
	t.Parallel()

	def := testDefinition(t, exampleSpec(t, "cleared")).
		BeforeEnter(failer("enter", errBoom))

	m := newMachine(t, def, &document{}, NewMemoryStore(""))

	_, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, errBoom)
	assert.Nil(t, m.TransitionContext())
	assert.Equal(t, PhaseIdle, m.Phase())

	_, err = m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, errBoom)
}

func TestEscapedErrorPropagates(t *testing.T) {
	t.Parallel()

	doc := &document{}
	store := NewMemoryStore("")
	def := testDefinition(t, exampleSpec(t, "escaped")).
		BeforeEnter(failer("enter", errBoom)).
		AfterTransition(recorder("after"))

	m := newMachine(t, def, doc, store)

	res, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, errBoom)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "accept", terr.Event)
	assert.Equal(t, "new", terr.From)
	assert.Equal(t, "accepted", terr.To)

	assert.Equal(t, OutcomeNone, res.Outcome)
	assert.Equal(t, "new", res.State)
	assert.Equal(t, []string{"enter"}, doc.calls)
	assert.Zero(t, store.Writes())
}

func TestPersistFailure(t *testing.T) {
	t.Parallel()

	doc := &document{}
	errDisk := errors.New("disk full")
	def := testDefinition(t, exampleSpec(t, "persist_failure")).
		AfterEnter(recorder("after_enter"))

	m := newMachine(t, def, doc, StoreFuncs{
		PersistFunc: func(context.Context, string) (any, error) {
			return nil, errDisk
		},
	})

	res, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, errDisk)
	assert.Equal(t, "new", res.State)
	assert.Nil(t, res.Persisted)
	assert.Empty(t, doc.calls)
}

func TestRescueOrdering(t *testing.T) {
	t.Parallel()

	var handled []string

	def := testDefinition(t, exampleSpec(t, "rescue")).
		BeforeEnter(failer("enter", errSpecific)).
		RescueFrom(Is(errBase), func(_ context.Context, _ *document, err error) error {
			handled = append(handled, "base")

			return nil
		}).
		RescueFrom(Is(errSpecific), func(context.Context, *document, error) error {
			handled = append(handled, "specific")

			return nil
		})

	store := NewMemoryStore("")
	m := newMachine(t, def, &document{}, store)

	res, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, handled)
	assert.Equal(t, OutcomeRescued, res.Outcome)
	assert.True(t, res.WasRescued())
	require.ErrorIs(t, res.Rescued, errSpecific)
	assert.Equal(t, "new", res.State)
	assert.Zero(t, store.Writes())
}

func TestRescueHandlerError(t *testing.T) {
	t.Parallel()

	errTranslated := errors.New("translated")

	def := testDefinition(t, exampleSpec(t, "rescue_error")).
		BeforeEnter(failer("enter", errBoom)).
		RescueFrom(As[*TransitionError](), func(_ context.Context, _ *document, err error) error {
			return fmt.Errorf("%w: %w", errTranslated, err)
		})

	m := newMachine(t, def, &document{}, NewMemoryStore(""))

	res, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, errTranslated)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, OutcomeRescued, res.Outcome)
}

func TestRescueCoversLookupErrors(t *testing.T) {
	t.Parallel()

	var rescued error

	def := testDefinition(t, exampleSpec(t, "rescue_lookup")).
		RescueFrom(As[*NoSuchEventError](), func(_ context.Context, _ *document, err error) error {
			rescued = err

			return nil
		})

	m := newMachine(t, def, &document{}, NewMemoryStore(""))

	res, err := m.Fire(t.Context(), "archive")
	require.NoError(t, err)
	require.ErrorIs(t, rescued, ErrNoSuchEvent)
	assert.Equal(t, OutcomeRescued, res.Outcome)
	assert.Equal(t, "new", res.State)
}

func TestUnmatchedErrorIsNotRescued(t *testing.T) {
	t.Parallel()

	called := false

	def := testDefinition(t, exampleSpec(t, "rescue_unmatched")).
		BeforeEnter(failer("enter", errBoom)).
		RescueFrom(Is(errBase), func(context.Context, *document, error) error {
			called = true

			return nil
		})

	m := newMachine(t, def, &document{}, NewMemoryStore(""))

	_, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, errBoom)
	assert.False(t, called)
}

func TestAlwaysHandlers(t *testing.T) {
	t.Parallel()

	var seen []string

	errAlways := errors.New("always failed")

	def := testDefinition(t, exampleSpec(t, "always")).
		BeforeTransition(halter("gate", "stop"), callbacks.OnlyEvents("archive")).
		Always(func(_ context.Context, _ *document, res Result, _ error) error {
			seen = append(seen, "first:"+res.Outcome.String())

			return nil
		}).
		Always(func(_ context.Context, _ *document, res Result, err error) error {
			seen = append(seen, "second:"+res.Event)

			if err != nil {
				return errAlways
			}

			return nil
		})

	store := NewMemoryStore("")
	m := newMachine(t, def, &document{}, store)

	_, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)

	_, err = m.Fire(t.Context(), "archive")
	require.NoError(t, err)

	_, err = m.Fire(t.Context(), "missing")
	require.ErrorIs(t, err, ErrNoSuchEvent)
	require.ErrorIs(t, err, errAlways)

	assert.Equal(t, []string{
		"first:committed", "second:accept",
		"first:halted", "second:archive",
		"first:none", "second:missing",
	}, seen)
}

func TestEnsureAfterTransitions(t *testing.T) {
	t.Parallel()

	doc := &document{}
	errEnsure := errors.New("cleanup failed")
	fail := false

	def := testDefinition(t, exampleSpec(t, "ensure")).
		AroundTransition(wrapRecorder("outer")).
		BeforeEnter(failer("enter", errBoom), callbacks.Only("archived")).
		EnsureAfterTransitions(func(_ context.Context, d *document) error {
			d.record("ensure")

			if fail {
				return errEnsure
			}

			return nil
		})

	store := NewMemoryStore("")
	m := newMachine(t, def, doc, store)

	_, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)
	assert.Equal(t, []string{"outer:pre", "outer:post", "ensure"}, doc.calls)

	doc.calls = nil

	_, err = m.Fire(t.Context(), "archive")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"outer:pre", "enter", "outer:post", "ensure"}, doc.calls)

	fail = true
	store = NewMemoryStore("")
	m = newMachine(t, def, doc, store)

	res, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, errEnsure)
	assert.Equal(t, "accepted", res.State)
	assert.Equal(t, "accepted", store.State())
}

func TestOnError(t *testing.T) {
	t.Parallel()

	doc := &document{}
	var rescued error

	def := testDefinition(t, exampleSpec(t, "on_error")).
		BeforeEnter(failer("enter", errSpecific)).
		OnError(Is(errBase),
			Rescue(func(_ context.Context, _ *document, err error) error {
				rescued = err

				return nil
			}),
			Ensure(func(_ context.Context, d *document) error {
				d.record("ensure")

				return nil
			}),
			ForEvents[*document]("accept"))

	store := NewMemoryStore("")
	m := newMachine(t, def, doc, store)

	res, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)
	require.ErrorIs(t, rescued, errSpecific)
	assert.Equal(t, OutcomeHalted, res.Outcome)
	assert.Equal(t, []string{"enter", "ensure"}, doc.calls)
	assert.Zero(t, store.Writes())
}

func TestOnErrorIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	def := testDefinition(t, exampleSpec(t, "on_error_events")).
		BeforeEnter(failer("enter", errBoom), callbacks.Only("archived")).
		OnError(Any(),
			Rescue(func(context.Context, *document, error) error { return nil }),
			ForEvents[*document]("accept"))

	m := newMachine(t, def, &document{}, NewMemoryStore("accepted"))

	_, err := m.Fire(t.Context(), "archive")
	require.ErrorIs(t, err, errBoom)
}

func TestHaltAfterWriteFails(t *testing.T) {
	t.Parallel()

	def := testDefinition(t, exampleSpec(t, "late_halt")).
		AroundTransition(callbacks.Wrap(func(ctx context.Context, _ *document, next callbacks.Next) error {
			if err := next(ctx); err != nil {
				return err
			}

			return callbacks.Halt("late")
		}))

	store := NewMemoryStore("")
	m := newMachine(t, def, &document{}, store)

	res, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, callbacks.ErrHaltInAfter)
	assert.ErrorContains(t, err, "late")
	assert.Equal(t, OutcomeNone, res.Outcome)
	assert.Equal(t, "accepted", res.State)
	assert.False(t, m.Halted())
	assert.Equal(t, "accepted", store.State())
	assert.Equal(t, int64(1), store.Writes())

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "accepted", transitionErr.To)

	_, err = m.FireStrict(t.Context(), "archive")
	require.ErrorIs(t, err, callbacks.ErrHaltInAfter)

	var haltedErr *HaltedError
	assert.NotErrorAs(t, err, &haltedErr)
}

func TestOnErrorCannotSwallowAfterWrite(t *testing.T) {
	t.Parallel()

	doc := &document{}
	def := testDefinition(t, exampleSpec(t, "late_rescue")).
		AfterEnter(failer("after", errBoom)).
		OnError(Any(),
			Rescue(func(context.Context, *document, error) error { return nil }))

	store := NewMemoryStore("")
	m := newMachine(t, def, doc, store)

	res, err := m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, callbacks.ErrHaltInAfter)
	assert.Equal(t, OutcomeNone, res.Outcome)
	assert.False(t, m.Halted())
	assert.Equal(t, []string{"after"}, doc.calls)
	assert.Equal(t, "accepted", store.State())
	assert.Equal(t, int64(1), store.Writes())
}

func TestDeriveIsolatesRegistrations(t *testing.T) {
	t.Parallel()

	parent := testDefinition(t, exampleSpec(t, "derive")).
		BeforeTransition(recorder("audit"), callbacks.Named("audit"))

	child := parent.Derive(nil)
	assert.True(t, child.Skip(callbacks.PhaseTransition, callbacks.Before, "audit"))
	child.BeforeTransition(recorder("child"))

	parentDoc, childDoc := &document{}, &document{}

	_, err := newMachine(t, parent, parentDoc, NewMemoryStore("")).Fire(t.Context(), "accept")
	require.NoError(t, err)

	_, err = newMachine(t, child, childDoc, NewMemoryStore("")).Fire(t.Context(), "accept")
	require.NoError(t, err)

	assert.Equal(t, []string{"audit"}, parentDoc.calls)
	assert.Equal(t, []string{"child"}, childDoc.calls)
}

func TestDeriveWithExtendedGraph(t *testing.T) {
	t.Parallel()

	base := graph.NewBuilder("base")
	base.State("new").Event("accept", "accepted")
	base.State("accepted")

	baseSpec, err := base.Build()
	require.NoError(t, err)

	ext := graph.Extend("extended", base)
	ext.State("accepted").Event("archive", "archived")
	ext.State("archived")

	extSpec, err := ext.Build()
	require.NoError(t, err)

	parent := testDefinition(t, baseSpec)
	child := parent.Derive(extSpec)

	m := newMachine(t, child, &document{}, NewMemoryStore("accepted"))

	res, err := m.Fire(t.Context(), "archive")
	require.NoError(t, err)
	assert.Equal(t, "archived", res.State)

	_, err = newMachine(t, parent, &document{}, NewMemoryStore("accepted")).Fire(t.Context(), "archive")
	require.ErrorIs(t, err, ErrNoSuchEvent)
}

func TestQueries(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	doc := &document{}
	m := newMachine(t, testDefinition(t, guardedSpec(t)), doc, NewMemoryStore(""))

	ok, err := m.Is(ctx, "draft")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Can(ctx, "publish")
	require.NoError(t, err)
	assert.False(t, ok)

	doc.Approved = true

	ok, err = m.Can(ctx, "publish")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Can(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	events, err := m.AvailableEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"publish", "route"}, events)

	assert.Same(t, doc, m.Host())
}

func TestUnknownStoredState(t *testing.T) {
	t.Parallel()

	m := newMachine(t, testDefinition(t, exampleSpec(t, "unknown")), &document{}, NewMemoryStore("deleted"))

	_, err := m.CurrentState(t.Context())
	require.ErrorIs(t, err, ErrUnknownState)

	_, err = m.Fire(t.Context(), "accept")
	require.ErrorIs(t, err, ErrUnknownState)
}

type selfStored struct {
	document

	state string
}

func (s *selfStored) Load(context.Context) (string, error) {
	return s.state, nil
}

func (s *selfStored) Persist(_ context.Context, state string) (any, error) {
	s.state = state

	return len(state), nil
}

func TestHostAsStore(t *testing.T) {
	t.Parallel()

	host := &selfStored{}
	def := Define[*selfStored](exampleSpec(t, "self_stored"), WithLogger(slogt.New(t)))

	m, err := New(def, host)
	require.NoError(t, err)

	res, err := m.Fire(t.Context(), "accept")
	require.NoError(t, err)
	assert.Equal(t, "accepted", host.state)
	assert.Equal(t, len("accepted"), res.Persisted)
}

func TestDefaultMemoryStore(t *testing.T) {
	t.Parallel()

	m, err := New(testDefinition(t, exampleSpec(t, "default_store")), &document{})
	require.NoError(t, err)

	_, err = m.Fire(t.Context(), "accept")
	require.NoError(t, err)

	store, ok := m.Store().(*MemoryStore)
	require.True(t, ok)
	assert.Equal(t, "accepted", store.State())
}

func TestNewRejectsInvalidDefinition(t *testing.T) {
	t.Parallel()

	def := testDefinition(t, exampleSpec(t, "invalid")).
		BeforeTransition(callbacks.Callable[*document]{}).
		Always(nil)

	_, err := New(def, &document{})
	require.ErrorIs(t, err, ErrInvalidDefinition)
	require.ErrorIs(t, err, callbacks.ErrNilCallable)

	_, err = New[*document](nil, &document{})
	require.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = New(Define[*document](nil), &document{})
	require.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestMatchers(t *testing.T) {
	t.Parallel()

	terr := WrapTransitionError("accept", "new", "accepted", errSpecific)

	assert.True(t, Is(errBase).Match(terr))
	assert.False(t, Is(errBoom).Match(terr))
	assert.True(t, As[*TransitionError]().Match(terr))
	assert.False(t, As[*HaltedError]().Match(terr))
	assert.True(t, Any().Match(terr))
	assert.False(t, Any().Match(nil))
	assert.True(t, MatchFunc("long", func(err error) bool { return len(err.Error()) > 10 }).Match(terr))
	assert.Equal(t, "as(*workflow.TransitionError)", As[*TransitionError]().String())
	assert.Equal(t, "any", Any().String())
}
