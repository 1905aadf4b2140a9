// Package workflowtest provides testing utilities for workflow machines.
//
//nolint:varnamelen // Short names idiomatic
package workflowtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/amp-labs/amp-workflow/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestMachine wraps a Machine, recording every attempt.
type TestMachine[T any] struct {
	*workflow.Machine[T]

	t     *testing.T
	store *RecordingStore
	trace Trace
}

// TraceEntry records a single attempt.
type TraceEntry struct {
	Timestamp time.Time
	Event     string
	From      string
	To        string
	State     string
	Outcome   workflow.Outcome
	Reason    string
	AttemptID uuid.UUID
	Duration  time.Duration
	Error     error
}

// NewTestMachine creates a machine for host on a RecordingStore holding initial.
func NewTestMachine[T any](t *testing.T, def *workflow.Definition[T], host T, initial string) *TestMachine[T] {
	t.Helper()

	store := NewRecordingStore(initial)

	m, err := workflow.New(def, host, workflow.WithStore(store))
	require.NoError(t, err, "failed to create machine")

	return &TestMachine[T]{
		Machine: m,
		t:       t,
		store:   store,
	}
}

// Fire fires event and records the attempt.
func (tm *TestMachine[T]) Fire(ctx context.Context, event string, opts ...workflow.FireOption) (workflow.Result, error) {
	tm.t.Helper()

	start := time.Now()
	res, err := tm.Machine.Fire(ctx, event, opts...)

	tm.trace = append(tm.trace, TraceEntry{
		Timestamp: start,
		Event:     event,
		From:      res.From,
		To:        res.To,
		State:     res.State,
		Outcome:   res.Outcome,
		Reason:    res.Reason,
		AttemptID: res.AttemptID,
		Duration:  time.Since(start),
		Error:     err,
	})

	return res, err
}

// MustFire fires event and fails the test on error.
func (tm *TestMachine[T]) MustFire(event string, opts ...workflow.FireOption) workflow.Result {
	tm.t.Helper()

	res, err := tm.Fire(tm.t.Context(), event, opts...)
	require.NoError(tm.t, err, "firing %s", event)

	return res
}

// Store returns the recording store backing the machine.
func (tm *TestMachine[T]) Store() *RecordingStore {
	return tm.store
}

// Trace returns the recorded attempts.
func (tm *TestMachine[T]) Trace() Trace {
	return tm.trace
}

// AssertState checks the stored state.
func (tm *TestMachine[T]) AssertState(expected string) {
	tm.t.Helper()

	current, err := tm.CurrentState(tm.t.Context())
	require.NoError(tm.t, err)
	require.Equal(tm.t, expected, current.Name(), "current state should be '%s'", expected)
}

// AssertCan checks whether event can fire right now.
func (tm *TestMachine[T]) AssertCan(event string, expected bool) {
	tm.t.Helper()

	ok, err := tm.Can(tm.t.Context(), event)
	require.NoError(tm.t, err)
	require.Equal(tm.t, expected, ok, "can fire '%s'", event)
}

// AssertStateVisited checks that an attempt committed to or started from state.
func (tm *TestMachine[T]) AssertStateVisited(state string) {
	tm.t.Helper()

	tm.Expect(StateWasVisited(state))
}

// AssertTransitionTaken checks that a committed attempt went from -> to.
func (tm *TestMachine[T]) AssertTransitionTaken(from, to string) {
	tm.t.Helper()

	tm.Expect(TransitionWasTaken(from, to))
}

// AssertHalted checks that the last attempt halted with reason.
func (tm *TestMachine[T]) AssertHalted(reason string) {
	tm.t.Helper()

	tm.Expect(LastHalted(reason))
}

// AssertPersisted checks every state written to the store, in order.
func (tm *TestMachine[T]) AssertPersisted(states ...string) {
	tm.t.Helper()

	require.Equal(tm.t, states, tm.store.Persisted(), "persisted states")
}

// Expect requires every matcher to pass against the trace.
func (tm *TestMachine[T]) Expect(matchers ...Matcher) {
	tm.t.Helper()

	for _, m := range matchers {
		ok, err := m.Match(tm.trace)
		require.True(tm.t, ok, "%s: %v", m.Description(), err)
	}
}

// Trace is the ordered list of attempts of a TestMachine.
type Trace []TraceEntry

// Last returns the most recent attempt.
func (tr Trace) Last() (TraceEntry, bool) {
	if len(tr) == 0 {
		return TraceEntry{}, false
	}

	return tr[len(tr)-1], true
}

// Committed keeps the committed attempts.
func (tr Trace) Committed() Trace {
	var out Trace

	for _, e := range tr {
		if e.Outcome == workflow.OutcomeCommitted {
			out = append(out, e)
		}
	}

	return out
}

// Total sums the duration of every attempt.
func (tr Trace) Total() time.Duration {
	var total time.Duration
	for _, e := range tr {
		total += e.Duration
	}

	return total
}

func (e TraceEntry) String() string {
	if e.Error != nil {
		return fmt.Sprintf("%s from %s: %v", e.Event, e.From, e.Error)
	}

	return fmt.Sprintf("%s %s -> %s (%s)", e.Event, e.From, e.State, e.Outcome)
}

// Failed reports whether the attempt returned an error matching target,
// or any error when target is nil.
func (e TraceEntry) Failed(target error) bool {
	if target == nil {
		return e.Error != nil
	}

	return errors.Is(e.Error, target)
}
