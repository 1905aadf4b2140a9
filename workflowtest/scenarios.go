package workflowtest

import (
	"testing"

	"github.com/amp-labs/amp-workflow/workflow"
	"github.com/stretchr/testify/require"
)

// Scenario fires a sequence of events against a fresh machine.
type Scenario[T any] struct {
	Name       string
	Definition *workflow.Definition[T]
	Host       func() T
	Initial    string
	Steps      []Step
	Expect     []Matcher
	FinalState string
}

// Step is one event of a Scenario.
type Step struct {
	Event string
	Opts  []workflow.FireOption

	// WantState is the stored state after the step, when set.
	WantState string

	// WantErr must match the returned error with errors.Is.
	WantErr error

	// WantHalt expects the step to halt with this reason.
	WantHalt *string
}

// Halt is a helper for Step.WantHalt.
func Halt(reason string) *string {
	return &reason
}

// RunScenario runs sc as a subtest and returns the machine for further checks.
func RunScenario[T any](t *testing.T, sc Scenario[T]) *TestMachine[T] {
	t.Helper()

	var tm *TestMachine[T]

	t.Run(sc.Name, func(t *testing.T) {
		t.Helper()

		tm = NewTestMachine(t, sc.Definition, sc.Host(), sc.Initial)

		for i, step := range sc.Steps {
			res, err := tm.Fire(t.Context(), step.Event, step.Opts...)

			if step.WantErr != nil {
				require.ErrorIs(t, err, step.WantErr, "step %d (%s)", i, step.Event)
			} else {
				require.NoError(t, err, "step %d (%s)", i, step.Event)
			}

			if step.WantHalt != nil {
				require.True(t, res.Halted(), "step %d (%s) should halt", i, step.Event)
				require.Equal(t, *step.WantHalt, res.Reason, "step %d (%s)", i, step.Event)
			}

			if step.WantState != "" {
				tm.AssertState(step.WantState)
			}
		}

		tm.Expect(sc.Expect...)

		if sc.FinalState != "" {
			tm.AssertState(sc.FinalState)
		}
	})

	return tm
}
