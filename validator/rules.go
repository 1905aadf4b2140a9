//nolint:lll // Long validation messages
package validator

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/amp-labs/amp-workflow/graph"
	"go.uber.org/atomic"
)

// Severity defines the severity level of a validation issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// RuleResult contains both errors and warnings from a rule check.
type RuleResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Rule checks a built workflow for one kind of problem.
type Rule interface {
	Name() string
	Severity() Severity
	Check(spec *graph.Spec) RuleResult
}

// DefaultRules returns the standard set of validation rules.
func DefaultRules() []Rule {
	return []Rule{
		&unreachableStateRule{},
		&shadowedTransitionRule{},
		&duplicateTransitionRule{},
		&namingConventionRule{},
		&terminalPathRule{},
	}
}

// registeredRules is replaced, never mutated, so readers can hold a snapshot.
var registeredRules = atomic.NewPointer(&[]Rule{}) //nolint:gochecknoglobals

// RegisterRule adds a rule that Validate runs after the default rules.
func RegisterRule(rule Rule) {
	for {
		current := registeredRules.Load()
		next := append(slices.Clone(*current), rule)

		if registeredRules.CompareAndSwap(current, &next) {
			return
		}
	}
}

// AllRules returns the default rules followed by the registered ones.
func AllRules() []Rule {
	return append(DefaultRules(), *registeredRules.Load()...)
}

// GuardedEventsRule warns about events whose every transition is guarded.
// Firing one can fail with no matching transition. It is not a default rule.
func GuardedEventsRule() Rule { //nolint:ireturn
	return &guardedEventRule{}
}

// unreachableStateRule checks for states that cannot be reached from the initial state.
type unreachableStateRule struct{}

func (r *unreachableStateRule) Name() string {
	return "UnreachableState"
}

func (r *unreachableStateRule) Severity() Severity {
	return SeverityError
}

func (r *unreachableStateRule) Check(spec *graph.Spec) RuleResult {
	var errors []ValidationError

	initial := spec.InitialState()
	reachable := reachableFrom(initial)

	for _, state := range spec.States() {
		if reachable[state.Name()] {
			continue
		}

		errors = append(errors, ValidationError{
			Code:     "UNREACHABLE_STATE",
			Message:  fmt.Sprintf("State '%s' cannot be reached from initial state '%s'", state.Name(), initial.Name()),
			Location: Location{State: state.Name()},
			Fix:      RemoveUnreachableState(state.Name()),
		})
	}

	return RuleResult{Errors: errors}
}

// shadowedTransitionRule checks for transitions declared after an
// unconditional one. The first match wins, so they can never be taken.
type shadowedTransitionRule struct{}

func (r *shadowedTransitionRule) Name() string {
	return "ShadowedTransition"
}

func (r *shadowedTransitionRule) Severity() Severity {
	return SeverityError
}

func (r *shadowedTransitionRule) Check(spec *graph.Spec) RuleResult {
	var errors []ValidationError

	for _, event := range spec.Events() {
		transitions := event.Transitions()

		for i, t := range transitions {
			if !t.Unconditional() || i == len(transitions)-1 {
				continue
			}

			errors = append(errors, ValidationError{
				Code: "SHADOWED_TRANSITION",
				Message: fmt.Sprintf("Event '%s' on state '%s' has %d transition(s) after the unconditional transition to '%s'",
					event.Name(), event.From().Name(), len(transitions)-i-1, t.Target().Name()),
				Location: Location{State: event.From().Name(), Event: event.Name()},
				Fix:      RemoveShadowedTransitions(event.From().Name(), event.Name()),
			})

			break
		}
	}

	return RuleResult{Errors: errors}
}

// duplicateTransitionRule checks for transitions of one event with the same target and condition.
type duplicateTransitionRule struct{}

func (r *duplicateTransitionRule) Name() string {
	return "DuplicateTransition"
}

func (r *duplicateTransitionRule) Severity() Severity {
	return SeverityError
}

func (r *duplicateTransitionRule) Check(spec *graph.Spec) RuleResult {
	var errors []ValidationError

	for _, event := range spec.Events() {
		seen := make(map[string]bool)

		for _, t := range event.Transitions() {
			cond := t.Condition().String()

			key := t.Target().Name() + ":" + cond
			if seen[key] {
				errors = append(errors, ValidationError{
					Code: "DUPLICATE_TRANSITION",
					Message: fmt.Sprintf("Event '%s' on state '%s' declares the transition to '%s' with condition '%s' twice",
						event.Name(), event.From().Name(), t.Target().Name(), cond),
					Location: Location{State: event.From().Name(), Event: event.Name()},
					Fix:      RemoveDuplicateTransition(event.From().Name(), event.Name(), t.Target().Name()),
				})
			}

			seen[key] = true
		}
	}

	return RuleResult{Errors: errors}
}

// namingConventionRule warns about state and event names that are not snake_case.
type namingConventionRule struct{}

func (r *namingConventionRule) Name() string {
	return "NamingConvention"
}

func (r *namingConventionRule) Severity() Severity {
	return SeverityWarning
}

func (r *namingConventionRule) Check(spec *graph.Spec) RuleResult {
	var warnings []ValidationWarning

	for _, state := range spec.States() {
		if !isSnakeCase(state.Name()) {
			warnings = append(warnings, ValidationWarning{
				Code:     "NAMING_CONVENTION",
				Message:  fmt.Sprintf("State '%s' should use snake_case naming (suggested: '%s')", state.Name(), toSnakeCase(state.Name())),
				Location: Location{State: state.Name()},
				Fix:      RenameState(state.Name(), toSnakeCase(state.Name())),
			})
		}
	}

	for _, name := range spec.UniqueEventNames() {
		if !isSnakeCase(name) {
			warnings = append(warnings, ValidationWarning{
				Code:     "NAMING_CONVENTION",
				Message:  fmt.Sprintf("Event '%s' should use snake_case naming (suggested: '%s')", name, toSnakeCase(name)),
				Location: Location{Event: name},
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// terminalPathRule warns about states from which no terminal state can be reached.
type terminalPathRule struct{}

func (r *terminalPathRule) Name() string {
	return "TerminalPath"
}

func (r *terminalPathRule) Severity() Severity {
	return SeverityWarning
}

func (r *terminalPathRule) Check(spec *graph.Spec) RuleResult {
	terminals := spec.TerminalStates()
	if len(terminals) == 0 {
		return RuleResult{Warnings: []ValidationWarning{{
			Code:    "NO_TERMINAL_STATE",
			Message: fmt.Sprintf("Workflow '%s' has no terminal state; every state declares events", spec.Name()),
		}}}
	}

	var warnings []ValidationWarning

	for _, state := range spec.States() {
		if state.IsTerminal() {
			continue
		}

		reachable := reachableFrom(state)

		exits := false

		for _, terminal := range terminals {
			if reachable[terminal.Name()] {
				exits = true

				break
			}
		}

		if !exits {
			warnings = append(warnings, ValidationWarning{
				Code:     "POTENTIAL_INFINITE_LOOP",
				Message:  fmt.Sprintf("State '%s' has no path to a terminal state", state.Name()),
				Location: Location{State: state.Name()},
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

type guardedEventRule struct{}

func (r *guardedEventRule) Name() string {
	return "GuardedEvent"
}

func (r *guardedEventRule) Severity() Severity {
	return SeverityWarning
}

func (r *guardedEventRule) Check(spec *graph.Spec) RuleResult {
	var warnings []ValidationWarning

	for _, event := range spec.Events() {
		fallback := false

		for _, t := range event.Transitions() {
			if t.Unconditional() {
				fallback = true

				break
			}
		}

		if !fallback {
			warnings = append(warnings, ValidationWarning{
				Code:     "NO_FALLBACK_TRANSITION",
				Message:  fmt.Sprintf("Event '%s' on state '%s' has no unconditional transition and may match nothing", event.Name(), event.From().Name()),
				Location: Location{State: event.From().Name(), Event: event.Name()},
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// reachableFrom returns the names of the states reachable from start, start included.
func reachableFrom(start *graph.State) map[string]bool {
	reachable := map[string]bool{start.Name(): true}

	queue := []*graph.State{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, event := range current.Events() {
			for _, t := range event.Transitions() {
				if next := t.Target(); !reachable[next.Name()] {
					reachable[next.Name()] = true
					queue = append(queue, next)
				}
			}
		}
	}

	return reachable
}

func isSnakeCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) || r == '-' || r == ' ' {
			return false
		}
	}

	return true
}

func toSnakeCase(s string) string {
	var sb strings.Builder

	for i, r := range s {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				sb.WriteRune('_')
			}

			sb.WriteRune(unicode.ToLower(r))
		case r == '-' || r == ' ':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
