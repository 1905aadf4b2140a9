package graph

import (
	"errors"
	"fmt"
)

// Definition errors. Build joins every one it finds, so callers should test
// with errors.Is.
var (
	// ErrNoStates indicates a workflow with no states at all.
	ErrNoStates = errors.New("workflow defines no states")
	// ErrStateNameRequired indicates a state declared with an empty name.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrEventNameRequired indicates an event declared with an empty name.
	ErrEventNameRequired = errors.New("event name is required")
	// ErrEventNameCollision indicates two events with the same name on one state.
	ErrEventNameCollision = errors.New("event already defined for state")
	// ErrNoTransitionsDefined indicates an event without any candidate transitions.
	ErrNoTransitionsDefined = errors.New("no transitions defined for event")
	// ErrNoEventTarget indicates a transition with an empty target.
	ErrNoEventTarget = errors.New("no event target given")
	// ErrDualEventDefinition indicates an event given both a direct target and a transition list.
	ErrDualEventDefinition = errors.New("event has both a target and a transition list")
	// ErrNoSuchState indicates a transition target or lookup naming an undeclared state.
	ErrNoSuchState = errors.New("no such state")
	// ErrInvalidGuard indicates a guard that failed validation when declared.
	ErrInvalidGuard = errors.New("invalid guard")
	// ErrStateComparison indicates a comparison against something that is not a state of the graph.
	ErrStateComparison = errors.New("cannot compare state")
	// ErrInvalidDefinition indicates a YAML definition that could not be decoded.
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// EventError wraps a definition error with the state and event it concerns.
type EventError struct {
	State string
	Event string
	Err   error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event [%s] on state [%s]: %v", e.Event, e.State, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// TargetError reports a transition pointing at a state that was never declared.
type TargetError struct {
	State  string
	Event  string
	Target string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("event %s on state %s transitions to %s but there is no such state",
		e.Event, e.State, e.Target)
}

func (e *TargetError) Unwrap() error {
	return ErrNoSuchState
}

func wrapEventError(state, event string, err error) error {
	if err == nil {
		return nil
	}

	return &EventError{State: state, Event: event, Err: err}
}
