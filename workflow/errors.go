package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchEvent indicates an event that is not declared on the current state.
	ErrNoSuchEvent = errors.New("no such event for current state")
	// ErrNoMatchingTransition indicates an event whose every candidate transition was rejected by its guards.
	ErrNoMatchingTransition = errors.New("no matching transition")
	// ErrHalted is matched by HaltedError, returned by FireStrict when a callback halts.
	ErrHalted = errors.New("transition halted")
	// ErrTransitionInProgress indicates a Fire on a machine that is already running a transition.
	ErrTransitionInProgress = errors.New("transition already in progress")
	// ErrUnknownState indicates a loaded state name the workflow does not declare.
	ErrUnknownState = errors.New("loaded state is not part of the workflow")
	// ErrInvalidDefinition wraps the problems found while defining callbacks.
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// NoSuchEventError reports an event fired from a state that does not declare it.
type NoSuchEventError struct {
	Event string
	State string
}

func (e *NoSuchEventError) Error() string {
	return fmt.Sprintf("there is no event %s defined for the %s state", e.Event, e.State)
}

func (e *NoSuchEventError) Unwrap() error {
	return ErrNoSuchEvent
}

// NoMatchingTransitionError reports an event whose guards all failed.
type NoMatchingTransitionError struct {
	Event string
	State string
}

func (e *NoMatchingTransitionError) Error() string {
	return fmt.Sprintf("no matching transition found on %s from state %s", e.Event, e.State)
}

func (e *NoMatchingTransitionError) Unwrap() error {
	return ErrNoMatchingTransition
}

// HaltedError is returned in place of a halted Result by FireStrict, or by
// Fire when RaiseOnHalt is configured.
type HaltedError struct {
	Event  string
	State  string
	Reason string
}

func (e *HaltedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transition %s from %s halted", e.Event, e.State)
	}

	return fmt.Sprintf("transition %s from %s halted: %s", e.Event, e.State, e.Reason)
}

func (e *HaltedError) Unwrap() error {
	return ErrHalted
}

// TransitionError wraps an error that escaped a transition with its endpoints.
type TransitionError struct {
	Event string
	From  string
	To    string
	Err   error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("transition %s from %s: %v", e.Event, e.From, e.Err)
	}

	return fmt.Sprintf("transition %s %s -> %s: %v", e.Event, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapTransitionError wraps err with transition context.
func WrapTransitionError(event, from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{Event: event, From: from, To: to, Err: err}
}
