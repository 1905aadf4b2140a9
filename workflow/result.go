package workflow

import (
	"github.com/google/uuid"
)

// Outcome is how an attempt ended.
type Outcome int

const (
	// OutcomeNone is the outcome of an attempt that failed with an error.
	OutcomeNone Outcome = iota
	// OutcomeCommitted means the new state was persisted and every callback ran.
	OutcomeCommitted
	// OutcomeHalted means a callback stopped the transition.
	OutcomeHalted
	// OutcomeRescued means a rescue handler suppressed the error of the attempt.
	OutcomeRescued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeCommitted:
		return "committed"
	case OutcomeHalted:
		return "halted"
	case OutcomeRescued:
		return "rescued"
	default:
		return "unknown"
	}
}

// Result describes one attempt to fire an event.
type Result struct {
	Outcome Outcome
	// Event is the fired event.
	Event string
	// From is the state the attempt started in. Empty if it could not be loaded.
	From string
	// To is the resolved target, empty when no transition matched.
	To string
	// State is the state the instance is in once the attempt is over.
	State string
	// Reason is the halt reason, if any.
	Reason string
	// Persisted is what Store.Persist returned.
	Persisted any
	// Rescued is the error a rescue handler suppressed.
	Rescued error
	// AttemptID identifies the transition context of the attempt.
	AttemptID uuid.UUID
}

func (r Result) Committed() bool {
	return r.Outcome == OutcomeCommitted
}

func (r Result) Halted() bool {
	return r.Outcome == OutcomeHalted
}

func (r Result) WasRescued() bool {
	return r.Outcome == OutcomeRescued
}

// Changed reports whether the attempt moved the instance to another state.
func (r Result) Changed() bool {
	return r.State != "" && r.State != r.From
}
