package callbacks

import (
	"errors"
)

// HaltError is the signal a callback returns to stop the chain. It is
// turned into a halted Result and never escapes as an error.
type HaltError struct {
	Reason string
}

func (e *HaltError) Error() string {
	if e.Reason == "" {
		return "transition halted"
	}

	return "transition halted: " + e.Reason
}

// Halt stops the chain. The reason is optional.
func Halt(reason string) error {
	return &HaltError{Reason: reason}
}

// IsHalt reports whether err carries a halt signal, and its reason.
func IsHalt(err error) (string, bool) {
	var halt *HaltError
	if errors.As(err, &halt) {
		return halt.Reason, true
	}

	return "", false
}

// Outcome is how a chain, or one phase of it, ended.
type Outcome int

const (
	OutcomeContinue Outcome = iota
	OutcomeHalted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeHalted:
		return "halted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is returned through every nested phase in place of non-local exits.
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

// Continue is the result of a chain that ran to the end.
func Continue() Result {
	return Result{Outcome: OutcomeContinue}
}

// Halted is the result of a chain stopped by a halt signal.
func Halted(reason string) Result {
	return Result{Outcome: OutcomeHalted, Reason: reason}
}

// Failed is the result of a chain an error escaped from.
func Failed(err error) Result {
	return Result{Outcome: OutcomeFailed, Err: err}
}

// FromError classifies the value returned by a callback.
func FromError(err error) Result {
	if err == nil {
		return Continue()
	}

	if reason, ok := IsHalt(err); ok {
		return Halted(reason)
	}

	return Failed(err)
}

// AsError converts the result back into what a Next function returns.
func (r Result) AsError() error {
	switch r.Outcome {
	case OutcomeHalted:
		return Halt(r.Reason)
	case OutcomeFailed:
		return r.Err
	default:
		return nil
	}
}

func (r Result) Continued() bool {
	return r.Outcome == OutcomeContinue
}

func (r Result) IsHalted() bool {
	return r.Outcome == OutcomeHalted
}

func (r Result) IsFailed() bool {
	return r.Outcome == OutcomeFailed
}
