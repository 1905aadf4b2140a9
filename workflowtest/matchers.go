package workflowtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/amp-labs/amp-workflow/workflow"
)

// Matcher errors.
var (
	ErrNoTrace            = errors.New("no attempts recorded")
	ErrNoMatchersPassed   = errors.New("no matchers passed")
	ErrStateNotVisited    = errors.New("state was not visited")
	ErrTransitionNotTaken = errors.New("transition was not taken")
	ErrWrongState         = errors.New("unexpected state")
	ErrNotHalted          = errors.New("attempt was not halted")
	ErrUnexpectedError    = errors.New("attempt returned an unexpected error")
	ErrExpectedError      = errors.New("attempt completed without the expected error")
	ErrTooSlow            = errors.New("attempts exceeded time limit")
)

// Matcher checks a recorded trace.
type Matcher interface {
	Match(trace Trace) (bool, error)
	Description() string
}

// StateWasVisited matches a trace in which some attempt started from or
// committed to name.
func StateWasVisited(name string) Matcher { //nolint:ireturn
	return &stateVisitedMatcher{stateName: name}
}

type stateVisitedMatcher struct {
	stateName string
}

func (m *stateVisitedMatcher) Match(trace Trace) (bool, error) {
	for _, entry := range trace {
		if entry.From == m.stateName || entry.State == m.stateName {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: '%s'", ErrStateNotVisited, m.stateName)
}

func (m *stateVisitedMatcher) Description() string {
	return fmt.Sprintf("state '%s' should be visited", m.stateName)
}

// TransitionWasTaken matches a trace with a committed attempt from -> to.
func TransitionWasTaken(from, to string) Matcher { //nolint:ireturn
	return &transitionTakenMatcher{from: from, to: to}
}

type transitionTakenMatcher struct {
	from string
	to   string
}

func (m *transitionTakenMatcher) Match(trace Trace) (bool, error) {
	for _, entry := range trace.Committed() {
		if entry.From == m.from && entry.State == m.to {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: from '%s' to '%s'", ErrTransitionNotTaken, m.from, m.to)
}

func (m *transitionTakenMatcher) Description() string {
	return fmt.Sprintf("transition from '%s' to '%s' should be taken", m.from, m.to)
}

// EndedIn matches a trace whose last attempt left the instance in state.
func EndedIn(state string) Matcher { //nolint:ireturn
	return &endedInMatcher{state: state}
}

type endedInMatcher struct {
	state string
}

func (m *endedInMatcher) Match(trace Trace) (bool, error) {
	last, ok := trace.Last()
	if !ok {
		return false, ErrNoTrace
	}

	if last.State != m.state {
		return false, fmt.Errorf("%w: '%s', expected '%s'", ErrWrongState, last.State, m.state)
	}

	return true, nil
}

func (m *endedInMatcher) Description() string {
	return fmt.Sprintf("last attempt should end in '%s'", m.state)
}

// LastHalted matches a trace whose last attempt halted with reason.
func LastHalted(reason string) Matcher { //nolint:ireturn
	return &lastHaltedMatcher{reason: reason}
}

type lastHaltedMatcher struct {
	reason string
}

func (m *lastHaltedMatcher) Match(trace Trace) (bool, error) {
	last, ok := trace.Last()
	if !ok {
		return false, ErrNoTrace
	}

	if last.Outcome != workflow.OutcomeHalted || last.Reason != m.reason {
		return false, fmt.Errorf("%w: %s", ErrNotHalted, last)
	}

	return true, nil
}

func (m *lastHaltedMatcher) Description() string {
	return fmt.Sprintf("last attempt should halt with reason '%s'", m.reason)
}

// LastSucceeded matches a trace whose last attempt returned no error.
func LastSucceeded() Matcher { //nolint:ireturn
	return &lastSucceededMatcher{}
}

type lastSucceededMatcher struct{}

func (m *lastSucceededMatcher) Match(trace Trace) (bool, error) {
	last, ok := trace.Last()
	if !ok {
		return false, ErrNoTrace
	}

	if last.Error != nil {
		return false, fmt.Errorf("%w: %w", ErrUnexpectedError, last.Error)
	}

	return true, nil
}

func (m *lastSucceededMatcher) Description() string {
	return "last attempt should succeed"
}

// LastFailedWith matches a trace whose last attempt returned an error
// matching target, or any error when target is nil.
func LastFailedWith(target error) Matcher { //nolint:ireturn
	return &lastFailedMatcher{target: target}
}

type lastFailedMatcher struct {
	target error
}

func (m *lastFailedMatcher) Match(trace Trace) (bool, error) {
	last, ok := trace.Last()
	if !ok {
		return false, ErrNoTrace
	}

	if !last.Failed(m.target) {
		return false, fmt.Errorf("%w: %s", ErrExpectedError, last)
	}

	return true, nil
}

func (m *lastFailedMatcher) Description() string {
	if m.target == nil {
		return "last attempt should fail"
	}

	return fmt.Sprintf("last attempt should fail with %v", m.target)
}

// TookLessThan matches a trace whose attempts took at most duration in total.
func TookLessThan(duration time.Duration) Matcher { //nolint:ireturn
	return &durationMatcher{maxDuration: duration}
}

type durationMatcher struct {
	maxDuration time.Duration
}

func (m *durationMatcher) Match(trace Trace) (bool, error) {
	if total := trace.Total(); total > m.maxDuration {
		return false, fmt.Errorf("%w: took %s, max %s", ErrTooSlow, total, m.maxDuration)
	}

	return true, nil
}

func (m *durationMatcher) Description() string {
	return fmt.Sprintf("attempts should take less than %s", m.maxDuration)
}

// All creates a matcher that requires all sub-matchers to pass.
func All(matchers ...Matcher) Matcher { //nolint:ireturn
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(trace Trace) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(trace)
		if !matched || err != nil {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any creates a matcher that requires at least one sub-matcher to pass.
func Any(matchers ...Matcher) Matcher { //nolint:ireturn
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(trace Trace) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(trace)
		if matched && err == nil {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}
