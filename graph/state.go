package graph

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/amp-labs/amp-workflow/guard"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is a named node of a built Spec. States are immutable once built.
type State struct {
	name     string
	sequence int
	tags     []string
	meta     map[string]any
	events   []*Event
	spec     *Spec
}

// Name returns the state's unique name.
func (s *State) Name() string {
	return s.name
}

// Sequence is the state's declaration order, starting at zero.
func (s *State) Sequence() int {
	return s.sequence
}

func (s *State) Tags() []string {
	return slices.Clone(s.tags)
}

// HasTag reports whether the state carries the tag.
func (s *State) HasTag(tag string) bool {
	return slices.Contains(s.tags, tag)
}

func (s *State) Meta() map[string]any {
	return s.meta
}

// Events returns the events leaving this state in declaration order.
func (s *State) Events() []*Event {
	return slices.Clone(s.events)
}

// FindEvent returns the event with the given name, or nil.
func (s *State) FindEvent(name string) *Event {
	for _, e := range s.events {
		if e.name == name {
			return e
		}
	}

	return nil
}

// IsInitial reports whether this is the first declared state.
func (s *State) IsInitial() bool {
	return s.sequence == 0
}

// IsTerminal reports whether no events leave this state.
func (s *State) IsTerminal() bool {
	return len(s.events) == 0
}

// Title renders the name for humans, "being_reviewed" becomes "Being Reviewed".
func (s *State) Title() string {
	return titleize(s.name)
}

func (s *State) String() string {
	return s.name
}

// Compare orders this state against the named state by declaration order.
// Naming a state that is not part of the same graph is an error.
func (s *State) Compare(other string) (int, error) {
	if s.spec == nil {
		return 0, fmt.Errorf("%w: %s is detached", ErrStateComparison, s.name)
	}

	o := s.spec.State(other)
	if o == nil {
		return 0, fmt.Errorf("%w: %q is not a state of %s", ErrStateComparison, other, s.spec.name)
	}

	return cmp.Compare(s.sequence, o.sequence), nil
}

// Before reports whether this state was declared before the named state.
func (s *State) Before(other string) (bool, error) {
	c, err := s.Compare(other)

	return c < 0, err
}

// After reports whether this state was declared after the named state.
func (s *State) After(other string) (bool, error) {
	c, err := s.Compare(other)

	return c > 0, err
}

// Event is a named, guarded move out of a State.
type Event struct {
	name        string
	from        *State
	tags        []string
	meta        map[string]any
	transitions []*Transition
}

func (e *Event) Name() string {
	return e.name
}

// From returns the state the event leaves.
func (e *Event) From() *State {
	return e.from
}

func (e *Event) Tags() []string {
	return slices.Clone(e.tags)
}

func (e *Event) HasTag(tag string) bool {
	return slices.Contains(e.tags, tag)
}

func (e *Event) Meta() map[string]any {
	return e.meta
}

// Transitions returns the candidate transitions in declaration order.
func (e *Event) Transitions() []*Transition {
	return slices.Clone(e.transitions)
}

func (e *Event) Title() string {
	return titleize(e.name)
}

func (e *Event) String() string {
	return e.name
}

// Evaluate returns the target of the first declared transition whose
// condition holds for target, or nil when none does.
func (e *Event) Evaluate(ctx context.Context, target any) (*State, error) {
	for _, t := range e.transitions {
		ok, err := t.condition.Apply(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("event %s to %s: %w", e.name, t.targetName, err)
		}

		if ok {
			return t.target, nil
		}
	}

	return nil, nil //nolint:nilnil
}

// Transition is one candidate target of an Event.
type Transition struct {
	targetName string
	target     *State
	condition  guard.Condition
}

// Target returns the resolved target state.
func (t *Transition) Target() *State {
	return t.target
}

func (t *Transition) Condition() guard.Condition {
	return t.condition
}

// Unconditional reports whether the transition always matches.
func (t *Transition) Unconditional() bool {
	return t.condition.Empty()
}

func titleize(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})

	return cases.Title(language.English).String(strings.Join(words, " "))
}
