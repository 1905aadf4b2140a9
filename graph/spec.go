// Package graph holds the compiled state/event/transition graph of a workflow
// and the builder that produces it.
package graph

import (
	"fmt"
	"slices"
	"strconv"

	"facette.io/natsort"
	"github.com/zeebo/xxh3"
)

// Spec is the immutable graph of one workflow. It is safe for concurrent reads.
type Spec struct {
	name         string
	states       []*State
	byName       map[string]*State
	eventArgs    []string
	revertEvents bool
	meta         map[string]any
	fingerprint  uint64
}

func (s *Spec) Name() string {
	return s.name
}

// States returns every state in declaration order.
func (s *Spec) States() []*State {
	return slices.Clone(s.states)
}

// State returns the named state, or nil.
func (s *Spec) State(name string) *State {
	return s.byName[name]
}

// FindState is like State but reports unknown names as ErrNoSuchState.
func (s *Spec) FindState(name string) (*State, error) {
	st := s.byName[name]
	if st == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchState, name)
	}

	return st, nil
}

// InitialState is the first declared state.
func (s *Spec) InitialState() *State {
	return s.states[0]
}

// Events returns every event of every state, in declaration order.
func (s *Spec) Events() []*Event {
	var events []*Event

	for _, st := range s.states {
		events = append(events, st.events...)
	}

	return events
}

// UniqueEventNames lists event names once each, in first-seen order.
func (s *Spec) UniqueEventNames() []string {
	seen := make(map[string]struct{})

	var names []string

	for _, e := range s.Events() {
		if _, ok := seen[e.name]; ok {
			continue
		}

		seen[e.name] = struct{}{}
		names = append(names, e.name)
	}

	return names
}

// EventArgs names the positional arguments of every event, in order.
func (s *Spec) EventArgs() []string {
	return slices.Clone(s.eventArgs)
}

// RevertEvents reports whether revert_<event> events were generated.
func (s *Spec) RevertEvents() bool {
	return s.revertEvents
}

func (s *Spec) Meta() map[string]any {
	return s.meta
}

// TerminalStates returns the states no event leaves.
func (s *Spec) TerminalStates() []*State {
	var out []*State

	for _, st := range s.states {
		if st.IsTerminal() {
			out = append(out, st)
		}
	}

	return out
}

// TaggedWith returns the states carrying any of the tags.
func (s *Spec) TaggedWith(tags ...string) []*State {
	return s.filter(func(st *State) bool {
		return slices.ContainsFunc(tags, st.HasTag)
	})
}

// NotTaggedWith returns the states carrying none of the tags.
func (s *Spec) NotTaggedWith(tags ...string) []*State {
	return s.filter(func(st *State) bool {
		return !slices.ContainsFunc(tags, st.HasTag)
	})
}

// Tags lists every state tag once, in natural order.
func (s *Spec) Tags() []string {
	seen := make(map[string]struct{})

	var tags []string

	for _, st := range s.states {
		for _, tag := range st.tags {
			if _, ok := seen[tag]; !ok {
				seen[tag] = struct{}{}
				tags = append(tags, tag)
			}
		}
	}

	natsort.Sort(tags)

	return tags
}

// Fingerprint hashes the structural shape of the graph (states, events,
// targets and guard sources). Two builds of the same declarations agree.
func (s *Spec) Fingerprint() uint64 {
	return s.fingerprint
}

func (s *Spec) filter(keep func(*State) bool) []*State {
	var out []*State

	for _, st := range s.states {
		if keep(st) {
			out = append(out, st)
		}
	}

	return out
}

func computeFingerprint(s *Spec) uint64 {
	h := xxh3.New()

	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.WriteString(p)
			_, _ = h.WriteString("\x00")
		}
	}

	write(s.name, strconv.FormatBool(s.revertEvents))
	write(s.eventArgs...)

	for _, st := range s.states {
		write("state", st.name)
		write(st.tags...)

		for _, e := range st.events {
			write("event", e.name)

			for _, t := range e.transitions {
				write("to", t.targetName, t.condition.String())
			}
		}
	}

	return h.Sum64()
}
