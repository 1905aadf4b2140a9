package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/amp-labs/amp-workflow/guard"
)

// RevertPrefix is prepended to an event's name to form its generated revert event.
const RevertPrefix = "revert_"

// Builder collects workflow declarations and compiles them into a Spec.
// Declarations may reference states that are declared later.
type Builder struct {
	name      string
	states    []*stateDecl
	byName    map[string]*stateDecl
	eventArgs []string
	revert    bool
	meta      map[string]any
	errs      []error
}

type stateDecl struct {
	name   string
	tags   []string
	meta   map[string]any
	events []*eventDecl
}

type eventDecl struct {
	name        string
	tags        []string
	meta        map[string]any
	transitions []transitionDecl

	// when holds the guard of a single-transition declaration.
	when []guard.Option
}

type transitionDecl struct {
	target string
	cond   guard.Condition
}

// NewBuilder starts a new workflow definition.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		byName: make(map[string]*stateDecl),
		meta:   make(map[string]any),
	}
}

// Extend starts a builder seeded with every declaration of base. The new
// builder may reopen base's states and add new ones; base is not modified.
func Extend(name string, base *Builder) *Builder {
	b := NewBuilder(name)
	b.eventArgs = slices.Clone(base.eventArgs)
	b.revert = base.revert
	b.meta = maps.Clone(base.meta)
	b.errs = slices.Clone(base.errs)

	for _, sd := range base.states {
		clone := &stateDecl{
			name: sd.name,
			tags: slices.Clone(sd.tags),
			meta: maps.Clone(sd.meta),
		}

		for _, ed := range sd.events {
			clone.events = append(clone.events, &eventDecl{
				name:        ed.name,
				tags:        slices.Clone(ed.tags),
				meta:        maps.Clone(ed.meta),
				transitions: slices.Clone(ed.transitions),
			})
		}

		b.states = append(b.states, clone)
		b.byName[clone.name] = clone
	}

	return b
}

// Name returns the workflow name.
func (b *Builder) Name() string {
	return b.name
}

// EventArgs names the positional arguments passed to events.
func (b *Builder) EventArgs(names ...string) *Builder {
	b.eventArgs = names

	return b
}

// DefineRevertEvents generates, for each single-transition event E from S to
// T, an event revert_E on T leading back to S.
func (b *Builder) DefineRevertEvents() *Builder {
	b.revert = true

	return b
}

// Meta attaches workflow-level metadata.
func (b *Builder) Meta(meta map[string]any) *Builder {
	maps.Copy(b.meta, meta)

	return b
}

// StateOption configures a state declaration.
type StateOption func(*stateDecl)

// WithTags tags a state.
func WithTags(tags ...string) StateOption {
	return func(sd *stateDecl) {
		for _, tag := range tags {
			if !slices.Contains(sd.tags, tag) {
				sd.tags = append(sd.tags, tag)
			}
		}
	}
}

// WithMeta attaches metadata to a state.
func WithMeta(meta map[string]any) StateOption {
	return func(sd *stateDecl) {
		if sd.meta == nil {
			sd.meta = make(map[string]any)
		}

		maps.Copy(sd.meta, meta)
	}
}

// State declares a state, or reopens one declared earlier. The first state
// declared is the initial state.
func (b *Builder) State(name string, opts ...StateOption) *StateBuilder {
	sd, ok := b.byName[name]
	if !ok {
		sd = &stateDecl{name: name}

		if name == "" {
			b.errs = append(b.errs, ErrStateNameRequired)
		} else {
			b.byName[name] = sd
		}

		b.states = append(b.states, sd)
	}

	for _, opt := range opts {
		opt(sd)
	}

	return &StateBuilder{builder: b, decl: sd}
}

// StateBuilder declares the events of one state.
type StateBuilder struct {
	builder *Builder
	decl    *stateDecl
}

// EventOption configures an event declaration.
type EventOption func(*eventDecl)

// WithEventTags tags an event.
func WithEventTags(tags ...string) EventOption {
	return func(ed *eventDecl) {
		ed.tags = append(ed.tags, tags...)
	}
}

// WithEventMeta attaches metadata to an event.
func WithEventMeta(meta map[string]any) EventOption {
	return func(ed *eventDecl) {
		if ed.meta == nil {
			ed.meta = make(map[string]any)
		}

		maps.Copy(ed.meta, meta)
	}
}

// When guards the single transition declared by StateBuilder.Event.
func When(opts ...guard.Option) EventOption {
	return func(ed *eventDecl) {
		ed.when = append(ed.when, opts...)
	}
}

// Event declares an event with a single transition to target. Use When to
// make the transition conditional.
func (sb *StateBuilder) Event(name, target string, opts ...EventOption) *StateBuilder {
	if target == "" {
		sb.builder.errs = append(sb.builder.errs, wrapEventError(sb.decl.name, name, ErrNoEventTarget))

		return sb
	}

	return sb.EventFunc(name, func(eb *EventBuilder) {
		eb.To(target, eb.decl.when...)
	}, opts...)
}

// EventFunc declares an event whose candidate transitions are listed by fn.
// Candidates are tried in declaration order; the first that matches wins.
func (sb *StateBuilder) EventFunc(name string, fn func(*EventBuilder), opts ...EventOption) *StateBuilder {
	if name == "" {
		sb.builder.errs = append(sb.builder.errs, wrapEventError(sb.decl.name, name, ErrEventNameRequired))

		return sb
	}

	if sb.hasEvent(name) {
		sb.builder.errs = append(sb.builder.errs, wrapEventError(sb.decl.name, name, ErrEventNameCollision))

		return sb
	}

	ed := &eventDecl{name: name}
	for _, opt := range opts {
		opt(ed)
	}

	if fn != nil {
		fn(&EventBuilder{decl: ed})
	}

	if len(ed.transitions) == 0 {
		sb.builder.errs = append(sb.builder.errs, wrapEventError(sb.decl.name, name, ErrNoTransitionsDefined))

		return sb
	}

	sb.decl.events = append(sb.decl.events, ed)

	return sb
}

// State continues the chain with another state declaration.
func (sb *StateBuilder) State(name string, opts ...StateOption) *StateBuilder {
	return sb.builder.State(name, opts...)
}

// Build is a shortcut for the parent builder's Build.
func (sb *StateBuilder) Build() (*Spec, error) {
	return sb.builder.Build()
}

func (sb *StateBuilder) hasEvent(name string) bool {
	return slices.ContainsFunc(sb.decl.events, func(ed *eventDecl) bool {
		return ed.name == name
	})
}

// EventBuilder lists the candidate transitions of an event.
type EventBuilder struct {
	decl *eventDecl
}

// To adds a candidate transition to target, guarded by opts.
func (eb *EventBuilder) To(target string, opts ...guard.Option) *EventBuilder {
	eb.decl.transitions = append(eb.decl.transitions, transitionDecl{
		target: target,
		cond:   guard.New(opts...),
	})

	return eb
}

// Build compiles the declarations into a Spec. Every definition error found
// is reported, joined.
func (b *Builder) Build() (*Spec, error) {
	errs := slices.Clone(b.errs)

	if len(b.states) == 0 {
		return nil, errors.Join(append(errs, ErrNoStates)...)
	}

	spec := &Spec{
		name:         b.name,
		byName:       make(map[string]*State, len(b.states)),
		eventArgs:    slices.Clone(b.eventArgs),
		revertEvents: b.revert,
		meta:         maps.Clone(b.meta),
	}

	// First pass: states and events, targets unresolved.
	for i, sd := range b.states {
		st := &State{
			name:     sd.name,
			sequence: i,
			tags:     slices.Clone(sd.tags),
			meta:     maps.Clone(sd.meta),
			spec:     spec,
		}

		for _, ed := range sd.events {
			ev := &Event{
				name: ed.name,
				from: st,
				tags: slices.Clone(ed.tags),
				meta: maps.Clone(ed.meta),
			}

			for _, td := range ed.transitions {
				ev.transitions = append(ev.transitions, &Transition{
					targetName: td.target,
					condition:  td.cond,
				})
			}

			st.events = append(st.events, ev)
		}

		spec.states = append(spec.states, st)
		if sd.name != "" {
			spec.byName[sd.name] = st
		}
	}

	// Second pass: resolve targets now that every state exists.
	for _, st := range spec.states {
		for _, ev := range st.events {
			for _, t := range ev.transitions {
				if t.targetName == "" {
					errs = append(errs, wrapEventError(st.name, ev.name, ErrNoEventTarget))

					continue
				}

				t.target = spec.byName[t.targetName]
				if t.target == nil {
					errs = append(errs, &TargetError{State: st.name, Event: ev.name, Target: t.targetName})
				}

				if err := t.condition.Err(); err != nil {
					errs = append(errs, wrapEventError(st.name, ev.name, fmt.Errorf("%w: %w", ErrInvalidGuard, err)))
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if b.revert {
		if err := addRevertEvents(spec); err != nil {
			return nil, err
		}
	}

	spec.fingerprint = computeFingerprint(spec)

	return spec, nil
}

// addRevertEvents adds revert_<event> to the target of every declared
// single-transition event. Events with several candidates are skipped since
// there is no single state to revert to from their targets.
func addRevertEvents(spec *Spec) error {
	type revert struct {
		on   *State
		name string
		back *State
	}

	var (
		reverts []revert
		errs    []error
	)

	for _, st := range spec.states {
		for _, ev := range st.events {
			if len(ev.transitions) != 1 {
				continue
			}

			reverts = append(reverts, revert{
				on:   ev.transitions[0].target,
				name: RevertPrefix + ev.name,
				back: st,
			})
		}
	}

	for _, r := range reverts {
		if r.on.FindEvent(r.name) != nil {
			errs = append(errs, wrapEventError(r.on.name, r.name, ErrEventNameCollision))

			continue
		}

		r.on.events = append(r.on.events, &Event{
			name: r.name,
			from: r.on,
			transitions: []*Transition{{
				targetName: r.back.name,
				target:     r.back,
			}},
		})
	}

	return errors.Join(errs...)
}
