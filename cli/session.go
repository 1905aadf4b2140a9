package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/amp-labs/amp-workflow/graph"
	"github.com/amp-labs/amp-workflow/workflow"
	"github.com/manifoldco/promptui"
)

// Playground menu entries shown after the events of the current state.
const (
	choiceSet   = "[Set attribute]"
	choiceReset = "[Restart]"
	choiceQuit  = "[Quit]"
)

// Attributes is the host of a playground instance. Expression guards see
// its keys as variables.
type Attributes = map[string]any

// Session is one playground instance over a definition.
type Session struct {
	machine *workflow.Machine[Attributes]
	store   *workflow.MemoryStore
	attrs   Attributes
}

// NewSession starts an instance of spec in its initial state.
func NewSession(spec *graph.Spec, opts ...workflow.Option) (*Session, error) {
	attrs := Attributes{}
	store := workflow.NewMemoryStore("")

	m, err := workflow.New(workflow.Define[Attributes](spec, opts...), attrs, workflow.WithStore(store))
	if err != nil {
		return nil, err
	}

	return &Session{machine: m, store: store, attrs: attrs}, nil
}

// State returns the name of the current state.
func (s *Session) State(ctx context.Context) (string, error) {
	state, err := s.machine.CurrentState(ctx)
	if err != nil {
		return "", err
	}

	return state.Name(), nil
}

// Events lists the events declared on the current state.
func (s *Session) Events(ctx context.Context) ([]string, error) {
	return s.machine.AvailableEvents(ctx)
}

// Set stores an attribute, parsing booleans and numbers.
func (s *Session) Set(key, raw string) {
	s.attrs[key] = parseValue(raw)
}

// Attributes returns a copy of the instance attributes.
func (s *Session) Attributes() Attributes {
	return maps.Clone(s.attrs)
}

// Fire fires event, passing the attributes as transition attributes.
func (s *Session) Fire(ctx context.Context, event string) (workflow.Result, error) {
	return s.machine.Fire(ctx, event, workflow.Attrs(s.attrs))
}

// Reset moves the instance back to the initial state.
func (s *Session) Reset(ctx context.Context) error {
	_, err := s.store.Persist(ctx, "")

	return err
}

// Play runs the interactive loop until the user quits.
func (s *Session) Play(ctx context.Context, p Prompter, out io.Writer) error {
	for {
		state, err := s.State(ctx)
		if err != nil {
			return err
		}

		events, err := s.Events(ctx)
		if err != nil {
			return err
		}

		printf(out, "state: %s\n", state)

		if len(events) == 0 {
			printf(out, "%s is a terminal state\n", state)

			again, err := p.Confirm("Start over")
			if err != nil || !again {
				return ignoreInterrupt(err)
			}

			if err := s.Reset(ctx); err != nil {
				return err
			}

			continue
		}

		choice, err := p.Select("Event", append(slices.Clone(events), choiceSet, choiceReset, choiceQuit))
		if err != nil {
			return ignoreInterrupt(err)
		}

		switch choice {
		case choiceQuit:
			return nil
		case choiceReset:
			if err := s.Reset(ctx); err != nil {
				return err
			}
		case choiceSet:
			if err := s.promptAttribute(p); err != nil {
				return ignoreInterrupt(err)
			}
		default:
			s.report(ctx, out, choice)
		}
	}
}

func (s *Session) promptAttribute(p Prompter) error {
	key, err := p.String("Attribute")
	if err != nil {
		return err
	}

	value, err := p.String("Value")
	if err != nil {
		return err
	}

	s.Set(key, value)

	return nil
}

func (s *Session) report(ctx context.Context, out io.Writer, event string) {
	res, err := s.Fire(ctx, event)

	switch {
	case err != nil:
		printf(out, "%s failed: %v\n", event, err)
	case res.Halted():
		printf(out, "%s halted: %s\n", event, res.Reason)
	default:
		printf(out, "%s: %s -> %s\n", event, res.From, res.State)
	}
}

func ignoreInterrupt(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	return nil
}
