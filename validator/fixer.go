package validator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/amp-labs/amp-workflow/graph"
)

var (
	// ErrStateNotFound is returned when a fix names a state the definition does not declare.
	ErrStateNotFound = errors.New("state not found")
	// ErrEventNotFound is returned when a fix names an event the state does not declare.
	ErrEventNotFound = errors.New("event not found")
	// ErrDuplicateNotFound is returned when attempting to remove a duplicate that doesn't exist.
	ErrDuplicateNotFound = errors.New("duplicate not found")
	// ErrStateAlreadyExists is returned when attempting to rename to an existing state name.
	ErrStateAlreadyExists = errors.New("state already exists")
	// ErrInitialState is returned when attempting to remove the initial state.
	ErrInitialState = errors.New("cannot remove the initial state")
	// ErrNoUnconditionalTransition is returned when no transition shadows the others.
	ErrNoUnconditionalTransition = errors.New("no unconditional transition")
)

// Fix is an automatic correction applied to the YAML form of a workflow.
type Fix struct {
	Description string
	Apply       func(config *graph.Config) error
}

// RemoveUnreachableState creates a fix that removes a state and every
// transition targeting it.
func RemoveUnreachableState(stateName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove unreachable state '%s'", stateName),
		Apply: func(config *graph.Config) error {
			idx := stateIndex(config, stateName)

			switch {
			case idx < 0:
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, stateName)
			case idx == 0:
				return fmt.Errorf("%w: '%s'", ErrInitialState, stateName)
			}

			config.States = slices.Delete(config.States, idx, idx+1)

			for i := range config.States {
				events := config.States[i].Events[:0]

				for _, ec := range config.States[i].Events {
					if ec.To == stateName {
						continue
					}

					ec.Transitions = slices.DeleteFunc(ec.Transitions, func(tc graph.TransitionConfig) bool {
						return tc.To == stateName
					})

					if ec.To == "" && len(ec.Transitions) == 0 {
						continue
					}

					events = append(events, ec)
				}

				config.States[i].Events = events
			}

			return nil
		},
	}
}

// RenameState creates a fix that renames a state and every reference to it.
func RenameState(oldName, newName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Rename state from '%s' to '%s'", oldName, newName),
		Apply: func(config *graph.Config) error {
			if stateIndex(config, newName) >= 0 {
				return fmt.Errorf("%w: '%s'", ErrStateAlreadyExists, newName)
			}

			idx := stateIndex(config, oldName)
			if idx < 0 {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, oldName)
			}

			config.States[idx].Name = newName

			for i := range config.States {
				for j := range config.States[i].Events {
					ec := &config.States[i].Events[j]
					if ec.To == oldName {
						ec.To = newName
					}

					for k := range ec.Transitions {
						if ec.Transitions[k].To == oldName {
							ec.Transitions[k].To = newName
						}
					}
				}
			}

			return nil
		},
	}
}

// RemoveShadowedTransitions creates a fix that drops every transition of an
// event after its first unconditional one.
func RemoveShadowedTransitions(stateName, eventName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove transitions of '%s' on '%s' after the unconditional one", eventName, stateName),
		Apply: func(config *graph.Config) error {
			ec, err := findEvent(config, stateName, eventName)
			if err != nil {
				return err
			}

			for i, tc := range ec.Transitions {
				if len(tc.If) == 0 && len(tc.Unless) == 0 {
					ec.Transitions = ec.Transitions[:i+1]

					return nil
				}
			}

			return fmt.Errorf("%w: '%s' on '%s'", ErrNoUnconditionalTransition, eventName, stateName)
		},
	}
}

// RemoveDuplicateTransition creates a fix that keeps the first of several
// identical transitions of an event.
func RemoveDuplicateTransition(stateName, eventName, target string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove duplicate transition of '%s' on '%s' to '%s'", eventName, stateName, target),
		Apply: func(config *graph.Config) error {
			ec, err := findEvent(config, stateName, eventName)
			if err != nil {
				return err
			}

			kept := make([]graph.TransitionConfig, 0, len(ec.Transitions))
			found := false

			for _, tc := range ec.Transitions {
				dup := slices.ContainsFunc(kept, func(k graph.TransitionConfig) bool {
					return k.To == tc.To && slices.Equal(k.If, tc.If) && slices.Equal(k.Unless, tc.Unless)
				})

				if dup && tc.To == target {
					found = true

					continue
				}

				kept = append(kept, tc)
			}

			if !found {
				return ErrDuplicateNotFound
			}

			ec.Transitions = kept

			return nil
		},
	}
}

// ApplyFixes applies a list of fixes to a config.
func ApplyFixes(config *graph.Config, fixes []*Fix) error {
	for _, fix := range fixes {
		if fix != nil && fix.Apply != nil {
			err := fix.Apply(config)
			if err != nil {
				return fmt.Errorf("failed to apply fix '%s': %w", fix.Description, err)
			}
		}
	}

	return nil
}

func stateIndex(config *graph.Config, name string) int {
	return slices.IndexFunc(config.States, func(sc graph.StateConfig) bool {
		return sc.Name == name
	})
}

func findEvent(config *graph.Config, stateName, eventName string) (*graph.EventConfig, error) {
	idx := stateIndex(config, stateName)
	if idx < 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrStateNotFound, stateName)
	}

	for i := range config.States[idx].Events {
		if config.States[idx].Events[i].Name == eventName {
			return &config.States[idx].Events[i], nil
		}
	}

	return nil, fmt.Errorf("%w: '%s' on '%s'", ErrEventNotFound, eventName, stateName)
}
