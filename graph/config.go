package graph

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/amp-labs/amp-workflow/guard"
	"gopkg.in/yaml.v3"
)

// Config is the YAML form of a workflow definition.
type Config struct {
	Name         string         `json:"name"         yaml:"name"`
	EventArgs    []string       `json:"eventArgs"    yaml:"eventArgs,omitempty"`
	RevertEvents bool           `json:"revertEvents" yaml:"revertEvents,omitempty"`
	Meta         map[string]any `json:"meta"         yaml:"meta,omitempty"`
	States       []StateConfig  `json:"states"       yaml:"states,omitempty"`
}

// StateConfig declares one state. The first state listed is the initial state.
type StateConfig struct {
	Name   string         `json:"name"   yaml:"name"`
	Tags   []string       `json:"tags"   yaml:"tags,omitempty"`
	Meta   map[string]any `json:"meta"   yaml:"meta,omitempty"`
	Events []EventConfig  `json:"events" yaml:"events,omitempty"`
}

// EventConfig declares an event. Either To (with optional If/Unless) or
// Transitions is set, never both.
type EventConfig struct {
	Name        string             `json:"name"        yaml:"name"`
	To          string             `json:"to"          yaml:"to,omitempty"`
	If          []GuardConfig      `json:"if"          yaml:"if,omitempty"`
	Unless      []GuardConfig      `json:"unless"      yaml:"unless,omitempty"`
	Transitions []TransitionConfig `json:"transitions" yaml:"transitions,omitempty"`
	Tags        []string           `json:"tags"        yaml:"tags,omitempty"`
	Meta        map[string]any     `json:"meta"        yaml:"meta,omitempty"`
}

// TransitionConfig is one candidate transition of an event.
type TransitionConfig struct {
	To     string        `json:"to"     yaml:"to,omitempty"`
	If     []GuardConfig `json:"if"     yaml:"if,omitempty"`
	Unless []GuardConfig `json:"unless" yaml:"unless,omitempty"`
}

// GuardConfig names a method guard or holds an expression guard.
type GuardConfig struct {
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	Expr   string `json:"expr,omitempty"   yaml:"expr,omitempty"`
}

// Guard converts the config into a guard.Guard.
func (g GuardConfig) Guard() (guard.Guard, error) {
	switch {
	case g.Method != "" && g.Expr != "":
		return guard.Guard{}, fmt.Errorf("%w: guard sets both method %q and expr %q", ErrInvalidGuard, g.Method, g.Expr)
	case g.Method != "":
		return guard.Method(g.Method), nil
	case g.Expr != "":
		return guard.Expr(g.Expr), nil
	default:
		return guard.Guard{}, fmt.Errorf("%w: guard sets neither method nor expr", ErrInvalidGuard)
	}
}

// ParseConfig decodes a YAML definition without building it.
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %w", ErrInvalidDefinition, err)
	}

	return &config, nil
}

// ReadConfig reads and decodes a YAML definition from disk.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow definition: %w", err)
	}

	return ParseConfig(data)
}

// LoadFromBytes decodes a YAML definition into a Builder. The builder can be
// extended further before calling Build.
func LoadFromBytes(data []byte) (*Builder, error) {
	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	return config.Builder()
}

// LoadFromFile reads a YAML definition from disk.
func LoadFromFile(path string) (*Builder, error) {
	config, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	return config.Builder()
}

// LoadFromFS loads a YAML definition from a filesystem such as embed.FS.
func LoadFromFS(fsys fs.FS, path string) (*Builder, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow definition from FS: %w", err)
	}

	return LoadFromBytes(data)
}

// Builder replays the config onto a new Builder.
func (c *Config) Builder() (*Builder, error) {
	b := NewBuilder(c.Name)

	if len(c.EventArgs) > 0 {
		b.EventArgs(c.EventArgs...)
	}

	if c.RevertEvents {
		b.DefineRevertEvents()
	}

	if c.Meta != nil {
		b.Meta(c.Meta)
	}

	var errs []error

	for _, sc := range c.States {
		sb := b.State(sc.Name, WithTags(sc.Tags...), WithMeta(sc.Meta))

		for _, ec := range sc.Events {
			if ec.To != "" && len(ec.Transitions) > 0 {
				errs = append(errs, wrapEventError(sc.Name, ec.Name, ErrDualEventDefinition))

				continue
			}

			transitions := ec.Transitions
			if ec.To != "" {
				transitions = []TransitionConfig{{To: ec.To, If: ec.If, Unless: ec.Unless}}
			}

			opts := make([][]guard.Option, len(transitions))

			for i, tc := range transitions {
				cond, err := conditionOptions(tc)
				if err != nil {
					errs = append(errs, wrapEventError(sc.Name, ec.Name, err))

					continue
				}

				opts[i] = cond
			}

			sb.EventFunc(ec.Name, func(eb *EventBuilder) {
				for i, tc := range transitions {
					eb.To(tc.To, opts[i]...)
				}
			}, WithEventTags(ec.Tags...), WithEventMeta(ec.Meta))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return b, nil
}

// Build replays the config and builds the Spec.
func (c *Config) Build() (*Spec, error) {
	b, err := c.Builder()
	if err != nil {
		return nil, err
	}

	return b.Build()
}

// Marshal encodes the config back to YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow definition: %w", err)
	}

	return data, nil
}

func conditionOptions(tc TransitionConfig) ([]guard.Option, error) {
	var ifs, unless []guard.Guard

	for _, gc := range tc.If {
		g, err := gc.Guard()
		if err != nil {
			return nil, err
		}

		ifs = append(ifs, g)
	}

	for _, gc := range tc.Unless {
		g, err := gc.Guard()
		if err != nil {
			return nil, err
		}

		unless = append(unless, g)
	}

	return []guard.Option{guard.If(ifs...), guard.Unless(unless...)}, nil
}
