// Package visualizer generates Mermaid state diagrams from workflow graphs.
package visualizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amp-labs/amp-workflow/graph"
)

// ErrSpecNil is returned for a nil spec.
var ErrSpecNil = errors.New("spec cannot be nil")

// GenerateMermaid converts a Spec to a Mermaid state diagram.
func GenerateMermaid(spec *graph.Spec) (string, error) {
	return GenerateMermaidWithOptions(spec, DefaultOptions())
}

// GenerateMermaidFromFile loads a YAML definition and generates a Mermaid diagram.
func GenerateMermaidFromFile(path string) (string, error) {
	config, err := graph.ReadConfig(path)
	if err != nil {
		return "", fmt.Errorf("failed to load definition: %w", err)
	}

	spec, err := config.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build definition: %w", err)
	}

	return GenerateMermaid(spec)
}

// GenerateMermaidWithOptions generates a Mermaid diagram with custom options.
func GenerateMermaidWithOptions(spec *graph.Spec, opts Options) (string, error) {
	if spec == nil {
		return "", ErrSpecNil
	}

	var sb strings.Builder

	sb.WriteString("```mermaid\n")

	if opts.Theme != "" && opts.Theme != "default" {
		sb.WriteString(fmt.Sprintf("%%%%{init: {'theme': '%s'}}%%%%\n", opts.Theme))
	}

	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString(fmt.Sprintf("    direction %s\n", direction(opts.Direction)))
	sb.WriteString(fmt.Sprintf("    [*] --> %s\n", spec.InitialState().Name()))

	highlightMap := make(map[string]bool)
	for _, state := range opts.Highlight {
		highlightMap[state] = true
	}

	for _, state := range spec.States() {
		if opts.Tags && len(state.Tags()) > 0 {
			sb.WriteString(fmt.Sprintf("    %s: %s\\n[%s]\n",
				state.Name(), state.Title(), strings.Join(state.Tags(), ", ")))
		}

		switch {
		case highlightMap[state.Name()]:
			sb.WriteString(fmt.Sprintf("    class %s highlighted\n", state.Name()))
		case state.IsTerminal():
			sb.WriteString(fmt.Sprintf("    class %s finalState\n", state.Name()))
		case len(state.Tags()) > 0:
			sb.WriteString(fmt.Sprintf("    class %s taggedState\n", state.Name()))
		}

		for _, event := range state.Events() {
			if !opts.RevertEvents && isRevert(spec, event) {
				continue
			}

			for _, t := range event.Transitions() {
				sb.WriteString(fmt.Sprintf("    %s --> %s%s\n",
					state.Name(), t.Target().Name(), label(event, t, opts)))
			}
		}

		if state.IsTerminal() {
			sb.WriteString(fmt.Sprintf("    %s --> [*]\n", state.Name()))
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef taggedState fill:#e1f5ff,stroke:#01579b,stroke-width:2px\n")
	sb.WriteString("    classDef finalState fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px\n")
	sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")

	sb.WriteString("```\n")

	return sb.String(), nil
}

func direction(d Direction) Direction {
	if parsed, err := ParseDirection(string(d)); err == nil {
		return parsed
	}

	return TopToBottom
}

func label(event *graph.Event, t *graph.Transition, opts Options) string {
	var parts []string

	if opts.Events {
		parts = append(parts, event.Name())
	}

	if opts.Conditions && !t.Unconditional() {
		parts = append(parts, "["+t.Condition().String()+"]")
	}

	if len(parts) == 0 {
		return ""
	}

	return ": " + strings.Join(parts, " ")
}

func isRevert(spec *graph.Spec, event *graph.Event) bool {
	return spec.RevertEvents() && strings.HasPrefix(event.Name(), graph.RevertPrefix)
}
