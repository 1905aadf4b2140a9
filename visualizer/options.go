package visualizer

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is the flow of the diagram.
type Direction string

const (
	TopToBottom Direction = "TB"
	LeftToRight Direction = "LR"
	RightToLeft Direction = "RL"
	BottomToTop Direction = "BT"
)

var ErrInvalidDirection = errors.New("invalid diagram direction")

// ParseDirection reads a mermaid direction in any case. TD is the same as TB.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(s)); d {
	case "TD", "":
		return TopToBottom, nil
	case TopToBottom, LeftToRight, RightToLeft, BottomToTop:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Part is an optional piece of the diagram.
type Part int

const (
	Events Part = iota
	Conditions
	Tags
	RevertEvents
)

// Options controls what a diagram shows.
type Options struct {
	Events       bool
	Conditions   bool
	Tags         bool
	RevertEvents bool
	Direction    Direction
	// Highlight lists states drawn with the highlighted class, typically a path.
	Highlight []string
	// Theme is a mermaid theme name; "" and "default" emit no init directive.
	Theme string
}

// DefaultOptions shows events, conditions and tags, top to bottom. Revert
// events are hidden.
func DefaultOptions() Options {
	return Options{
		Events:     true,
		Conditions: true,
		Tags:       true,
		Direction:  TopToBottom,
	}
}

// Option adjusts Options.
type Option func(*Options)

// Apply returns a copy of o with opts applied.
func (o Options) Apply(opts ...Option) Options {
	o.Highlight = append([]string(nil), o.Highlight...)

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func Show(parts ...Part) Option {
	return func(o *Options) {
		o.set(parts, true)
	}
}

func Hide(parts ...Part) Option {
	return func(o *Options) {
		o.set(parts, false)
	}
}

func WithDirection(d Direction) Option {
	return func(o *Options) {
		o.Direction = d
	}
}

func WithTheme(theme string) Option {
	return func(o *Options) {
		o.Theme = theme
	}
}

func Highlight(states ...string) Option {
	return func(o *Options) {
		o.Highlight = append(o.Highlight, states...)
	}
}

func (o *Options) set(parts []Part, on bool) {
	for _, p := range parts {
		switch p {
		case Events:
			o.Events = on
		case Conditions:
			o.Conditions = on
		case Tags:
			o.Tags = on
		case RevertEvents:
			o.RevertEvents = on
		}
	}
}
