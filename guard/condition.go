package guard

import (
	"context"
	"errors"
	"strings"
)

// Condition is the conjunction of every If guard and the negation of every
// Unless guard. An empty Condition always holds.
type Condition struct {
	If     []Guard
	Unless []Guard
}

// Option adds guards to a Condition.
type Option func(*Condition)

// If adds guards that must all hold.
func If(guards ...Guard) Option {
	return func(c *Condition) {
		c.If = append(c.If, guards...)
	}
}

// Unless adds guards that must all fail.
func Unless(guards ...Guard) Option {
	return func(c *Condition) {
		c.Unless = append(c.Unless, guards...)
	}
}

// New builds a Condition from options.
func New(opts ...Option) Condition {
	var c Condition

	for _, opt := range opts {
		opt(&c)
	}

	return c
}

// Empty reports whether the condition has no guards at all.
func (c Condition) Empty() bool {
	return len(c.If) == 0 && len(c.Unless) == 0
}

// Err joins the definition errors of every guard in the condition.
func (c Condition) Err() error {
	var errs []error

	for _, g := range c.If {
		if err := g.Err(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, g := range c.Unless {
		if err := g.Err(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Apply evaluates the condition against target. If guards stop at the first
// false, Unless guards stop at the first true.
func (c Condition) Apply(ctx context.Context, target any) (bool, error) {
	for _, g := range c.If {
		ok, err := g.Eval(ctx, target)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	for _, g := range c.Unless {
		ok, err := g.Eval(ctx, target)
		if err != nil {
			return false, err
		}

		if ok {
			return false, nil
		}
	}

	return true, nil
}

func (c Condition) String() string {
	if c.Empty() {
		return ""
	}

	parts := make([]string, 0, len(c.If)+len(c.Unless))

	for _, g := range c.If {
		parts = append(parts, g.String())
	}

	for _, g := range c.Unless {
		parts = append(parts, "!"+g.String())
	}

	return strings.Join(parts, " && ")
}
