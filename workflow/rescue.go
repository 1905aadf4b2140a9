package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrorMatcher selects the errors a rescue handler or OnError applies to.
type ErrorMatcher interface {
	Match(err error) bool
	String() string
}

// RescueFunc handles an error that escaped a transition. Returning nil
// suppresses it; a returned error is what Fire reports instead.
type RescueFunc[T any] func(ctx context.Context, host T, err error) error

// AlwaysFunc runs after every attempt. err is what Fire is about to return,
// after rescue handlers had their turn.
type AlwaysFunc[T any] func(ctx context.Context, host T, res Result, err error) error

type rescuer[T any] struct {
	matcher ErrorMatcher
	handler RescueFunc[T]
}

type isMatcher struct {
	targets []error
}

// Is matches errors for which errors.Is holds against any target.
func Is(targets ...error) ErrorMatcher { //nolint:ireturn
	return isMatcher{targets: targets}
}

func (m isMatcher) Match(err error) bool {
	for _, target := range m.targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func (m isMatcher) String() string {
	return fmt.Sprintf("is%v", m.targets)
}

type asMatcher[E error] struct{}

// As matches errors for which errors.As finds an E in the chain.
func As[E error]() ErrorMatcher { //nolint:ireturn
	return asMatcher[E]{}
}

func (asMatcher[E]) Match(err error) bool {
	var target E

	return errors.As(err, &target)
}

func (asMatcher[E]) String() string {
	return "as(" + reflect.TypeFor[E]().String() + ")"
}

type anyMatcher struct{}

// Any matches every error.
func Any() ErrorMatcher { //nolint:ireturn
	return anyMatcher{}
}

func (anyMatcher) Match(err error) bool {
	return err != nil
}

func (anyMatcher) String() string {
	return "any"
}

// MatchFunc adapts a predicate to ErrorMatcher.
func MatchFunc(name string, fn func(error) bool) ErrorMatcher { //nolint:ireturn
	return funcMatcher{name: name, fn: fn}
}

type funcMatcher struct {
	name string
	fn   func(error) bool
}

func (m funcMatcher) Match(err error) bool {
	return err != nil && m.fn(err)
}

func (m funcMatcher) String() string {
	return m.name
}

// rescue hands err to the first matching handler.
func (m *Machine[T]) rescue(ctx context.Context, res Result, err error) (Result, error) {
	for _, r := range m.def.rescuers {
		if !r.matcher.Match(err) {
			continue
		}

		m.recordRescue(res.Event)

		res.Outcome = OutcomeRescued
		res.Rescued = err

		return res, r.handler(ctx, m.host, err)
	}

	return res, err
}

// runAlways calls every always handler once and joins their errors.
func (m *Machine[T]) runAlways(ctx context.Context, res Result, err error) error {
	errs := make([]error, 0, len(m.def.always))

	for _, fn := range m.def.always {
		if herr := fn(ctx, m.host, res, err); herr != nil {
			errs = append(errs, herr)
		}
	}

	return errors.Join(errs...)
}
