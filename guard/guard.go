// Package guard evaluates the conditions attached to workflow transitions.
//
// A Guard is one of three variants: a method on the host found by name, a
// sandboxed expression evaluated against the host's exported fields, or a Go
// closure. Guards are combined into a Condition, which is the conjunction of
// its If guards and the negation of its Unless guards.
package guard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

var (
	// ErrNoSuchMethod is returned when a method guard names a method the host does not have.
	ErrNoSuchMethod = errors.New("guard method not found")
	// ErrBadMethodSignature is returned when a method guard's method is not func() bool or func() (bool, error).
	ErrBadMethodSignature = errors.New("guard method must return bool or (bool, error)")
	// ErrInvalidExpression is returned when an expression guard fails to parse or compile.
	ErrInvalidExpression = errors.New("invalid guard expression")
	// ErrTargetType is returned when a typed closure guard is evaluated against a host of another type.
	ErrTargetType = errors.New("guard target has unexpected type")
	// ErrNilGuard is returned when evaluating a zero Guard.
	ErrNilGuard = errors.New("guard is not set")
)

// Kind identifies the variant of a Guard.
type Kind int

const (
	KindNone Kind = iota
	KindMethod
	KindExpr
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindExpr:
		return "expr"
	case KindFunc:
		return "func"
	default:
		return "none"
	}
}

// Guard is a single predicate over a workflow host.
type Guard struct {
	kind   Kind
	source string
	fn     func(ctx context.Context, target any) (bool, error)
	err    error

	// programs caches compiled expressions per host type.
	programs *sync.Map
}

// Method returns a guard calling the named method on the host. The method
// takes no arguments (or only a context.Context) and returns bool or (bool, error).
func Method(name string) Guard {
	g := Guard{kind: KindMethod, source: name}
	if name == "" {
		g.err = fmt.Errorf("%w: empty method name", ErrNoSuchMethod)
	}

	return g
}

// Expr returns a guard evaluating a boolean expression against the host.
// The expression sees the host's exported fields and methods, including
// pointer-receiver methods of a pointer host, and nothing else.
func Expr(source string) Guard {
	g := Guard{kind: KindExpr, source: source, programs: &sync.Map{}}

	if _, err := parser.Parse(source); err != nil {
		g.err = fmt.Errorf("%w: %q: %w", ErrInvalidExpression, source, err)
	}

	return g
}

// Func returns a guard backed by a closure over the host type.
func Func[T any](name string, fn func(T) bool) Guard {
	return FuncCtx(name, func(_ context.Context, target T) (bool, error) {
		return fn(target), nil
	})
}

// FuncCtx is like Func, but the closure receives the evaluation context and may fail.
func FuncCtx[T any](name string, fn func(context.Context, T) (bool, error)) Guard {
	if name == "" {
		name = "func"
	}

	return Guard{
		kind:   KindFunc,
		source: name,
		fn: func(ctx context.Context, target any) (bool, error) {
			typed, ok := target.(T)
			if !ok {
				var zero T

				return false, fmt.Errorf("%w: want %T, got %T", ErrTargetType, zero, target)
			}

			return fn(ctx, typed)
		},
	}
}

// Kind reports which variant the guard is.
func (g Guard) Kind() Kind {
	return g.kind
}

// Source returns the method name, expression text or closure label.
func (g Guard) Source() string {
	return g.source
}

// Err returns the definition error detected when the guard was constructed, if any.
func (g Guard) Err() error {
	return g.err
}

func (g Guard) String() string {
	return g.kind.String() + "(" + g.source + ")"
}

// Eval evaluates the guard against the target.
func (g Guard) Eval(ctx context.Context, target any) (bool, error) {
	if g.err != nil {
		return false, g.err
	}

	switch g.kind {
	case KindMethod:
		return g.evalMethod(ctx, target)
	case KindExpr:
		return g.evalExpr(target)
	case KindFunc:
		return g.fn(ctx, target)
	default:
		return false, ErrNilGuard
	}
}

var (
	boolType    = reflect.TypeFor[bool]()
	errorType   = reflect.TypeFor[error]()
	contextType = reflect.TypeFor[context.Context]()
)

func (g Guard) evalMethod(ctx context.Context, target any) (bool, error) {
	method := reflect.ValueOf(target).MethodByName(g.source)
	if !method.IsValid() {
		return false, fmt.Errorf("%w: %T has no method %s", ErrNoSuchMethod, target, g.source)
	}

	mt := method.Type()

	var in []reflect.Value

	switch {
	case mt.NumIn() == 0:
	case mt.NumIn() == 1 && mt.In(0) == contextType:
		in = []reflect.Value{reflect.ValueOf(ctx)}
	default:
		return false, fmt.Errorf("%w: %T.%s", ErrBadMethodSignature, target, g.source)
	}

	switch {
	case mt.NumOut() == 1 && mt.Out(0) == boolType:
		return method.Call(in)[0].Bool(), nil
	case mt.NumOut() == 2 && mt.Out(0) == boolType && mt.Out(1) == errorType:
		out := method.Call(in)

		err, _ := out[1].Interface().(error)

		return out[0].Bool(), err
	default:
		return false, fmt.Errorf("%w: %T.%s", ErrBadMethodSignature, target, g.source)
	}
}

func (g Guard) evalExpr(target any) (bool, error) {
	env := exprEnv(target)

	program, err := g.program(env)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("guard %s: %w", g.source, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q did not yield a bool", ErrInvalidExpression, g.source)
	}

	return result, nil
}

func (g Guard) program(env any) (*vm.Program, error) {
	key := reflect.TypeOf(env)

	if cached, ok := g.programs.Load(key); ok {
		return cached.(*vm.Program), nil //nolint:forcetypeassert
	}

	program, err := expr.Compile(g.source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidExpression, g.source, err)
	}

	actual, _ := g.programs.LoadOrStore(key, program)

	return actual.(*vm.Program), nil //nolint:forcetypeassert
}

// exprEnv passes pointer hosts through unchanged so pointer-receiver methods
// stay callable. A nil host evaluates against an empty environment.
func exprEnv(target any) any {
	if target == nil {
		return map[string]any{}
	}

	if v := reflect.ValueOf(target); v.Kind() == reflect.Pointer && v.IsNil() {
		return map[string]any{}
	}

	return target
}
