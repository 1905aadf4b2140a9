package callbacks

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/amp-labs/amp-workflow/binder"
)

var (
	// ErrNoSuchMethod is returned when a method callback names a method the host does not have.
	ErrNoSuchMethod = errors.New("callback method not found")
	// ErrMethodSignature is returned when a method does not fit the declared parameters.
	ErrMethodSignature = errors.New("callback method does not match declared parameters")
	// ErrArgumentType is returned when a bound value cannot be passed to the method parameter.
	ErrArgumentType = errors.New("bound value has the wrong type")
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
	keywordType = reflect.TypeFor[map[string]any]()
)

// Method calls the host's method called name. The method's parameters are,
// in order: an optional context.Context, one parameter per declared
// positional parameter, a map[string]any when keyword parameters are
// declared, and a variadic parameter when a rest parameter is declared. If
// the method's last result is an error it is returned.
func Method[T any](name string, params ...binder.Param) Callable[T] {
	sig := binder.Params(params...)

	return Callable[T]{
		label: name,
		sig:   sig,
		fn: func(ctx context.Context, host T, args binder.Args, _ Next) error {
			method := reflect.ValueOf(host).MethodByName(name)
			if !method.IsValid() {
				return fmt.Errorf("%w: %T has no method %s", ErrNoSuchMethod, host, name)
			}

			in, err := methodArgs(ctx, method.Type(), sig, args)
			if err != nil {
				return fmt.Errorf("%T.%s: %w", host, name, err)
			}

			return lastError(method.Call(in))
		},
	}
}

func methodArgs(ctx context.Context, mt reflect.Type, sig binder.Signature, args binder.Args) ([]reflect.Value, error) {
	fixed := mt.NumIn()
	if mt.IsVariadic() {
		fixed--
	}

	var in []reflect.Value

	offset := 0
	if fixed > 0 && mt.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		offset = 1
	}

	values := append([]any(nil), args.Positional...)

	if len(sig.Keywords()) > 0 || sig.HasKeywordRest() {
		kw := make(map[string]any, len(args.Keywords)+len(args.Extra))
		maps.Copy(kw, args.Keywords)
		maps.Copy(kw, args.Extra)
		values = append(values, kw)
	}

	if offset+len(values) != fixed {
		return nil, fmt.Errorf("%w: want %d parameters, method takes %d", ErrMethodSignature, len(values), fixed-offset)
	}

	if sig.HasRest() != mt.IsVariadic() {
		return nil, fmt.Errorf("%w: rest parameter needs a variadic method", ErrMethodSignature)
	}

	for i, v := range values {
		pt := mt.In(offset + i)
		if i == len(args.Positional) && pt != keywordType {
			return nil, fmt.Errorf("%w: keyword parameters need a map[string]any", ErrMethodSignature)
		}

		rv, err := argValue(v, pt)
		if err != nil {
			return nil, err
		}

		in = append(in, rv)
	}

	if mt.IsVariadic() {
		elem := mt.In(mt.NumIn() - 1).Elem()

		for _, v := range args.Rest {
			rv, err := argValue(v, elem)
			if err != nil {
				return nil, err
			}

			in = append(in, rv)
		}
	}

	return in, nil
}

func argValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	return reflect.Value{}, fmt.Errorf("%w: %T is not assignable to %s", ErrArgumentType, v, t)
}

func lastError(out []reflect.Value) error {
	if len(out) == 0 {
		return nil
	}

	last := out[len(out)-1]
	if last.Type() != errorType || last.IsNil() {
		return nil
	}

	err, _ := last.Interface().(error)

	return err
}
