// Package binder maps the data of an in-flight transition onto the
// parameters a callback declares.
//
// Callbacks describe their parameters once, at registration, as a Signature.
// For every invocation Bind fills that signature from a TransitionContext:
//
//   - a positional parameter named to, from or event gets that field of the
//     transition;
//   - any other positional parameter takes the attribute of the same name if
//     there is one, else the next unclaimed positional argument;
//   - a rest parameter takes every positional argument left;
//   - a keyword parameter takes the attribute of the same name;
//   - a keyword-rest parameter takes every attribute left.
//
// Each caller-supplied value is handed out at most once per binding.
package binder

import (
	"fmt"
	"maps"
	"slices"
)

// Kind is the role of a declared parameter.
type Kind int

const (
	Positional Kind = iota
	Rest
	Keyword
	KeywordRest
)

func (k Kind) String() string {
	switch k {
	case Positional:
		return "positional"
	case Rest:
		return "rest"
	case Keyword:
		return "keyword"
	case KeywordRest:
		return "keyword-rest"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Reserved positional names bound to transition fields.
const (
	ParamTo    = "to"
	ParamFrom  = "from"
	ParamEvent = "event"
)

// Param is one declared parameter.
type Param struct {
	Name string
	Kind Kind
}

func (p Param) String() string {
	switch p.Kind {
	case Rest:
		return "*" + p.Name
	case Keyword:
		return p.Name + ":"
	case KeywordRest:
		return "**" + p.Name
	default:
		return p.Name
	}
}

// Arg declares a positional parameter.
func Arg(name string) Param {
	return Param{Name: name, Kind: Positional}
}

// RestArgs declares the variadic parameter.
func RestArgs(name string) Param {
	return Param{Name: name, Kind: Rest}
}

// Key declares a keyword parameter.
func Key(name string) Param {
	return Param{Name: name, Kind: Keyword}
}

// KeyRest declares the catch-all keyword parameter.
func KeyRest(name string) Param {
	return Param{Name: name, Kind: KeywordRest}
}

// Signature is the ordered parameter list of a callback.
type Signature []Param

// Params builds a Signature.
func Params(params ...Param) Signature {
	return params
}

// Empty reports whether the callback takes no parameters at all.
func (s Signature) Empty() bool {
	return len(s) == 0
}

// Positional returns the positional parameters in order.
func (s Signature) Positional() []Param {
	return s.filter(Positional)
}

// Keywords returns the keyword parameters in order.
func (s Signature) Keywords() []Param {
	return s.filter(Keyword)
}

// HasRest reports whether a rest parameter is declared.
func (s Signature) HasRest() bool {
	return len(s.filter(Rest)) > 0
}

// HasKeywordRest reports whether a keyword-rest parameter is declared.
func (s Signature) HasKeywordRest() bool {
	return len(s.filter(KeywordRest)) > 0
}

func (s Signature) filter(kind Kind) []Param {
	var out []Param

	for _, p := range s {
		if p.Kind == kind {
			out = append(out, p)
		}
	}

	return out
}

// Args is a bound argument list.
type Args struct {
	// Positional holds one value per positional parameter, in declaration order.
	Positional []any
	// Rest holds the unclaimed positional arguments when a rest parameter is declared.
	Rest []any
	// Keywords holds one entry per keyword parameter found among the attributes.
	Keywords map[string]any
	// Extra holds the unclaimed attributes when a keyword-rest parameter is declared.
	Extra map[string]any

	names []string
}

// Get returns a positional or keyword value by parameter name.
func (a Args) Get(name string) (any, bool) {
	if i := slices.Index(a.names, name); i >= 0 && i < len(a.Positional) {
		return a.Positional[i], true
	}

	v, ok := a.Keywords[name]

	return v, ok
}

// Values flattens the positional values followed by the rest values, in
// the order a variadic Go call expects them.
func (a Args) Values() []any {
	out := slices.Clone(a.Positional)

	return append(out, a.Rest...)
}

// Bind fills sig from tc. tc itself is not modified.
func Bind(sig Signature, tc *TransitionContext) Args {
	var out Args

	if sig.Empty() || tc == nil {
		return out
	}

	args := slices.Clone(tc.Args)
	attrs := maps.Clone(tc.attributes)

	for _, p := range sig.Positional() {
		out.names = append(out.names, p.Name)

		switch p.Name {
		case ParamTo:
			out.Positional = append(out.Positional, tc.To)
		case ParamFrom:
			out.Positional = append(out.Positional, tc.From)
		case ParamEvent:
			out.Positional = append(out.Positional, tc.Event)
		default:
			if v, ok := attrs[p.Name]; ok {
				delete(attrs, p.Name)
				out.Positional = append(out.Positional, v)

				continue
			}

			var v any
			if len(args) > 0 {
				v, args = args[0], args[1:]
			}

			out.Positional = append(out.Positional, v)
		}
	}

	if sig.HasRest() {
		out.Rest = args
	}

	for _, p := range sig.Keywords() {
		if v, ok := attrs[p.Name]; ok {
			if out.Keywords == nil {
				out.Keywords = make(map[string]any)
			}

			out.Keywords[p.Name] = v
			delete(attrs, p.Name)
		}
	}

	if sig.HasKeywordRest() {
		out.Extra = attrs
		if out.Extra == nil {
			out.Extra = make(map[string]any)
		}
	}

	return out
}
