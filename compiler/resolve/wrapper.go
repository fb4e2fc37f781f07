package resolve

import (
	"fmt"
	"slices"

	"github.com/syssam/adlschema/adlast"
)

// Resolver resolves declaration names. *load.Store implements it.
type Resolver interface {
	Resolve(adlast.ScopedName) (adlast.ScopedDecl, error)
}

// Cardinality is the multiplicity of a field, taken from its outermost
// wrapper only.
type Cardinality int

// Cardinalities.
const (
	One Cardinality = iota
	Optional
	Many
	Map
)

var cardinalityNames = [...]string{"one", "optional", "many", "map"}

// String returns the lower-case cardinality name.
func (c Cardinality) String() string {
	if int(c) < len(cardinalityNames) {
		return cardinalityNames[c]
	}
	return fmt.Sprintf("Cardinality(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Cardinality) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// WrapperKind classifies the outermost layer of a type expression.
type WrapperKind int

// Wrapper kinds.
const (
	Plain WrapperKind = iota
	OptionalWrapper
	ListWrapper
	MapWrapper
	ReferenceWrapper
)

// Cardinality maps a wrapper kind to the cardinality it implies.
func (k WrapperKind) Cardinality() Cardinality {
	switch k {
	case OptionalWrapper:
		return Optional
	case ListWrapper:
		return Many
	case MapWrapper:
		return Map
	default:
		return One
	}
}

// Wrappers is the fixed vocabulary of structural wrapper types.
type Wrappers struct {
	Lists        []string            // primitive list wrappers
	Optionals    []string            // primitive optional wrappers
	OptionalRefs []adlast.ScopedName // declared optional wrappers
	Maps         []string            // primitive string-keyed maps
	References   []adlast.ScopedName // reference wrappers
}

// DefaultWrappers returns the ADL standard library vocabulary together with
// the schema reference wrapper and the database key wrapper.
func DefaultWrappers() Wrappers {
	return Wrappers{
		Lists:        []string{"Vector", "List"},
		Optionals:    []string{"Nullable", "Maybe"},
		OptionalRefs: []adlast.ScopedName{adlast.NewScopedName("sys.types", "Maybe")},
		Maps:         []string{"StringMap"},
		References: []adlast.ScopedName{
			adlast.NewScopedName("savanti.schema.v1.types", "Ref"),
			adlast.NewScopedName("common.db", "DbKey"),
		},
	}
}

// IsReference reports whether sn is a reference wrapper.
func (w Wrappers) IsReference(sn adlast.ScopedName) bool {
	return slices.Contains(w.References, sn)
}

// parametricPrimitive reports whether name is a built-in wrapper that
// takes exactly one argument.
func (w Wrappers) parametricPrimitive(name string) bool {
	return slices.Contains(w.Lists, name) || slices.Contains(w.Optionals, name) || slices.Contains(w.Maps, name)
}

// Wrapped is the result of classifying one layer of a type expression.
type Wrapped struct {
	Kind  WrapperKind
	Inner adlast.TypeExpr // unwrapped argument; the input itself for Plain
	// Target is the referenced declaration of a ReferenceWrapper. It is the
	// zero value when the argument is a still-open type parameter.
	Target adlast.ScopedName
}

// Open reports whether a reference wrapper points at an unbound type parameter.
func (w Wrapped) Open() bool {
	return w.Kind == ReferenceWrapper && w.Target == (adlast.ScopedName{})
}

// Recognizer classifies type expressions against a wrapper vocabulary.
type Recognizer struct {
	wrappers Wrappers
	resolver Resolver
}

// NewRecognizer returns a Recognizer.
func NewRecognizer(r Resolver, w Wrappers) *Recognizer {
	return &Recognizer{wrappers: w, resolver: r}
}

// Wrappers returns the vocabulary of the recognizer.
func (r *Recognizer) Wrappers() Wrappers {
	return r.wrappers
}

// Classify unwraps exactly one layer of t.
func (r *Recognizer) Classify(t adlast.TypeExpr) (Wrapped, error) {
	return adlast.MatchTypeRefE(t.TypeRef,
		func(p adlast.Primitive) (Wrapped, error) {
			var kind WrapperKind
			switch {
			case slices.Contains(r.wrappers.Lists, p.Name):
				kind = ListWrapper
			case slices.Contains(r.wrappers.Optionals, p.Name):
				kind = OptionalWrapper
			case slices.Contains(r.wrappers.Maps, p.Name):
				kind = MapWrapper
			default:
				return Wrapped{Kind: Plain, Inner: t}, nil
			}
			inner, err := single(p.Name, t)
			if err != nil {
				return Wrapped{}, err
			}
			return Wrapped{Kind: kind, Inner: inner}, nil
		},
		func(ref adlast.Reference) (Wrapped, error) {
			switch {
			case slices.Contains(r.wrappers.OptionalRefs, ref.Name):
				inner, err := single(ref.Name.String(), t)
				if err != nil {
					return Wrapped{}, err
				}
				return Wrapped{Kind: OptionalWrapper, Inner: inner}, nil
			case r.wrappers.IsReference(ref.Name):
				return r.reference(ref.Name, t)
			default:
				return Wrapped{Kind: Plain, Inner: t}, nil
			}
		},
		func(adlast.TypeParam) (Wrapped, error) {
			return Wrapped{Kind: Plain, Inner: t}, nil
		},
	)
}

func (r *Recognizer) reference(wrapper adlast.ScopedName, t adlast.TypeExpr) (Wrapped, error) {
	inner, err := single(wrapper.String(), t)
	if err != nil {
		return Wrapped{}, err
	}
	w := Wrapped{Kind: ReferenceWrapper, Inner: inner}
	switch ref := inner.TypeRef.(type) {
	case adlast.TypeParam:
		return w, nil
	case adlast.Primitive:
		return Wrapped{}, &ResolveError{
			Rule:    ErrInvalidReferenceTarget,
			Message: fmt.Sprintf("%s must wrap a declaration, got primitive %s", wrapper, ref.Name),
		}
	case adlast.Reference:
		if r.wrappers.IsReference(ref.Name) {
			return Wrapped{}, nested(wrapper, inner)
		}
		// An alias may hide another wrapper.
		expanded, err := r.ExpandAliases(inner)
		if err != nil {
			return Wrapped{}, err
		}
		if sn, ok := expanded.Reference(); ok && r.wrappers.IsReference(sn) {
			return Wrapped{}, nested(wrapper, inner)
		}
		w.Target = ref.Name
		return w, nil
	default:
		panic(fmt.Sprintf("resolve: unreachable type ref %T", inner.TypeRef))
	}
}

func nested(wrapper adlast.ScopedName, inner adlast.TypeExpr) error {
	return &ResolveError{
		Rule:    ErrNestedReferenceWrapper,
		Message: fmt.Sprintf("%s wraps %s", wrapper.Name, inner),
	}
}

func single(name string, t adlast.TypeExpr) (adlast.TypeExpr, error) {
	if len(t.Parameters) != 1 {
		return adlast.TypeExpr{}, &ResolveError{
			Rule:    ErrArityMismatch,
			Message: fmt.Sprintf("%s takes 1 type argument, got %d", name, len(t.Parameters)),
		}
	}
	return t.Parameters[0], nil
}

// ExpandAliases follows type aliases at the head of t, substituting their
// arguments, until the head is no longer an alias. Newtypes are kept.
func (r *Recognizer) ExpandAliases(t adlast.TypeExpr) (adlast.TypeExpr, error) {
	seen := map[adlast.ScopedName]bool{}
	for {
		sn, ok := t.Reference()
		if !ok || r.wrappers.IsReference(sn) {
			return t, nil
		}
		sd, err := r.resolver.Resolve(sn)
		if err != nil {
			return adlast.TypeExpr{}, err
		}
		td, ok := sd.Decl.Type.(adlast.TypeDef)
		if !ok {
			return t, nil
		}
		if seen[sn] {
			return adlast.TypeExpr{}, &ResolveError{
				Rule:    ErrUnsupportedRootKind,
				Decl:    sn,
				Message: "cyclic type alias",
			}
		}
		seen[sn] = true
		env, err := Bind(sn, td.TypeParams, t.Parameters)
		if err != nil {
			return adlast.TypeExpr{}, err
		}
		if t, err = Substitute(td.TypeExpr, env); err != nil {
			return adlast.TypeExpr{}, err
		}
	}
}

// Link returns the reference-wrapper target of t, looking through type
// aliases and at most one optional layer. It reports false when t does
// not denote a link.
func (r *Recognizer) Link(t adlast.TypeExpr) (adlast.ScopedName, bool, error) {
	for depth := 0; depth < 2; depth++ {
		expanded, err := r.ExpandAliases(t)
		if err != nil {
			return adlast.ScopedName{}, false, err
		}
		w, err := r.Classify(expanded)
		if err != nil {
			return adlast.ScopedName{}, false, err
		}
		switch w.Kind {
		case ReferenceWrapper:
			if w.Open() {
				return adlast.ScopedName{}, false, nil
			}
			return w.Target, true, nil
		case OptionalWrapper:
			t = w.Inner
		default:
			return adlast.ScopedName{}, false, nil
		}
	}
	return adlast.ScopedName{}, false, nil
}

// References returns every reference-wrapper target reachable from t
// through built-in wrappers, in order of appearance.
func (r *Recognizer) References(t adlast.TypeExpr) ([]adlast.ScopedName, error) {
	var out []adlast.ScopedName
	for {
		w, err := r.Classify(t)
		if err != nil {
			return nil, err
		}
		switch w.Kind {
		case ReferenceWrapper:
			if !w.Open() {
				out = append(out, w.Target)
			}
			return out, nil
		case OptionalWrapper, ListWrapper, MapWrapper:
			t = w.Inner
		default:
			// Arguments of a generic reference may carry links too.
			if _, ok := w.Inner.Reference(); ok {
				for _, p := range w.Inner.Parameters {
					refs, err := r.References(p)
					if err != nil {
						return nil, err
					}
					out = append(out, refs...)
				}
			}
			return out, nil
		}
	}
}

// Core strips built-in wrappers from t and returns what remains.
func (r *Recognizer) Core(t adlast.TypeExpr) (adlast.TypeExpr, error) {
	for {
		w, err := r.Classify(t)
		if err != nil {
			return adlast.TypeExpr{}, err
		}
		switch w.Kind {
		case OptionalWrapper, ListWrapper, MapWrapper:
			t = w.Inner
		default:
			return t, nil
		}
	}
}

// ExpandOnce replaces an alias or newtype at the head of t by its
// substituted definition. It reports false when the head is anything else.
func (r *Recognizer) ExpandOnce(t adlast.TypeExpr) (adlast.TypeExpr, bool, error) {
	sn, ok := t.Reference()
	if !ok {
		return t, false, nil
	}
	sd, err := r.resolver.Resolve(sn)
	if err != nil {
		return adlast.TypeExpr{}, false, err
	}
	def, ok := adlast.Wrapped(sd.Decl.Type)
	if !ok {
		return t, false, nil
	}
	env, err := Bind(sn, sd.Decl.TypeParams(), t.Parameters)
	if err != nil {
		return adlast.TypeExpr{}, false, err
	}
	out, err := Substitute(def, env)
	if err != nil {
		return adlast.TypeExpr{}, false, err
	}
	return out, true, nil
}
