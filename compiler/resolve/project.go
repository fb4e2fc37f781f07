package resolve

import (
	"fmt"
	"slices"

	"github.com/syssam/adlschema/adlast"
)

// SpreadAnnotation marks a field whose declaration is inlined into the
// enclosing struct rather than emitted as a field.
var SpreadAnnotation = adlast.NewScopedName("common.db", "DbSpread")

// ConcreteField is a field after substitution together with the metadata
// derived from its type expression.
type ConcreteField struct {
	adlast.Field
	Cardinality Cardinality
	// Concrete reports that no type parameter remains in TypeExpr.
	Concrete bool
	// Monomorphized reports that, under built-in wrappers, TypeExpr is a
	// generic declaration applied to concrete arguments.
	Monomorphized bool
	// Link is the target of a reference wrapper seen through aliases and
	// one optional layer.
	Link *adlast.ScopedName
	// References lists every reference-wrapper target reachable from TypeExpr.
	References []adlast.ScopedName
	// Origin is the struct or union that declared the field. It differs from
	// the projected declaration for spread and expanded fields.
	Origin adlast.ScopedName
}

// ProjectedDecl is the concrete shape of a struct or union.
type ProjectedDecl struct {
	Name adlast.ScopedName
	// Decl is the source declaration. For alias and newtype roots it is the
	// alias, while Shape names the struct or union the fields come from.
	Decl        adlast.ScopedDecl
	Kind        adlast.DeclKind
	Shape       adlast.ScopedName
	Fields      []ConcreteField
	Annotations adlast.Annotations
	// Generic is set for generic declarations projected with open parameters.
	Generic bool
	// External is set for declarations outside the focus set.
	External bool
	// Instance is set for monomorphic instances of generic declarations.
	Instance bool
	// TypeExpr is the instantiation an instance was projected from.
	TypeExpr adlast.TypeExpr
	// Path is the alias and newtype expansion chain leading to Shape.
	Path []string
}

// Field returns the field with the given name.
func (pd *ProjectedDecl) Field(name string) (ConcreteField, bool) {
	for _, f := range pd.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ConcreteField{}, false
}

// IsEnum reports whether the declaration is a union of Void branches.
func (pd *ProjectedDecl) IsEnum() bool {
	if pd.Kind != adlast.KindUnion || len(pd.Fields) == 0 {
		return false
	}
	for _, f := range pd.Fields {
		if name, ok := f.TypeExpr.Primitive(); !ok || name != "Void" {
			return false
		}
	}
	return true
}

// Projector projects declarations into concrete field lists.
type Projector struct {
	resolver Resolver
	rec      *Recognizer
	spread   adlast.ScopedName
}

// NewProjector returns a Projector over r using the wrapper vocabulary w.
func NewProjector(r Resolver, w Wrappers) *Projector {
	return &Projector{
		resolver: r,
		rec:      NewRecognizer(r, w),
		spread:   SpreadAnnotation,
	}
}

// Recognizer returns the wrapper recognizer of p.
func (p *Projector) Recognizer() *Recognizer {
	return p.rec
}

// projection tracks one Project call.
type projection struct {
	path   []string
	shape  []string // path at the first struct or union reached
	active map[adlast.ScopedName]bool
}

func (st *projection) capture() {
	if st.shape == nil {
		st.shape = slices.Clone(st.path)
	}
}

func (st *projection) enter(sd adlast.ScopedDecl) error {
	sn := sd.Name()
	if st.active[sn] {
		return &ResolveError{
			Rule:    ErrUnsupportedRootKind,
			Decl:    sn,
			Path:    slices.Clone(st.path),
			Message: "declaration expands to itself",
		}
	}
	st.active[sn] = true
	st.path = append(st.path, string(sd.Decl.Kind())+":"+sn.Name)
	return nil
}

func (st *projection) leave(sd adlast.ScopedDecl) {
	delete(st.active, sd.Name())
	st.path = st.path[:len(st.path)-1]
}

// Project projects sd with the bindings in env. Aliases and newtypes are
// expanded to the struct or union they denote. A generic declaration may
// be projected with an empty env, leaving its parameters open.
func (p *Projector) Project(sd adlast.ScopedDecl, env Env) (*ProjectedDecl, error) {
	st := &projection{active: make(map[adlast.ScopedName]bool)}
	shape, fields, err := p.project(st, sd, env)
	if err != nil {
		return nil, err
	}
	return &ProjectedDecl{
		Name:        sd.Name(),
		Decl:        sd,
		Kind:        shape.Decl.Kind(),
		Shape:       shape.Name(),
		Fields:      fields,
		Annotations: sd.Decl.Annotations,
		Generic:     len(sd.Decl.TypeParams()) > 0 && len(env) == 0,
		Path:        shapePath(st),
	}, nil
}

// ProjectTypeExpr projects the declaration referenced by t, binding its
// type parameters to the arguments of t.
func (p *Projector) ProjectTypeExpr(t adlast.TypeExpr) (*ProjectedDecl, error) {
	sn, ok := t.Reference()
	if !ok {
		return nil, &ResolveError{
			Rule:    ErrUnsupportedRootKind,
			Message: fmt.Sprintf("cannot project %s", t),
		}
	}
	sd, err := p.resolver.Resolve(sn)
	if err != nil {
		return nil, err
	}
	env, err := Bind(sn, sd.Decl.TypeParams(), t.Parameters)
	if err != nil {
		return nil, err
	}
	pd, err := p.Project(sd, env)
	if err != nil {
		return nil, err
	}
	pd.TypeExpr = t
	pd.Generic = t.HasTypeParams()
	return pd, nil
}

func shapePath(st *projection) []string {
	if len(st.shape) < 2 {
		return nil
	}
	return st.shape
}

func (p *Projector) project(st *projection, sd adlast.ScopedDecl, env Env) (adlast.ScopedDecl, []ConcreteField, error) {
	if err := st.enter(sd); err != nil {
		return adlast.ScopedDecl{}, nil, err
	}
	defer st.leave(sd)
	type result struct {
		shape  adlast.ScopedDecl
		fields []ConcreteField
	}
	r, err := adlast.MatchDeclE(sd.Decl.Type,
		func(s adlast.Struct) (result, error) {
			st.capture()
			fields, err := p.fields(st, sd, s.Fields, env)
			return result{sd, fields}, err
		},
		func(u adlast.Union) (result, error) {
			st.capture()
			fields, err := p.fields(st, sd, u.Fields, env)
			return result{sd, fields}, err
		},
		func(td adlast.TypeDef) (result, error) {
			shape, fields, err := p.wrapped(st, sd, td.TypeExpr, env)
			return result{shape, fields}, err
		},
		func(nt adlast.NewType) (result, error) {
			shape, fields, err := p.wrapped(st, sd, nt.TypeExpr, env)
			return result{shape, fields}, err
		},
	)
	return r.shape, r.fields, err
}

// wrapped expands the type expression of an alias or newtype.
func (p *Projector) wrapped(st *projection, sd adlast.ScopedDecl, t adlast.TypeExpr, env Env) (adlast.ScopedDecl, []ConcreteField, error) {
	te, err := Substitute(t, env)
	if err != nil {
		return adlast.ScopedDecl{}, nil, locate(err, sd.Name(), "", st.path)
	}
	shape, fields, err := p.expand(st, te)
	if err != nil {
		return adlast.ScopedDecl{}, nil, locate(err, sd.Name(), "", st.path)
	}
	return shape, fields, nil
}

// expand projects the declaration a substituted type expression refers to.
func (p *Projector) expand(st *projection, te adlast.TypeExpr) (adlast.ScopedDecl, []ConcreteField, error) {
	sn, ok := te.Reference()
	if !ok {
		return adlast.ScopedDecl{}, nil, &ResolveError{
			Rule:    ErrUnsupportedRootKind,
			Path:    slices.Clone(st.path),
			Message: fmt.Sprintf("%s does not denote a struct or union", te),
		}
	}
	if p.rec.wrappers.IsReference(sn) || slices.Contains(p.rec.wrappers.OptionalRefs, sn) {
		return adlast.ScopedDecl{}, nil, &ResolveError{
			Rule:    ErrUnsupportedRootKind,
			Path:    slices.Clone(st.path),
			Message: fmt.Sprintf("%s is a wrapper, not a struct or union", te),
		}
	}
	target, err := p.resolver.Resolve(sn)
	if err != nil {
		return adlast.ScopedDecl{}, nil, err
	}
	env, err := Bind(sn, target.Decl.TypeParams(), te.Parameters)
	if err != nil {
		return adlast.ScopedDecl{}, nil, err
	}
	return p.project(st, target, env)
}

func (p *Projector) fields(st *projection, owner adlast.ScopedDecl, fields []adlast.Field, env Env) ([]ConcreteField, error) {
	out := make([]ConcreteField, 0, len(fields))
	for _, f := range fields {
		te, err := Substitute(f.TypeExpr, env)
		if err == nil {
			err = p.checkArity(te)
		}
		if err != nil {
			return nil, locate(err, owner.Name(), f.Name, st.path)
		}
		if f.Annotations.Has(p.spread) {
			_, inlined, err := p.expand(st, te)
			if err != nil {
				return nil, locate(err, owner.Name(), f.Name, st.path)
			}
			out = append(out, inlined...)
			continue
		}
		cf, err := p.field(owner.Name(), f, te)
		if err != nil {
			return nil, locate(err, owner.Name(), f.Name, st.path)
		}
		out = append(out, cf)
	}
	origins := make(map[string]adlast.ScopedName, len(out))
	for _, cf := range out {
		if prev, ok := origins[cf.Name]; ok {
			return nil, &ResolveError{
				Rule:    ErrDuplicateField,
				Decl:    owner.Name(),
				Field:   cf.Name,
				Path:    slices.Clone(st.path),
				Message: fmt.Sprintf("declared by both %s and %s", prev, cf.Origin),
			}
		}
		origins[cf.Name] = cf.Origin
	}
	return out, nil
}

func (p *Projector) field(owner adlast.ScopedName, f adlast.Field, te adlast.TypeExpr) (ConcreteField, error) {
	w, err := p.rec.Classify(te)
	if err != nil {
		return ConcreteField{}, err
	}
	refs, err := p.rec.References(te)
	if err != nil {
		return ConcreteField{}, err
	}
	core, err := p.rec.Core(te)
	if err != nil {
		return ConcreteField{}, err
	}
	cf := ConcreteField{
		Field: adlast.Field{
			Name:           f.Name,
			SerializedName: f.SerializedName,
			TypeExpr:       te,
			Default:        f.Default,
			Annotations:    f.Annotations.Clone(),
		},
		Cardinality: w.Kind.Cardinality(),
		Concrete:    !te.HasTypeParams(),
		References:  refs,
		Origin:      owner,
	}
	link, ok, err := p.rec.Link(te)
	if err != nil {
		return ConcreteField{}, err
	}
	if ok {
		cf.Link = &link
		if !slices.Contains(cf.References, link) {
			cf.References = append(cf.References, link)
		}
	}
	if sn, ok := core.Reference(); ok && cf.Concrete && len(core.Parameters) > 0 && !p.rec.wrappers.IsReference(sn) {
		cf.Monomorphized = true
	}
	return cf, nil
}

// checkArity verifies every reference in t supplies exactly the number of
// type arguments its declaration takes.
func (p *Projector) checkArity(t adlast.TypeExpr) error {
	var err error
	t.Walk(func(n adlast.TypeExpr) bool {
		if err != nil {
			return false
		}
		switch ref := n.TypeRef.(type) {
		case adlast.Reference:
			var sd adlast.ScopedDecl
			if sd, err = p.resolver.Resolve(ref.Name); err != nil {
				return false
			}
			if want := len(sd.Decl.TypeParams()); want != len(n.Parameters) {
				err = &ResolveError{
					Rule:    ErrArityMismatch,
					Message: fmt.Sprintf("%s declares %d type parameter(s), reference supplies %d", ref.Name, want, len(n.Parameters)),
				}
			}
		case adlast.Primitive:
			want := 0
			if p.rec.wrappers.parametricPrimitive(ref.Name) {
				want = 1
			}
			if len(n.Parameters) != want {
				err = &ResolveError{
					Rule:    ErrArityMismatch,
					Message: fmt.Sprintf("%s takes %d type argument(s), got %d", ref.Name, want, len(n.Parameters)),
				}
			}
		}
		return err == nil
	})
	return err
}

// Roots returns the declarations of the given modules that project
// directly: every struct and union, plus aliases and newtypes annotated
// with one of tableKeys.
func Roots(decls []adlast.ScopedDecl, tableKeys ...adlast.ScopedName) []adlast.ScopedDecl {
	var roots []adlast.ScopedDecl
	for _, sd := range decls {
		switch sd.Decl.Type.(type) {
		case adlast.Struct, adlast.Union:
			roots = append(roots, sd)
		case adlast.TypeDef, adlast.NewType:
			if slices.ContainsFunc(tableKeys, sd.Decl.Annotations.Has) {
				roots = append(roots, sd)
			}
		}
	}
	return roots
}
