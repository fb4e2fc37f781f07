package adlast

import (
	"fmt"
	"strings"
)

// TypeRefKind is the JSON tag of a TypeRef variant.
type TypeRefKind string

// TypeRef variants.
const (
	KindPrimitive TypeRefKind = "primitive"
	KindReference TypeRefKind = "reference"
	KindTypeParam TypeRefKind = "typeParam"
)

// TypeRef is the head of a type expression. Implemented by Primitive,
// Reference and TypeParam only.
type TypeRef interface {
	Kind() TypeRefKind
	typeRef()
}

// Primitive is a built-in type such as Int32, String, Vector or Nullable.
type Primitive struct {
	Name string
}

// Reference names a declaration.
type Reference struct {
	Name ScopedName
}

// TypeParam names a generic parameter of the enclosing declaration.
type TypeParam struct {
	Name string
}

func (Primitive) Kind() TypeRefKind { return KindPrimitive }
func (Reference) Kind() TypeRefKind { return KindReference }
func (TypeParam) Kind() TypeRefKind { return KindTypeParam }

func (Primitive) typeRef() {}
func (Reference) typeRef() {}
func (TypeParam) typeRef() {}

// MatchTypeRef dispatches on the variant of r.
func MatchTypeRef[T any](
	r TypeRef,
	primitive func(Primitive) T,
	reference func(Reference) T,
	typeParam func(TypeParam) T,
) T {
	switch v := r.(type) {
	case Primitive:
		return primitive(v)
	case Reference:
		return reference(v)
	case TypeParam:
		return typeParam(v)
	default:
		panic(fmt.Sprintf("adlast: unreachable type ref %T", r))
	}
}

// MatchTypeRefE is MatchTypeRef for callbacks that can fail.
func MatchTypeRefE[T any](
	r TypeRef,
	primitive func(Primitive) (T, error),
	reference func(Reference) (T, error),
	typeParam func(TypeParam) (T, error),
) (T, error) {
	switch v := r.(type) {
	case Primitive:
		return primitive(v)
	case Reference:
		return reference(v)
	case TypeParam:
		return typeParam(v)
	default:
		panic(fmt.Sprintf("adlast: unreachable type ref %T", r))
	}
}

// TypeExpr is a type reference applied to zero or more type arguments.
type TypeExpr struct {
	TypeRef    TypeRef
	Parameters []TypeExpr
}

// Prim returns a primitive type expression.
func Prim(name string, params ...TypeExpr) TypeExpr {
	return TypeExpr{TypeRef: Primitive{Name: name}, Parameters: params}
}

// Ref returns a reference type expression.
func Ref(name ScopedName, params ...TypeExpr) TypeExpr {
	return TypeExpr{TypeRef: Reference{Name: name}, Parameters: params}
}

// Param returns a type parameter type expression.
func Param(name string) TypeExpr {
	return TypeExpr{TypeRef: TypeParam{Name: name}}
}

// Reference returns the referenced declaration name if t is a reference.
func (t TypeExpr) Reference() (ScopedName, bool) {
	if r, ok := t.TypeRef.(Reference); ok {
		return r.Name, true
	}
	return ScopedName{}, false
}

// Primitive returns the primitive name if t is a primitive.
func (t TypeExpr) Primitive() (string, bool) {
	if p, ok := t.TypeRef.(Primitive); ok {
		return p.Name, true
	}
	return "", false
}

// Equal reports whether t and o are structurally equal.
func (t TypeExpr) Equal(o TypeExpr) bool {
	if t.TypeRef != o.TypeRef || len(t.Parameters) != len(o.Parameters) {
		return false
	}
	for i := range t.Parameters {
		if !t.Parameters[i].Equal(o.Parameters[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of t.
func (t TypeExpr) Clone() TypeExpr {
	c := TypeExpr{TypeRef: t.TypeRef}
	if len(t.Parameters) > 0 {
		c.Parameters = make([]TypeExpr, len(t.Parameters))
		for i, p := range t.Parameters {
			c.Parameters[i] = p.Clone()
		}
	}
	return c
}

// HasTypeParams reports whether any TypeParam occurs in t.
func (t TypeExpr) HasTypeParams() bool {
	found := false
	t.Walk(func(e TypeExpr) bool {
		if _, ok := e.TypeRef.(TypeParam); ok {
			found = true
		}
		return !found
	})
	return found
}

// Walk calls fn for t and then for every nested parameter, depth first.
// Children are skipped when fn returns false.
func (t TypeExpr) Walk(fn func(TypeExpr) bool) {
	if !fn(t) {
		return
	}
	for _, p := range t.Parameters {
		p.Walk(fn)
	}
}

// String renders t with unqualified reference names, e.g. "Vector<Int32>".
func (t TypeExpr) String() string {
	var b strings.Builder
	t.write(&b, false)
	return b.String()
}

// ScopedString renders t with qualified reference names.
func (t TypeExpr) ScopedString() string {
	var b strings.Builder
	t.write(&b, true)
	return b.String()
}

func (t TypeExpr) write(b *strings.Builder, scoped bool) {
	switch r := t.TypeRef.(type) {
	case Primitive:
		b.WriteString(r.Name)
	case TypeParam:
		b.WriteString(r.Name)
	case Reference:
		if scoped {
			b.WriteString(r.Name.String())
		} else {
			b.WriteString(r.Name.Name)
		}
	}
	if len(t.Parameters) == 0 {
		return
	}
	b.WriteByte('<')
	for i, p := range t.Parameters {
		if i > 0 {
			b.WriteByte(',')
		}
		p.write(b, scoped)
	}
	b.WriteByte('>')
}
