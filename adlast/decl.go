package adlast

import "fmt"

// DeclKind is the JSON tag of a DeclType variant.
type DeclKind string

// DeclType variants.
const (
	KindStruct  DeclKind = "struct_"
	KindUnion   DeclKind = "union_"
	KindTypeDef DeclKind = "type_"
	KindNewType DeclKind = "newtype_"
)

// DeclType is the body of a declaration. Implemented by Struct, Union,
// TypeDef and NewType only.
type DeclType interface {
	Kind() DeclKind
	Params() []string
	declType()
}

// Struct is a product type.
type Struct struct {
	TypeParams []string `json:"typeParams"`
	Fields     []Field  `json:"fields"`
}

// Union is a sum type; each field is a branch.
type Union struct {
	TypeParams []string `json:"typeParams"`
	Fields     []Field  `json:"fields"`
}

// TypeDef is a type alias.
type TypeDef struct {
	TypeParams []string `json:"typeParams"`
	TypeExpr   TypeExpr `json:"typeExpr"`
}

// NewType is a distinct type wrapping a single type expression.
type NewType struct {
	TypeParams []string `json:"typeParams"`
	TypeExpr   TypeExpr `json:"typeExpr"`
	Default    Maybe    `json:"default"`
}

func (Struct) Kind() DeclKind  { return KindStruct }
func (Union) Kind() DeclKind   { return KindUnion }
func (TypeDef) Kind() DeclKind { return KindTypeDef }
func (NewType) Kind() DeclKind { return KindNewType }

func (s Struct) Params() []string  { return s.TypeParams }
func (u Union) Params() []string   { return u.TypeParams }
func (t TypeDef) Params() []string { return t.TypeParams }
func (n NewType) Params() []string { return n.TypeParams }

func (Struct) declType()  {}
func (Union) declType()   {}
func (TypeDef) declType() {}
func (NewType) declType() {}

// MatchDecl dispatches on the variant of d.
func MatchDecl[T any](
	d DeclType,
	structFn func(Struct) T,
	unionFn func(Union) T,
	typeDefFn func(TypeDef) T,
	newTypeFn func(NewType) T,
) T {
	switch v := d.(type) {
	case Struct:
		return structFn(v)
	case Union:
		return unionFn(v)
	case TypeDef:
		return typeDefFn(v)
	case NewType:
		return newTypeFn(v)
	default:
		panic(fmt.Sprintf("adlast: unreachable decl type %T", d))
	}
}

// MatchDeclE is MatchDecl for callbacks that can fail.
func MatchDeclE[T any](
	d DeclType,
	structFn func(Struct) (T, error),
	unionFn func(Union) (T, error),
	typeDefFn func(TypeDef) (T, error),
	newTypeFn func(NewType) (T, error),
) (T, error) {
	switch v := d.(type) {
	case Struct:
		return structFn(v)
	case Union:
		return unionFn(v)
	case TypeDef:
		return typeDefFn(v)
	case NewType:
		return newTypeFn(v)
	default:
		panic(fmt.Sprintf("adlast: unreachable decl type %T", d))
	}
}

// IsEnum reports whether every branch of u is Void.
func IsEnum(u Union) bool {
	if len(u.Fields) == 0 {
		return false
	}
	for _, f := range u.Fields {
		if name, ok := f.TypeExpr.Primitive(); !ok || name != "Void" {
			return false
		}
	}
	return true
}

// Wrapped returns the type expression of an alias or newtype.
func Wrapped(d DeclType) (TypeExpr, bool) {
	switch v := d.(type) {
	case TypeDef:
		return v.TypeExpr, true
	case NewType:
		return v.TypeExpr, true
	default:
		return TypeExpr{}, false
	}
}
