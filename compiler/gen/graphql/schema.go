// Package graphql renders a graph as a GraphQL SDL schema. Generic
// declarations appear only through their monomorphic instances.
package graphql

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/resolve"
)

// Box marks a union branch type whose single parameter is the member type.
var Box = adlast.NewScopedName("savanti.schema.v1.annotations", "Box")

var doc = adlast.NewScopedName("sys.annotations", "Doc")

// StringMapScalar is the custom scalar of StringMap fields.
const StringMapScalar = "StringMap"

var primitives = map[string]string{
	"String": "String",
	"Bool":   "Boolean",
	"Json":   "String",
	"Int8":   "Int",
	"Int16":  "Int",
	"Int32":  "Int",
	"Int64":  "Int",
	"Word8":  "Int",
	"Word16": "Int",
	"Word32": "Int",
	"Word64": "Int",
	"Float":  "Float",
	"Double": "Float",
}

// Scalar maps an ADL primitive to a GraphQL scalar.
func Scalar(primitive string) string {
	if s, ok := primitives[primitive]; ok {
		return s
	}
	return "String"
}

// builder accumulates definitions. Declarations reached by plain references
// but absent from the graph are projected on demand.
type builder struct {
	g     *gen.Graph
	rec   *resolve.Recognizer
	doc   *ast.SchemaDocument
	names map[string]adlast.ScopedName
	queue []*resolve.ProjectedDecl
	// stringMap is set once a StringMap field is rendered.
	stringMap bool
}

// Build returns the schema document of g.
func Build(g *gen.Graph) (*ast.SchemaDocument, error) {
	b := &builder{
		g:     g,
		rec:   g.Recognizer(),
		doc:   &ast.SchemaDocument{},
		names: make(map[string]adlast.ScopedName),
	}
	for _, pd := range g.Concrete() {
		if err := b.enqueue(pd); err != nil {
			return nil, err
		}
	}
	for i := 0; i < len(b.queue); i++ {
		if err := b.decl(b.queue[i]); err != nil {
			return nil, err
		}
	}
	if b.stringMap {
		b.doc.Definitions = append(b.doc.Definitions, &ast.Definition{
			Kind: ast.Scalar,
			Name: StringMapScalar,
		})
	}
	return b.doc, nil
}

// typeName is the GraphQL name of a projected declaration.
func typeName(pd *resolve.ProjectedDecl) string {
	return pd.Name.Name
}

func (b *builder) enqueue(pd *resolve.ProjectedDecl) error {
	name := typeName(pd)
	if prev, ok := b.names[name]; ok {
		if prev == pd.Name {
			return nil
		}
		return gen.NewSchemaError(pd.Name, "", fmt.Sprintf("GraphQL type %s is also declared by %s", name, prev), gen.ErrInvalidSchema)
	}
	b.names[name] = pd.Name
	b.queue = append(b.queue, pd)
	return nil
}

func (b *builder) decl(pd *resolve.ProjectedDecl) error {
	description, _ := pd.Annotations.String(doc)
	switch {
	case pd.Kind == adlast.KindUnion && pd.IsEnum():
		def := &ast.Definition{Kind: ast.Enum, Name: typeName(pd), Description: description}
		for _, f := range pd.Fields {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{Name: f.Name})
		}
		b.doc.Definitions = append(b.doc.Definitions, def)
	case pd.Kind == adlast.KindUnion:
		return b.union(pd, description)
	default:
		return b.object(pd, description)
	}
	return nil
}

func (b *builder) object(pd *resolve.ProjectedDecl, description string) error {
	def := &ast.Definition{Kind: ast.Object, Name: typeName(pd), Description: description}
	if dm, ok := b.g.Meta.Decl(pd.Name); ok && dm.Referenced {
		if _, has := pd.Field("id"); !has {
			def.Fields = append(def.Fields, &ast.FieldDefinition{Name: "id", Type: ast.NonNullNamedType("ID", nil)})
		}
	}
	for _, f := range pd.Fields {
		t, err := b.fieldType(f.TypeExpr, false)
		if err != nil {
			return gen.NewSchemaError(pd.Name, f.Name, "", err)
		}
		fd := &ast.FieldDefinition{Name: f.Name, Type: t}
		fd.Description, _ = f.Annotations.String(doc)
		def.Fields = append(def.Fields, fd)
	}
	if len(def.Fields) == 0 {
		def.Fields = append(def.Fields, &ast.FieldDefinition{Name: "_phantom", Type: ast.NamedType("Boolean", nil)})
	}
	b.doc.Definitions = append(b.doc.Definitions, def)
	return nil
}

// union renders a tagged union as an object holding the branch kind and
// a value typed by a GraphQL union of the object branch types.
func (b *builder) union(pd *resolve.ProjectedDecl, description string) error {
	name := typeName(pd)
	branch := "_" + name + "Branch"
	valueType := "_" + name + "Type"

	var members []string
	for _, f := range pd.Fields {
		m, ok, err := b.member(f.TypeExpr)
		if err != nil {
			return gen.NewSchemaError(pd.Name, f.Name, "", err)
		}
		if ok && !slices.Contains(members, m) {
			members = append(members, m)
		}
	}
	value := ast.NonNullNamedType(valueType, nil)
	if len(members) == 0 {
		value = ast.NonNullNamedType("String", nil)
	}
	b.doc.Definitions = append(b.doc.Definitions, &ast.Definition{
		Kind:        ast.Object,
		Name:        name,
		Description: description,
		Fields: ast.FieldList{
			{Name: "kind", Type: ast.NonNullNamedType(branch, nil)},
			{Name: "value", Type: value},
		},
	})
	if len(members) > 0 {
		b.doc.Definitions = append(b.doc.Definitions, &ast.Definition{
			Kind:  ast.Union,
			Name:  valueType,
			Types: members,
		})
	}
	enum := &ast.Definition{Kind: ast.Enum, Name: branch}
	for _, f := range pd.Fields {
		enum.EnumValues = append(enum.EnumValues, &ast.EnumValueDefinition{Name: f.Name})
	}
	b.doc.Definitions = append(b.doc.Definitions, enum)
	return nil
}

// member returns the object type a union branch contributes, unboxing
// branch types annotated with Box.
func (b *builder) member(te adlast.TypeExpr) (string, bool, error) {
	sn, ok := te.Reference()
	if !ok {
		return "", false, nil
	}
	sd, err := b.g.Resolve(sn)
	if err != nil {
		return "", false, err
	}
	if sd.Decl.Annotations.Has(Box) && len(te.Parameters) == 1 {
		te = te.Parameters[0]
	}
	pd, err := b.target(te)
	if err != nil || pd == nil {
		return "", false, err
	}
	if pd.Kind == adlast.KindUnion && pd.IsEnum() {
		return "", false, nil
	}
	return typeName(pd), true, nil
}

// fieldType maps a field type expression. Wrappers are unwrapped one layer
// at a time; reference wrappers become IDs.
func (b *builder) fieldType(te adlast.TypeExpr, nullable bool) (*ast.Type, error) {
	w, err := b.rec.Classify(te)
	if err != nil {
		return nil, err
	}
	switch w.Kind {
	case resolve.OptionalWrapper:
		return b.fieldType(w.Inner, true)
	case resolve.ListWrapper:
		elem, err := b.fieldType(w.Inner, false)
		if err != nil {
			return nil, err
		}
		return &ast.Type{Elem: elem, NonNull: !nullable}, nil
	case resolve.MapWrapper:
		b.stringMap = true
		return &ast.Type{NamedType: StringMapScalar, NonNull: !nullable}, nil
	case resolve.ReferenceWrapper:
		return &ast.Type{NamedType: "ID", NonNull: !nullable}, nil
	}
	if p, ok := te.Primitive(); ok {
		return &ast.Type{NamedType: Scalar(p), NonNull: !nullable}, nil
	}
	if _, ok := te.Reference(); !ok {
		return nil, fmt.Errorf("graphql: unbound type parameter %s", te)
	}
	pd, err := b.target(te)
	if err != nil {
		return nil, err
	}
	if pd == nil {
		// An alias or newtype of a primitive or wrapper.
		next, _, err := b.rec.ExpandOnce(te)
		if err != nil {
			return nil, err
		}
		return b.fieldType(next, nullable)
	}
	return &ast.Type{NamedType: typeName(pd), NonNull: !nullable}, nil
}

// target returns the struct or union te denotes, queueing declarations
// the graph does not hold.
func (b *builder) target(te adlast.TypeExpr) (*resolve.ProjectedDecl, error) {
	pd, err := b.g.Shape(te)
	if err != nil || pd == nil {
		return nil, err
	}
	if _, ok := b.g.Decl(pd.Name); !ok {
		if err := b.enqueue(pd); err != nil {
			return nil, err
		}
	}
	return pd, nil
}

// Format renders doc as SDL with four space indentation.
func Format(doc *ast.SchemaDocument) []byte {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf, formatter.WithIndent("    ")).FormatSchemaDocument(doc)
	return buf.Bytes()
}

// Validate parses and validates an SDL schema.
func Validate(name string, sdl []byte) (*ast.Schema, error) {
	return gqlparser.LoadSchema(&ast.Source{Name: name, Input: string(sdl)})
}
