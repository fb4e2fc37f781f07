// Package golang renders the concrete declarations of a graph as Go types
// whose JSON encoding follows the ADL serialization.
package golang

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dave/jennifer/jen"
	"golang.org/x/tools/imports"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/naming"
	"github.com/syssam/adlschema/compiler/resolve"
)

const (
	// DefaultFile is the default output file name.
	DefaultFile = "models.go"
	// DefaultPackage is the default package name.
	DefaultPackage = "models"
)

var doc = adlast.NewScopedName("sys.annotations", "Doc")

// Target generates Go model types.
type Target struct {
	file string
	pkg  string
}

// Option configures a Target.
type Option func(*Target) error

// WithFile sets the output file name.
func WithFile(name string) Option {
	return func(t *Target) error {
		if name == "" {
			return gen.NewConfigError("File", name, "file name cannot be empty")
		}
		t.file = name
		return nil
	}
}

// WithPackage sets the package name of the generated file.
func WithPackage(name string) Option {
	return func(t *Target) error {
		if name == "" {
			return gen.NewConfigError("Package", name, "package name cannot be empty")
		}
		t.pkg = name
		return nil
	}
}

// New returns a Go target.
func New(opts ...Option) (*Target, error) {
	t := &Target{file: DefaultFile, pkg: DefaultPackage}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Name implements gen.Target.
func (*Target) Name() string { return "go" }

// Generate implements gen.Target.
func (t *Target) Generate(_ context.Context, g *gen.Graph) ([]*gen.File, error) {
	f := jen.NewFile(t.pkg)
	f.HeaderComment("Code generated by adlschema. DO NOT EDIT.")
	m := &models{g: g, rec: g.Recognizer(), file: f, names: make(map[string]adlast.ScopedName)}
	for _, pd := range g.Concrete() {
		if err := m.enqueue(pd); err != nil {
			return nil, err
		}
	}
	for i := 0; i < len(m.queue); i++ {
		if err := m.decl(m.queue[i]); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, gen.NewGenerationError("render", t.file, "", err)
	}
	src, err := imports.Process(t.file, buf.Bytes(), nil)
	if err != nil {
		return nil, gen.NewGenerationError("format", t.file, "", err)
	}
	g.Logger().Debug("go models generated", slog.String("file", t.file), slog.Int("types", len(m.queue)))
	return []*gen.File{{Path: t.file, Content: src}}, nil
}

var _ gen.Target = (*Target)(nil)

type models struct {
	g     *gen.Graph
	rec   *resolve.Recognizer
	file  *jen.File
	names map[string]adlast.ScopedName
	queue []*resolve.ProjectedDecl
}

// TypeName is the Go name of a declaration or instance.
func TypeName(sn adlast.ScopedName) string {
	return naming.GoName(sn.Name)
}

func (m *models) enqueue(pd *resolve.ProjectedDecl) error {
	name := TypeName(pd.Name)
	if prev, ok := m.names[name]; ok {
		if prev == pd.Name {
			return nil
		}
		return gen.NewSchemaError(pd.Name, "", fmt.Sprintf("Go type %s is also declared by %s", name, prev), gen.ErrInvalidSchema)
	}
	m.names[name] = pd.Name
	m.queue = append(m.queue, pd)
	return nil
}

func (m *models) decl(pd *resolve.ProjectedDecl) error {
	name := TypeName(pd.Name)
	if text, ok := pd.Annotations.String(doc); ok && text != "" {
		m.file.Comment(name + " " + text)
	}
	switch {
	case pd.IsEnum():
		m.file.Type().Id(name).String()
		m.file.Const().DefsFunc(func(g *jen.Group) {
			for _, f := range pd.Fields {
				g.Id(name + naming.GoName(f.Name)).Id(name).Op("=").Lit(f.SerializedName)
			}
		})
		return nil
	case pd.Kind == adlast.KindUnion:
		return m.union(pd, name)
	default:
		return m.object(pd, name)
	}
}

func (m *models) object(pd *resolve.ProjectedDecl, name string) error {
	var fields []jen.Code
	for _, f := range pd.Fields {
		typ, err := m.typ(f.TypeExpr)
		if err != nil {
			return gen.NewSchemaError(pd.Name, f.Name, "", err)
		}
		fields = append(fields, jen.Id(naming.GoName(f.Name)).Add(typ).Tag(map[string]string{"json": f.SerializedName}))
	}
	m.file.Type().Id(name).Struct(fields...)
	return nil
}

// union renders a union as a struct holding one pointer per branch, at most
// one of which is set.
func (m *models) union(pd *resolve.ProjectedDecl, name string) error {
	var fields []jen.Code
	for _, f := range pd.Fields {
		typ, err := m.typ(f.TypeExpr)
		if err != nil {
			return gen.NewSchemaError(pd.Name, f.Name, "", err)
		}
		fields = append(fields, jen.Id(naming.GoName(f.Name)).Op("*").Add(typ).
			Tag(map[string]string{"json": f.SerializedName + ",omitempty"}))
	}
	m.file.Type().Id(name).Struct(fields...)
	return nil
}

var primitives = map[string]func() *jen.Statement{
	"Bool":   jen.Bool,
	"Int8":   jen.Int8,
	"Int16":  jen.Int16,
	"Int32":  jen.Int32,
	"Int64":  jen.Int64,
	"Word8":  jen.Uint8,
	"Word16": jen.Uint16,
	"Word32": jen.Uint32,
	"Word64": jen.Uint64,
	"Float":  jen.Float32,
	"Double": jen.Float64,
	"String": jen.String,
	"Bytes":  func() *jen.Statement { return jen.Index().Byte() },
	"Json":   func() *jen.Statement { return jen.Qual("encoding/json", "RawMessage") },
	"Void":   func() *jen.Statement { return jen.Struct() },
}

// typ maps a field type. Optional values are pointers and reference
// wrappers hold the target's key as a string.
func (m *models) typ(te adlast.TypeExpr) (*jen.Statement, error) {
	w, err := m.rec.Classify(te)
	if err != nil {
		return nil, err
	}
	switch w.Kind {
	case resolve.OptionalWrapper:
		inner, err := m.typ(w.Inner)
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Add(inner), nil
	case resolve.ListWrapper:
		inner, err := m.typ(w.Inner)
		if err != nil {
			return nil, err
		}
		return jen.Index().Add(inner), nil
	case resolve.MapWrapper:
		inner, err := m.typ(w.Inner)
		if err != nil {
			return nil, err
		}
		return jen.Map(jen.String()).Add(inner), nil
	case resolve.ReferenceWrapper:
		return jen.String(), nil
	}
	if p, ok := te.Primitive(); ok {
		if fn, ok := primitives[p]; ok {
			return fn(), nil
		}
		return nil, fmt.Errorf("golang: unsupported primitive %s", p)
	}
	if _, ok := te.Reference(); !ok {
		return nil, fmt.Errorf("golang: unbound type parameter %s", te)
	}
	pd, err := m.g.Shape(te)
	if err != nil {
		return nil, err
	}
	if pd == nil {
		next, _, err := m.rec.ExpandOnce(te)
		if err != nil {
			return nil, err
		}
		return m.typ(next)
	}
	if _, ok := m.g.Decl(pd.Name); !ok {
		if err := m.enqueue(pd); err != nil {
			return nil, err
		}
	}
	return jen.Id(TypeName(pd.Name)), nil
}
