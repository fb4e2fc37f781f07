package graphql

import (
	"context"
	"log/slog"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/adlschema/compiler/gen"
)

const (
	// DefaultFile is the default schema file name.
	DefaultFile = "schema.graphql"
	// DefaultGQLGenFile is the default gqlgen config file name.
	DefaultGQLGenFile = "gqlgen.yml"
)

// Target generates a GraphQL schema and optionally a gqlgen config binding
// its types to Go models.
type Target struct {
	file         string
	gqlgenFile   string
	gqlgenBase   string
	modelPackage string
}

// Option configures a Target.
type Option func(*Target) error

// WithFile sets the schema file name.
func WithFile(name string) Option {
	return func(t *Target) error {
		if name == "" {
			return gen.NewConfigError("File", name, "file name cannot be empty")
		}
		t.file = name
		return nil
	}
}

// WithGQLGen enables gqlgen.yml output binding types to models in the Go
// package modelPackage. base is an existing config to merge into; it may
// be empty or name a missing file.
func WithGQLGen(modelPackage, base string) Option {
	return func(t *Target) error {
		if modelPackage == "" {
			return gen.NewConfigError("GQLGen", modelPackage, "model package cannot be empty")
		}
		t.modelPackage = modelPackage
		t.gqlgenBase = base
		return nil
	}
}

// New returns a GraphQL target.
func New(opts ...Option) (*Target, error) {
	t := &Target{file: DefaultFile, gqlgenFile: DefaultGQLGenFile}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Name implements gen.Target.
func (*Target) Name() string { return "graphql" }

// Generate implements gen.Target.
func (t *Target) Generate(_ context.Context, g *gen.Graph) ([]*gen.File, error) {
	doc, err := Build(g)
	if err != nil {
		return nil, err
	}
	sdl := Format(doc)
	if _, err := Validate(t.file, sdl); err != nil {
		return nil, gen.NewGenerationError("validate", t.file, "generated schema is invalid", err)
	}
	files := []*gen.File{{Path: t.file, Content: sdl}}
	g.Logger().Debug("graphql schema generated",
		slog.String("file", t.file),
		slog.Int("types", len(doc.Definitions)),
	)
	if t.modelPackage == "" {
		return files, nil
	}
	cfg := &GQLGenConfig{Models: make(map[string]TypeMapEntry)}
	if t.gqlgenBase != "" {
		if cfg, err = LoadGQLGenConfig(t.gqlgenBase); err != nil {
			return nil, gen.NewGenerationError("gqlgen", t.gqlgenBase, "", err)
		}
	}
	cfg.Bind(t.file, t.modelPackage, names(doc))
	data, err := cfg.Marshal()
	if err != nil {
		return nil, gen.NewGenerationError("gqlgen", t.gqlgenFile, "", err)
	}
	return append(files, &gen.File{Path: t.gqlgenFile, Content: data}), nil
}

func names(doc *ast.SchemaDocument) []string {
	out := make([]string, 0, len(doc.Definitions))
	for _, d := range doc.Definitions {
		out = append(out, d.Name)
	}
	return out
}

var _ gen.Target = (*Target)(nil)
