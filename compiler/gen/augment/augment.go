// Package augment writes the loaded modules back as an adlc AST document in
// which every resolved declaration carries its derived annotations and every
// generic instance appears as a declaration.
package augment

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/syssam/adlschema/compiler/gen"
)

// DefaultFile is the default output file name.
const DefaultFile = "ast.json"

// Target writes the augmented AST.
type Target struct {
	file    string
	modules []string
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

// WithModules restricts the document to the named modules. By default every
// loaded module is written.
func WithModules(names ...string) Option {
	return func(t *Target) error {
		t.modules = append(t.modules, names...)
		return nil
	}
}

// New returns an AST target.
func New(opts ...Option) (*Target, error) {
	t := &Target{file: DefaultFile}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Name implements gen.Target.
func (*Target) Name() string { return "ast" }

// Generate implements gen.Target.
func (t *Target) Generate(_ context.Context, g *gen.Graph) ([]*gen.File, error) {
	modules, err := g.Augmented()
	if err != nil {
		return nil, gen.NewGenerationError("augment", t.file, "", err)
	}
	if len(t.modules) > 0 {
		for name := range modules {
			if !slices.Contains(t.modules, name) {
				delete(modules, name)
			}
		}
	}
	data, err := json.MarshalIndent(modules, "", "  ")
	if err != nil {
		return nil, gen.NewGenerationError("augment", t.file, "", err)
	}
	g.Logger().Debug("augmented ast written", slog.String("file", t.file), slog.Int("modules", len(modules)))
	return []*gen.File{{Path: t.file, Content: append(data, '\n')}}, nil
}

var _ gen.Target = (*Target)(nil)
