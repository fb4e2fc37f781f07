// Package prisma renders the tables of a graph as a Prisma schema.
package prisma

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/db"
	"github.com/syssam/adlschema/compiler/gen/naming"
)

// DefaultFile is the default output file name.
const DefaultFile = "schema.prisma"

// Target generates a Prisma schema file.
type Target struct {
	file       string
	extensions []string
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

// WithExtensions records database extensions. Prisma declares extensions
// in the datasource block, so a non-empty list fails generation.
func WithExtensions(names ...string) Option {
	return func(t *Target) error {
		t.extensions = append(t.extensions, names...)
		return nil
	}
}

// New returns a Prisma target.
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
func (*Target) Name() string { return "prisma" }

// Generate implements gen.Target.
func (t *Target) Generate(_ context.Context, g *gen.Graph) ([]*gen.File, error) {
	ma, err := g.ModuleBlock(PrismaBlocks)
	if err != nil {
		return nil, err
	}
	blocks, err := DecodeBlocks(ma)
	if err != nil {
		return nil, err
	}
	if len(t.extensions) > 0 {
		return nil, gen.NewConfigError("Extensions", t.extensions,
			"extensions must be placed in the prisma datasource block")
	}
	s, err := db.Build(g, db.Prisma)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	writeHeader(&b, s, ma.Module)
	writeBlocks(&b, blocks)
	writeModels(&b, s)
	return []*gen.File{{Path: t.file, Content: []byte(b.String())}}, nil
}

var _ gen.Target = (*Target)(nil)

func writeHeader(b *strings.Builder, s *db.Schema, blockModule string) {
	fmt.Fprintf(b, "// Schema auto-generated from adl modules: %s\n", strings.Join(s.Modules, ", "))
	b.WriteString("//\n")
	b.WriteString("// column comments show original ADL types\n")
	b.WriteString("//\n")
	fmt.Fprintf(b, "// Blocks from %s\n", blockModule)
	b.WriteString("\n")
}

func writeBlocks(b *strings.Builder, blocks *Blocks) {
	name := "db"
	if blocks.DatasourceBlockName != nil && *blocks.DatasourceBlockName != "" {
		name = *blocks.DatasourceBlockName
	}
	ds := blocks.Datasource
	fmt.Fprintf(b, "datasource %s {\n", name)
	fmt.Fprintf(b, "  provider = %q\n", ds.Provider)
	fmt.Fprintf(b, "  url = %s\n", ds.URL)
	setting(b, "shadowDatabaseUrl", ds.ShadowDatabaseURL)
	setting(b, "directUrl", ds.DirectURL)
	setting(b, "relationMode", ds.RelationMode)
	list(b, "extensions", ds.Extensions)
	b.WriteString("}\n")
	b.WriteString("\n")

	for _, gb := range blocks.Generators {
		fmt.Fprintf(b, "generator %s {\n", gb.Name)
		fmt.Fprintf(b, "  provider = %q\n", gb.Provider)
		setting(b, "output", gb.Output)
		list(b, "previewFeatures", gb.PreviewFeatures)
		setting(b, "engineType", gb.EngineType)
		list(b, "binaryTargets", gb.BinaryTargets)
		b.WriteString("}\n")
		b.WriteString("\n")
	}
}

func setting(b *strings.Builder, key string, v *string) {
	if v != nil && *v != "" {
		fmt.Fprintf(b, "  %s = %q\n", key, *v)
	}
}

func list(b *strings.Builder, key string, vs []string) {
	if len(vs) == 0 {
		return
	}
	quoted := make([]string, len(vs))
	for i, v := range vs {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	fmt.Fprintf(b, "  %s = [%s]\n", key, strings.Join(quoted, ", "))
}

// children maps a table name to the tables holding a foreign key to it, in
// table and column order.
func children(s *db.Schema) map[string][]string {
	out := make(map[string][]string)
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			if fk := c.ForeignKey; fk != nil {
				out[fk.Table] = append(out[fk.Table], naming.QuoteReserved(t.Name))
			}
		}
	}
	return out
}

func writeModels(b *strings.Builder, s *db.Schema) {
	kids := children(s)
	var extra []string
	for _, t := range s.Tables {
		var lines []string
		for _, c := range t.Columns {
			l := c.Name + " " + c.Type
			if c.Nullable {
				l += "?"
			}
			if fc, ok := c.Field.Annotations.String(FieldComment); ok {
				l += " /// " + fc
			}
			lines = append(lines, l)
			if fk := c.ForeignKey; fk != nil {
				ref := naming.QuoteReserved(fk.Table)
				lines = append(lines, fmt.Sprintf("%s_%s %s @relation(fields: [%s], references: [%s])",
					c.Name, ref, ref, c.Name, fk.Column))
			}
		}
		if len(t.PrimaryKey) > 0 {
			lines = append(lines, "@@id(["+strings.Join(t.PrimaryKey, ",")+"])")
		}
		for _, cols := range t.Indexes {
			lines = append(lines, "@@index(["+strings.Join(cols, ", ")+"])")
		}
		for _, cols := range t.Unique {
			lines = append(lines, "@@unique(["+strings.Join(cols, ", ")+"])")
		}
		for _, kid := range kids[t.Name] {
			lines = append(lines, kid+" "+kid+"[]")
		}

		b.WriteString("\n")
		fmt.Fprintf(b, "model %s {\n", naming.QuoteReserved(t.Name))
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
		b.WriteString("}\n")
		extra = append(extra, t.ExtraSQL...)
	}
	if len(extra) > 0 {
		b.WriteString("\n")
		for _, stmt := range extra {
			b.WriteString(stmt + "\n")
		}
	}
}
