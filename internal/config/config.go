// Package config reads the adlschema.yaml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/augment"
	"github.com/syssam/adlschema/compiler/gen/golang"
	"github.com/syssam/adlschema/compiler/gen/graphql"
	"github.com/syssam/adlschema/compiler/gen/mermaid"
	"github.com/syssam/adlschema/compiler/gen/prisma"
	"github.com/syssam/adlschema/compiler/gen/sql"
)

// DefaultFile is the project file looked up in the working directory.
const DefaultFile = "adlschema.yaml"

var validate = validator.New()

// File is the decoded project file. Paths are relative to the directory
// holding the file.
type File struct {
	Inputs            []string `yaml:"inputs" validate:"dive,required"`
	Modules           []string `yaml:"modules" validate:"dive,required"`
	Focus             []string `yaml:"focus" validate:"dive,required"`
	Target            string   `yaml:"target"`
	Header            string   `yaml:"header"`
	Workers           int      `yaml:"workers" validate:"gte=0"`
	ReferenceWrappers []string `yaml:"referenceWrappers" validate:"dive,contains=."`

	SQL     *SQL     `yaml:"sql"`
	Plan    *Plan    `yaml:"plan"`
	Apply   *Apply   `yaml:"apply"`
	Prisma  *Prisma  `yaml:"prisma"`
	GraphQL *GraphQL `yaml:"graphql"`
	Mermaid *Mermaid `yaml:"mermaid"`
	Go      *Go      `yaml:"go"`
	AST     *AST     `yaml:"ast"`

	dir string
}

// SQL configures the sql target.
type SQL struct {
	Profile    string     `yaml:"profile"`
	Extensions []string   `yaml:"extensions"`
	Create     string     `yaml:"create"`
	Views      string     `yaml:"views"`
	Metadata   string     `yaml:"metadata"`
	Templates  []Template `yaml:"templates" validate:"dive"`
}

// Template is a user template of the sql target.
type Template struct {
	Path   string `yaml:"path" validate:"required"`
	Output string `yaml:"output" validate:"required"`
}

// Plan configures the migration plan target.
type Plan struct {
	Profile  string   `yaml:"profile"`
	Dialect  string   `yaml:"dialect" validate:"omitempty,oneof=postgres mysql sqlite"`
	File     string   `yaml:"file"`
	Snapshot string   `yaml:"snapshot"`
	Allow    []string `yaml:"allow" validate:"dive,oneof=drop_table drop_column drop_index null_to_not_null all"`
}

// Apply configures the apply command.
type Apply struct {
	Dialect string `yaml:"dialect" validate:"omitempty,oneof=postgres mysql sqlite"`
	DSN     string `yaml:"dsn"`
	Schema  string `yaml:"schema"`
}

// Prisma configures the prisma target.
type Prisma struct {
	File       string   `yaml:"file"`
	Extensions []string `yaml:"extensions"`
}

// GraphQL configures the graphql target.
type GraphQL struct {
	File   string  `yaml:"file"`
	GQLGen *GQLGen `yaml:"gqlgen"`
}

// GQLGen enables gqlgen.yml output.
type GQLGen struct {
	Package string `yaml:"package" validate:"required"`
	Base    string `yaml:"base"`
}

// Mermaid configures the mermaid target.
type Mermaid struct {
	File string `yaml:"file"`
}

// Go configures the go target.
type Go struct {
	File    string `yaml:"file"`
	Package string `yaml:"package"`
}

// AST configures the ast target.
type AST struct {
	File    string   `yaml:"file"`
	Modules []string `yaml:"modules"`
}

// Load reads and validates path. A missing file yields an empty File
// rooted at the working directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &File{dir: "."}, nil
	}
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// Parse decodes and validates a project file.
func Parse(data []byte) (*File, error) {
	f := &File{dir: "."}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, err
	}
	if err := validate.Struct(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Path resolves p against the directory of the file.
func (f *File) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(f.dir, p)
}

// InputPaths returns the resolved input paths.
func (f *File) InputPaths() []string {
	out := make([]string, len(f.Inputs))
	for i, in := range f.Inputs {
		out[i] = f.Path(in)
	}
	return out
}

// Options converts the pipeline settings into gen options.
func (f *File) Options() []gen.Option {
	var opts []gen.Option
	if f.Target != "" {
		opts = append(opts, gen.WithTarget(f.Path(f.Target)))
	}
	if f.Header != "" {
		opts = append(opts, gen.WithHeader(f.Header))
	}
	if len(f.Modules) > 0 {
		opts = append(opts, gen.WithModules(f.Modules...))
	}
	if len(f.Focus) > 0 {
		opts = append(opts, gen.WithFocus(f.Focus...))
	}
	if f.Workers > 0 {
		opts = append(opts, gen.WithWorkers(f.Workers))
	}
	if len(f.ReferenceWrappers) > 0 {
		opts = append(opts, gen.WithReferenceWrappers(f.ReferenceWrappers...))
	}
	return opts
}

// Target names accepted by Targets.
const (
	TargetSQL     = "sql"
	TargetPlan    = "plan"
	TargetPrisma  = "prisma"
	TargetGraphQL = "graphql"
	TargetMermaid = "mermaid"
	TargetGo      = "go"
	TargetAST     = "ast"
)

// Targets builds the named targets from their sections. target is the
// resolved output directory; the plan target reads its previous snapshot
// from there.
func (f *File) Targets(target string, names ...string) ([]gen.Target, error) {
	out := make([]gen.Target, 0, len(names))
	for _, name := range names {
		t, err := f.target(target, name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *File) target(dir, name string) (gen.Target, error) {
	switch name {
	case TargetSQL:
		return f.sqlTarget()
	case TargetPlan:
		return f.planTarget(dir)
	case TargetPrisma:
		var opts []prisma.Option
		if c := f.Prisma; c != nil {
			if c.File != "" {
				opts = append(opts, prisma.WithFile(c.File))
			}
			opts = append(opts, prisma.WithExtensions(c.Extensions...))
		}
		return prisma.New(opts...)
	case TargetGraphQL:
		var opts []graphql.Option
		if c := f.GraphQL; c != nil {
			if c.File != "" {
				opts = append(opts, graphql.WithFile(c.File))
			}
			if c.GQLGen != nil {
				opts = append(opts, graphql.WithGQLGen(c.GQLGen.Package, f.Path(c.GQLGen.Base)))
			}
		}
		return graphql.New(opts...)
	case TargetMermaid:
		var opts []mermaid.Option
		if c := f.Mermaid; c != nil && c.File != "" {
			opts = append(opts, mermaid.WithFile(c.File))
		}
		return mermaid.New(opts...)
	case TargetGo:
		var opts []golang.Option
		if c := f.Go; c != nil {
			if c.File != "" {
				opts = append(opts, golang.WithFile(c.File))
			}
			if c.Package != "" {
				opts = append(opts, golang.WithPackage(c.Package))
			}
		}
		return golang.New(opts...)
	case TargetAST:
		var opts []augment.Option
		if c := f.AST; c != nil {
			if c.File != "" {
				opts = append(opts, augment.WithFile(c.File))
			}
			opts = append(opts, augment.WithModules(c.Modules...))
		}
		return augment.New(opts...)
	default:
		return nil, gen.NewConfigError("Target", name, "unknown target")
	}
}

func (f *File) sqlTarget() (gen.Target, error) {
	c := f.SQL
	if c == nil {
		return sql.New()
	}
	var opts []sql.Option
	if c.Profile != "" {
		opts = append(opts, sql.WithProfile(c.Profile))
	}
	if len(c.Extensions) > 0 {
		opts = append(opts, sql.WithExtensions(c.Extensions...))
	}
	if c.Create != "" {
		opts = append(opts, sql.WithCreateFile(c.Create))
	}
	if c.Views != "" {
		opts = append(opts, sql.WithViewsFile(c.Views))
	}
	if c.Metadata != "" {
		opts = append(opts, sql.WithMetadataFile(c.Metadata))
	}
	for _, t := range c.Templates {
		opts = append(opts, sql.WithTemplates(sql.Template{Path: f.Path(t.Path), Output: t.Output}))
	}
	return sql.New(opts...)
}

var allowances = map[string]sql.ValidateOption{
	"drop_table":       sql.AllowDropTable(),
	"drop_column":      sql.AllowDropColumn(),
	"drop_index":       sql.AllowDropIndex(),
	"null_to_not_null": sql.AllowNullToNotNull(),
	"all":              sql.AllowAll(),
}

func (f *File) planTarget(dir string) (gen.Target, error) {
	c := f.Plan
	if c == nil {
		c = &Plan{}
	}
	profile := c.Profile
	if profile == "" && f.SQL != nil {
		profile = f.SQL.Profile
	}
	var opts []sql.PlanOption
	if profile != "" {
		opts = append(opts, sql.PlanProfile(profile))
	}
	if c.Dialect != "" {
		opts = append(opts, sql.PlanDialect(c.Dialect))
	}
	planFile, snapshot := c.File, c.Snapshot
	if planFile == "" {
		planFile = sql.DefaultPlanFile
	}
	if snapshot == "" {
		snapshot = sql.DefaultSnapshotFile
	}
	opts = append(opts, sql.PlanFiles(planFile, snapshot))
	if dir != "" {
		opts = append(opts, sql.PlanFrom(filepath.Join(dir, snapshot)))
	}
	for _, a := range c.Allow {
		opts = append(opts, sql.PlanAllow(allowances[a]))
	}
	return sql.NewPlan(opts...)
}
