package sql

import (
	"context"
	"fmt"
	"os"

	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/db"
)

// Default output file names.
const (
	DefaultCreateFile = "create.sql"
	DefaultViewsFile  = "views.sql"
)

// Template renders a user template over the tables of the schema.
// Text is used when set, otherwise the template is read from Path.
type Template struct {
	Path   string
	Text   string
	Output string
}

// Target generates the SQL DDL, view, metadata and template files.
type Target struct {
	profile      db.Profile
	extensions   []string
	createFile   string
	viewsFile    string
	metadataFile string
	templates    []Template
}

// Option configures a Target.
type Option func(*Target) error

// WithProfile selects the column type profile by name.
func WithProfile(name string) Option {
	return func(t *Target) error {
		p, err := db.LookupProfile(name)
		if err != nil {
			return gen.NewConfigError("Profile", name, err.Error())
		}
		t.profile = p
		return nil
	}
}

// WithExtensions adds "create extension" statements to the DDL file.
func WithExtensions(names ...string) Option {
	return func(t *Target) error {
		t.extensions = append(t.extensions, names...)
		return nil
	}
}

// WithCreateFile sets the DDL file name.
func WithCreateFile(name string) Option {
	return func(t *Target) error {
		if name == "" {
			return gen.NewConfigError("CreateFile", name, "file name cannot be empty")
		}
		t.createFile = name
		return nil
	}
}

// WithViewsFile sets the views file name.
func WithViewsFile(name string) Option {
	return func(t *Target) error {
		if name == "" {
			return gen.NewConfigError("ViewsFile", name, "file name cannot be empty")
		}
		t.viewsFile = name
		return nil
	}
}

// WithMetadataFile enables the metadata file.
func WithMetadataFile(name string) Option {
	return func(t *Target) error {
		t.metadataFile = name
		return nil
	}
}

// WithTemplates adds user templates.
func WithTemplates(templates ...Template) Option {
	return func(t *Target) error {
		for _, tmpl := range templates {
			if tmpl.Output == "" {
				return gen.NewConfigError("Templates", tmpl.Path, "template output cannot be empty")
			}
			if tmpl.Path == "" && tmpl.Text == "" {
				return gen.NewConfigError("Templates", tmpl.Output, "template has neither path nor text")
			}
		}
		t.templates = append(t.templates, templates...)
		return nil
	}
}

// New returns a SQL target using the postgresql2 profile by default.
func New(opts ...Option) (*Target, error) {
	t := &Target{
		profile:    db.PostgreSQL2,
		createFile: DefaultCreateFile,
		viewsFile:  DefaultViewsFile,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Name implements gen.Target.
func (*Target) Name() string { return "sql" }

// Profile returns the column type profile of the target.
func (t *Target) Profile() db.Profile { return t.profile }

// Generate implements gen.Target.
func (t *Target) Generate(ctx context.Context, g *gen.Graph) ([]*gen.File, error) {
	s, err := db.Build(g, t.profile)
	if err != nil {
		return nil, err
	}
	files := []*gen.File{
		{Path: t.createFile, Content: []byte(Create(s, t.extensions))},
		{Path: t.viewsFile, Content: []byte(Views(s))},
	}
	if t.metadataFile != "" {
		meta, err := Metadata(s, g.Resolve)
		if err != nil {
			return nil, gen.NewGenerationError("metadata", t.metadataFile, "", err)
		}
		files = append(files, &gen.File{Path: t.metadataFile, Content: []byte(meta)})
	}
	for _, tmpl := range t.templates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := tmpl.Text
		if text == "" {
			b, err := os.ReadFile(tmpl.Path)
			if err != nil {
				return nil, gen.NewGenerationError("template", tmpl.Output, "read template", err)
			}
			text = string(b)
		}
		out, err := Render(s, tmpl.Path, text)
		if err != nil {
			return nil, gen.NewGenerationError("template", tmpl.Output, "", err)
		}
		files = append(files, &gen.File{Path: tmpl.Output, Content: out})
	}
	g.Logger().Debug("sql schema generated",
		"tables", len(s.Tables), "views", len(s.Views), "profile", t.profile.Name)
	return files, nil
}

var _ gen.Target = (*Target)(nil)

func dbstr(s string) string {
	return fmt.Sprintf("'%s'", replacer.Replace(s))
}
