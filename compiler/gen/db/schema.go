// Package db derives the relational model shared by the SQL and Prisma
// targets: tables, columns, keys and views of the declarations annotated
// with common.db.DbTable and common.db.DbView.
package db

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/naming"
	"github.com/syssam/adlschema/compiler/resolve"
)

// Annotation keys read by the model.
var (
	DbKey        = adlast.NewScopedName("common.db", "DbKey")
	DbPrimaryKey = adlast.NewScopedName("common.db", "DbPrimaryKey")
	DbColumnName = adlast.NewScopedName("common.db", "DbColumnName")
	DbColumnType = adlast.NewScopedName("common.db", "DbColumnType")
	Doc          = adlast.NewScopedName("sys.annotations", "Doc")
)

// ErrUnknownTable is returned when a foreign key targets a declaration that
// is not a table.
var ErrUnknownTable = errors.New("db: unknown table")

// maxExpansion bounds alias and newtype expansion of a column type.
const maxExpansion = 64

// Schema is the relational model of a graph under one profile.
type Schema struct {
	Profile Profile
	// Modules lists the modules of Tables in table order, without repeats.
	Modules []string
	// Tables are the in-focus tables sorted by name.
	Tables []*Table
	// Views are the in-focus views sorted by name.
	Views []*View
}

// Table is a declaration annotated with common.db.DbTable.
type Table struct {
	Decl       *resolve.ProjectedDecl
	Name       string
	Columns    []*Column
	PrimaryKey []string
	Indexes    [][]string
	Unique     [][]string
	ExtraSQL   []string
	// Annotation is the decoded DbTable value, exposed to user templates.
	Annotation map[string]any
}

// Column is a table column derived from a field.
type Column struct {
	Field      resolve.ConcreteField
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	ForeignKey *ForeignKey
	// Comment is the unscoped ADL type of the field.
	Comment string
}

// ForeignKey is the table and column a DbKey column references.
type ForeignKey struct {
	Table  string
	Column string
	Target adlast.ScopedName
}

// View is a declaration annotated with common.db.DbView.
type View struct {
	Decl *resolve.ProjectedDecl
	Name string
	SQL  []string
}

// Table returns the table named name.
func (s *Schema) Table(name string) (*Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Column returns the column named name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnOf maps a field name to its column name. Unknown names are
// returned unchanged.
func (t *Table) ColumnOf(field string) string {
	for _, c := range t.Columns {
		if c.Field.Name == field {
			return c.Name
		}
	}
	return field
}

// Doc returns the sys.annotations.Doc text of the table declaration.
func (t *Table) Doc() string {
	return doc(t.Decl)
}

// Doc returns the sys.annotations.Doc text of the view declaration.
func (v *View) Doc() string {
	return doc(v.Decl)
}

func doc(pd *resolve.ProjectedDecl) string {
	s, _ := pd.Annotations.String(Doc)
	return strings.TrimSpace(s)
}

type tableAnnotation struct {
	TableName             string     `json:"tableName"`
	Indexes               [][]string `json:"indexes"`
	UniquenessConstraints [][]string `json:"uniquenessConstraints"`
	ExtraSQL              []string   `json:"extraSql"`
}

type viewAnnotation struct {
	ViewName string   `json:"viewName"`
	ViewSQL  []string `json:"viewSql"`
}

type builder struct {
	g       *gen.Graph
	profile Profile
	rec     *resolve.Recognizer
	// byDecl holds every table of the graph, in focus or not, so foreign
	// keys may target external tables.
	byDecl map[adlast.ScopedName]*Table
}

// Build derives the relational model of g.
func Build(g *gen.Graph, profile Profile) (*Schema, error) {
	b := &builder{
		g:       g,
		profile: profile,
		rec:     g.Recognizer(),
		byDecl:  make(map[adlast.ScopedName]*Table),
	}
	s := &Schema{Profile: profile}
	for _, pd := range g.Annotated(gen.DbTable) {
		if pd.Generic {
			continue
		}
		t, err := b.table(pd)
		if err != nil {
			return nil, err
		}
		b.byDecl[pd.Name] = t
		if !pd.External {
			s.Tables = append(s.Tables, t)
		}
	}
	slices.SortStableFunc(s.Tables, func(a, b *Table) int { return strings.Compare(a.Name, b.Name) })
	for _, t := range s.Tables {
		if err := b.columns(t); err != nil {
			return nil, err
		}
		if !slices.Contains(s.Modules, t.Decl.Name.ModuleName) {
			s.Modules = append(s.Modules, t.Decl.Name.ModuleName)
		}
	}
	for _, pd := range g.Annotated(gen.DbView) {
		if pd.Generic || pd.External {
			continue
		}
		v, err := view(pd)
		if err != nil {
			return nil, err
		}
		s.Views = append(s.Views, v)
	}
	slices.SortStableFunc(s.Views, func(a, b *View) int { return strings.Compare(a.Name, b.Name) })
	return s, nil
}

// table builds the table shell: names and keys, without column types.
func (b *builder) table(pd *resolve.ProjectedDecl) (*Table, error) {
	var ann tableAnnotation
	if _, err := pd.Annotations.Decode(gen.DbTable, &ann); err != nil {
		return nil, gen.NewSchemaError(pd.Name, "", "invalid DbTable annotation", err)
	}
	raw := map[string]any{}
	if _, err := pd.Annotations.Decode(gen.DbTable, &raw); err != nil || raw == nil {
		raw = map[string]any{}
	}
	t := &Table{
		Decl:       pd,
		Name:       ann.TableName,
		ExtraSQL:   ann.ExtraSQL,
		Annotation: raw,
	}
	if t.Name == "" {
		t.Name = naming.TableName(pd.Name.Name)
	}
	for _, f := range pd.Fields {
		c := &Column{Field: f, Name: ColumnName(f), Comment: f.TypeExpr.String()}
		c.PrimaryKey = f.Annotations.Has(DbPrimaryKey)
		if c.PrimaryKey {
			t.PrimaryKey = append(t.PrimaryKey, c.Name)
		}
		t.Columns = append(t.Columns, c)
	}
	for _, idx := range ann.Indexes {
		t.Indexes = append(t.Indexes, t.columnsOf(idx))
	}
	for _, u := range ann.UniquenessConstraints {
		t.Unique = append(t.Unique, t.columnsOf(u))
	}
	return t, nil
}

func (t *Table) columnsOf(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = t.ColumnOf(f)
	}
	return out
}

func (b *builder) columns(t *Table) error {
	for _, c := range t.Columns {
		te := c.Field.TypeExpr
		w, err := b.rec.Classify(te)
		if err != nil {
			return gen.NewSchemaError(t.Decl.Name, c.Field.Name, "", err)
		}
		c.Nullable = w.Kind == resolve.OptionalWrapper
		if c.Nullable {
			te = w.Inner
		}
		if s, ok := c.Field.Annotations.String(DbColumnType); ok {
			c.Type = s
		} else if c.Type, err = b.columnType(te); err != nil {
			return gen.NewSchemaError(t.Decl.Name, c.Field.Name, "", err)
		}
		if c.ForeignKey, err = b.foreignKey(t, c.Field, te); err != nil {
			return err
		}
	}
	return nil
}

// columnType maps a type expression to a column type: a DbColumnType on the
// referenced declaration wins, then reference wrappers and enums, then the
// expansion of aliases and newtypes, then the profile.
func (b *builder) columnType(te adlast.TypeExpr) (string, error) {
	for range maxExpansion {
		sn, ok := te.Reference()
		if !ok {
			name, _ := te.Primitive()
			return b.profile.ColumnType(name), nil
		}
		sd, err := b.g.Resolve(sn)
		if err != nil {
			return "", err
		}
		if s, ok := sd.Decl.Annotations.String(DbColumnType); ok {
			return s, nil
		}
		if b.rec.Wrappers().IsReference(sn) {
			return b.profile.IDColumnType, nil
		}
		if u, ok := sd.Decl.Type.(adlast.Union); ok && adlast.IsEnum(u) {
			return b.profile.EnumColumnType, nil
		}
		next, ok, err := b.rec.ExpandOnce(te)
		if err != nil {
			return "", err
		}
		if !ok {
			return b.profile.Default, nil
		}
		te = next
	}
	return "", fmt.Errorf("db: column type of %s does not terminate", te)
}

// foreignKey derives the reference of a DbKey<T> column, seen through
// aliases. T must be a table with a single primary key column.
func (b *builder) foreignKey(t *Table, f resolve.ConcreteField, te adlast.TypeExpr) (*ForeignKey, error) {
	x, err := b.rec.ExpandAliases(te)
	if err != nil {
		return nil, gen.NewSchemaError(t.Decl.Name, f.Name, "", err)
	}
	sn, ok := x.Reference()
	if !ok || sn != DbKey || len(x.Parameters) != 1 {
		return nil, nil
	}
	target, ok := x.Parameters[0].Reference()
	if !ok {
		return nil, nil
	}
	ref, ok := b.byDecl[target]
	if !ok {
		return nil, gen.NewLinkError(t.Decl.Name, target, f.Name,
			"no table declaration for "+target.String(), ErrUnknownTable)
	}
	if len(ref.PrimaryKey) != 1 {
		return nil, gen.NewLinkError(t.Decl.Name, target, f.Name, "",
			resolve.NewError(resolve.ErrAmbiguousForeignKey, target, "",
				"no singular primary key for %s (found %d)", target, len(ref.PrimaryKey)))
	}
	return &ForeignKey{Table: ref.Name, Column: ref.PrimaryKey[0], Target: target}, nil
}

func view(pd *resolve.ProjectedDecl) (*View, error) {
	var ann viewAnnotation
	if _, err := pd.Annotations.Decode(gen.DbView, &ann); err != nil {
		return nil, gen.NewSchemaError(pd.Name, "", "invalid DbView annotation", err)
	}
	v := &View{Decl: pd, Name: ann.ViewName, SQL: ann.ViewSQL}
	if v.Name == "" {
		v.Name = naming.Snake(pd.Name.Name)
	}
	return v, nil
}

// ColumnName returns the DbColumnName of f, or its snake case name.
func ColumnName(f resolve.ConcreteField) string {
	if s, ok := f.Annotations.String(DbColumnName); ok && s != "" {
		return s
	}
	return naming.Snake(f.Name)
}
