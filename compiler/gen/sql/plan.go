package sql

import (
	"context"
	"fmt"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/db"
	"github.com/syssam/adlschema/dialect"
)

// DefaultPlanFile is the default name of the migration file.
const DefaultPlanFile = "migrate.sql"

type atlasDriver struct {
	parse func(string) (schema.Type, error)
	diff  schema.Differ
	plan  migrate.PlanApplier
}

var atlasDrivers = map[string]atlasDriver{
	dialect.Postgres: {postgres.ParseType, postgres.DefaultDiff, postgres.DefaultPlan},
	dialect.MySQL:    {mysql.ParseType, mysql.DefaultDiff, mysql.DefaultPlan},
	dialect.SQLite:   {sqlite.ParseType, sqlite.DefaultDiff, sqlite.DefaultPlan},
}

func driverOf(name string) (atlasDriver, error) {
	d, ok := atlasDrivers[name]
	if !ok {
		return atlasDriver{}, fmt.Errorf("sql: no migration planner for dialect %q", name)
	}
	return d, nil
}

// AtlasSchema converts a snapshot to an unnamed atlas schema, parsing the
// column types with the dialect's type parser. Foreign keys to tables
// outside the snapshot reference detached tables.
func AtlasSchema(dialectName string, snap *Snapshot) (*schema.Schema, error) {
	drv, err := driverOf(dialectName)
	if err != nil {
		return nil, err
	}
	s := schema.New("")
	tables := make(map[string]*schema.Table, len(snap.Tables))
	for _, st := range snap.Tables {
		t := schema.NewTable(st.Name)
		for _, sc := range st.Columns {
			typ, err := drv.parse(sc.Type)
			if err != nil {
				return nil, fmt.Errorf("sql: column %s.%s: %w", st.Name, sc.Name, err)
			}
			c := schema.NewColumn(sc.Name).SetType(typ).SetNull(sc.Nullable)
			c.Type.Raw = sc.Type
			t.AddColumns(c)
		}
		if len(st.PrimaryKey) > 0 {
			cols, err := columnsOf(t, st.PrimaryKey)
			if err != nil {
				return nil, err
			}
			t.SetPrimaryKey(schema.NewPrimaryKey(cols...))
		}
		for _, si := range st.Indexes {
			cols, err := columnsOf(t, si.Columns)
			if err != nil {
				return nil, err
			}
			idx := schema.NewIndex(si.Name).SetUnique(si.Unique).AddColumns(cols...)
			t.AddIndexes(idx)
		}
		s.AddTables(t)
		tables[st.Name] = t
	}
	for _, st := range snap.Tables {
		t := tables[st.Name]
		for _, sf := range st.ForeignKeys {
			cols, err := columnsOf(t, []string{sf.Column})
			if err != nil {
				return nil, err
			}
			ref, ok := tables[sf.RefTable]
			if !ok {
				ref = schema.NewTable(sf.RefTable)
				tables[sf.RefTable] = ref
			}
			refCol, ok := ref.Column(sf.RefColumn)
			if !ok {
				refCol = schema.NewColumn(sf.RefColumn)
				ref.AddColumns(refCol)
			}
			t.AddForeignKeys(schema.NewForeignKey(sf.Name).AddColumns(cols...).SetRefTable(ref).AddRefColumns(refCol))
		}
	}
	return s, nil
}

func columnsOf(t *schema.Table, names []string) ([]*schema.Column, error) {
	cols := make([]*schema.Column, len(names))
	for i, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, fmt.Errorf("sql: table %s has no column %s", t.Name, n)
		}
		cols[i] = c
	}
	return cols, nil
}

// PlanMigration plans the statements that move a database from one
// snapshot to another.
func PlanMigration(ctx context.Context, dialectName, name string, from, to *Snapshot) (*migrate.Plan, error) {
	drv, err := driverOf(dialectName)
	if err != nil {
		return nil, err
	}
	current, err := AtlasSchema(dialectName, from)
	if err != nil {
		return nil, err
	}
	desired, err := AtlasSchema(dialectName, to)
	if err != nil {
		return nil, err
	}
	changes, err := drv.diff.SchemaDiff(current, desired)
	if err != nil {
		return nil, fmt.Errorf("sql: diff schema: %w", err)
	}
	if len(changes) == 0 {
		return &migrate.Plan{Name: name, Transactional: true}, nil
	}
	unqualified := ""
	plan, err := drv.plan.PlanChanges(ctx, name, changes, func(o *migrate.PlanOptions) {
		o.SchemaQualifier = &unqualified
	})
	if err != nil {
		return nil, fmt.Errorf("sql: plan changes: %w", err)
	}
	return plan, nil
}

// FormatPlan renders a plan as a script, one statement per line preceded
// by its comment.
func FormatPlan(plan *migrate.Plan, header ...string) string {
	var b strings.Builder
	for _, h := range header {
		b.WriteString("-- " + h + "\n")
	}
	for _, c := range plan.Changes {
		if c.Comment != "" {
			b.WriteString("-- " + strings.ToUpper(c.Comment[:1]) + c.Comment[1:] + "\n")
		}
		b.WriteString(strings.TrimSuffix(c.Cmd, ";") + ";\n")
	}
	return b.String()
}

// PlanTarget generates a migration from a stored snapshot to the tables of
// the graph, and the snapshot to store for the next run.
type PlanTarget struct {
	profile      db.Profile
	dialect      string
	snapshot     string
	planFile     string
	snapshotFile string
	allow        []ValidateOption
}

// PlanOption configures a PlanTarget.
type PlanOption func(*PlanTarget) error

// PlanProfile selects the column type profile. It also selects the dialect
// unless PlanDialect is given.
func PlanProfile(name string) PlanOption {
	return func(t *PlanTarget) error {
		p, err := db.LookupProfile(name)
		if err != nil {
			return gen.NewConfigError("Profile", name, err.Error())
		}
		t.profile = p
		return nil
	}
}

// PlanDialect sets the dialect the migration is planned for.
func PlanDialect(name string) PlanOption {
	return func(t *PlanTarget) error {
		if !dialect.Valid(name) {
			return gen.NewConfigError("Dialect", name, "unsupported dialect")
		}
		t.dialect = name
		return nil
	}
}

// PlanFrom sets the path of the stored snapshot. Without it the migration
// creates every table.
func PlanFrom(path string) PlanOption {
	return func(t *PlanTarget) error {
		t.snapshot = path
		return nil
	}
}

// PlanFiles sets the names of the migration and snapshot files.
func PlanFiles(plan, snapshot string) PlanOption {
	return func(t *PlanTarget) error {
		if plan == "" || snapshot == "" {
			return gen.NewConfigError("PlanFiles", plan+","+snapshot, "file name cannot be empty")
		}
		t.planFile, t.snapshotFile = plan, snapshot
		return nil
	}
}

// PlanAllow relaxes the breaking change checks.
func PlanAllow(opts ...ValidateOption) PlanOption {
	return func(t *PlanTarget) error {
		t.allow = append(t.allow, opts...)
		return nil
	}
}

// NewPlan returns a migration plan target.
func NewPlan(opts ...PlanOption) (*PlanTarget, error) {
	t := &PlanTarget{
		profile:      db.PostgreSQL2,
		planFile:     DefaultPlanFile,
		snapshotFile: DefaultSnapshotFile,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	if t.dialect == "" {
		d, err := dialect.ForProfile(t.profile.Name)
		if err != nil {
			return nil, gen.NewConfigError("Profile", t.profile.Name, err.Error())
		}
		t.dialect = d
	}
	return t, nil
}

// Name implements gen.Target.
func (*PlanTarget) Name() string { return "plan" }

// Dialect returns the dialect the migration is planned for.
func (t *PlanTarget) Dialect() string { return t.dialect }

// Generate implements gen.Target.
func (t *PlanTarget) Generate(ctx context.Context, g *gen.Graph) ([]*gen.File, error) {
	s, err := db.Build(g, t.profile)
	if err != nil {
		return nil, err
	}
	desired := TakeSnapshot(s)
	if res := ValidateSnapshot(desired); res.HasErrors() {
		return nil, gen.NewGenerationError("plan", t.snapshotFile, "invalid schema", res.Err())
	}
	current := &Snapshot{}
	if t.snapshot != "" {
		if current, err = ReadSnapshot(t.snapshot); err != nil {
			return nil, gen.NewGenerationError("plan", t.snapshot, "read snapshot", err)
		}
	}
	if current.Profile != "" && current.Profile != desired.Profile {
		g.Logger().Warn("snapshot profile differs",
			"snapshot", current.Profile, "profile", desired.Profile)
	}
	res := ValidateDiff(current, desired, t.allow...)
	if res.HasErrors() {
		return nil, gen.NewGenerationError("plan", t.planFile, "breaking changes", res.Err())
	}
	plan, err := PlanMigration(ctx, t.dialect, strings.TrimSuffix(t.planFile, ".sql"), current, desired)
	if err != nil {
		return nil, gen.NewGenerationError("plan", t.planFile, "", err)
	}
	header := []string{
		fmt.Sprintf("Migration planned for %s from adl modules: %s", t.dialect, strings.Join(s.Modules, ", ")),
	}
	for _, w := range res.Warnings {
		header = append(header, "warning: "+finding(w))
	}
	snap, err := desired.Marshal()
	if err != nil {
		return nil, gen.NewGenerationError("plan", t.snapshotFile, "", err)
	}
	g.Logger().Debug("migration planned",
		"dialect", t.dialect, "changes", len(plan.Changes), "warnings", len(res.Warnings))
	return []*gen.File{
		{Path: t.planFile, Content: []byte(FormatPlan(plan, header...))},
		{Path: t.snapshotFile, Content: snap},
	}, nil
}

var _ gen.Target = (*PlanTarget)(nil)
