package sql_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/db"
	"github.com/syssam/adlschema/compiler/gen/sql"
)

func TestTakeSnapshot(t *testing.T) {
	snap := sql.TakeSnapshot(schema(t, db.PostgreSQL2))
	assert.Equal(t, "postgresql2", snap.Profile)
	var names []string
	for _, tbl := range snap.Tables {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"customer", "log", "order"}, names)

	customer, ok := snap.Table("customer")
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, customer.PrimaryKey)
	assert.Equal(t, []*sql.SnapshotColumn{
		{Name: "id", Type: "text"},
		{Name: "name", Type: "text"},
		{Name: "notes", Type: "text", Nullable: true},
	}, customer.Columns)
	assert.Equal(t, []*sql.SnapshotIndex{{Name: "customer_1_idx", Columns: []string{"name"}}}, customer.Indexes)

	order, ok := snap.Table("order")
	require.True(t, ok)
	assert.Equal(t, []*sql.SnapshotForeignKey{
		{Name: "order_customer_fk", Column: "customer", RefTable: "customer", RefColumn: "id"},
	}, order.ForeignKeys)
	assert.Equal(t, []*sql.SnapshotIndex{{Name: "order_1_con", Columns: []string{"customer", "total"}, Unique: true}}, order.Indexes)

	b, err := snap.Marshal()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), sql.DefaultSnapshotFile)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	back, err := sql.ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap, back)
}

func TestReadSnapshot(t *testing.T) {
	snap, err := sql.ReadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, snap.Tables)

	_, err = sql.ParseSnapshot([]byte("{"))
	assert.Error(t, err)
}

func snapshot(tables ...*sql.SnapshotTable) *sql.Snapshot {
	return &sql.Snapshot{Profile: "postgresql2", Tables: tables}
}

func person(extra ...*sql.SnapshotColumn) *sql.SnapshotTable {
	return &sql.SnapshotTable{
		Name: "person",
		Columns: append([]*sql.SnapshotColumn{
			{Name: "id", Type: "text"},
			{Name: "name", Type: "text", Nullable: true},
		}, extra...),
		PrimaryKey: []string{"id"},
		Indexes:    []*sql.SnapshotIndex{{Name: "person_1_idx", Columns: []string{"name"}}},
	}
}

func TestValidateDiff(t *testing.T) {
	legacy := &sql.SnapshotTable{Name: "legacy", Columns: []*sql.SnapshotColumn{{Name: "id", Type: "text"}}}
	current := snapshot(person(&sql.SnapshotColumn{Name: "age", Type: "integer"}), legacy)

	desired := person(&sql.SnapshotColumn{Name: "email", Type: "text"})
	desired.Columns[1].Nullable = false
	desired.Columns[0].Type = "varchar(64)"
	desired.Indexes = []*sql.SnapshotIndex{{Name: "person_1_con", Columns: []string{"email"}, Unique: true}}

	res := sql.ValidateDiff(current, snapshot(desired))
	var errs, warns []string
	for _, e := range res.Errors {
		errs = append(errs, e.Table+"."+e.Column+": "+e.Message)
		assert.True(t, gen.IsValidationError(e))
	}
	for _, w := range res.Warnings {
		warns = append(warns, w.Table+"."+w.Column+": "+w.Message)
	}
	assert.ElementsMatch(t, []string{
		"legacy.: table will be dropped",
		"person.age: column will be dropped",
		"person.name: column changing from NULL to NOT NULL may fail if column has NULL values",
		`person.: index "person_1_idx" will be dropped`,
	}, errs)
	assert.ElementsMatch(t, []string{
		"person.id: column type changing from text to varchar(64)",
		"person.email: new NOT NULL column without default value may fail if table has data",
		"person.: adding UNIQUE constraint may fail if duplicate values exist",
	}, warns)
	assert.ErrorIs(t, res.Err(), gen.ErrValidationFailed)
	assert.Contains(t, res.String(), "Errors:\n  - legacy: table will be dropped\n")

	res = sql.ValidateDiff(current, snapshot(desired), sql.AllowAll())
	assert.False(t, res.HasErrors())
	assert.Len(t, res.Warnings, 7)
	assert.NoError(t, res.Err())

	res = sql.ValidateDiff(current, current)
	assert.False(t, res.HasErrors())
	assert.False(t, res.HasWarnings())
	assert.Equal(t, "No issues found", res.String())
}

func TestValidateSnapshot(t *testing.T) {
	bad := &sql.SnapshotTable{
		Name:        "pet",
		Columns:     []*sql.SnapshotColumn{{Name: "id", Type: "text"}, {Name: "id", Type: "text"}},
		Indexes:     []*sql.SnapshotIndex{{Name: "pet_1_idx", Columns: []string{"owner"}}},
		ForeignKeys: []*sql.SnapshotForeignKey{{Name: "pet_keeper_fk", Column: "keeper", RefTable: "zoo", RefColumn: "id"}},
	}
	res := sql.ValidateSnapshot(snapshot(person(), bad, person()))
	var errs []string
	for _, e := range res.Errors {
		errs = append(errs, e.Message)
	}
	assert.ElementsMatch(t, []string{
		"duplicate table name",
		"duplicate column name",
		`index "pet_1_idx" references non-existent column "owner"`,
		"foreign key references non-existent column",
	}, errs)
	var warns []string
	for _, w := range res.Warnings {
		warns = append(warns, w.Message)
	}
	assert.ElementsMatch(t, []string{
		"table has no primary key",
		`foreign key references table "zoo" outside the snapshot`,
	}, warns)
}
