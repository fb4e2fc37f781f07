package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/db"
	"github.com/syssam/adlschema/compiler/load"
	"github.com/syssam/adlschema/compiler/resolve"
	"github.com/syssam/adlschema/internal/adltest"
)

var (
	stringT = adlast.Prim("String")
	int32T  = adlast.Prim("Int32")
	int64T  = adlast.Prim("Int64")
	pk      = adltest.A(adltest.DbPrimaryKey, `null`)
)

func app(name string) adlast.ScopedName { return adlast.NewScopedName("app", name) }

func local(name string, params ...adlast.TypeExpr) adlast.TypeExpr {
	return adlast.Ref(app(name), params...)
}

func dbKey(t adlast.TypeExpr) adlast.TypeExpr { return adlast.Ref(adltest.DbKey, t) }

func nullable(t adlast.TypeExpr) adlast.TypeExpr { return adlast.Prim("Nullable", t) }

func table(d adlast.Decl, value string) adlast.Decl {
	return adltest.With(d, adltest.A(adltest.DbTable, value))
}

func dbStore(t *testing.T) *load.Store {
	t.Helper()
	return adltest.Store(t, adltest.Module("app",
		table(adltest.Struct("Table", nil,
			adltest.F("id", stringT, pk),
			adltest.F("name", stringT),
		), `{}`),
		table(adltest.Struct("ChildTable", nil,
			adltest.F("id", stringT, pk),
			adltest.F("parent", dbKey(local("Table"))),
			adltest.F("maybeParent", nullable(dbKey(local("Table")))),
			adltest.F("color", local("Color")),
			adltest.F("createdAt", int64T),
			adltest.F("custom", stringT, adltest.A(adltest.DbColumnType, `"citext"`)),
			adltest.F("renamed", int32T, adltest.A(adltest.DbColumnName, `"legacy_name"`)),
			adltest.F("box", local("Box", int32T)),
			adltest.F("label", local("Label")),
			adltest.F("parentKey", local("TableKey")),
		), `{"indexes":[["parent"],["createdAt","renamed"]],"uniquenessConstraints":[["name","parent"]],"extraSql":["select 1;"]}`),
		table(adltest.Struct("NoKey", nil, adltest.F("a", stringT)), `{}`),
		table(adltest.Struct("User", nil, adltest.F("id", stringT, pk)), `{"tableName":"user"}`),
		adltest.With(adltest.Struct("Active", nil, adltest.F("id", stringT)),
			adltest.A(adltest.DbView, `{"viewSql":["create view active as select 1;"]}`)),
		adltest.Enum("Color", "red", "green"),
		adltest.Struct("Box", []string{"T"}, adltest.F("value", adlast.Param("T"))),
		adltest.Alias("Label", nil, stringT),
		adltest.Alias("TableKey", nil, dbKey(local("Table"))),
	))
}

func build(t *testing.T, s *load.Store, profile db.Profile, opts ...gen.Option) (*db.Schema, error) {
	t.Helper()
	g, err := gen.NewGraph(context.Background(), gen.MustNewConfig(append([]gen.Option{gen.WithModules("app")}, opts...)...), s)
	require.NoError(t, err)
	return db.Build(g, profile)
}

func TestBuild(t *testing.T) {
	s, err := build(t, dbStore(t), db.PostgreSQL2)
	require.NoError(t, err)

	t.Run("Tables", func(t *testing.T) {
		var names []string
		for _, tb := range s.Tables {
			names = append(names, tb.Name)
		}
		assert.Equal(t, []string{"child", "no_key", "table", "user"}, names)
		assert.Equal(t, []string{"app"}, s.Modules)
	})

	t.Run("ForeignKey", func(t *testing.T) {
		child, ok := s.Table("child")
		require.True(t, ok)
		parent, ok := child.Column("parent")
		require.True(t, ok)
		require.NotNil(t, parent.ForeignKey)
		assert.Equal(t, "table", parent.ForeignKey.Table)
		assert.Equal(t, "id", parent.ForeignKey.Column)
		assert.Equal(t, app("Table"), parent.ForeignKey.Target)
		assert.False(t, parent.Nullable)

		maybe, _ := child.Column("maybe_parent")
		require.NotNil(t, maybe.ForeignKey)
		assert.True(t, maybe.Nullable)

		viaAlias, _ := child.Column("parent_key")
		require.NotNil(t, viaAlias.ForeignKey)
		assert.Equal(t, "table", viaAlias.ForeignKey.Table)
	})

	t.Run("ColumnTypes", func(t *testing.T) {
		child, _ := s.Table("child")
		want := map[string]string{
			"id":           "text",
			"parent":       "text",
			"maybe_parent": "text",
			"color":        "text",
			"created_at":   "bigint",
			"custom":       "citext",
			"legacy_name":  "integer",
			"box":          "jsonb",
			"label":        "text",
			"parent_key":   "text",
		}
		for _, c := range child.Columns {
			assert.Equal(t, want[c.Name], c.Type, c.Name)
		}
		created, _ := child.Column("created_at")
		assert.Equal(t, "Int64", created.Comment)
	})

	t.Run("Keys", func(t *testing.T) {
		child, _ := s.Table("child")
		assert.Equal(t, []string{"id"}, child.PrimaryKey)
		assert.Equal(t, [][]string{{"parent"}, {"created_at", "legacy_name"}}, child.Indexes)
		assert.Equal(t, [][]string{{"name", "parent"}}, child.Unique)
		assert.Equal(t, []string{"select 1;"}, child.ExtraSQL)
		id, _ := child.Column("id")
		assert.True(t, id.PrimaryKey)
	})

	t.Run("NoPrimaryKey", func(t *testing.T) {
		noKey, ok := s.Table("no_key")
		require.True(t, ok)
		assert.Empty(t, noKey.PrimaryKey)
	})

	t.Run("Views", func(t *testing.T) {
		require.Len(t, s.Views, 1)
		assert.Equal(t, "active", s.Views[0].Name)
		assert.Equal(t, []string{"create view active as select 1;"}, s.Views[0].SQL)
	})
}

func TestBuildProfiles(t *testing.T) {
	tests := []struct {
		profile db.Profile
		created string
		color   string
		box     string
	}{
		{db.PostgreSQL, "bigint", "text", "json"},
		{db.PostgreSQL2, "bigint", "text", "jsonb"},
		{db.MSSQL2, "bigint", "nvarchar(64)", "nvarchar(max)"},
		{db.Prisma, "BigInt", "String", "Json"},
	}
	for _, tt := range tests {
		t.Run(tt.profile.Name, func(t *testing.T) {
			s, err := build(t, dbStore(t), tt.profile)
			require.NoError(t, err)
			child, _ := s.Table("child")
			created, _ := child.Column("created_at")
			color, _ := child.Column("color")
			box, _ := child.Column("box")
			assert.Equal(t, tt.created, created.Type)
			assert.Equal(t, tt.color, color.Type)
			assert.Equal(t, tt.box, box.Type)
		})
	}
}

func TestLookupProfile(t *testing.T) {
	p, err := db.LookupProfile("")
	require.NoError(t, err)
	assert.Equal(t, "postgresql2", p.Name)
	p, err = db.LookupProfile("mssql2")
	require.NoError(t, err)
	assert.Equal(t, "float(53)", p.ColumnType("Double"))
	_, err = db.LookupProfile("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgresql, postgresql2")
	assert.Equal(t, []string{"mssql2", "mysql", "postgresql", "postgresql2", "prisma", "sqlite"}, db.ProfileNames())
}

func TestForeignKeyErrors(t *testing.T) {
	t.Run("UnknownTable", func(t *testing.T) {
		s := adltest.Store(t, adltest.Module("app",
			adltest.Struct("Plain", nil, adltest.F("id", stringT)),
			table(adltest.Struct("Row", nil, adltest.F("p", dbKey(local("Plain")))), `{}`),
		))
		_, err := build(t, s, db.PostgreSQL2)
		require.Error(t, err)
		assert.ErrorIs(t, err, db.ErrUnknownTable)
		assert.True(t, gen.IsLinkError(err))
		assert.Contains(t, err.Error(), "no table declaration for app.Plain")
	})

	t.Run("AmbiguousForeignKey", func(t *testing.T) {
		s := adltest.Store(t, adltest.Module("app",
			table(adltest.Struct("Pair", nil,
				adltest.F("a", stringT, pk),
				adltest.F("b", stringT, pk),
			), `{}`),
			table(adltest.Struct("NoKey", nil, adltest.F("a", stringT)), `{}`),
			table(adltest.Struct("Row", nil, adltest.F("p", dbKey(local("Pair")))), `{}`),
		))
		_, err := build(t, s, db.PostgreSQL2)
		require.Error(t, err)
		assert.ErrorIs(t, err, resolve.ErrAmbiguousForeignKey)
		assert.Contains(t, err.Error(), "found 2")

		s = adltest.Store(t, adltest.Module("app",
			table(adltest.Struct("NoKey", nil, adltest.F("a", stringT)), `{}`),
			table(adltest.Struct("Row", nil, adltest.F("p", dbKey(local("NoKey")))), `{}`),
		))
		_, err = build(t, s, db.PostgreSQL2)
		assert.ErrorIs(t, err, resolve.ErrAmbiguousForeignKey)
	})

	t.Run("ExternalTable", func(t *testing.T) {
		s := adltest.Store(t,
			adltest.Module("app", table(adltest.Struct("Row", nil,
				adltest.F("id", stringT, pk),
				adltest.F("p", dbKey(adlast.Ref(adlast.NewScopedName("ext", "Parent")))),
			), `{}`)),
			adltest.Module("ext", table(adltest.Struct("Parent", nil, adltest.F("id", stringT, pk)), `{}`)),
		)
		schema, err := build(t, s, db.PostgreSQL2, gen.WithFocus("app"))
		require.NoError(t, err)
		require.Len(t, schema.Tables, 1)
		row := schema.Tables[0]
		p, _ := row.Column("p")
		require.NotNil(t, p.ForeignKey)
		assert.Equal(t, "parent", p.ForeignKey.Table)
	})
}
