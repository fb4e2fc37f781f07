package sql_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/db"
	"github.com/syssam/adlschema/compiler/gen/sql"
	"github.com/syssam/adlschema/compiler/load"
	"github.com/syssam/adlschema/compiler/resolve"
	"github.com/syssam/adlschema/internal/adltest"
)

var (
	stringT = adlast.Prim("String")
	pk      = adltest.A(adltest.DbPrimaryKey, `null`)
)

func local(name string) adlast.TypeExpr {
	return adlast.Ref(adlast.NewScopedName("app", name))
}

func shopStore(t *testing.T) *load.Store {
	t.Helper()
	return adltest.Store(t, adltest.Module("app",
		adltest.With(adltest.Struct("Customer", nil,
			adltest.F("id", stringT, pk),
			adltest.F("name", stringT),
			adltest.F("notes", adlast.Prim("Nullable", stringT)),
		), adltest.A(adltest.DbTable, `{"indexes":[["name"]]}`), adltest.A(adltest.Doc, `"Bob's customers"`)),
		adltest.With(adltest.Struct("Order", nil,
			adltest.F("id", stringT, pk),
			adltest.F("customer", adlast.Ref(adltest.DbKey, local("Customer"))),
			adltest.F("total", adlast.Prim("Double")),
		), adltest.A(adltest.DbTable, `{"uniquenessConstraints":[["customer","total"]],"extraSql":["create sequence order_seq;"]}`)),
		// A table without a primary key.
		adltest.With(adltest.Struct("Log", nil, adltest.F("msg", stringT)), adltest.A(adltest.DbTable, `{}`)),
		adltest.With(adltest.Struct("Recent", nil, adltest.F("id", stringT)),
			adltest.A(adltest.DbView, `{"viewName":"recent_orders","viewSql":["create view recent_orders as","  select id from \"order\";"]}`)),
		adltest.With(adltest.Struct("Empty", nil), adltest.A(adltest.DbView, `{}`)),
	))
}

func graph(t *testing.T, s *load.Store) *gen.Graph {
	t.Helper()
	g, err := gen.NewGraph(context.Background(), gen.MustNewConfig(gen.WithModules("app")), s)
	require.NoError(t, err)
	return g
}

func schema(t *testing.T, profile db.Profile) *db.Schema {
	t.Helper()
	s, err := db.Build(graph(t, shopStore(t)), profile)
	require.NoError(t, err)
	return s
}

// column renders a column line with its comment aligned.
func column(code, comment string) string {
	return "  " + code + strings.Repeat(" ", 36-len(code)) + " -- " + comment + "\n"
}

func TestCreate(t *testing.T) {
	got := sql.Create(schema(t, db.PostgreSQL2), []string{"pgcrypto"})
	want := "-- Schema auto-generated from adl modules: app\n" +
		"--\n" +
		"-- column comments show original ADL types\n" +
		"\n" +
		"create extension pgcrypto;\n" +
		"\n" +
		"create table customer(\n" +
		column("id text not null,", "String") +
		column("name text not null,", "String") +
		column("notes text,", "Nullable<String>") +
		"  primary key(id)\n" +
		");\n" +
		"\n" +
		"create table log(\n" +
		column("msg text not null", "String") +
		");\n" +
		"\n" +
		"create table \"order\"(\n" +
		column("id text not null,", "String") +
		column("customer text not null,", "DbKey<Customer>") +
		column("total double precision not null,", "Double") +
		"  primary key(id)\n" +
		");\n" +
		"\n" +
		"create index customer_1_idx on customer(name);\n" +
		"alter table \"order\" add constraint order_customer_fk foreign key (customer) references customer(id);\n" +
		"alter table \"order\" add constraint order_1_con unique (customer, total);\n" +
		"\n" +
		"create sequence order_seq;\n"
	assert.Equal(t, want, got)
}

func TestCreateWithoutPrimaryKey(t *testing.T) {
	s := adltest.Store(t, adltest.Module("app",
		adltest.With(adltest.Struct("Event", nil,
			adltest.F("at", adlast.Prim("Int64")),
			adltest.F("payload", adlast.Prim("Json")),
		), adltest.A(adltest.DbTable, `{}`)),
	))
	schema, err := db.Build(graph(t, s), db.PostgreSQL)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Empty(t, schema.Tables[0].PrimaryKey)

	got := sql.Create(schema, nil)
	assert.NotContains(t, got, "primary key(")
	assert.Contains(t, got, "create table event(\n"+
		column("at bigint not null,", "Int64")+
		column("payload json not null", "Json")+
		");\n")
	// Nothing follows the last table.
	assert.True(t, strings.HasSuffix(got, ");\n"))
}

func TestNestedReferenceBeforeOutput(t *testing.T) {
	s := adltest.Store(t, adltest.Module("app",
		adltest.With(adltest.Struct("Foo", nil, adltest.F("id", stringT, pk)), adltest.A(adltest.DbTable, `{}`)),
		adltest.With(adltest.Struct("Bar", nil,
			adltest.F("foo", adlast.Ref(adltest.Ref, adlast.Ref(adltest.Ref, local("Foo")))),
		), adltest.A(adltest.DbTable, `{}`)),
	))
	g, err := gen.NewGraph(context.Background(), gen.MustNewConfig(gen.WithModules("app")), s)
	require.Error(t, err)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, resolve.ErrNestedReferenceWrapper)
	assert.Contains(t, err.Error(), "app.Bar field foo")
}

func TestViews(t *testing.T) {
	got := sql.Views(schema(t, db.PostgreSQL2))
	want := "\n" +
		"drop view if exists recent_orders;\n" +
		"\n" +
		"create view recent_orders as\n" +
		"  select id from \"order\";\n" +
		"\n"
	assert.Equal(t, want, got)
}

var declRow = regexp.MustCompile(`values \('([^']*)','([^']*)', '(.*)'\);`)

func TestMetadata(t *testing.T) {
	g := graph(t, shopStore(t))
	s, err := db.Build(g, db.PostgreSQL2)
	require.NoError(t, err)
	got, err := sql.Metadata(s, g.Resolve)
	require.NoError(t, err)

	head, decls, ok := strings.Cut(got, "\ndelete from meta_adl_decl;\n")
	require.True(t, ok)
	assert.Equal(t, "delete from meta_table;\n"+
		"insert into meta_table(name,description,decl_module_name, decl_name) values ('customer','Bob''s customers','app','Customer');\n"+
		"insert into meta_table(name,description,decl_module_name, decl_name) values ('log','','app','Log');\n"+
		"insert into meta_table(name,description,decl_module_name, decl_name) values ('order','','app','Order');\n"+
		"insert into meta_table(name,description,decl_module_name, decl_name) values ('empty','','app','Empty');\n"+
		"insert into meta_table(name,description,decl_module_name, decl_name) values ('recent_orders','','app','Recent');\n",
		head)

	var names []string
	for _, l := range strings.Split(strings.TrimSuffix(decls, "\n"), "\n") {
		require.True(t, strings.HasPrefix(l, "insert into meta_adl_decl(module_name,name,decl) "), l)
		m := declRow.FindStringSubmatch(l)
		require.Len(t, m, 4, l)
		names = append(names, m[1]+"."+m[2])

		var d adlast.Decl
		require.NoError(t, json.Unmarshal([]byte(strings.ReplaceAll(m[3], "''", "'")), &d), l)
		assert.Equal(t, m[2], d.Name)
	}
	// Referenced declarations follow their referrer, once each.
	assert.Equal(t, []string{"app.Customer", "app.Log", "app.Order", "common.db.DbKey", "app.Empty", "app.Recent"}, names)
}

func TestMetadataSkipsMetaTables(t *testing.T) {
	s := adltest.Store(t, adltest.Module("app",
		adltest.With(adltest.Struct("MetaTable", nil, adltest.F("name", stringT)), adltest.A(adltest.DbTable, `{"tableName":"meta_table"}`)),
		adltest.With(adltest.Struct("MetaAdlDecl", nil, adltest.F("name", stringT)), adltest.A(adltest.DbTable, `{}`)),
	))
	g := graph(t, s)
	schema, err := db.Build(g, db.PostgreSQL2)
	require.NoError(t, err)
	got, err := sql.Metadata(schema, g.Resolve)
	require.NoError(t, err)
	assert.Equal(t, "delete from meta_table;\n\ndelete from meta_adl_decl;\n", got)
}

func TestRender(t *testing.T) {
	s := schema(t, db.PostgreSQL2)
	out, err := sql.Render(s, "", `{{range .tables}}{{quote .tablename}}{{if .Doc}} -- {{.Doc}}{{end}}
{{end}}`)
	require.NoError(t, err)
	assert.Equal(t, "customer -- Bob's customers\nlog\n\"order\"\n", string(out))

	out, err = sql.Render(s, "indexes.tmpl", `{{range .tables}}{{with .DbTable}}{{range .indexes}}{{join . ","}};{{end}}{{end}}{{end}}`)
	require.NoError(t, err)
	assert.Equal(t, "name;", string(out))

	out, err = sql.Render(s, "", `{{range .tables}}{{title .tablename}}|{{upper .tablename}} {{end}}`)
	require.NoError(t, err)
	assert.Equal(t, "Customer|CUSTOMER Log|LOG Order|ORDER ", string(out))

	_, err = sql.Render(s, "bad", `{{range .tables}`)
	assert.Error(t, err)

	t.Run("Join", func(t *testing.T) {
		join, ok := sql.Funcs["join"].(func(any, string) string)
		require.True(t, ok)
		assert.Equal(t, "a,1,true", join([]any{"a", 1.0, true}, ","))
		assert.Equal(t, "a b", join([]string{"a", "b"}, " "))
		assert.Equal(t, "name", join("name", ","))
		assert.Empty(t, join(nil, ","))
	})
}

func TestTarget(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "names.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(`{{range .tables}}{{pascal .tablename}} {{end}}`), 0o644))

	target, err := sql.New(
		sql.WithProfile("mssql2"),
		sql.WithMetadataFile("meta.sql"),
		sql.WithTemplates(
			sql.Template{Path: path, Output: "names.txt"},
			sql.Template{Text: `{{len .tables}}`, Output: "count.txt"},
		),
	)
	require.NoError(t, err)
	assert.Equal(t, "sql", target.Name())
	assert.Equal(t, "mssql2", target.Profile().Name)

	files, err := gen.Generate(ctx, graph(t, shopStore(t)), target)
	require.NoError(t, err)
	assert.Equal(t, []string{"count.txt", "create.sql", "meta.sql", "names.txt", "views.sql"}, gen.Paths(files))
	byPath := map[string]string{}
	for _, f := range files {
		byPath[f.Path] = string(f.Content)
	}
	assert.Contains(t, byPath["create.sql"], "customer nvarchar(64) not null,")
	assert.Contains(t, byPath["create.sql"], "total float(53) not null,")
	assert.Equal(t, "Customer Log Order ", byPath["names.txt"])
	assert.Equal(t, "3", byPath["count.txt"])
}

func TestTargetOptions(t *testing.T) {
	target, err := sql.New()
	require.NoError(t, err)
	assert.Equal(t, db.PostgreSQL2.Name, target.Profile().Name)

	tests := []struct {
		name string
		opt  sql.Option
	}{
		{"UnknownProfile", sql.WithProfile("oracle")},
		{"EmptyCreateFile", sql.WithCreateFile("")},
		{"EmptyViewsFile", sql.WithViewsFile("")},
		{"TemplateWithoutOutput", sql.WithTemplates(sql.Template{Text: "x"})},
		{"TemplateWithoutSource", sql.WithTemplates(sql.Template{Output: "x"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sql.New(tt.opt)
			require.Error(t, err)
			assert.True(t, gen.IsConfigError(err))
		})
	}

	t.Run("MissingTemplateFile", func(t *testing.T) {
		target, err := sql.New(sql.WithTemplates(sql.Template{Path: filepath.Join(t.TempDir(), "nope"), Output: "x"}))
		require.NoError(t, err)
		_, err = target.Generate(context.Background(), graph(t, shopStore(t)))
		require.Error(t, err)
		assert.True(t, gen.IsGenerationError(err))
	})
}
