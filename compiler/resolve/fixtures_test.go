package resolve_test

import (
	"testing"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/load"
	"github.com/syssam/adlschema/compiler/resolve"
	"github.com/syssam/adlschema/internal/adltest"
)

func app(name string) adlast.ScopedName { return adlast.NewScopedName("app", name) }

var (
	int32T  = adlast.Prim("Int32")
	int64T  = adlast.Prim("Int64")
	stringT = adlast.Prim("String")
)

func vector(t adlast.TypeExpr) adlast.TypeExpr   { return adlast.Prim("Vector", t) }
func nullable(t adlast.TypeExpr) adlast.TypeExpr { return adlast.Prim("Nullable", t) }
func ref(t adlast.TypeExpr) adlast.TypeExpr      { return adlast.Ref(adltest.Ref, t) }
func dbKey(t adlast.TypeExpr) adlast.TypeExpr    { return adlast.Ref(adltest.DbKey, t) }
func local(name string, params ...adlast.TypeExpr) adlast.TypeExpr {
	return adlast.Ref(app(name), params...)
}

// appStore is the declaration graph shared by most tests.
func appStore(t *testing.T) *load.Store {
	t.Helper()
	return adltest.Store(t, adltest.Module("app",
		adltest.Struct("Box", []string{"T"}, adltest.F("value", adlast.Param("T"))),
		adltest.Struct("Foo", nil, adltest.F("id", stringT)),
		adltest.Struct("Holder", nil,
			adltest.F("box", local("Box", int32T)),
			adltest.F("boxes", vector(local("Box", int32T))),
		),
		adltest.Alias("FooRef", nil, ref(local("Foo"))),
		adltest.Alias("FooKey", nil, dbKey(local("Foo"))),
		adltest.Alias("Name", nil, stringT),
		adltest.Alias("Loop", nil, local("Loop")),
		adltest.With(adltest.Alias("FooRow", nil, local("Foo")), adltest.A(adltest.DbTable, `{}`)),
		adltest.NewType("IntBox", nil, local("Box", int32T)),
		adltest.Struct("Audit", nil,
			adltest.F("createdAt", int64T),
			adltest.F("updatedAt", int64T),
		),
		adltest.Struct("Stamped", []string{"T"}, adltest.F("at", adlast.Param("T"))),
		adltest.Struct("Row", nil,
			adltest.F("id", stringT),
			adltest.F("audit", local("Audit"), adltest.A(adltest.DbSpread, "null")),
			adltest.F("stamp", local("Stamped", stringT), adltest.A(adltest.DbSpread, "null")),
			adltest.F("name", stringT),
		),
		adltest.Enum("Color", "red", "green"),
		adltest.Union("Shape", nil,
			adltest.F("circle", adlast.Prim("Double")),
			adltest.F("square", adlast.Prim("Double")),
		),
		adltest.Struct("Composed", nil,
			adltest.F("optList", nullable(vector(stringT))),
			adltest.F("listOpt", vector(nullable(stringT))),
			adltest.F("mapped", adlast.Prim("StringMap", int32T)),
			adltest.F("maybe", adlast.Ref(adltest.Maybe, stringT)),
			adltest.F("link", nullable(local("FooKey"))),
			adltest.F("refs", vector(ref(local("Foo")))),
		),
	))
}

func newProjector(s *load.Store) *resolve.Projector {
	return resolve.NewProjector(s, resolve.DefaultWrappers())
}

func fieldNames(fields []resolve.ConcreteField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func declNames(decls []*resolve.ProjectedDecl) []string {
	names := make([]string, len(decls))
	for i, pd := range decls {
		names[i] = pd.Name.String()
	}
	return names
}
