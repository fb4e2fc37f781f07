package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema"
	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/load"
	"github.com/syssam/adlschema/compiler/resolve"
	"github.com/syssam/adlschema/internal/adltest"
)

func mustResolve(t *testing.T, s *load.Store, sn adlast.ScopedName) adlast.ScopedDecl {
	t.Helper()
	sd, err := s.Resolve(sn)
	require.NoError(t, err)
	return sd
}

func TestProjectGenericInstance(t *testing.T) {
	p := newProjector(appStore(t))

	pd, err := p.ProjectTypeExpr(local("Box", int32T))
	require.NoError(t, err)
	require.Len(t, pd.Fields, 1)
	f := pd.Fields[0]
	assert.Equal(t, "value", f.Name)
	assert.Equal(t, int32T, f.TypeExpr)
	assert.True(t, f.Concrete)
	assert.Equal(t, resolve.One, f.Cardinality)
	assert.False(t, pd.Generic)
	assert.Equal(t, adlast.KindStruct, pd.Kind)
	assert.Equal(t, app("Box"), f.Origin)

	_, err = p.ProjectTypeExpr(local("Box"))
	assert.ErrorIs(t, err, resolve.ErrArityMismatch)
	_, err = p.ProjectTypeExpr(stringT)
	assert.ErrorIs(t, err, resolve.ErrUnsupportedRootKind)
}

func TestProjectStruct(t *testing.T) {
	s := appStore(t)
	p := newProjector(s)

	t.Run("Monomorphized", func(t *testing.T) {
		pd, err := p.Project(mustResolve(t, s, app("Holder")), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"box", "boxes"}, fieldNames(pd.Fields))
		for _, f := range pd.Fields {
			assert.True(t, f.Monomorphized, f.Name)
			assert.True(t, f.Concrete, f.Name)
		}
		assert.Equal(t, resolve.Many, pd.Fields[1].Cardinality)
		assert.Nil(t, pd.Path)
	})

	t.Run("GenericOpen", func(t *testing.T) {
		pd, err := p.Project(mustResolve(t, s, app("Box")), nil)
		require.NoError(t, err)
		assert.True(t, pd.Generic)
		f, ok := pd.Field("value")
		require.True(t, ok)
		assert.Equal(t, adlast.Param("T"), f.TypeExpr)
		assert.False(t, f.Concrete)
		assert.False(t, f.Monomorphized)
		_, ok = pd.Field("nope")
		assert.False(t, ok)
	})

	t.Run("Composed", func(t *testing.T) {
		pd, err := p.Project(mustResolve(t, s, app("Composed")), nil)
		require.NoError(t, err)
		want := map[string]resolve.Cardinality{
			"optList": resolve.Optional,
			"listOpt": resolve.Many,
			"mapped":  resolve.Map,
			"maybe":   resolve.Optional,
			"link":    resolve.Optional,
			"refs":    resolve.Many,
		}
		for _, f := range pd.Fields {
			assert.Equal(t, want[f.Name], f.Cardinality, f.Name)
			assert.False(t, f.Monomorphized, f.Name)
		}
		link, _ := pd.Field("link")
		require.NotNil(t, link.Link)
		assert.Equal(t, app("Foo"), *link.Link)
		assert.Equal(t, []adlast.ScopedName{app("Foo")}, link.References)
		refs, _ := pd.Field("refs")
		assert.Nil(t, refs.Link)
		assert.Equal(t, []adlast.ScopedName{app("Foo")}, refs.References)
	})

	t.Run("Spread", func(t *testing.T) {
		pd, err := p.Project(mustResolve(t, s, app("Row")), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "createdAt", "updatedAt", "at", "name"}, fieldNames(pd.Fields))
		at, _ := pd.Field("at")
		assert.Equal(t, stringT, at.TypeExpr)
		assert.Equal(t, app("Stamped"), at.Origin)
		created, _ := pd.Field("createdAt")
		assert.Equal(t, app("Audit"), created.Origin)
		id, _ := pd.Field("id")
		assert.Equal(t, app("Row"), id.Origin)
	})

	t.Run("Union", func(t *testing.T) {
		pd, err := p.Project(mustResolve(t, s, app("Color")), nil)
		require.NoError(t, err)
		assert.Equal(t, adlast.KindUnion, pd.Kind)
		assert.True(t, pd.IsEnum())

		pd, err = p.Project(mustResolve(t, s, app("Shape")), nil)
		require.NoError(t, err)
		assert.False(t, pd.IsEnum())
	})

	t.Run("DoesNotMutateInput", func(t *testing.T) {
		sd := mustResolve(t, s, app("Row"))
		before := len(sd.Decl.Fields())
		_, err := p.Project(sd, nil)
		require.NoError(t, err)
		assert.Len(t, sd.Decl.Fields(), before)
	})
}

func TestProjectAliasRoots(t *testing.T) {
	s := appStore(t)
	p := newProjector(s)

	t.Run("Alias", func(t *testing.T) {
		pd, err := p.Project(mustResolve(t, s, app("FooRow")), nil)
		require.NoError(t, err)
		assert.Equal(t, app("FooRow"), pd.Name)
		assert.Equal(t, app("Foo"), pd.Shape)
		assert.Equal(t, adlast.KindStruct, pd.Kind)
		assert.Equal(t, []string{"type_:FooRow", "struct_:Foo"}, pd.Path)
		assert.True(t, pd.Annotations.Has(adltest.DbTable))
		assert.Equal(t, []string{"id"}, fieldNames(pd.Fields))
	})

	t.Run("NewType", func(t *testing.T) {
		pd, err := p.Project(mustResolve(t, s, app("IntBox")), nil)
		require.NoError(t, err)
		require.Len(t, pd.Fields, 1)
		assert.Equal(t, int32T, pd.Fields[0].TypeExpr)
		assert.Equal(t, []string{"newtype_:IntBox", "struct_:Box"}, pd.Path)
	})

	t.Run("UnsupportedRootKind", func(t *testing.T) {
		for _, name := range []string{"Name", "FooRef", "Loop"} {
			_, err := p.Project(mustResolve(t, s, app(name)), nil)
			require.Error(t, err, name)
			assert.ErrorIs(t, err, resolve.ErrUnsupportedRootKind, name)
			assert.Contains(t, err.Error(), "app."+name)
		}
	})

	t.Run("Roots", func(t *testing.T) {
		roots := resolve.Roots(s.Decls("app"), adltest.DbTable, adltest.DbView)
		names := make([]string, len(roots))
		for i, sd := range roots {
			names[i] = sd.Decl.Name
		}
		assert.Contains(t, names, "FooRow")
		assert.Contains(t, names, "Box")
		assert.NotContains(t, names, "FooRef")
		assert.NotContains(t, names, "IntBox")
	})
}

func TestProjectErrors(t *testing.T) {
	s := adltest.Store(t, adltest.Module("app",
		adltest.Struct("Foo", nil, adltest.F("id", stringT)),
		adltest.Struct("Box", []string{"T"}, adltest.F("value", adlast.Param("T"))),
		adltest.Struct("Nested", nil, adltest.F("r", ref(ref(local("Foo"))))),
		adltest.Struct("NestedInList", nil,
			adltest.F("ok", stringT),
			adltest.F("rs", vector(nullable(dbKey(ref(local("Foo")))))),
		),
		adltest.Struct("MissingArg", nil, adltest.F("b", local("Box"))),
		adltest.Struct("ExtraArg", nil, adltest.F("f", local("Foo", int32T))),
		adltest.Struct("BadVector", nil, adltest.F("v", adlast.Prim("Vector", int32T, int32T))),
		adltest.Struct("BadPrimitive", nil, adltest.F("v", adlast.Prim("Int32", int32T))),
		adltest.Struct("Unknown", nil, adltest.F("u", local("Missing"))),
		adltest.Struct("DeepArity", nil, adltest.F("d", vector(local("Box", local("Box"))))),
		adltest.With(adltest.Alias("NestedRow", nil, local("Nested")), adltest.A(adltest.DbTable, `{}`)),
		adltest.Struct("Dup", nil,
			adltest.F("id", int32T),
			adltest.F("foo", local("Foo"), adltest.A(adltest.DbSpread, "null")),
		),
	))
	p := newProjector(s)

	tests := []struct {
		decl  string
		rule  error
		field string
	}{
		{"Nested", resolve.ErrNestedReferenceWrapper, "r"},
		{"NestedInList", resolve.ErrNestedReferenceWrapper, "rs"},
		{"MissingArg", resolve.ErrArityMismatch, "b"},
		{"ExtraArg", resolve.ErrArityMismatch, "f"},
		{"BadVector", resolve.ErrArityMismatch, "v"},
		{"BadPrimitive", resolve.ErrArityMismatch, "v"},
		{"DeepArity", resolve.ErrArityMismatch, "d"},
		{"Dup", resolve.ErrDuplicateField, "id"},
	}
	for _, tt := range tests {
		t.Run(tt.decl, func(t *testing.T) {
			_, err := p.Project(mustResolve(t, s, app(tt.decl)), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.rule)
			var re *resolve.ResolveError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, app(tt.decl), re.Decl)
			assert.Equal(t, tt.field, re.Field)
		})
	}

	t.Run("UnknownReference", func(t *testing.T) {
		_, err := p.Project(mustResolve(t, s, app("Unknown")), nil)
		require.Error(t, err)
		assert.True(t, adlschema.IsNotFound(err))
		assert.Contains(t, err.Error(), "field u")
	})

	t.Run("DuplicateNamesOrigins", func(t *testing.T) {
		_, err := p.Project(mustResolve(t, s, app("Dup")), nil)
		assert.ErrorContains(t, err, "declared by both app.Dup and app.Foo")
	})

	t.Run("PathThroughAlias", func(t *testing.T) {
		_, err := p.Project(mustResolve(t, s, app("NestedRow")), nil)
		require.Error(t, err)
		var re *resolve.ResolveError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, app("Nested"), re.Decl)
		assert.Equal(t, []string{"type_:NestedRow", "struct_:Nested"}, re.Path)
	})
}
