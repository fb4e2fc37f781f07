package resolve_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/resolve"
	"github.com/syssam/adlschema/internal/adltest"
)

func TestPropagate(t *testing.T) {
	s := monoStore(t)
	p := newProjector(s)
	decls := collectAll(t, s, p, "app")
	tr := resolve.NewTracker(p)
	instances, err := tr.Run(decls)
	require.NoError(t, err)
	meta := resolve.Propagate(append(decls, instances...), tr)

	t.Run("Decls", func(t *testing.T) {
		box, ok := meta.Decl(app("Box"))
		require.True(t, ok)
		assert.True(t, box.Generic)
		assert.False(t, box.Concrete)
		require.Len(t, box.Instances, 2)
		assert.Equal(t, "_Box_Int32", box.Instances[0].Name)

		a, err := meta.MustDecl(app("A"))
		require.NoError(t, err)
		assert.True(t, a.Concrete)
		assert.False(t, a.Referenced)

		inst, ok := meta.Decl(app("_Box_String"))
		require.True(t, ok)
		assert.True(t, inst.Concrete)
		assert.Empty(t, inst.Instances)

		assert.Contains(t, meta.Decls(), app("D"))
		assert.IsIncreasing(t, declStrings(meta.Decls()))
	})

	t.Run("Fields", func(t *testing.T) {
		x, err := meta.Field(app("A"), "x")
		require.NoError(t, err)
		assert.True(t, x.Monomorphized)
		assert.Equal(t, "_Box_Int32", x.Instance)
		assert.Equal(t, resolve.One, x.Cardinality)

		y, err := meta.Field(app("A"), "y")
		require.NoError(t, err)
		assert.Equal(t, resolve.Many, y.Cardinality)
		assert.Equal(t, "_Box_Int32", y.Instance)

		plain, err := meta.Field(app("D"), "plain")
		require.NoError(t, err)
		assert.False(t, plain.Monomorphized)
		assert.Empty(t, plain.Instance)
		assert.True(t, plain.Concrete)
	})

	t.Run("MissingRequiredAnnotation", func(t *testing.T) {
		_, err := meta.Field(app("A"), "nope")
		assert.ErrorIs(t, err, resolve.ErrMissingRequiredAnnotation)
		assert.Contains(t, err.Error(), "app.A field nope")
		_, err = meta.MustDecl(app("Missing"))
		assert.ErrorIs(t, err, resolve.ErrMissingRequiredAnnotation)
		_, ok := meta.Decl(app("Missing"))
		assert.False(t, ok)
		_, err = meta.Annotations(app("Missing"))
		assert.ErrorIs(t, err, resolve.ErrMissingRequiredAnnotation)
	})

	t.Run("Copies", func(t *testing.T) {
		box, _ := meta.Decl(app("Box"))
		box.Instances[0].ReferencedBy = append(box.Instances[0].ReferencedBy, "X::x")
		box.Instances[0].Name = "_Changed"
		box.Instances = box.Instances[:1]

		again, err := meta.MustDecl(app("Box"))
		require.NoError(t, err)
		require.Len(t, again.Instances, 2)
		assert.Equal(t, "_Box_Int32", again.Instances[0].Name)
		assert.NotContains(t, again.Instances[0].ReferencedBy, "X::x")
		assert.NotContains(t, tr.Instances(app("Box"))[0].ReferencedBy, "X::x")
	})

	t.Run("Augment", func(t *testing.T) {
		var a *resolve.ProjectedDecl
		for _, pd := range decls {
			if pd.Name == app("A") {
				a = pd
			}
		}
		require.NotNil(t, a)
		once, err := meta.Augment(a)
		require.NoError(t, err)
		twice, err := meta.Augment(once)
		require.NoError(t, err)
		assert.Equal(t, once.Annotations, twice.Annotations)
		assert.Equal(t, once.Fields, twice.Fields)

		concrete, ok := once.Annotations.Get(resolve.ConcreteKey)
		require.True(t, ok)
		assert.JSONEq(t, `true`, string(concrete))
		y, _ := once.Field("y")
		card, ok := y.Annotations.String(resolve.CardinalityKey)
		require.True(t, ok)
		assert.Equal(t, "many", card)
		mono, _ := y.Annotations.Get(resolve.MonomorphizedKey)
		assert.JSONEq(t, `true`, string(mono))

		// The projected input keeps its own annotations.
		assert.False(t, a.Annotations.Has(resolve.ConcreteKey))
		orig, _ := a.Field("y")
		assert.False(t, orig.Annotations.Has(resolve.CardinalityKey))

		box, err := meta.Annotations(app("Box"))
		require.NoError(t, err)
		var names []string
		ok, err = box.Decode(resolve.InstancesKey, &names)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"_Box_Int32", "_Box_String"}, names)
	})
}

func TestPropagateReferenced(t *testing.T) {
	s := crossStore(t)
	p := newProjector(s)
	decls := collectAll(t, s, p, "app")
	meta := resolve.Propagate(decls, nil)

	customer, err := meta.MustDecl(sn("crm.Customer"))
	require.NoError(t, err)
	assert.True(t, customer.Referenced)
	assert.True(t, customer.External)
	assert.Equal(t, []string{"Order::customer", "Account::owner"}, customer.ReferencedBy)

	order, err := meta.MustDecl(app("Order"))
	require.NoError(t, err)
	assert.False(t, order.Referenced)
	assert.False(t, order.External)

	account, err := meta.Field(sn("crm.Customer"), "account")
	require.NoError(t, err)
	require.NotNil(t, account.Link)
	assert.Equal(t, sn("billing.Account"), *account.Link)
	assert.Equal(t, resolve.Optional, account.Cardinality)

	*account.Link = sn("app.Order")
	again, err := meta.Field(sn("crm.Customer"), "account")
	require.NoError(t, err)
	assert.Equal(t, sn("billing.Account"), *again.Link)
}

func declStrings(names []adlast.ScopedName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out
}

func TestModuleBlock(t *testing.T) {
	block := adlast.Annotations{adltest.A(adltest.PrismaBlocks, `{"datasource":{}}`)}
	s := adltest.Store(t,
		adltest.ModuleWith("m1", block),
		adltest.ModuleWith("m2", block),
		adltest.Module("m3"),
	)

	t.Run("Multiple", func(t *testing.T) {
		_, err := resolve.RequireModuleBlock(s, adltest.PrismaBlocks, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, resolve.ErrMultipleOrZeroModuleBlock)
		assert.True(t, resolve.IsModuleBlockError(err))
		assert.Contains(t, err.Error(), "m1, m2")
	})

	t.Run("Single", func(t *testing.T) {
		got, err := resolve.RequireModuleBlock(s, adltest.PrismaBlocks, []string{"m2", "m3"})
		require.NoError(t, err)
		assert.Equal(t, "m2", got.Module)
		assert.JSONEq(t, `{"datasource":{}}`, string(got.Value))
	})

	t.Run("Zero", func(t *testing.T) {
		_, err := resolve.RequireModuleBlock(s, adltest.PrismaBlocks, []string{"m3"})
		require.Error(t, err)
		assert.ErrorIs(t, err, resolve.ErrMultipleOrZeroModuleBlock)
		assert.Contains(t, err.Error(), "no module level")
	})

	t.Run("First", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		got, ok := resolve.FirstModuleBlock(s, adltest.PrismaBlocks, nil, logger)
		require.True(t, ok)
		assert.Equal(t, "m1", got.Module)
		assert.Contains(t, logs.String(), "using the first")

		_, ok = resolve.FirstModuleBlock(s, adltest.PrismaBlocks, []string{"m3"}, logger)
		assert.False(t, ok)
	})
}
