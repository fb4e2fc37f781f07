package resolve_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/load"
	"github.com/syssam/adlschema/compiler/resolve"
	"github.com/syssam/adlschema/internal/adltest"
)

func sn(qualified string) adlast.ScopedName { return adlast.ParseScopedName(qualified) }

// crossStore spans three modules. app references crm, crm references
// billing, and billing references crm back.
func crossStore(t *testing.T) *load.Store {
	t.Helper()
	return adltest.Store(t,
		adltest.Module("app",
			adltest.Struct("Order", nil,
				adltest.F("customer", ref(adlast.Ref(sn("crm.Customer")))),
				adltest.F("items", vector(ref(local("Item")))),
			),
			adltest.Struct("Item", nil, adltest.F("sku", stringT)),
		),
		adltest.Module("crm",
			adltest.Struct("Customer", nil,
				adltest.F("account", nullable(dbKey(adlast.Ref(sn("billing.Account"))))),
				adltest.F("note", stringT),
			),
			adltest.Struct("Unused", nil),
		),
		adltest.Module("billing",
			adltest.Struct("Account", nil,
				adltest.F("owner", ref(adlast.Ref(sn("crm.Customer")))),
				adltest.F("ledger", adlast.Ref(sn("billing.Ledger"))),
			),
			adltest.Struct("Ledger", nil),
		),
	)
}

func inModules(modules ...string) func(adlast.ScopedName) bool {
	return func(sn adlast.ScopedName) bool {
		for _, m := range modules {
			if sn.ModuleName == m {
				return true
			}
		}
		return false
	}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	s := crossStore(t)
	p := newProjector(s)

	t.Run("CrossesFocusBoundary", func(t *testing.T) {
		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
		c := resolve.NewCollector(s, p, resolve.WithLogger(logger))
		decls, err := c.Collect(ctx, s.Decls("app"), inModules("app"))
		require.NoError(t, err)
		// Ledger is a plain field, not a reference wrapper edge.
		assert.Equal(t, []string{"app.Item", "app.Order", "billing.Account", "crm.Customer"}, declNames(decls))
		for _, pd := range decls {
			assert.Equal(t, pd.Name.ModuleName != "app", pd.External, pd.Name.String())
		}
		assert.Contains(t, logs.String(), "closure round projected")
	})

	t.Run("StopsAtFocus", func(t *testing.T) {
		c := resolve.NewCollector(s, p)
		decls, err := c.Collect(ctx, s.Decls("app"), inModules("app", "crm"))
		require.NoError(t, err)
		assert.Equal(t, []string{"app.Item", "app.Order"}, declNames(decls))
	})

	t.Run("OrderIndependent", func(t *testing.T) {
		roots := s.Decls("app")
		reversed := []adlast.ScopedDecl{roots[1], roots[0], roots[1]}
		serial, err := resolve.NewCollector(s, p, resolve.WithWorkers(1)).Collect(ctx, roots, inModules("app"))
		require.NoError(t, err)
		parallel, err := resolve.NewCollector(s, p, resolve.WithWorkers(8)).Collect(ctx, reversed, inModules("app"))
		require.NoError(t, err)
		assert.Equal(t, declNames(serial), declNames(parallel))
	})

	t.Run("EmptyRoots", func(t *testing.T) {
		decls, err := resolve.NewCollector(s, p).Collect(ctx, nil, inModules("app"))
		require.NoError(t, err)
		assert.Empty(t, decls)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := resolve.NewCollector(s, p).Collect(ctx, s.Decls("app"), inModules("app"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCollectFailsOnNestedReference(t *testing.T) {
	s := adltest.Store(t,
		adltest.Module("app", adltest.Struct("A", nil, adltest.F("b", ref(adlast.Ref(sn("ext.B")))))),
		adltest.Module("ext",
			adltest.Struct("B", nil, adltest.F("bad", ref(ref(adlast.Ref(sn("ext.C")))))),
			adltest.Struct("C", nil),
		),
	)
	_, err := resolve.NewCollector(s, newProjector(s)).Collect(context.Background(), s.Decls("app"), inModules("app"))
	require.Error(t, err)
	assert.ErrorIs(t, err, resolve.ErrNestedReferenceWrapper)
	assert.Contains(t, err.Error(), "ext.B field bad")
}
