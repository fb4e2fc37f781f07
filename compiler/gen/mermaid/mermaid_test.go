package mermaid_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/gen"
	"github.com/syssam/adlschema/compiler/gen/mermaid"
	"github.com/syssam/adlschema/compiler/load"
	"github.com/syssam/adlschema/internal/adltest"
)

var stringT = adlast.Prim("String")

func app(name string) adlast.TypeExpr {
	return adlast.Ref(adlast.NewScopedName("app", name))
}

func store(t *testing.T, anns adlast.Annotations) *load.Store {
	t.Helper()
	return adltest.Store(t,
		adltest.ModuleWith("app", anns,
			adltest.Struct("Animal", nil, adltest.F("legs", adlast.Prim("Int32"))),
			adltest.Struct("Cat", nil, adltest.F("lives", adlast.Prim("Int32"))),
			adltest.Enum("Color", "red", "green"),
			adltest.Struct("Dog", nil,
				adltest.F("base", app("Animal"), adltest.A(mermaid.Embed, `null`), adltest.A(mermaid.ArrowIdx, `-1`)),
				adltest.F("name", stringT),
			),
			adltest.With(adltest.Alias("Feline", nil, app("Cat")), adltest.A(mermaid.RepresentedBy, `"Cat2"`)),
			adltest.Struct("Person", nil,
				adltest.F("name", stringT),
				adltest.F("pets", adlast.Prim("Vector", app("Pet")), adltest.A(mermaid.ArrowIdx, `2`)),
				adltest.F("boss", adlast.Prim("Nullable", adlast.Ref(adltest.Ref, app("Person")))),
				adltest.F("address", adlast.Ref(adlast.NewScopedName("lib", "Address"))),
				adltest.F("secret", app("Secret")),
			),
			adltest.Union("Pet", nil,
				adltest.F("dog", app("Dog")),
				adltest.F("cat", app("Cat"), adltest.A(mermaid.HideRealization, `null`)),
				adltest.F("none", adlast.Prim("Void")),
			),
			adltest.With(adltest.Struct("Secret", nil, adltest.F("owner", app("Person"))), adltest.A(mermaid.Hidden, `null`)),
		),
		adltest.Module("lib", adltest.Struct("Address", nil, adltest.F("street", stringT))),
	)
}

func generate(t *testing.T, s *load.Store, opts ...gen.Option) (string, error) {
	t.Helper()
	cfg := gen.MustNewConfig(append([]gen.Option{gen.WithModules("app", "lib")}, opts...)...)
	g, err := gen.NewGraph(context.Background(), cfg, s)
	require.NoError(t, err)
	target, err := mermaid.New()
	require.NoError(t, err)
	files, err := target.Generate(context.Background(), g)
	if err != nil {
		return "", err
	}
	require.Len(t, files, 1)
	assert.Equal(t, mermaid.DefaultFile, files[0].Path)
	return string(files[0].Content), nil
}

func TestGenerate(t *testing.T) {
	got, err := generate(t, store(t, nil))
	require.NoError(t, err)
	want := `    %% Auto-generated from adl modules: app lib
classDiagram
    direction LR;

    class app_Animal["Animal"]
    class app_Cat["Cat"]
    class app_Color["Color"]
    <<enum>> app_Color
    class app_Dog["Dog"]
    class app_Cat2["Feline"]
    class app_Person["Person"]
    class app_Pet["Pet"]
    <<union>> app_Pet
    class lib_Address["Address"]

    app_Dog --|> app_Animal : base
    app_Person --> app_Pet : pets 0..*
    app_Person --> app_Person : boss ?
    app_Person --> lib_Address : address
    app_Pet <|.. app_Dog : dog

    app_Animal : legs
    app_Cat : lives
    app_Color : red
    app_Color : green
    app_Dog : name
    app_Cat2 : lives
    app_Person : name
    app_Person : secret
    app_Pet : cat
    app_Pet : none
    lib_Address : street

    namespace app {
        class app_Animal
        class app_Cat
        class app_Color
        class app_Dog
        class app_Person
        class app_Pet
    }
    namespace lib {
        class lib_Address
    }
`
	assert.Equal(t, want, got)
}

func TestFocus(t *testing.T) {
	anns := adlast.Annotations{adltest.A(mermaid.DiagramOptions, `{"direction":"TB"}`)}
	got, err := generate(t, store(t, anns), gen.WithFocus("app"))
	require.NoError(t, err)
	assert.Contains(t, got, "    direction TB;\n")
	assert.NotContains(t, got, `class lib_Address["Address"]`)
	assert.NotContains(t, got, "lib_Address : street")
	assert.NotContains(t, got, "namespace lib {")
	assert.Contains(t, got, "    app_Person --> lib_Address : address\n")
	assert.Contains(t, got, `    class lib_Address["lib.Address"]
    namespace _out_ {
    class lib_Address
    }
    namespace app {
`)
}

func TestDiagramOptions(t *testing.T) {
	t.Run("Invalid", func(t *testing.T) {
		anns := adlast.Annotations{adltest.A(mermaid.DiagramOptions, `{"direction":"UP"}`)}
		_, err := generate(t, store(t, anns))
		require.Error(t, err)
		assert.True(t, gen.IsSchemaError(err))
		assert.Contains(t, err.Error(), "in module app")
	})

	t.Run("FirstWins", func(t *testing.T) {
		s := adltest.Store(t,
			adltest.ModuleWith("app", adlast.Annotations{adltest.A(mermaid.DiagramOptions, `{"direction":"RL"}`)},
				adltest.Struct("A", nil)),
			adltest.ModuleWith("lib", adlast.Annotations{adltest.A(mermaid.DiagramOptions, `{"direction":"BT"}`)}),
		)
		got, err := generate(t, s)
		require.NoError(t, err)
		assert.Contains(t, got, "    direction RL;\n")
	})
}

func TestTargetOptions(t *testing.T) {
	_, err := mermaid.New(mermaid.WithFile(""))
	assert.True(t, gen.IsConfigError(err))
	target, err := mermaid.New(mermaid.WithFile("model.mmd"))
	require.NoError(t, err)
	assert.Equal(t, "mermaid", target.Name())
}
