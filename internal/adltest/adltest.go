// Package adltest builds in-memory declaration graphs for tests.
package adltest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/load"
)

// Well-known names provided by Stdlib.
var (
	Maybe        = adlast.NewScopedName("sys.types", "Maybe")
	Pair         = adlast.NewScopedName("sys.types", "Pair")
	Doc          = adlast.NewScopedName("sys.annotations", "Doc")
	DbTable      = adlast.NewScopedName("common.db", "DbTable")
	DbView       = adlast.NewScopedName("common.db", "DbView")
	DbKey        = adlast.NewScopedName("common.db", "DbKey")
	DbSpread     = adlast.NewScopedName("common.db", "DbSpread")
	DbPrimaryKey = adlast.NewScopedName("common.db", "DbPrimaryKey")
	DbColumnName = adlast.NewScopedName("common.db", "DbColumnName")
	DbColumnType = adlast.NewScopedName("common.db", "DbColumnType")
	Ref          = adlast.NewScopedName("savanti.schema.v1.types", "Ref")
	Box          = adlast.NewScopedName("savanti.schema.v1.annotations", "Box")
	PrismaBlocks = adlast.NewScopedName("common.prisma", "PrismaBlocks")
	FieldComment = adlast.NewScopedName("common.prisma", "FieldComment")
)

// F returns a field whose serialized name equals its name.
func F(name string, te adlast.TypeExpr, anns ...adlast.Annotation) adlast.Field {
	return adlast.Field{Name: name, SerializedName: name, TypeExpr: te, Annotations: anns}
}

// A returns an annotation with a raw JSON value.
func A(key adlast.ScopedName, value string) adlast.Annotation {
	return adlast.Annotation{Key: key, Value: json.RawMessage(value)}
}

// Struct returns a struct declaration.
func Struct(name string, params []string, fields ...adlast.Field) adlast.Decl {
	return adlast.Decl{Name: name, Type: adlast.Struct{TypeParams: params, Fields: fields}}
}

// Union returns a union declaration.
func Union(name string, params []string, fields ...adlast.Field) adlast.Decl {
	return adlast.Decl{Name: name, Type: adlast.Union{TypeParams: params, Fields: fields}}
}

// Enum returns a union whose branches are all Void.
func Enum(name string, branches ...string) adlast.Decl {
	fields := make([]adlast.Field, len(branches))
	for i, b := range branches {
		fields[i] = F(b, adlast.Prim("Void"))
	}
	return Union(name, nil, fields...)
}

// Alias returns a type alias declaration.
func Alias(name string, params []string, te adlast.TypeExpr) adlast.Decl {
	return adlast.Decl{Name: name, Type: adlast.TypeDef{TypeParams: params, TypeExpr: te}}
}

// NewType returns a newtype declaration.
func NewType(name string, params []string, te adlast.TypeExpr) adlast.Decl {
	return adlast.Decl{Name: name, Type: adlast.NewType{TypeParams: params, TypeExpr: te}}
}

// With returns d with anns appended to its annotations.
func With(d adlast.Decl, anns ...adlast.Annotation) adlast.Decl {
	d.Annotations = append(d.Annotations.Clone(), anns...)
	return d
}

// Module assembles a module from declarations.
func Module(name string, decls ...adlast.Decl) adlast.Module {
	m := adlast.Module{Name: name, Decls: make(map[string]adlast.Decl, len(decls))}
	for _, d := range decls {
		m.Decls[d.Name] = d
	}
	return m
}

// ModuleWith is Module with module-level annotations.
func ModuleWith(name string, anns adlast.Annotations, decls ...adlast.Decl) adlast.Module {
	m := Module(name, decls...)
	m.Annotations = anns
	return m
}

// Stdlib returns the library modules the generators rely on.
func Stdlib() []adlast.Module {
	return []adlast.Module{
		Module("sys.types",
			Union("Maybe", []string{"T"},
				F("nothing", adlast.Prim("Void")),
				F("just", adlast.Param("T")),
			),
			Struct("Pair", []string{"A", "B"},
				F("v1", adlast.Param("A")),
				F("v2", adlast.Param("B")),
			),
		),
		Module("sys.annotations",
			Alias("Doc", nil, adlast.Prim("String")),
		),
		Module("common.db",
			Struct("DbTable", nil,
				F("tableName", adlast.Prim("String")),
				F("indexes", adlast.Prim("Vector", adlast.Prim("Vector", adlast.Prim("String")))),
				F("uniquenessConstraints", adlast.Prim("Vector", adlast.Prim("Vector", adlast.Prim("String")))),
				F("extraSql", adlast.Prim("Vector", adlast.Prim("String"))),
			),
			Struct("DbView", nil,
				F("viewName", adlast.Prim("String")),
				F("viewSql", adlast.Prim("Vector", adlast.Prim("String"))),
			),
			NewType("DbKey", []string{"T"}, adlast.Prim("String")),
			Alias("DbSpread", nil, adlast.Prim("Void")),
			Alias("DbPrimaryKey", nil, adlast.Prim("Void")),
			Alias("DbColumnName", nil, adlast.Prim("String")),
			Alias("DbColumnType", nil, adlast.Prim("String")),
		),
		Module("savanti.schema.v1.types",
			NewType("Ref", []string{"T"}, adlast.Prim("String")),
		),
		Module("savanti.schema.v1.annotations",
			Alias("Box", nil, adlast.Prim("Void")),
		),
		Module("common.prisma",
			Struct("PrismaBlocks", nil),
			Alias("FieldComment", nil, adlast.Prim("String")),
		),
	}
}

// Store builds a store from Stdlib plus modules and fails the test on error.
func Store(t testing.TB, modules ...adlast.Module) *load.Store {
	t.Helper()
	s, err := load.NewStore(append(Stdlib(), modules...)...)
	require.NoError(t, err)
	return s
}
