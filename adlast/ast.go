// Package adlast holds the in-memory model of a parsed ADL declaration graph:
// scoped names, type expressions, declarations and modules, together with a
// JSON codec compatible with the AST documents written by adlc.
//
// Type references and declaration bodies are closed sum types. Each variant
// implements an unexported marker method so no other package can add one,
// and MatchTypeRef/MatchDecl take one callback per variant so a new variant
// breaks every call site at compile time.
package adlast

import (
	"encoding/json"
	"strings"
)

// ScopedName is the globally unique key of a declaration.
type ScopedName struct {
	ModuleName string `json:"moduleName"`
	Name       string `json:"name"`
}

// NewScopedName returns the ScopedName of name in module.
func NewScopedName(module, name string) ScopedName {
	return ScopedName{ModuleName: module, Name: name}
}

// ParseScopedName splits a qualified name at its last dot.
// "common.db.DbTable" becomes {common.db, DbTable}.
func ParseScopedName(qualified string) ScopedName {
	i := strings.LastIndexByte(qualified, '.')
	if i < 0 {
		return ScopedName{Name: qualified}
	}
	return ScopedName{ModuleName: qualified[:i], Name: qualified[i+1:]}
}

// String returns the qualified name, e.g. "app.User".
func (s ScopedName) String() string {
	if s.ModuleName == "" {
		return s.Name
	}
	return s.ModuleName + "." + s.Name
}

// Less orders scoped names by module, then by name.
func (s ScopedName) Less(o ScopedName) bool {
	if s.ModuleName != o.ModuleName {
		return s.ModuleName < o.ModuleName
	}
	return s.Name < o.Name
}

// Compare returns -1, 0 or +1 following Less.
func (s ScopedName) Compare(o ScopedName) int {
	switch {
	case s == o:
		return 0
	case s.Less(o):
		return -1
	default:
		return 1
	}
}

// Field is a member of a struct or a branch of a union.
type Field struct {
	Name           string      `json:"name"`
	SerializedName string      `json:"serializedName"`
	TypeExpr       TypeExpr    `json:"typeExpr"`
	Default        Maybe       `json:"default"`
	Annotations    Annotations `json:"annotations"`
}

// Decl is a named declaration inside a module.
type Decl struct {
	Name        string
	Version     Maybe
	Type        DeclType
	Annotations Annotations
}

// TypeParams returns the generic parameter names of the declaration.
func (d Decl) TypeParams() []string {
	if d.Type == nil {
		return nil
	}
	return d.Type.Params()
}

// Fields returns the fields of a struct or union, and nil for aliases and newtypes.
func (d Decl) Fields() []Field {
	switch t := d.Type.(type) {
	case Struct:
		return t.Fields
	case Union:
		return t.Fields
	default:
		return nil
	}
}

// Kind returns the declaration kind.
func (d Decl) Kind() DeclKind {
	if d.Type == nil {
		return ""
	}
	return d.Type.Kind()
}

// ScopedDecl pairs a declaration with the module that owns it.
type ScopedDecl struct {
	ModuleName string `json:"moduleName"`
	Decl       Decl   `json:"decl"`
}

// Name returns the scoped name of the declaration.
func (sd ScopedDecl) Name() ScopedName {
	return ScopedName{ModuleName: sd.ModuleName, Name: sd.Decl.Name}
}

// Import is a module import, either a whole module or a single declaration.
type Import struct {
	ModuleName string
	ScopedName *ScopedName
}

// Module is a parsed ADL module.
type Module struct {
	Name        string          `json:"name"`
	Imports     []Import        `json:"imports"`
	Decls       map[string]Decl `json:"decls"`
	Annotations Annotations     `json:"annotations"`
}

// ModuleAnnotation is a module-level annotation value together with the
// module that carries it.
type ModuleAnnotation struct {
	Module string
	Value  json.RawMessage
}
