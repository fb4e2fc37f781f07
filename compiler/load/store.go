// Package load decodes adlc AST documents and exposes them as a read-only
// declaration store.
package load

import (
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/adlschema"
	"github.com/syssam/adlschema/adlast"
)

// Store is the immutable set of loaded modules. It is safe for concurrent
// readers once built.
type Store struct {
	modules map[string]adlast.Module
	names   []string
}

// ModuleAnnotation is a module-level annotation value together with the
// module that carries it.
type ModuleAnnotation = adlast.ModuleAnnotation

// NewStore builds a store from modules. Module names must be unique.
func NewStore(modules ...adlast.Module) (*Store, error) {
	s := &Store{modules: make(map[string]adlast.Module, len(modules))}
	for _, m := range modules {
		if m.Name == "" {
			return nil, fmt.Errorf("load: module without a name")
		}
		if _, ok := s.modules[m.Name]; ok {
			return nil, fmt.Errorf("load: duplicate module %q", m.Name)
		}
		s.modules[m.Name] = m
	}
	s.names = slices.Sorted(maps.Keys(s.modules))
	return s, nil
}

// Resolve returns the declaration named sn. Unknown names are an error.
func (s *Store) Resolve(sn adlast.ScopedName) (adlast.ScopedDecl, error) {
	sd, ok := s.Lookup(sn)
	if !ok {
		return adlast.ScopedDecl{}, adlschema.NewNotFoundErrorWithID("decl", sn.String())
	}
	return sd, nil
}

// Lookup is like Resolve but reports absence instead of failing.
func (s *Store) Lookup(sn adlast.ScopedName) (adlast.ScopedDecl, bool) {
	m, ok := s.modules[sn.ModuleName]
	if !ok {
		return adlast.ScopedDecl{}, false
	}
	d, ok := m.Decls[sn.Name]
	if !ok {
		return adlast.ScopedDecl{}, false
	}
	return adlast.ScopedDecl{ModuleName: m.Name, Decl: d}, true
}

// Module returns the named module.
func (s *Store) Module(name string) (adlast.Module, bool) {
	m, ok := s.modules[name]
	return m, ok
}

// Modules returns the module names in lexical order.
func (s *Store) Modules() []string {
	return slices.Clone(s.names)
}

// Decls returns the declarations of module in lexical order.
func (s *Store) Decls(module string) []adlast.ScopedDecl {
	m, ok := s.modules[module]
	if !ok {
		return nil
	}
	out := make([]adlast.ScopedDecl, 0, len(m.Decls))
	for _, name := range slices.Sorted(maps.Keys(m.Decls)) {
		out = append(out, adlast.ScopedDecl{ModuleName: module, Decl: m.Decls[name]})
	}
	return out
}

// ForEachDecl visits every declaration, modules in lexical order and
// declarations by name within each module. Iteration stops at the first
// error, which is returned.
func (s *Store) ForEachDecl(fn func(adlast.ScopedDecl) error) error {
	for _, name := range s.names {
		for _, sd := range s.Decls(name) {
			if err := fn(sd); err != nil {
				return err
			}
		}
	}
	return nil
}

// ModuleAnnotations returns every module carrying key at module level,
// in module order.
func (s *Store) ModuleAnnotations(key adlast.ScopedName) []ModuleAnnotation {
	var out []ModuleAnnotation
	for _, name := range s.names {
		if v, ok := s.modules[name].Annotations.Get(key); ok {
			out = append(out, ModuleAnnotation{Module: name, Value: v})
		}
	}
	return out
}

// ModuleMap returns a shallow copy of the loaded modules keyed by name.
func (s *Store) ModuleMap() map[string]adlast.Module {
	return maps.Clone(s.modules)
}
