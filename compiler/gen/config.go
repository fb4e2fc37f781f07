package gen

import (
	"log/slog"
	"runtime"
	"slices"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/resolve"
)

// Well-known annotations that make an alias or newtype a root of the graph.
var (
	DbTable = adlast.NewScopedName("common.db", "DbTable")
	DbView  = adlast.NewScopedName("common.db", "DbView")
)

// Config holds the global configuration of a pipeline run.
type Config struct {
	// Target is the directory generated files are written to.
	Target string
	// Header is written at the top of generated Go files.
	Header string
	// Modules are the modules whose declarations seed the graph.
	// Empty means every loaded module.
	Modules []string
	// Focus restricts both the roots and the set of declarations that
	// are not marked external. Empty means everything is in focus.
	Focus []string
	// Filter drops root declarations. Nil accepts all.
	Filter func(adlast.ScopedDecl) bool
	// Wrappers names the list, optional, map and reference wrappers.
	Wrappers resolve.Wrappers
	// TableKeys are the annotations under which alias and newtype
	// declarations become roots.
	TableKeys []adlast.ScopedName
	// Workers bounds the parallelism of projection, targets and writes.
	Workers int
	// Logger receives pipeline progress. Never nil after NewConfig.
	Logger *slog.Logger
	// Verbose logs every written file.
	Verbose bool
}

// InModules reports whether module is one of the configured modules.
func (c *Config) InModules(module string) bool {
	return len(c.Modules) == 0 || slices.Contains(c.Modules, module)
}

// InFocus reports whether sn belongs to a focus module.
func (c *Config) InFocus(sn adlast.ScopedName) bool {
	return len(c.Focus) == 0 || slices.Contains(c.Focus, sn.ModuleName)
}

// accept reports whether sd seeds the graph.
func (c *Config) accept(sd adlast.ScopedDecl) bool {
	if !c.InModules(sd.ModuleName) || !c.InFocus(sd.Name()) {
		return false
	}
	return c.Filter == nil || c.Filter(sd)
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func defaultConfig() *Config {
	return &Config{
		Wrappers:  resolve.DefaultWrappers(),
		TableKeys: []adlast.ScopedName{DbTable, DbView},
		Workers:   runtime.GOMAXPROCS(0),
		Logger:    slog.Default(),
	}
}
