package gen

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/load"
	"github.com/syssam/adlschema/compiler/resolve"
)

// Graph is the resolved working set of a pipeline run. It is read-only
// once NewGraph returns and safe for concurrent use by targets.
type Graph struct {
	*Config
	// RunID identifies the run in logs.
	RunID string
	// Store is the declaration store the graph was built from.
	Store *load.Store
	// Decls is the closure of the roots, sorted by qualified name.
	// Generic declarations appear with open parameters.
	Decls []*resolve.ProjectedDecl
	// Instances are the monomorphic instances of generic declarations.
	Instances []*resolve.ProjectedDecl
	// Meta is the derived metadata of Decls and Instances.
	Meta *resolve.Meta

	tracker   *resolve.Tracker
	projector *resolve.Projector
	byName    map[adlast.ScopedName]*resolve.ProjectedDecl
	log       *slog.Logger

	mu     sync.Mutex
	blocks map[adlast.ScopedName]moduleBlock
	shapes map[string]*resolve.ProjectedDecl // keyed by qualified name or expression
}

type moduleBlock struct {
	value adlast.ModuleAnnotation
	err   error
}

// NewGraph resolves store under cfg: it selects the roots, collects their
// closure, records generic instances and derives the metadata table.
func NewGraph(ctx context.Context, cfg *Config, store *load.Store) (*Graph, error) {
	if cfg == nil {
		return nil, NewConfigError("Config", nil, "config cannot be nil")
	}
	if store == nil {
		return nil, NewConfigError("Store", nil, "store cannot be nil")
	}
	g := &Graph{
		Config:    cfg,
		RunID:     uuid.NewString(),
		Store:     store,
		projector: resolve.NewProjector(store, cfg.Wrappers),
		blocks:    make(map[adlast.ScopedName]moduleBlock),
		shapes:    make(map[string]*resolve.ProjectedDecl),
	}
	g.log = cfg.logger().With(slog.String("run_id", g.RunID))
	for _, m := range cfg.Modules {
		if _, ok := store.Module(m); !ok {
			return nil, NewConfigError("Modules", m, "module is not loaded")
		}
	}

	var decls []adlast.ScopedDecl
	err := store.ForEachDecl(func(sd adlast.ScopedDecl) error {
		if cfg.accept(sd) {
			decls = append(decls, sd)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	roots := resolve.Roots(decls, cfg.TableKeys...)
	g.log.Debug("graph roots selected", slog.Int("roots", len(roots)))

	collector := resolve.NewCollector(store, g.projector,
		resolve.WithWorkers(cfg.workers()),
		resolve.WithLogger(g.log),
	)
	if g.Decls, err = collector.Collect(ctx, roots, cfg.InFocus); err != nil {
		return nil, err
	}
	g.tracker = resolve.NewTracker(g.projector)
	if g.Instances, err = g.tracker.Run(g.Decls); err != nil {
		return nil, err
	}
	g.Meta = resolve.Propagate(g.All(), g.tracker)
	g.byName = make(map[adlast.ScopedName]*resolve.ProjectedDecl, len(g.Decls)+len(g.Instances))
	for _, pd := range g.All() {
		g.byName[pd.Name] = pd
	}
	g.log.Info("graph resolved",
		slog.Int("decls", len(g.Decls)),
		slog.Int("instances", len(g.Instances)),
	)
	return g, nil
}

// Logger returns the run logger.
func (g *Graph) Logger() *slog.Logger {
	return g.log
}

// Recognizer returns the wrapper recognizer of the run.
func (g *Graph) Recognizer() *resolve.Recognizer {
	return g.projector.Recognizer()
}

// Projector returns the projector of the run.
func (g *Graph) Projector() *resolve.Projector {
	return g.projector
}

// Tracker returns the instance tracker of the run.
func (g *Graph) Tracker() *resolve.Tracker {
	return g.tracker
}

// Resolve looks sn up in the store.
func (g *Graph) Resolve(sn adlast.ScopedName) (adlast.ScopedDecl, error) {
	return g.Store.Resolve(sn)
}

// All returns Decls followed by Instances.
func (g *Graph) All() []*resolve.ProjectedDecl {
	out := make([]*resolve.ProjectedDecl, 0, len(g.Decls)+len(g.Instances))
	out = append(out, g.Decls...)
	return append(out, g.Instances...)
}

// Concrete returns the non-generic declarations and instances, sorted by
// qualified name.
func (g *Graph) Concrete() []*resolve.ProjectedDecl {
	var out []*resolve.ProjectedDecl
	for _, pd := range g.All() {
		if !pd.Generic {
			out = append(out, pd)
		}
	}
	slices.SortFunc(out, func(a, b *resolve.ProjectedDecl) int { return a.Name.Compare(b.Name) })
	return out
}

// Decl returns the projected declaration or instance named sn.
func (g *Graph) Decl(sn adlast.ScopedName) (*resolve.ProjectedDecl, bool) {
	pd, ok := g.byName[sn]
	return pd, ok
}

// Annotated returns the projected declarations carrying key, sorted by
// qualified name.
func (g *Graph) Annotated(key adlast.ScopedName) []*resolve.ProjectedDecl {
	var out []*resolve.ProjectedDecl
	for _, pd := range g.Decls {
		if pd.Annotations.Has(key) {
			out = append(out, pd)
		}
	}
	return out
}

// ModuleBlock returns the single module-level key annotation among all
// loaded modules. The lookup runs once per key.
func (g *Graph) ModuleBlock(key adlast.ScopedName) (adlast.ModuleAnnotation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if mb, ok := g.blocks[key]; ok {
		return mb.value, mb.err
	}
	v, err := resolve.RequireModuleBlock(g.Store, key, nil)
	g.blocks[key] = moduleBlock{value: v, err: err}
	return v, err
}

// FirstModuleBlock returns the first module-level key annotation among all
// loaded modules, warning when several exist.
func (g *Graph) FirstModuleBlock(key adlast.ScopedName) (adlast.ModuleAnnotation, bool) {
	return resolve.FirstModuleBlock(g.Store, key, nil, g.log)
}

// Augmented returns a copy of the loaded modules in which every resolved
// declaration carries its derived annotations and every generic instance
// appears as a declaration of its generic's module.
func (g *Graph) Augmented() (map[string]adlast.Module, error) {
	modules := g.Store.ModuleMap()
	for name, m := range modules {
		m.Decls = maps.Clone(m.Decls)
		modules[name] = m
	}
	for _, pd := range g.All() {
		aug, err := g.Meta.Augment(pd)
		if err != nil {
			return nil, err
		}
		m, ok := modules[pd.Name.ModuleName]
		if !ok {
			return nil, fmt.Errorf("adlschema: no module %s for %s", pd.Name.ModuleName, pd.Name)
		}
		if pd.Instance {
			m.Decls[pd.Name.Name] = instanceDecl(aug)
			continue
		}
		decl := m.Decls[pd.Name.Name]
		decl.Annotations = aug.Annotations
		if pd.Shape == pd.Name {
			decl.Type = withFieldAnnotations(decl.Type, aug)
		}
		m.Decls[pd.Name.Name] = decl
	}
	return modules, nil
}

func instanceDecl(pd *resolve.ProjectedDecl) adlast.Decl {
	fields := make([]adlast.Field, len(pd.Fields))
	for i, f := range pd.Fields {
		fields[i] = f.Field
	}
	d := adlast.Decl{Name: pd.Name.Name, Annotations: pd.Annotations}
	if pd.Kind == adlast.KindUnion {
		d.Type = adlast.Union{Fields: fields}
	} else {
		d.Type = adlast.Struct{Fields: fields}
	}
	return d
}

func withFieldAnnotations(dt adlast.DeclType, pd *resolve.ProjectedDecl) adlast.DeclType {
	annotate := func(fields []adlast.Field) []adlast.Field {
		out := slices.Clone(fields)
		for i, f := range out {
			if cf, ok := pd.Field(f.Name); ok {
				out[i].Annotations = cf.Annotations
			}
		}
		return out
	}
	switch t := dt.(type) {
	case adlast.Struct:
		t.Fields = annotate(t.Fields)
		return t
	case adlast.Union:
		t.Fields = annotate(t.Fields)
		return t
	default:
		return dt
	}
}
