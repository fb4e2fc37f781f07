package resolve

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"sync"

	"github.com/syssam/adlschema/adlast"
)

// GenericInstance is one concrete instantiation of a generic declaration.
type GenericInstance struct {
	Name     string
	Generic  adlast.ScopedName
	TypeExpr adlast.TypeExpr
	// ReferencedBy holds one "Decl::field" entry per use site, in
	// recording order and including repeats.
	ReferencedBy []string
}

// ScopedName returns the instance name qualified with the module of the
// generic declaration.
func (gi *GenericInstance) ScopedName() adlast.ScopedName {
	return adlast.NewScopedName(gi.Generic.ModuleName, gi.Name)
}

// Clone returns a deep copy of gi.
func (gi *GenericInstance) Clone() *GenericInstance {
	return &GenericInstance{
		Name:         gi.Name,
		Generic:      gi.Generic,
		TypeExpr:     gi.TypeExpr.Clone(),
		ReferencedBy: slices.Clone(gi.ReferencedBy),
	}
}

// InstanceName returns the readable name of the instantiation t, for
// example "_Pair_Int32_String". Structurally equal expressions yield the
// same name. Module paths are dropped and underscores are not escaped, so
// different expressions may share it; the Tracker disambiguates those.
func InstanceName(t adlast.TypeExpr) string {
	var b strings.Builder
	writeInstanceName(&b, t)
	return b.String()
}

func writeInstanceName(b *strings.Builder, t adlast.TypeExpr) {
	name := adlast.MatchTypeRef(t.TypeRef,
		func(p adlast.Primitive) string { return p.Name },
		func(r adlast.Reference) string { return r.Name.Name },
		func(p adlast.TypeParam) string { return p.Name },
	)
	if len(t.Parameters) == 0 {
		b.WriteString(name)
		return
	}
	if _, ok := t.TypeRef.(adlast.Reference); ok {
		b.WriteByte('_')
	}
	b.WriteString(name)
	for _, p := range t.Parameters {
		b.WriteByte('_')
		writeInstanceName(b, p)
	}
}

// MaxInstanceDepth bounds the nesting of instances created while expanding
// instance bodies. Generic declarations that instantiate themselves with
// growing arguments never converge.
const MaxInstanceDepth = 16

// Tracker records the instantiations of generic declarations. It is safe
// for concurrent use.
type Tracker struct {
	projector *Projector

	mu        sync.Mutex
	instances map[adlast.ScopedName]map[string]*GenericInstance
	names     map[string]string         // instance name keyed by qualified expression
	decls     map[string]*ProjectedDecl // keyed by qualified instance name
}

// NewTracker returns an empty tracker that projects instance bodies with p.
func NewTracker(p *Projector) *Tracker {
	return &Tracker{
		projector: p,
		instances: make(map[adlast.ScopedName]map[string]*GenericInstance),
		names:     make(map[string]string),
		decls:     make(map[string]*ProjectedDecl),
	}
}

// Record registers the instantiation used by a monomorphized field of
// owner. It reports whether a new instance was created. Fields that are
// not monomorphized are ignored.
func (t *Tracker) Record(owner string, f ConcreteField) (*GenericInstance, bool, error) {
	if !f.Monomorphized {
		return nil, false, nil
	}
	core, err := t.projector.rec.Core(f.TypeExpr)
	if err != nil {
		return nil, false, err
	}
	generic, _ := core.Reference()
	key := core.ScopedString()

	t.mu.Lock()
	defer t.mu.Unlock()
	byName, ok := t.instances[generic]
	if !ok {
		byName = make(map[string]*GenericInstance)
		t.instances[generic] = byName
	}
	provenance := owner + "::" + f.Name
	if name, ok := t.names[key]; ok {
		gi := byName[name]
		gi.ReferencedBy = append(gi.ReferencedBy, provenance)
		return gi, false, nil
	}
	name := uniqueName(byName, core, key)
	if gi, ok := byName[name]; ok {
		return nil, false, &ResolveError{
			Rule:  ErrInstanceNameConflict,
			Decl:  generic,
			Field: f.Name,
			Message: fmt.Sprintf("%s and %s both name instance %s",
				gi.TypeExpr.ScopedString(), key, name),
		}
	}
	gi := &GenericInstance{
		Name:         name,
		Generic:      generic,
		TypeExpr:     core.Clone(),
		ReferencedBy: []string{provenance},
	}
	byName[name] = gi
	t.names[key] = name
	return gi, true, nil
}

// NameOf returns the instance name of the generic application core: the
// recorded name when core was recorded, otherwise the name Record would
// give it now.
func (t *Tracker) NameOf(core adlast.TypeExpr) string {
	key := core.ScopedString()
	t.mu.Lock()
	defer t.mu.Unlock()
	if name, ok := t.names[key]; ok {
		return name
	}
	generic, _ := core.Reference()
	return uniqueName(t.instances[generic], core, key)
}

// uniqueName returns the readable name of core, or, when a different
// instantiation already holds it, the readable name suffixed with a hash of
// the qualified expression.
func uniqueName(byName map[string]*GenericInstance, core adlast.TypeExpr, key string) string {
	name := InstanceName(core)
	gi, ok := byName[name]
	if !ok || gi.TypeExpr.Equal(core) {
		return name
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return fmt.Sprintf("%s_%08x", name, h.Sum32())
}

// Run records every monomorphized field of decls, then projects each new
// instance and records the instantiations its own fields use, until no new
// instance appears. It returns the projected instances sorted by name.
func (t *Tracker) Run(decls []*ProjectedDecl) ([]*ProjectedDecl, error) {
	var pending []*GenericInstance
	for _, pd := range decls {
		if pd.Generic {
			continue
		}
		for _, f := range pd.Fields {
			gi, added, err := t.Record(pd.Name.Name, f)
			if err != nil {
				return nil, locate(err, pd.Name, f.Name, pd.Path)
			}
			if added {
				pending = append(pending, gi)
			}
		}
	}
	for depth := 0; len(pending) > 0; depth++ {
		if depth >= MaxInstanceDepth {
			names := make([]string, len(pending))
			for i, gi := range pending {
				names[i] = gi.Name
			}
			return nil, &ResolveError{
				Rule:    ErrInstanceExpansion,
				Decl:    pending[0].Generic,
				Message: fmt.Sprintf("still expanding after %d rounds: %s", depth, strings.Join(names, ", ")),
			}
		}
		var next []*GenericInstance
		for _, gi := range pending {
			pd, err := t.projector.ProjectTypeExpr(gi.TypeExpr)
			if err != nil {
				return nil, err
			}
			pd.Name = gi.ScopedName()
			pd.Instance = true
			pd.Generic = false
			t.mu.Lock()
			t.decls[pd.Name.String()] = pd
			t.mu.Unlock()
			for _, f := range pd.Fields {
				child, added, err := t.Record(gi.Name, f)
				if err != nil {
					return nil, locate(err, gi.Generic, f.Name, nil)
				}
				if added {
					next = append(next, child)
				}
			}
		}
		pending = next
	}
	return t.InstanceDecls(), nil
}

// Instances returns the instances of generic sorted by name.
func (t *Tracker) Instances(generic adlast.ScopedName) []*GenericInstance {
	t.mu.Lock()
	defer t.mu.Unlock()
	byName := t.instances[generic]
	out := make([]*GenericInstance, 0, len(byName))
	for _, gi := range byName {
		out = append(out, gi)
	}
	slices.SortFunc(out, func(a, b *GenericInstance) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Table returns the instance table keyed by generic declaration.
func (t *Tracker) Table() map[adlast.ScopedName][]*GenericInstance {
	t.mu.Lock()
	generics := make([]adlast.ScopedName, 0, len(t.instances))
	for sn := range t.instances {
		generics = append(generics, sn)
	}
	t.mu.Unlock()
	table := make(map[adlast.ScopedName][]*GenericInstance, len(generics))
	for _, sn := range generics {
		table[sn] = t.Instances(sn)
	}
	return table
}

// InstanceDecls returns the projected instances sorted by qualified name.
func (t *Tracker) InstanceDecls() []*ProjectedDecl {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*ProjectedDecl, 0, len(t.decls))
	for _, pd := range t.decls {
		out = append(out, pd)
	}
	slices.SortFunc(out, func(a, b *ProjectedDecl) int { return a.Name.Compare(b.Name) })
	return out
}
