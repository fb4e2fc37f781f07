package resolve

import (
	"encoding/json"
	"slices"

	"github.com/syssam/adlschema/adlast"
)

// DerivedModule is the module of the annotation keys written by Augment.
const DerivedModule = "adlschema.derived"

// Derived annotation keys.
var (
	ConcreteKey      = adlast.NewScopedName(DerivedModule, "Concrete")
	ReferencedKey    = adlast.NewScopedName(DerivedModule, "Referenced")
	CardinalityKey   = adlast.NewScopedName(DerivedModule, "Cardinality")
	MonomorphizedKey = adlast.NewScopedName(DerivedModule, "Monomorphized")
	InstancesKey     = adlast.NewScopedName(DerivedModule, "Instances")
)

// DeclMeta is the metadata derived for one declaration. Meta hands out
// copies, so changing one does not affect the table.
type DeclMeta struct {
	Concrete bool
	Generic  bool
	// Referenced is set when a reference wrapper in the working set targets
	// the declaration.
	Referenced   bool
	External     bool
	ReferencedBy []string
	Instances    []*GenericInstance
}

// FieldMeta is the metadata derived for one field.
type FieldMeta struct {
	Cardinality   Cardinality
	Concrete      bool
	Monomorphized bool
	Instance      string // instance name of a monomorphized field
	Link          *adlast.ScopedName
}

// FieldKey identifies a field of a projected declaration.
type FieldKey struct {
	Decl  adlast.ScopedName
	Field string
}

// Meta is the immutable side-table of derived metadata. Emitters read it
// instead of deriving the metadata again.
type Meta struct {
	decls  map[adlast.ScopedName]DeclMeta
	fields map[FieldKey]FieldMeta
	names  []adlast.ScopedName
}

// Propagate derives the metadata of decls, including any instances
// recorded by tracker. A nil tracker records no instances.
func Propagate(decls []*ProjectedDecl, tracker *Tracker) *Meta {
	m := &Meta{
		decls:  make(map[adlast.ScopedName]DeclMeta, len(decls)),
		fields: make(map[FieldKey]FieldMeta),
	}
	referencedBy := make(map[adlast.ScopedName][]string)
	for _, pd := range decls {
		for _, f := range pd.Fields {
			for _, target := range f.References {
				referencedBy[target] = append(referencedBy[target], pd.Name.Name+"::"+f.Name)
			}
		}
	}
	for _, pd := range decls {
		dm := DeclMeta{
			Concrete:     !pd.Generic,
			Generic:      pd.Generic,
			External:     pd.External,
			ReferencedBy: referencedBy[pd.Name],
		}
		dm.Referenced = len(dm.ReferencedBy) > 0
		if tracker != nil && !pd.Instance {
			dm.Instances = tracker.Instances(pd.Name)
		}
		m.decls[pd.Name] = dm.clone()
		m.names = append(m.names, pd.Name)
		for _, f := range pd.Fields {
			fm := FieldMeta{
				Cardinality:   f.Cardinality,
				Concrete:      f.Concrete,
				Monomorphized: f.Monomorphized,
				Link:          f.Link,
			}
			if f.Monomorphized && tracker != nil {
				if core, err := tracker.projector.rec.Core(f.TypeExpr); err == nil {
					fm.Instance = tracker.NameOf(core)
				}
			}
			m.fields[FieldKey{Decl: pd.Name, Field: f.Name}] = fm
		}
	}
	slices.SortFunc(m.names, adlast.ScopedName.Compare)
	return m
}

// Decls returns the names of every declaration in the table, sorted.
func (m *Meta) Decls() []adlast.ScopedName {
	return slices.Clone(m.names)
}

// Decl returns the metadata of sn.
func (m *Meta) Decl(sn adlast.ScopedName) (DeclMeta, bool) {
	dm, ok := m.decls[sn]
	return dm.clone(), ok
}

// MustDecl is like Decl but fails with ErrMissingRequiredAnnotation when sn
// was not part of the pass.
func (m *Meta) MustDecl(sn adlast.ScopedName) (DeclMeta, error) {
	dm, ok := m.decls[sn]
	if !ok {
		return DeclMeta{}, NewError(ErrMissingRequiredAnnotation, sn, "", "no derived metadata for declaration")
	}
	return dm.clone(), nil
}

func (dm DeclMeta) clone() DeclMeta {
	dm.ReferencedBy = slices.Clone(dm.ReferencedBy)
	if dm.Instances != nil {
		instances := make([]*GenericInstance, len(dm.Instances))
		for i, gi := range dm.Instances {
			instances[i] = gi.Clone()
		}
		dm.Instances = instances
	}
	return dm
}

// Field returns the metadata of a field, failing with
// ErrMissingRequiredAnnotation when the field was not part of the pass.
func (m *Meta) Field(sn adlast.ScopedName, field string) (FieldMeta, error) {
	fm, ok := m.fields[FieldKey{Decl: sn, Field: field}]
	if !ok {
		return FieldMeta{}, NewError(ErrMissingRequiredAnnotation, sn, field, "no derived metadata for field")
	}
	if fm.Link != nil {
		link := *fm.Link
		fm.Link = &link
	}
	return fm, nil
}

// Annotations returns the derived declaration annotations of sn.
func (m *Meta) Annotations(sn adlast.ScopedName) (adlast.Annotations, error) {
	dm, err := m.MustDecl(sn)
	if err != nil {
		return nil, err
	}
	anns := adlast.Annotations{}.
		With(ConcreteKey, marshal(dm.Concrete)).
		With(ReferencedKey, marshal(dm.Referenced))
	if len(dm.Instances) > 0 {
		names := make([]string, len(dm.Instances))
		for i, gi := range dm.Instances {
			names[i] = gi.Name
		}
		anns = anns.With(InstancesKey, marshal(names))
	}
	return anns, nil
}

// FieldAnnotations returns the derived annotations of a field.
func (m *Meta) FieldAnnotations(sn adlast.ScopedName, field string) (adlast.Annotations, error) {
	fm, err := m.Field(sn, field)
	if err != nil {
		return nil, err
	}
	return adlast.Annotations{}.
		With(CardinalityKey, marshal(fm.Cardinality)).
		With(MonomorphizedKey, marshal(fm.Monomorphized)).
		With(ConcreteKey, marshal(fm.Concrete)), nil
}

// Augment returns a copy of pd whose declaration and field annotations
// carry the derived metadata. Existing derived keys are replaced, so
// augmenting twice yields the same result.
func (m *Meta) Augment(pd *ProjectedDecl) (*ProjectedDecl, error) {
	derived, err := m.Annotations(pd.Name)
	if err != nil {
		return nil, err
	}
	out := *pd
	out.Annotations = merge(pd.Annotations, derived)
	out.Fields = make([]ConcreteField, len(pd.Fields))
	for i, f := range pd.Fields {
		fa, err := m.FieldAnnotations(pd.Name, f.Name)
		if err != nil {
			return nil, err
		}
		f.Annotations = merge(f.Annotations, fa)
		out.Fields[i] = f
	}
	return &out, nil
}

func merge(base, derived adlast.Annotations) adlast.Annotations {
	out := base.Clone()
	for _, a := range derived {
		out = out.With(a.Key, a.Value)
	}
	return out
}

func marshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
