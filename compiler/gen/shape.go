package gen

import (
	"fmt"

	"github.com/syssam/adlschema/adlast"
	"github.com/syssam/adlschema/compiler/resolve"
)

// maxShapeExpansion bounds alias and newtype chains followed by Shape.
const maxShapeExpansion = 64

// Shape returns the struct or union te denotes once aliases and newtypes
// are expanded. Generic applications yield their monomorphic instance.
// Declarations absent from the graph are projected on first use and cached.
// Shape returns nil when the expansion ends in a primitive, a wrapper or a
// type parameter.
func (g *Graph) Shape(te adlast.TypeExpr) (*resolve.ProjectedDecl, error) {
	rec := g.Recognizer()
	for range maxShapeExpansion {
		sn, ok := te.Reference()
		if !ok {
			return nil, nil
		}
		w, err := rec.Classify(te)
		if err != nil {
			return nil, err
		}
		if w.Kind != resolve.Plain {
			return nil, nil
		}
		next, expanded, err := rec.ExpandOnce(te)
		if err != nil {
			return nil, err
		}
		if !expanded {
			return g.shape(sn, te)
		}
		te = next
	}
	return nil, fmt.Errorf("gen: expansion of %s does not terminate", te)
}

func (g *Graph) shape(sn adlast.ScopedName, te adlast.TypeExpr) (*resolve.ProjectedDecl, error) {
	name, key := sn, sn.String()
	if len(te.Parameters) > 0 {
		name = adlast.NewScopedName(sn.ModuleName, g.tracker.NameOf(te))
		key = te.ScopedString()
	}
	if pd, ok := g.byName[name]; ok {
		return pd, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if pd, ok := g.shapes[key]; ok {
		return pd, nil
	}
	var (
		pd  *resolve.ProjectedDecl
		err error
	)
	if len(te.Parameters) > 0 {
		if pd, err = g.projector.ProjectTypeExpr(te); err == nil {
			pd.Name = name
			pd.Instance = true
		}
	} else {
		var sd adlast.ScopedDecl
		if sd, err = g.Resolve(sn); err == nil {
			pd, err = g.projector.Project(sd, nil)
		}
	}
	if err != nil {
		return nil, err
	}
	pd.External = !g.InFocus(pd.Name)
	g.shapes[key] = pd
	return pd, nil
}
