package load

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/adlschema/adlast"
)

// cacheVersion is bumped whenever the wire layout below changes.
const cacheVersion = 1

// Wire structs mirror the adlast model with concrete fields only, so that
// msgpack can encode them without knowing about the sealed interfaces.
type (
	wireBundle struct {
		Version int          `msgpack:"v"`
		Modules []wireModule `msgpack:"m"`
	}
	wireModule struct {
		Name        string              `msgpack:"n"`
		Imports     []wireImport        `msgpack:"i,omitempty"`
		Decls       map[string]wireDecl `msgpack:"d"`
		Annotations []wireAnnotation    `msgpack:"a,omitempty"`
	}
	wireImport struct {
		Module string `msgpack:"m"`
		Name   string `msgpack:"n,omitempty"`
	}
	wireDecl struct {
		Name        string           `msgpack:"n"`
		Version     wireMaybe        `msgpack:"v"`
		Kind        adlast.DeclKind  `msgpack:"k"`
		TypeParams  []string         `msgpack:"p,omitempty"`
		Fields      []wireField      `msgpack:"f,omitempty"`
		TypeExpr    *wireTypeExpr    `msgpack:"t,omitempty"`
		Default     wireMaybe        `msgpack:"df"`
		Annotations []wireAnnotation `msgpack:"a,omitempty"`
	}
	wireField struct {
		Name           string           `msgpack:"n"`
		SerializedName string           `msgpack:"s"`
		TypeExpr       wireTypeExpr     `msgpack:"t"`
		Default        wireMaybe        `msgpack:"d"`
		Annotations    []wireAnnotation `msgpack:"a,omitempty"`
	}
	wireTypeExpr struct {
		Kind   adlast.TypeRefKind `msgpack:"k"`
		Module string             `msgpack:"m,omitempty"`
		Name   string             `msgpack:"n"`
		Params []wireTypeExpr     `msgpack:"p,omitempty"`
	}
	wireMaybe struct {
		Just  bool   `msgpack:"j"`
		Value []byte `msgpack:"v,omitempty"`
	}
	wireAnnotation struct {
		Module string `msgpack:"m"`
		Name   string `msgpack:"n"`
		Value  []byte `msgpack:"v"`
	}
)

func encodeCached(modules []adlast.Module) ([]byte, error) {
	b := wireBundle{Version: cacheVersion, Modules: make([]wireModule, len(modules))}
	for i, m := range modules {
		b.Modules[i] = toWireModule(m)
	}
	return msgpack.Marshal(&b)
}

func decodeCached(data []byte) ([]adlast.Module, error) {
	var b wireBundle
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if b.Version != cacheVersion {
		return nil, fmt.Errorf("cache version %d, want %d", b.Version, cacheVersion)
	}
	out := make([]adlast.Module, len(b.Modules))
	for i, m := range b.Modules {
		mod, err := fromWireModule(m)
		if err != nil {
			return nil, err
		}
		out[i] = mod
	}
	return out, nil
}

func toWireModule(m adlast.Module) wireModule {
	w := wireModule{
		Name:        m.Name,
		Decls:       make(map[string]wireDecl, len(m.Decls)),
		Annotations: toWireAnnotations(m.Annotations),
	}
	for _, imp := range m.Imports {
		wi := wireImport{Module: imp.ModuleName}
		if imp.ScopedName != nil {
			wi.Name = imp.ScopedName.Name
		}
		w.Imports = append(w.Imports, wi)
	}
	for k, d := range m.Decls {
		w.Decls[k] = toWireDecl(d)
	}
	return w
}

func fromWireModule(w wireModule) (adlast.Module, error) {
	m := adlast.Module{
		Name:        w.Name,
		Decls:       make(map[string]adlast.Decl, len(w.Decls)),
		Annotations: fromWireAnnotations(w.Annotations),
	}
	for _, wi := range w.Imports {
		imp := adlast.Import{ModuleName: wi.Module}
		if wi.Name != "" {
			sn := adlast.NewScopedName(wi.Module, wi.Name)
			imp.ScopedName = &sn
		}
		m.Imports = append(m.Imports, imp)
	}
	for k, wd := range w.Decls {
		d, err := fromWireDecl(wd)
		if err != nil {
			return adlast.Module{}, fmt.Errorf("module %s: %w", w.Name, err)
		}
		m.Decls[k] = d
	}
	return m, nil
}

func toWireDecl(d adlast.Decl) wireDecl {
	w := wireDecl{
		Name:        d.Name,
		Version:     toWireMaybe(d.Version),
		Kind:        d.Kind(),
		TypeParams:  d.TypeParams(),
		Annotations: toWireAnnotations(d.Annotations),
	}
	for _, f := range d.Fields() {
		w.Fields = append(w.Fields, wireField{
			Name:           f.Name,
			SerializedName: f.SerializedName,
			TypeExpr:       toWireTypeExpr(f.TypeExpr),
			Default:        toWireMaybe(f.Default),
			Annotations:    toWireAnnotations(f.Annotations),
		})
	}
	if te, ok := adlast.Wrapped(d.Type); ok {
		wt := toWireTypeExpr(te)
		w.TypeExpr = &wt
	}
	if nt, ok := d.Type.(adlast.NewType); ok {
		w.Default = toWireMaybe(nt.Default)
	}
	return w
}

func fromWireDecl(w wireDecl) (adlast.Decl, error) {
	d := adlast.Decl{
		Name:        w.Name,
		Version:     fromWireMaybe(w.Version),
		Annotations: fromWireAnnotations(w.Annotations),
	}
	var fields []adlast.Field
	for _, f := range w.Fields {
		fields = append(fields, adlast.Field{
			Name:           f.Name,
			SerializedName: f.SerializedName,
			TypeExpr:       fromWireTypeExpr(f.TypeExpr),
			Default:        fromWireMaybe(f.Default),
			Annotations:    fromWireAnnotations(f.Annotations),
		})
	}
	var te adlast.TypeExpr
	if w.TypeExpr != nil {
		te = fromWireTypeExpr(*w.TypeExpr)
	}
	switch w.Kind {
	case adlast.KindStruct:
		d.Type = adlast.Struct{TypeParams: w.TypeParams, Fields: fields}
	case adlast.KindUnion:
		d.Type = adlast.Union{TypeParams: w.TypeParams, Fields: fields}
	case adlast.KindTypeDef:
		d.Type = adlast.TypeDef{TypeParams: w.TypeParams, TypeExpr: te}
	case adlast.KindNewType:
		d.Type = adlast.NewType{TypeParams: w.TypeParams, TypeExpr: te, Default: fromWireMaybe(w.Default)}
	default:
		return adlast.Decl{}, fmt.Errorf("decl %s: unknown kind %q", w.Name, w.Kind)
	}
	return d, nil
}

func toWireTypeExpr(t adlast.TypeExpr) wireTypeExpr {
	w := adlast.MatchTypeRef(t.TypeRef,
		func(p adlast.Primitive) wireTypeExpr { return wireTypeExpr{Kind: adlast.KindPrimitive, Name: p.Name} },
		func(r adlast.Reference) wireTypeExpr {
			return wireTypeExpr{Kind: adlast.KindReference, Module: r.Name.ModuleName, Name: r.Name.Name}
		},
		func(p adlast.TypeParam) wireTypeExpr { return wireTypeExpr{Kind: adlast.KindTypeParam, Name: p.Name} },
	)
	for _, p := range t.Parameters {
		w.Params = append(w.Params, toWireTypeExpr(p))
	}
	return w
}

func fromWireTypeExpr(w wireTypeExpr) adlast.TypeExpr {
	var t adlast.TypeExpr
	switch w.Kind {
	case adlast.KindReference:
		t.TypeRef = adlast.Reference{Name: adlast.NewScopedName(w.Module, w.Name)}
	case adlast.KindTypeParam:
		t.TypeRef = adlast.TypeParam{Name: w.Name}
	default:
		t.TypeRef = adlast.Primitive{Name: w.Name}
	}
	for _, p := range w.Params {
		t.Parameters = append(t.Parameters, fromWireTypeExpr(p))
	}
	return t
}

func toWireMaybe(m adlast.Maybe) wireMaybe {
	return wireMaybe{Just: m.Just, Value: m.Value}
}

func fromWireMaybe(w wireMaybe) adlast.Maybe {
	if !w.Just {
		return adlast.Nothing
	}
	return adlast.Just(json.RawMessage(w.Value))
}

func toWireAnnotations(anns adlast.Annotations) []wireAnnotation {
	if len(anns) == 0 {
		return nil
	}
	out := make([]wireAnnotation, len(anns))
	for i, a := range anns {
		out[i] = wireAnnotation{Module: a.Key.ModuleName, Name: a.Key.Name, Value: a.Value}
	}
	return out
}

func fromWireAnnotations(w []wireAnnotation) adlast.Annotations {
	if len(w) == 0 {
		return nil
	}
	out := make(adlast.Annotations, len(w))
	for i, a := range w {
		out[i] = adlast.Annotation{Key: adlast.NewScopedName(a.Module, a.Name), Value: json.RawMessage(a.Value)}
	}
	return out
}
