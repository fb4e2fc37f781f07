package adlast

import (
	"encoding/json"
	"fmt"
)

// Maybe is the JSON encoding of sys.types.Maybe: {"kind":"nothing"} or
// {"kind":"just","value":...}.
type Maybe struct {
	Just  bool
	Value json.RawMessage
}

// Nothing is the empty Maybe.
var Nothing = Maybe{}

// Just returns a Maybe holding v.
func Just(v json.RawMessage) Maybe {
	return Maybe{Just: true, Value: v}
}

type taggedJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m Maybe) MarshalJSON() ([]byte, error) {
	if !m.Just {
		return []byte(`{"kind":"nothing"}`), nil
	}
	v := m.Value
	if len(v) == 0 {
		v = json.RawMessage("null")
	}
	return json.Marshal(taggedJSON{Kind: "just", Value: v})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Maybe) UnmarshalJSON(data []byte) error {
	var t taggedJSON
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	switch t.Kind {
	case "nothing", "":
		*m = Nothing
	case "just":
		*m = Maybe{Just: true, Value: t.Value}
	default:
		return fmt.Errorf("adlast: unknown maybe kind %q", t.Kind)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Annotations) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Annotation(a))
}

type typeExprJSON struct {
	TypeRef    taggedJSON `json:"typeRef"`
	Parameters []TypeExpr `json:"parameters"`
}

// MarshalJSON implements json.Marshaler.
func (t TypeExpr) MarshalJSON() ([]byte, error) {
	var (
		out typeExprJSON
		err error
	)
	switch r := t.TypeRef.(type) {
	case Primitive:
		out.TypeRef.Value, err = json.Marshal(r.Name)
	case Reference:
		out.TypeRef.Value, err = json.Marshal(r.Name)
	case TypeParam:
		out.TypeRef.Value, err = json.Marshal(r.Name)
	default:
		return nil, fmt.Errorf("adlast: cannot encode type ref %T", t.TypeRef)
	}
	if err != nil {
		return nil, err
	}
	out.TypeRef.Kind = string(t.TypeRef.Kind())
	out.Parameters = t.Parameters
	if out.Parameters == nil {
		out.Parameters = []TypeExpr{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TypeExpr) UnmarshalJSON(data []byte) error {
	var in typeExprJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch TypeRefKind(in.TypeRef.Kind) {
	case KindPrimitive:
		var name string
		if err := json.Unmarshal(in.TypeRef.Value, &name); err != nil {
			return fmt.Errorf("adlast: primitive: %w", err)
		}
		t.TypeRef = Primitive{Name: name}
	case KindReference:
		var sn ScopedName
		if err := json.Unmarshal(in.TypeRef.Value, &sn); err != nil {
			return fmt.Errorf("adlast: reference: %w", err)
		}
		t.TypeRef = Reference{Name: sn}
	case KindTypeParam:
		var name string
		if err := json.Unmarshal(in.TypeRef.Value, &name); err != nil {
			return fmt.Errorf("adlast: type param: %w", err)
		}
		t.TypeRef = TypeParam{Name: name}
	default:
		return fmt.Errorf("adlast: unknown type ref kind %q", in.TypeRef.Kind)
	}
	t.Parameters = in.Parameters
	if len(t.Parameters) == 0 {
		t.Parameters = nil
	}
	return nil
}

type declJSON struct {
	Name        string      `json:"name"`
	Version     Maybe       `json:"version"`
	Type        taggedJSON  `json:"type_"`
	Annotations Annotations `json:"annotations"`
}

// MarshalJSON implements json.Marshaler.
func (d Decl) MarshalJSON() ([]byte, error) {
	if d.Type == nil {
		return nil, fmt.Errorf("adlast: decl %s has no body", d.Name)
	}
	body, err := json.Marshal(withEmptySlices(d.Type))
	if err != nil {
		return nil, err
	}
	return json.Marshal(declJSON{
		Name:        d.Name,
		Version:     d.Version,
		Type:        taggedJSON{Kind: string(d.Type.Kind()), Value: body},
		Annotations: d.Annotations,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Decl) UnmarshalJSON(data []byte) error {
	var in declJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var (
		body DeclType
		err  error
	)
	switch DeclKind(in.Type.Kind) {
	case KindStruct:
		var v Struct
		err = json.Unmarshal(in.Type.Value, &v)
		body = v
	case KindUnion:
		var v Union
		err = json.Unmarshal(in.Type.Value, &v)
		body = v
	case KindTypeDef:
		var v TypeDef
		err = json.Unmarshal(in.Type.Value, &v)
		body = v
	case KindNewType:
		var v NewType
		err = json.Unmarshal(in.Type.Value, &v)
		body = v
	default:
		return fmt.Errorf("adlast: decl %s: unknown kind %q", in.Name, in.Type.Kind)
	}
	if err != nil {
		return fmt.Errorf("adlast: decl %s: %w", in.Name, err)
	}
	*d = Decl{Name: in.Name, Version: in.Version, Type: body, Annotations: in.Annotations}
	return nil
}

func withEmptySlices(d DeclType) DeclType {
	params := func(p []string) []string {
		if p == nil {
			return []string{}
		}
		return p
	}
	fields := func(f []Field) []Field {
		if f == nil {
			return []Field{}
		}
		return f
	}
	return MatchDecl(d,
		func(s Struct) DeclType { return Struct{TypeParams: params(s.TypeParams), Fields: fields(s.Fields)} },
		func(u Union) DeclType { return Union{TypeParams: params(u.TypeParams), Fields: fields(u.Fields)} },
		func(t TypeDef) DeclType { return TypeDef{TypeParams: params(t.TypeParams), TypeExpr: t.TypeExpr} },
		func(n NewType) DeclType {
			return NewType{TypeParams: params(n.TypeParams), TypeExpr: n.TypeExpr, Default: n.Default}
		},
	)
}

// MarshalJSON implements json.Marshaler.
func (i Import) MarshalJSON() ([]byte, error) {
	if i.ScopedName != nil {
		v, err := json.Marshal(i.ScopedName)
		if err != nil {
			return nil, err
		}
		return json.Marshal(taggedJSON{Kind: "scopedName", Value: v})
	}
	v, err := json.Marshal(i.ModuleName)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedJSON{Kind: "moduleName", Value: v})
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Import) UnmarshalJSON(data []byte) error {
	var t taggedJSON
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	switch t.Kind {
	case "moduleName":
		*i = Import{}
		return json.Unmarshal(t.Value, &i.ModuleName)
	case "scopedName":
		var sn ScopedName
		if err := json.Unmarshal(t.Value, &sn); err != nil {
			return err
		}
		*i = Import{ModuleName: sn.ModuleName, ScopedName: &sn}
		return nil
	default:
		return fmt.Errorf("adlast: unknown import kind %q", t.Kind)
	}
}

type moduleJSON Module

// MarshalJSON implements json.Marshaler.
func (m Module) MarshalJSON() ([]byte, error) {
	out := moduleJSON(m)
	if out.Imports == nil {
		out.Imports = []Import{}
	}
	if out.Decls == nil {
		out.Decls = map[string]Decl{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. The map key of each
// declaration wins over a missing inner name.
func (m *Module) UnmarshalJSON(data []byte) error {
	var in moduleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	for k, d := range in.Decls {
		if d.Name == "" {
			d.Name = k
			in.Decls[k] = d
		}
	}
	*m = Module(in)
	return nil
}
