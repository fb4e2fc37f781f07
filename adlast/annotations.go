package adlast

import (
	"encoding/json"
	"fmt"
)

// Annotation is a single key/value annotation. Keys are declarations,
// values are arbitrary JSON.
type Annotation struct {
	Key   ScopedName      `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Annotations is the ordered annotation list of a module, declaration or field.
type Annotations []Annotation

// Get returns the value stored under key. Keys compare by value.
func (a Annotations) Get(key ScopedName) (json.RawMessage, bool) {
	for _, ann := range a {
		if ann.Key == key {
			return ann.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (a Annotations) Has(key ScopedName) bool {
	_, ok := a.Get(key)
	return ok
}

// Decode unmarshals the value under key into v. It reports false when the
// key is absent.
func (a Annotations) Decode(key ScopedName, v any) (bool, error) {
	raw, ok := a.Get(key)
	if !ok {
		return false, nil
	}
	if len(raw) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("annotation %s: %w", key, err)
	}
	return true, nil
}

// String returns the value under key when it is a JSON string.
func (a Annotations) String(key ScopedName) (string, bool) {
	var s string
	if ok, err := a.Decode(key, &s); !ok || err != nil {
		return "", false
	}
	return s, true
}

// Object returns the value under key as a JSON object. A present key with a
// null or non-object value yields an empty, non-nil map.
func (a Annotations) Object(key ScopedName) (map[string]json.RawMessage, bool) {
	raw, ok := a.Get(key)
	if !ok {
		return nil, false
	}
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return map[string]json.RawMessage{}, true
	}
	return obj, true
}

// With returns a copy of a where key maps to value. An existing entry is
// replaced in place, otherwise the entry is appended.
func (a Annotations) With(key ScopedName, value json.RawMessage) Annotations {
	out := make(Annotations, 0, len(a)+1)
	replaced := false
	for _, ann := range a {
		if ann.Key == key {
			out = append(out, Annotation{Key: key, Value: value})
			replaced = true
			continue
		}
		out = append(out, ann)
	}
	if !replaced {
		out = append(out, Annotation{Key: key, Value: value})
	}
	return out
}

// Clone returns a copy of a.
func (a Annotations) Clone() Annotations {
	if a == nil {
		return nil
	}
	out := make(Annotations, len(a))
	copy(out, a)
	return out
}
