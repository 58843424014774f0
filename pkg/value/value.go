// Package value implements the closed attribute-value variant used by
// task span attributes and contract attribute maps throughout the
// core. It exists so dynamic, schema-less attribute bags never smuggle
// an invalid shape past construction.
package value

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a tagged variant over string, int, float, bool, and
// list-of-Value. Zero value is an empty string.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	list []Value
}

func String(s string) Value { return Value{kind: KindString, str: s} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }

// List constructs a list-of-Value, copying the input slice.
func List(vs ...Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindList, list: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Raw returns the underlying Go value as an any, matching the dynamic
// representation used when serializing attribute maps to JSON.
func (v Value) Raw() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Raw()
		}
		return out
	default:
		return nil
	}
}

// FromRaw constructs a Value from a decoded JSON/YAML any, rejecting
// shapes that do not fit the closed variant. This is the type
// boundary referenced by the Design Notes: invalid enum/shape
// construction is rejected here, not downstream.
func FromRaw(raw any) (Value, error) {
	switch t := raw.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		// JSON numbers decode as float64; keep integral ones as int64 so
		// round-tripping through JSON does not silently widen a task's
		// story-points or percent-complete into a float attribute.
		if t == float64(int64(t)) {
			return Int(int64(t)), nil
		}
		return Float(t), nil
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromRaw(e)
			if err != nil {
				return Value{}, fmt.Errorf("list element %d: %w", i, err)
			}
			vs[i] = ev
		}
		return List(vs...), nil
	case nil:
		return Value{}, fmt.Errorf("value: nil is not a representable attribute value")
	default:
		return Value{}, fmt.Errorf("value: unsupported attribute shape %T", raw)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromRaw(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Map is an attribute bag: string keys to closed-variant values.
type Map map[string]Value

// MapFromRaw converts a decoded map[string]any into a Map, rejecting
// any value that does not fit the closed variant.
func MapFromRaw(raw map[string]any) (Map, error) {
	out := make(Map, len(raw))
	for k, v := range raw {
		pv, err := FromRaw(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = pv
	}
	return out, nil
}

// RawMap returns the map with each Value's underlying Go representation.
func (m Map) RawMap() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Raw()
	}
	return out
}

// Clone returns a shallow copy of the map (values are immutable).
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
