package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// MetaKind identifies which variant a MetaValue holds
type MetaKind int

// MetaValue kinds
const (
	KindNull MetaKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

func (k MetaKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("MetaKind(%d)", int(k))
}

// MetaValue is a location metadata value: a scalar, a list or a map.
// The zero value is null.
type MetaValue struct {
	kind MetaKind
	str  string
	num  float64
	b    bool
	list []MetaValue
	m    map[string]MetaValue
}

// Null returns the null value
func Null() MetaValue { return MetaValue{} }

// String returns a string value
func String(s string) MetaValue { return MetaValue{kind: KindString, str: s} }

// Number returns a numeric value
func Number(n float64) MetaValue { return MetaValue{kind: KindNumber, num: n} }

// Bool returns a boolean value
func Bool(b bool) MetaValue { return MetaValue{kind: KindBool, b: b} }

// List returns a list value
func List(items ...MetaValue) MetaValue {
	return MetaValue{kind: KindList, list: append([]MetaValue{}, items...)}
}

// Map returns a map value
func Map(m map[string]MetaValue) MetaValue {
	cp := make(map[string]MetaValue, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return MetaValue{kind: KindMap, m: cp}
}

// Kind returns the variant held by v
func (v MetaValue) Kind() MetaKind { return v.kind }

// IsNull reports whether v is null
func (v MetaValue) IsNull() bool { return v.kind == KindNull }

// Str returns the string and whether v is a string
func (v MetaValue) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the number and whether v is a number
func (v MetaValue) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the bool and whether v is a bool
func (v MetaValue) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Items returns the list elements and whether v is a list
func (v MetaValue) Items() ([]MetaValue, bool) { return v.list, v.kind == KindList }

// Fields returns the map entries and whether v is a map
func (v MetaValue) Fields() (map[string]MetaValue, bool) { return v.m, v.kind == KindMap }

// Equal reports deep equality
func (v MetaValue) Equal(o MetaValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, x := range v.m {
			y, ok := o.m[k]
			if !ok || !x.Equal(y) {
				return false
			}
		}
		return true
	}
	return true
}

// Interface converts v to plain Go values (string, float64, bool,
// []any, map[string]any or nil)
func (v MetaValue) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// MetaValueOf converts plain Go values into a MetaValue. Integers are
// stored as numbers; unsupported types are rejected.
func MetaValueOf(x any) (MetaValue, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case MetaValue:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return MetaValue{}, fmt.Errorf("%w: meta number %q", ErrInvalidArgument, t)
		}
		return Number(n), nil
	case []any:
		items := make([]MetaValue, len(t))
		for i, e := range t {
			v, err := MetaValueOf(e)
			if err != nil {
				return MetaValue{}, err
			}
			items[i] = v
		}
		return MetaValue{kind: KindList, list: items}, nil
	case []string:
		items := make([]MetaValue, len(t))
		for i, e := range t {
			items[i] = String(e)
		}
		return MetaValue{kind: KindList, list: items}, nil
	case map[string]any:
		m := make(map[string]MetaValue, len(t))
		for k, e := range t {
			v, err := MetaValueOf(e)
			if err != nil {
				return MetaValue{}, err
			}
			m[k] = v
		}
		return MetaValue{kind: KindMap, m: m}, nil
	case map[string]string:
		m := make(map[string]MetaValue, len(t))
		for k, e := range t {
			m[k] = String(e)
		}
		return MetaValue{kind: KindMap, m: m}, nil
	}
	return MetaValue{}, fmt.Errorf("%w: unsupported meta value type %T", ErrInvalidArgument, x)
}

// MarshalJSON encodes v as plain JSON. Map keys are written in sorted order.
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown meta kind %d", v.kind)
}

// UnmarshalJSON decodes any JSON document into the matching variant
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after meta value")
	}
	parsed, err := MetaValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// EncodeMeta serializes a value for the meta_value column
func EncodeMeta(v MetaValue) (string, error) {
	b, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMeta deserializes a meta_value column. Values that are not valid
// JSON were written by another tool and are returned as plain strings.
func DecodeMeta(s string) MetaValue {
	var v MetaValue
	if err := v.UnmarshalJSON([]byte(s)); err != nil {
		return String(s)
	}
	return v
}
