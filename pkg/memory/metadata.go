package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies the variant held by a metadata Value.
type ValueKind int

const (
	StringKind ValueKind = iota
	NumberKind
	BoolKind
	MapKind
	ArrayKind
)

// Value is a metadata value over a closed set of variants, so scoring
// and serialization code can switch exhaustively instead of poking at
// an untyped blob.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	m    map[string]Value
	arr  []Value
}

// StringValue returns a string metadata value.
func StringValue(s string) Value { return Value{kind: StringKind, str: s} }

// NumberValue returns a numeric metadata value.
func NumberValue(f float64) Value { return Value{kind: NumberKind, num: f} }

// BoolValue returns a boolean metadata value.
func BoolValue(b bool) Value { return Value{kind: BoolKind, b: b} }

// MapValue returns a nested-object metadata value.
func MapValue(m map[string]Value) Value { return Value{kind: MapKind, m: m} }

// ArrayValue returns an array metadata value.
func ArrayValue(vs []Value) Value { return Value{kind: ArrayKind, arr: vs} }

// Kind returns the variant held by the value.
func (v Value) Kind() ValueKind { return v.kind }

// String returns the stringified form used by the metadata index.
func (v Value) String() string {
	switch v.kind {
	case StringKind:
		return v.str
	case NumberKind:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case BoolKind:
		return strconv.FormatBool(v.b)
	case MapKind, ArrayKind:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as its native JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case StringKind:
		return json.Marshal(v.str)
	case NumberKind:
		return json.Marshal(v.num)
	case BoolKind:
		return json.Marshal(v.b)
	case MapKind:
		return json.Marshal(v.m)
	case ArrayKind:
		return json.Marshal(v.arr)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value into the matching variant.
// JSON null decodes to an empty string value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValuesFromJSON converts a decoded JSON object into metadata values.
func ValuesFromJSON(raw map[string]any) (map[string]Value, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(map[string]Value, len(raw))
	for key, val := range raw {
		parsed, err := valueFromAny(val)
		if err != nil {
			return nil, fmt.Errorf("metadata key %q: %w", key, err)
		}
		out[key] = parsed
	}
	return out, nil
}

func valueFromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return StringValue(""), nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return NumberValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for key, val := range t {
			parsed, err := valueFromAny(val)
			if err != nil {
				return Value{}, err
			}
			m[key] = parsed
		}
		return MapValue(m), nil
	case []any:
		arr := make([]Value, 0, len(t))
		for _, val := range t {
			parsed, err := valueFromAny(val)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, parsed)
		}
		return ArrayValue(arr), nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata value type %T", raw)
	}
}
