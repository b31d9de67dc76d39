// Package value holds the immutable JSON-like values records and entities
// are made of.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (kind Kind) String() string {
	switch kind {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "Kind(" + strconv.Itoa(int(kind)) + ")"
	}
}

// Value is an immutable JSON-like value. The zero Value is Null.
// Constructors copy their arguments and accessors hand out copies, so a Value
// can be shared between goroutines without synchronisation.
type Value struct {
	kind   Kind
	flag   bool
	number float64
	text   string
	items  []Value
	fields map[string]Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

func String(s string) Value { return Value{kind: KindString, text: s} }

func Array(items ...Value) Value {
	copied := make([]Value, len(items))
	copy(copied, items)
	return Value{kind: KindArray, items: copied}
}

func Object(fields map[string]Value) Value {
	copied := make(map[string]Value, len(fields))
	for key, field := range fields {
		copied[key] = field
	}
	return Value{kind: KindObject, fields: copied}
}

func EmptyObject() Value { return Object(nil) }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsObject() bool { return v.kind == KindObject }

func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

func (v Value) AsNumber() (float64, bool) { return v.number, v.kind == KindNumber }

func (v Value) AsString() (string, bool) { return v.text, v.kind == KindString }

// Len returns the number of elements of an Array or fields of an Object.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.fields)
	default:
		return 0
	}
}

func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	copied := make([]Value, len(v.items))
	copy(copied, v.items)
	return copied
}

// Get looks a key up in an Object. Non-objects never contain keys.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	field, ok := v.fields[key]
	return field, ok
}

// GetString is a convenience for Get followed by AsString.
func (v Value) GetString(key string) (string, bool) {
	field, ok := v.Get(key)
	if !ok {
		return "", false
	}
	return field.AsString()
}

// Keys returns the keys of an Object in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for key := range v.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) Fields() map[string]Value {
	if v.kind != KindObject {
		return nil
	}
	copied := make(map[string]Value, len(v.fields))
	for key, field := range v.fields {
		copied[key] = field
	}
	return copied
}

// With returns a copy of the Object with key set. Calling With on a
// non-object starts from an empty Object.
func (v Value) With(key string, field Value) Value {
	fields := v.Fields()
	if fields == nil {
		fields = map[string]Value{}
	}
	fields[key] = field
	return Value{kind: KindObject, fields: fields}
}

// Interface converts the value into the shapes produced by encoding/json:
// nil, bool, float64, string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.flag
	case KindNumber:
		return v.number
	case KindString:
		return v.text
	case KindArray:
		items := make([]any, len(v.items))
		for i, item := range v.items {
			items[i] = item.Interface()
		}
		return items
	case KindObject:
		fields := make(map[string]any, len(v.fields))
		for key, field := range v.fields {
			fields[key] = field.Interface()
		}
		return fields
	default:
		return nil
	}
}

// FromAny converts decoded JSON or YAML data into a Value.
func FromAny(data any) (Value, error) {
	switch typed := data.(type) {
	case nil:
		return Null(), nil
	case Value:
		return typed, nil
	case bool:
		return Bool(typed), nil
	case string:
		return String(typed), nil
	case float64:
		return Number(typed), nil
	case float32:
		return Number(float64(typed)), nil
	case int:
		return Number(float64(typed)), nil
	case int32:
		return Number(float64(typed)), nil
	case int64:
		return Number(float64(typed)), nil
	case uint:
		return Number(float64(typed)), nil
	case uint64:
		return Number(float64(typed)), nil
	case json.Number:
		number, err := typed.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", typed.String(), err)
		}
		return Number(number), nil
	case []any:
		items := make([]Value, len(typed))
		for i, item := range typed {
			converted, err := FromAny(item)
			if err != nil {
				return Null(), fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = converted
		}
		return Value{kind: KindArray, items: items}, nil
	case map[string]any:
		fields := make(map[string]Value, len(typed))
		for key, field := range typed {
			converted, err := FromAny(field)
			if err != nil {
				return Null(), fmt.Errorf("%s: %w", key, err)
			}
			fields[key] = converted
		}
		return Value{kind: KindObject, fields: fields}, nil
	case map[any]any:
		fields := make(map[string]Value, len(typed))
		for key, field := range typed {
			stringKey, ok := key.(string)
			if !ok {
				return Null(), fmt.Errorf("unsupported object key %v of type %T", key, key)
			}
			converted, err := FromAny(field)
			if err != nil {
				return Null(), fmt.Errorf("%s: %w", stringKey, err)
			}
			fields[stringKey] = converted
		}
		return Value{kind: KindObject, fields: fields}, nil
	default:
		return Null(), fmt.Errorf("unsupported value of type %T", data)
	}
}

// MustFromAny is FromAny for literals known to be valid, mostly in tests.
func MustFromAny(data any) Value {
	converted, err := FromAny(data)
	if err != nil {
		panic(err)
	}
	return converted
}

func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.flag == b.flag
	case KindNumber:
		return a.number == b.number || (math.IsNaN(a.number) && math.IsNaN(b.number))
	case KindString:
		return a.text == b.text
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.fields) != len(b.fields) {
			return false
		}
		for key, field := range a.fields {
			other, ok := b.fields[key]
			if !ok || !Equal(field, other) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	converted, err := FromAny(decoded)
	if err != nil {
		return err
	}
	*v = converted
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

func (v Value) String() string {
	encoded, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(encoded)
}
