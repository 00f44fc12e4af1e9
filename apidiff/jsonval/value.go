// Package jsonval is a tagged-union representation of JSON values.
//
// Objects keep the key order they were decoded with, numbers keep their
// literal text and compare by value, and payloads that are not JSON at all
// are carried as Invalid values so callers can still compare them.
package jsonval

import (
	"math"
	"strconv"
)

// Kind is the variant tag of a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
	Invalid // raw text that failed to parse as JSON
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	lit  string // number literal, string value, or invalid raw text
	arr  []Value
	obj  *Obj
}

// Obj is an insertion-ordered JSON object.
type Obj struct {
	keys []string
	vals map[string]Value
}

// NewObject builds an object from alternating keys and values. Later
// duplicates overwrite earlier ones but keep the first position.
func NewObject(fields ...Field) Value {
	o := &Obj{vals: make(map[string]Value, len(fields))}
	for _, f := range fields {
		o.set(f.Key, f.Value)
	}
	return Value{kind: Object, obj: o}
}

// Field is one key/value member of an object.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for Field{k, v}.
func F(k string, v Value) Field { return Field{Key: k, Value: v} }

func (o *Obj) set(k string, v Value) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

// NullValue returns the JSON null.
func NullValue() Value { return Value{} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// Int wraps an integer.
func Int(n int64) Value { return Value{kind: Number, lit: strconv.FormatInt(n, 10)} }

// Float wraps a float. NaN and infinities have no JSON form and become null.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: Number, lit: strconv.FormatFloat(f, 'g', -1, 64)}
}

// NumberLiteral wraps a number literal as written in the source document.
// The literal is not validated; use Parse for untrusted input.
func NumberLiteral(lit string) Value { return Value{kind: Number, lit: lit} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: String, lit: s} }

// ArrayValue wraps elements. The slice is not copied.
func ArrayValue(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: Array, arr: elems}
}

// InvalidValue carries raw text that is not JSON.
func InvalidValue(raw string) Value { return Value{kind: Invalid, lit: raw} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Str returns the string payload for String values and the raw text for
// Invalid values.
func (v Value) Str() string { return v.lit }

// Literal returns the number literal as written.
func (v Value) Literal() string {
	if v.kind != Number {
		return ""
	}
	return v.lit
}

// Float64 returns the numeric value. ok is false for non-numbers and for
// literals that do not fit a finite float64.
func (v Value) Float64() (f float64, ok bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.lit, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Len returns the number of elements of an array or members of an object.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj.keys)
	}
	return 0
}

// Index returns element i of an array.
func (v Value) Index(i int) Value { return v.arr[i] }

// Elems returns the array elements. Callers must not modify the slice.
func (v Value) Elems() []Value { return v.arr }

// Keys returns the object keys in document order. Callers must not modify
// the slice.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	return v.obj.keys
}

// Get returns the member k of an object.
func (v Value) Get(k string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	m, ok := v.obj.vals[k]
	return m, ok
}

// With returns a copy of object v with member k set to m.
func (v Value) With(k string, m Value) Value {
	o := &Obj{vals: make(map[string]Value, v.Len()+1)}
	for _, key := range v.Keys() {
		o.set(key, v.obj.vals[key])
	}
	o.set(k, m)
	return Value{kind: Object, obj: o}
}

// Without returns a copy of object v without member k.
func (v Value) Without(k string) Value {
	o := &Obj{vals: make(map[string]Value, v.Len())}
	for _, key := range v.Keys() {
		if key != k {
			o.set(key, v.obj.vals[key])
		}
	}
	return Value{kind: Object, obj: o}
}

// TypeName is the comparison type of v. Integers and floats share the
// "number" type.
func (v Value) TypeName() string { return v.kind.String() }

// Interface converts v to plain Go values: nil, bool, float64 (or int64 for
// integer literals), string, []any, map[string]any. Invalid values become
// their raw text.
func (v Value) Interface() any {
	switch v.kind {
	case Null:
		return nil
	case Bool:
		return v.b
	case Number:
		if n, err := strconv.ParseInt(v.lit, 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(v.lit, 64)
		return f
	case String, Invalid:
		return v.lit
	case Array:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj.keys))
		for _, k := range v.obj.keys {
			out[k] = v.obj.vals[k].Interface()
		}
		return out
	}
	return nil
}
