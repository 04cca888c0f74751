// Package record defines the untyped documents served by the stub server.
//
// A Record is an ordered list of named fields. Field values are Values, a
// small tagged variant covering everything JSON can express. Numbers keep the
// literal text they were decoded from so that no precision is lost between
// reading a fixture file, comparing values, and writing a response.
package record

import (
	"bytes"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
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
	default:
		return "unknown"
	}
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	s    string // string content, or the literal of a number
	arr  []Value
	obj  Record
}

func NullValue() Value { return Value{} }

func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// NumberValue wraps a JSON number literal. The literal is not validated.
func NumberValue(literal string) Value { return Value{kind: Number, s: literal} }

func IntValue(n int64) Value { return Value{kind: Number, s: strconv.FormatInt(n, 10)} }

func StringValue(s string) Value { return Value{kind: String, s: s} }

func ArrayValue(items ...Value) Value { return Value{kind: Array, arr: items} }

func ObjectValue(r Record) Value { return Value{kind: Object, obj: r} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

// IsScalar reports whether v is a bool, number or string.
func (v Value) IsScalar() bool {
	return v.kind == Bool || v.kind == Number || v.kind == String
}

// Literal returns the source text of a number, or "" for other kinds.
func (v Value) Literal() string {
	if v.kind != Number {
		return ""
	}
	return v.s
}

// Int returns the value as an int64 when it is a number written as an
// integer literal. 1.0 and 1e3 are not integers here.
func (v Value) Int() (int64, bool) {
	if v.kind != Number {
		return 0, false
	}
	n, err := strconv.ParseInt(v.s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == Bool
}

func (v Value) Str() (string, bool) {
	return v.s, v.kind == String
}

func (v Value) Array() ([]Value, bool) {
	return v.arr, v.kind == Array
}

func (v Value) Object() (Record, bool) {
	return v.obj, v.kind == Object
}

// String renders the value the way filters see it: strings without quotes,
// numbers as written, and everything else as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case String:
		return v.s
	case Number:
		return v.s
	case Bool:
		return strconv.FormatBool(v.b)
	case Null:
		return "null"
	}
	var buf bytes.Buffer
	v.encode(&buf)
	return buf.String()
}

// Equal reports deep equality. Numbers are equal when their literals are.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == o.b
	case Number, String:
		return v.s == o.s
	case Array:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		return v.obj.Equal(o.obj)
	}
	return false
}
