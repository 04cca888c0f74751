package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when a document that must be a JSON object is not.
var ErrNotObject = errors.New("document is not a JSON object")

// ErrNotArray is returned when a collection document is not a JSON array.
var ErrNotArray = errors.New("document is not a JSON array")

// ErrTooDeep is returned for documents nested deeper than MaxDepth.
var ErrTooDeep = errors.New("document nested too deeply")

// MaxDepth bounds the nesting of arrays and objects, as encoding/json does.
const MaxDepth = 10000

// Parse decodes a single JSON value, keeping object field order.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec, 0)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

// Unmarshal decodes a JSON object into a Record.
func Unmarshal(data []byte) (Record, error) {
	v, err := Parse(data)
	if err != nil {
		return Record{}, err
	}
	r, ok := v.Object()
	if !ok {
		return Record{}, ErrNotObject
	}
	return r, nil
}

// DecodeArray decodes a JSON array of objects. Entries that are not objects
// are dropped.
func DecodeArray(data []byte) ([]Record, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	items, ok := v.Array()
	if !ok {
		return nil, ErrNotArray
	}
	return Objects(items), nil
}

// Objects keeps the object entries of items, in order.
func Objects(items []Value) []Record {
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if r, ok := item.Object(); ok {
			out = append(out, r)
		}
	}
	return out
}

// MustParse decodes a JSON object and panics on failure. For tests and
// fixtures.
func MustParse(s string) Record {
	r, err := Unmarshal([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("record.MustParse(%q): %v", s, err))
	}
	return r
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		if t == '{' || t == '[' {
			if depth++; depth > MaxDepth {
				return Value{}, ErrTooDeep
			}
		}
		switch t {
		case '{':
			return decodeObject(dec, depth)
		case '[':
			return decodeArray(dec, depth)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberValue(string(t)), nil
	case bool:
		return BoolValue(t), nil
	case nil:
		return NullValue(), nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder, depth int) (Value, error) {
	var r Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		name, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("unexpected object key %v", tok)
		}
		v, err := decodeValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		if i := r.index(name); i >= 0 {
			r.fields[i].Value = v
			continue
		}
		r.fields = append(r.fields, Field{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return ObjectValue(r), nil
}

func decodeArray(dec *json.Decoder, depth int) (Value, error) {
	items := []Value{}
	for dec.More() {
		v, err := decodeValue(dec, depth)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return ArrayValue(items...), nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	v.encode(&buf)
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON implements json.Marshaler. Fields are written in record order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	r.encode(&buf)
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	parsed, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (v Value) encode(buf *bytes.Buffer) {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(v.s)
	case String:
		writeString(buf, v.s)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.encode(buf)
		}
		buf.WriteByte(']')
	case Object:
		v.obj.encode(buf)
	}
}

func (r Record) encode(buf *bytes.Buffer) {
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, f.Name)
		buf.WriteByte(':')
		f.Value.encode(buf)
	}
	buf.WriteByte('}')
}

func writeString(buf *bytes.Buffer, s string) {
	// json.Marshal of a string cannot fail.
	b, _ := json.Marshal(s)
	buf.Write(b)
}
