package record

import "strings"

// IDField is the only field the server manages itself.
const IDField = "id"

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered mapping from field name to Value. Field order is the
// order fields were first seen and is kept when the record is written out.
//
// Records stored in a collection are never modified after insertion; updates
// replace the whole record. Methods with pointer receivers must only be used
// on records the caller owns.
type Record struct {
	fields []Field
}

// New builds a record from fields. A repeated name overwrites the earlier
// value but keeps the earlier position.
func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

func (r Record) Len() int { return len(r.fields) }

// Fields returns a copy of the record's fields in order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r Record) index(name string) int {
	for i := range r.fields {
		if r.fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value of a top level field.
func (r Record) Get(name string) (Value, bool) {
	if i := r.index(name); i >= 0 {
		return r.fields[i].Value, true
	}
	return Value{}, false
}

// Set replaces the value of name in place, or appends a new field.
func (r *Record) Set(name string, v Value) {
	if i := r.index(name); i >= 0 {
		fields := make([]Field, len(r.fields))
		copy(fields, r.fields)
		fields[i].Value = v
		r.fields = fields
		return
	}
	fields := make([]Field, len(r.fields), len(r.fields)+1)
	copy(fields, r.fields)
	r.fields = append(fields, Field{Name: name, Value: v})
}

// Delete removes a field. It reports whether the field existed.
func (r *Record) Delete(name string) bool {
	i := r.index(name)
	if i < 0 {
		return false
	}
	fields := make([]Field, 0, len(r.fields)-1)
	fields = append(fields, r.fields[:i]...)
	r.fields = append(fields, r.fields[i+1:]...)
	return true
}

// Lookup resolves a dot separated field path such as "address.city".
// A field literally named path wins over descending into nested objects.
// The second result is false when any segment is absent or a parent is not
// an object.
func (r Record) Lookup(path string) (Value, bool) {
	if v, ok := r.Get(path); ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return Value{}, false
	}
	return r.lookup(strings.Split(path, "."))
}

func (r Record) lookup(segments []string) (Value, bool) {
	v, ok := r.Get(segments[0])
	if !ok {
		return Value{}, false
	}
	if len(segments) == 1 {
		return v, true
	}
	child, ok := v.Object()
	if !ok {
		return Value{}, false
	}
	return child.lookup(segments[1:])
}

// ID returns the record's id when it is an integer number.
func (r Record) ID() (int64, bool) {
	v, ok := r.Get(IDField)
	if !ok {
		return 0, false
	}
	return v.Int()
}

// SetID overwrites the id field, adding it if absent.
func (r *Record) SetID(id int64) {
	r.Set(IDField, IntValue(id))
}

// Equal reports whether both records have the same fields in the same order.
func (r Record) Equal(o Record) bool {
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i].Name != o.fields[i].Name || !r.fields[i].Value.Equal(o.fields[i].Value) {
			return false
		}
	}
	return true
}
