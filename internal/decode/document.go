package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named entry of a Document.
type Field struct {
	Name  string
	Value Value
}

// Document is an ordered column-name → Value mapping for one row. Keys keep
// the order in which they were first set.
type Document struct {
	fields []Field
	index  map[string]int
}

// NewDocument returns an empty Document sized for n columns.
func NewDocument(n int) *Document {
	return &Document{
		fields: make([]Field, 0, n),
		index:  make(map[string]int, n),
	}
}

// Set stores v under name. Setting an existing name replaces its value and
// keeps its first position.
func (d *Document) Set(name string, v Value) {
	if i, ok := d.index[name]; ok {
		d.fields[i].Value = v
		return
	}
	d.index[name] = len(d.fields)
	d.fields = append(d.fields, Field{Name: name, Value: v})
}

// Get returns the value stored under name.
func (d *Document) Get(name string) (Value, bool) {
	i, ok := d.index[name]
	if !ok {
		return Null, false
	}
	return d.fields[i].Value, true
}

// Len returns the number of distinct keys.
func (d *Document) Len() int { return len(d.fields) }

// Keys returns the keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.Name
	}
	return keys
}

// Fields returns the entries in document order. The slice must not be
// modified.
func (d *Document) Fields() []Field { return d.fields }

// MarshalJSON renders the document as a JSON object in key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
