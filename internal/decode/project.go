package decode

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Project builds the Document for one row: one entry per column, in column
// order, each value decoded with Decode. Missing raw values decode to Null.
func (d *Decoder) Project(cols []Column, raws [][]byte) *Document {
	doc := NewDocument(len(cols))
	for i, c := range cols {
		doc.Set(c.Name, d.DecodeAt(cols, raws, i))
	}
	return doc
}

// RowFunc receives each projected row as marshalled JSON. The slice is only
// valid until RowFunc returns.
type RowFunc func(doc []byte) error

// ProjectRows drains rows, projecting and marshalling each one, and calls fn
// per row in arrival order. It returns the number of rows handed to fn.
// The first error from fn stops iteration; rows is always closed.
func (d *Decoder) ProjectRows(rows pgx.Rows, fn RowFunc) (int64, error) {
	defer rows.Close()

	cols := ColumnsOf(rows.FieldDescriptions())
	var n int64
	for rows.Next() {
		doc := d.Project(cols, rows.RawValues())
		b, err := json.Marshal(doc)
		if err != nil {
			return n, fmt.Errorf("marshal row %d: %w", n+1, err)
		}
		if err := fn(b); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}
