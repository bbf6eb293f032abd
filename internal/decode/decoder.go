package decode

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Column describes one result column: its name, the type OID the server
// reported, and the wire format (text or binary) of its values.
type Column struct {
	Name   string
	OID    uint32
	Format int16
}

// ColumnsOf converts pgx field descriptions into Columns, preserving order.
func ColumnsOf(fds []pgconn.FieldDescription) []Column {
	cols := make([]Column, len(fds))
	for i, fd := range fds {
		cols[i] = Column{Name: fd.Name, OID: fd.DataTypeOID, Format: fd.Format}
	}
	return cols
}

// Decoder applies an ordered probe list to raw column values.
//
// A Decoder caches scan plans in its pgtype.Map and is not safe for
// concurrent use; create one per table run.
type Decoder struct {
	typeMap *pgtype.Map
	probes  []Probe
}

// New returns a Decoder using DefaultProbes. A nil map means pgtype.NewMap().
func New(m *pgtype.Map) *Decoder {
	return NewWithProbes(m, DefaultProbes())
}

// NewWithProbes returns a Decoder with a caller-supplied probe order.
func NewWithProbes(m *pgtype.Map, probes []Probe) *Decoder {
	if m == nil {
		m = pgtype.NewMap()
	}
	return &Decoder{typeMap: m, probes: probes}
}

// Decode classifies one raw value. src == nil is SQL NULL. It always returns
// a value; anything no probe claims is Null.
func (d *Decoder) Decode(col Column, src []byte) Value {
	v, _ := d.decode(col, src)
	return v
}

// decode also reports the index of the winning probe, -1 when none matched.
func (d *Decoder) decode(col Column, src []byte) (Value, int) {
	for i, p := range d.probes {
		if v, ok := p.Try(d.typeMap, col, src); ok {
			return v, i
		}
	}
	return Null, -1
}

// DecodeAt decodes column i of a row given as parallel column/raw slices.
// Out-of-range indexes decode to Null.
func (d *Decoder) DecodeAt(cols []Column, raws [][]byte, i int) Value {
	if i < 0 || i >= len(cols) || i >= len(raws) {
		return Null
	}
	return d.Decode(cols[i], raws[i])
}
