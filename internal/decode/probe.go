package decode

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ScanFunc decodes non-NULL wire bytes of col into a JSON-ready Go value. A
// non-nil error means "not this type" and makes the decoder try the next
// probe. Returning (nil, nil) claims the column as null.
type ScanFunc func(m *pgtype.Map, col Column, src []byte) (any, error)

// Probe is one typed, fallible decode attempt.
type Probe struct {
	Name string
	Kind Kind
	OIDs []uint32
	Scan ScanFunc
}

// Accepts reports whether the probe is willing to look at a column of the
// given type. A probe never claims a column type outside its list, the way a
// typed getter refuses an incompatible column.
func (p Probe) Accepts(oid uint32) bool {
	for _, o := range p.OIDs {
		if o == oid {
			return true
		}
	}
	return false
}

// Try runs the probe. ok is false when the probe does not apply or the bytes
// did not scan; the caller then moves on to the next probe. NULL in an
// accepted column is claimed as Null.
func (p Probe) Try(m *pgtype.Map, col Column, src []byte) (v Value, ok bool) {
	if !p.Accepts(col.OID) {
		return Null, false
	}
	if src == nil {
		return Null, true
	}
	defer func() {
		if r := recover(); r != nil {
			v, ok = Null, false
		}
	}()
	data, err := p.Scan(m, col, src)
	if err != nil {
		return Null, false
	}
	if data == nil {
		return Null, true
	}
	return Value{Kind: p.Kind, Data: data}, true
}

// scanAs builds a ScanFunc that scans into a fresh T and renders it.
func scanAs[T any](render func(T) (any, error)) ScanFunc {
	return func(m *pgtype.Map, col Column, src []byte) (any, error) {
		var dst T
		if err := m.Scan(col.OID, col.Format, src, &dst); err != nil {
			return nil, err
		}
		return render(dst)
	}
}

func same[T any](v T) (any, error) { return v, nil }

// DefaultProbes returns the probe order. The order is a type precedence
// policy: a value is claimed by the first probe that accepts and scans it, so
// the list must not be reordered without changing output.
func DefaultProbes() []Probe {
	return []Probe{
		{Name: "int32", Kind: KindInt32, OIDs: []uint32{pgtype.Int4OID}, Scan: scanAs(same[int32])},
		{Name: "int16", Kind: KindInt16, OIDs: []uint32{pgtype.Int2OID}, Scan: scanAs(same[int16])},
		{Name: "int64", Kind: KindInt64, OIDs: []uint32{pgtype.Int8OID}, Scan: scanAs(same[int64])},
		{Name: "float64", Kind: KindFloat64, OIDs: []uint32{pgtype.Float8OID}, Scan: scanAs(renderFloat)},
		{Name: "decimal", Kind: KindDecimal, OIDs: []uint32{pgtype.NumericOID}, Scan: scanAs(renderNumeric)},
		{Name: "timestamptz", Kind: KindTimestamptz, OIDs: []uint32{pgtype.TimestamptzOID}, Scan: scanAs(func(t time.Time) (any, error) {
			return FormatTimestamptz(t), nil
		})},
		{Name: "timestamp", Kind: KindTimestamp, OIDs: []uint32{pgtype.TimestampOID}, Scan: scanAs(func(t time.Time) (any, error) {
			return FormatTimestamp(t), nil
		})},
		{Name: "uuid", Kind: KindUUID, OIDs: []uint32{pgtype.UUIDOID}, Scan: scanAs(renderUUID)},
		{Name: "bool", Kind: KindBool, OIDs: []uint32{pgtype.BoolOID}, Scan: scanAs(same[bool])},
		{Name: "text", Kind: KindText, OIDs: textOIDs, Scan: scanAs(same[string])},
		{Name: "json", Kind: KindJSON, OIDs: []uint32{pgtype.JSONOID, pgtype.JSONBOID}, Scan: scanAs(renderJSON)},
		{Name: "json[]", Kind: KindJSONArray, OIDs: []uint32{pgtype.JSONArrayOID, pgtype.JSONBArrayOID}, Scan: scanAs(renderJSONArray)},
		{Name: "text[]", Kind: KindTextArray, OIDs: textArrayOIDs, Scan: scanAs(func(v []string) (any, error) {
			return nonNil(v), nil
		})},
		{Name: "text[] nullable", Kind: KindNullableTextArray, OIDs: textArrayOIDs, Scan: scanAs(func(v []*string) (any, error) {
			return nonNil(v), nil
		})},
		{Name: "int64[]", Kind: KindInt64Array, OIDs: []uint32{pgtype.Int8ArrayOID}, Scan: scanAs(func(v []int64) (any, error) {
			return nonNil(v), nil
		})},
		{Name: "int32[] nullable", Kind: KindNullableInt32Array, OIDs: []uint32{pgtype.Int4ArrayOID}, Scan: scanAs(func(v []*int32) (any, error) {
			return nonNil(v), nil
		})},
	}
}

var (
	textOIDs = []uint32{
		pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID, pgtype.NameOID, pgtype.UnknownOID,
	}
	textArrayOIDs = []uint32{
		pgtype.TextArrayOID, pgtype.VarcharArrayOID, pgtype.BPCharArrayOID, pgtype.NameArrayOID,
	}
)

// renderFloat maps NaN and infinities to null; JSON has no spelling for them.
func renderFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, nil
	}
	return f, nil
}

// renderNumeric keeps the exact decimal digits by rendering to a string.
func renderNumeric(n pgtype.Numeric) (any, error) {
	if !n.Valid {
		return nil, nil
	}
	v, err := n.Value()
	if err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("numeric rendered as %T", v)
	}
	return s, nil
}

func renderUUID(u pgtype.UUID) (any, error) {
	if !u.Valid {
		return nil, nil
	}
	return uuid.UUID(u.Bytes).String(), nil
}

func renderJSON(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("invalid json payload")
	}
	return json.RawMessage(append([]byte(nil), b...)), nil
}

func renderJSONArray(elems []json.RawMessage) (any, error) {
	out := make([]json.RawMessage, len(elems))
	for i, e := range elems {
		if len(e) == 0 {
			out[i] = json.RawMessage("null")
			continue
		}
		out[i] = append(json.RawMessage(nil), e...)
	}
	return out, nil
}

// nonNil makes empty arrays render as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
