// Package decode turns Postgres result columns of statically unknown type into
// JSON-compatible values.
//
// The driver only answers "can this wire value be decoded as T?", so decoding
// is an ordered list of typed probes (see probe.go). The first probe that
// accepts the column and scans the bytes wins. Decoding never fails: values no
// probe can claim become JSON null.
package decode

import (
	"encoding/json"
	"fmt"
)

// Kind tags which probe produced a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt32
	KindInt16
	KindInt64
	KindFloat64
	KindDecimal
	KindTimestamptz
	KindTimestamp
	KindUUID
	KindBool
	KindText
	KindJSON
	KindJSONArray
	KindTextArray
	KindNullableTextArray
	KindInt64Array
	KindNullableInt32Array
)

var kindNames = [...]string{
	KindNull:               "null",
	KindInt32:              "int32",
	KindInt16:              "int16",
	KindInt64:              "int64",
	KindFloat64:            "float64",
	KindDecimal:            "decimal",
	KindTimestamptz:        "timestamptz",
	KindTimestamp:          "timestamp",
	KindUUID:               "uuid",
	KindBool:               "bool",
	KindText:               "text",
	KindJSON:               "json",
	KindJSONArray:          "json[]",
	KindTextArray:          "text[]",
	KindNullableTextArray:  "text[] (nullable)",
	KindInt64Array:         "int64[]",
	KindNullableInt32Array: "int32[] (nullable)",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one decoded column value. Data holds a plain Go value that
// encoding/json renders directly: int32, int16, int64, float64, bool, string,
// json.RawMessage or a slice of those (with pointer elements for nullable
// arrays). Data is nil only for KindNull.
type Value struct {
	Kind Kind
	Data any
}

// Null is the value every unclaimed column decodes to.
var Null = Value{Kind: KindNull}

// IsNull reports whether v renders as JSON null.
func (v Value) IsNull() bool { return v.Kind == KindNull || v.Data == nil }

// MarshalJSON renders the JSON form of v.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}
	if raw, ok := v.Data.(json.RawMessage); ok {
		if len(raw) == 0 {
			return []byte("null"), nil
		}
		return raw, nil
	}
	return json.Marshal(v.Data)
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.Kind, err)
	}
	return string(b)
}
