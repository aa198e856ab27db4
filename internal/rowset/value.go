// Package rowset models decoded row data as a closed set of scalar kinds
// and builds the per-column decode and encode plans for a copy.
package rowset

import (
	"fmt"
	"time"
)

// Kind enumerates the supported scalar kinds. The set is closed: a column
// whose declared type maps to no kind cannot take part in a copy.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindBytes
	KindDecimal
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindDecimal:
		return "decimal"
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one decoded column value. Exactly one field besides Kind is
// meaningful, selected by Kind. Decimals keep their exact text form.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Text  string // text and decimal
	Bytes []byte
	Time  time.Time
}

// Row is one decoded row in source column order.
type Row []Value

func Null() Value               { return Value{Kind: KindNull} }
func BoolValue(v bool) Value    { return Value{Kind: KindBool, Bool: v} }
func IntValue(v int64) Value    { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}
func TextValue(v string) Value  { return Value{Kind: KindText, Text: v} }
func BytesValue(v []byte) Value { return Value{Kind: KindBytes, Bytes: v} }
func DecimalValue(v string) Value {
	return Value{Kind: KindDecimal, Text: v}
}
func TimestampValue(v time.Time) Value {
	return Value{Kind: KindTimestamp, Time: v}
}
