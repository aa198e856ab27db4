package rowset

import "strings"

// typeInfo describes a declared SQL type: its kind and, for numbers, the
// bit width used to judge widening compatibility.
type typeInfo struct {
	kind  Kind
	width int
	tz    bool // timestamps only
}

// declaredTypes maps information_schema data_type strings to type info.
var declaredTypes = map[string]typeInfo{
	"boolean": {kind: KindBool},

	"smallint": {kind: KindInt, width: 16},
	"integer":  {kind: KindInt, width: 32},
	"bigint":   {kind: KindInt, width: 64},

	"real":             {kind: KindFloat, width: 32},
	"double precision": {kind: KindFloat, width: 64},

	// money is deliberately absent: pgx has no money scan path into a
	// numeric destination, so it cannot round-trip through the decode plan.
	"numeric": {kind: KindDecimal},
	"decimal": {kind: KindDecimal},

	"text":              {kind: KindText},
	"character varying": {kind: KindText},
	"character":         {kind: KindText},
	"uuid":              {kind: KindText},
	"name":              {kind: KindText},

	"bytea": {kind: KindBytes},

	"timestamp without time zone": {kind: KindTimestamp},
	"timestamp with time zone":    {kind: KindTimestamp, tz: true},
	"date":                        {kind: KindTimestamp},
}

func lookup(dataType string) (typeInfo, bool) {
	ti, ok := declaredTypes[strings.ToLower(strings.TrimSpace(dataType))]
	return ti, ok
}

// KindOf maps a declared type to its scalar kind. The second return is
// false for types outside the supported set.
func KindOf(dataType string) (Kind, bool) {
	ti, ok := lookup(dataType)
	return ti.kind, ok
}

// Supported reports whether a declared type is in the supported set.
func Supported(dataType string) bool {
	_, ok := lookup(dataType)
	return ok
}

// Compatible reports whether a value of the source declared type can be
// written into a column of the target declared type. Same-kind matches
// require the target to be at least as wide; across kinds only lossless
// numeric widenings are allowed.
func Compatible(sourceType, targetType string) bool {
	src, ok := lookup(sourceType)
	if !ok {
		return false
	}
	tgt, ok := lookup(targetType)
	if !ok {
		return false
	}

	if src.kind == tgt.kind {
		if src.kind == KindInt || src.kind == KindFloat {
			return tgt.width >= src.width
		}
		return true
	}

	switch {
	case src.kind == KindInt && tgt.kind == KindFloat:
		return tgt.width == 64
	case src.kind == KindInt && tgt.kind == KindDecimal:
		return true
	case src.kind == KindFloat && tgt.kind == KindDecimal:
		return true
	}
	return false
}
