package rowset

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// DecodePlan turns scanned rows of one table into Rows of tagged values.
// Scan destinations are chosen from the source-declared column types, so
// every driver value arrives through a nullable pgtype wrapper.
type DecodePlan struct {
	names []string
	types []string
	infos []typeInfo
}

// NewDecodePlan builds a decode plan for the given columns, in order.
// Column types outside the supported set are rejected.
func NewDecodePlan(names, dataTypes []string) (*DecodePlan, error) {
	if len(names) != len(dataTypes) {
		return nil, fmt.Errorf("decode plan: %d names for %d types", len(names), len(dataTypes))
	}
	infos := make([]typeInfo, len(names))
	for i, dt := range dataTypes {
		ti, ok := lookup(dt)
		if !ok {
			return nil, fmt.Errorf("decode plan: column %s has unsupported type %s", names[i], dt)
		}
		infos[i] = ti
	}
	return &DecodePlan{names: names, types: dataTypes, infos: infos}, nil
}

// Dest returns a fresh set of scan destinations for one row.
func (p *DecodePlan) Dest() []any {
	dest := make([]any, len(p.infos))
	for i, ti := range p.infos {
		switch ti.kind {
		case KindBool:
			dest[i] = &pgtype.Bool{}
		case KindInt:
			dest[i] = &pgtype.Int8{}
		case KindFloat:
			dest[i] = &pgtype.Float8{}
		case KindText:
			dest[i] = &pgtype.Text{}
		case KindBytes:
			dest[i] = new([]byte)
		case KindDecimal:
			dest[i] = &pgtype.Numeric{}
		case KindTimestamp:
			if strings.EqualFold(strings.TrimSpace(p.types[i]), "date") {
				dest[i] = &pgtype.Date{}
			} else if ti.tz {
				dest[i] = &pgtype.Timestamptz{}
			} else {
				dest[i] = &pgtype.Timestamp{}
			}
		}
	}
	return dest
}

// Row converts one scanned destination set into a Row.
func (p *DecodePlan) Row(dest []any) (Row, error) {
	row := make(Row, len(dest))
	for i, d := range dest {
		switch v := d.(type) {
		case *pgtype.Bool:
			if v.Valid {
				row[i] = BoolValue(v.Bool)
			} else {
				row[i] = Null()
			}
		case *pgtype.Int8:
			if v.Valid {
				row[i] = IntValue(v.Int64)
			} else {
				row[i] = Null()
			}
		case *pgtype.Float8:
			if v.Valid {
				row[i] = FloatValue(v.Float64)
			} else {
				row[i] = Null()
			}
		case *pgtype.Text:
			if v.Valid {
				row[i] = TextValue(v.String)
			} else {
				row[i] = Null()
			}
		case *[]byte:
			if *v != nil {
				row[i] = BytesValue(*v)
			} else {
				row[i] = Null()
			}
		case *pgtype.Numeric:
			val, err := decimalText(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", p.names[i], err)
			}
			row[i] = val
		case *pgtype.Timestamp:
			if v.Valid {
				row[i] = TimestampValue(v.Time)
			} else {
				row[i] = Null()
			}
		case *pgtype.Timestamptz:
			if v.Valid {
				row[i] = TimestampValue(v.Time)
			} else {
				row[i] = Null()
			}
		case *pgtype.Date:
			if v.Valid {
				row[i] = TimestampValue(v.Time)
			} else {
				row[i] = Null()
			}
		default:
			return nil, fmt.Errorf("column %s: unexpected scan destination %T", p.names[i], d)
		}
	}
	return row, nil
}

// decimalText renders a scanned numeric as its exact text form.
func decimalText(n *pgtype.Numeric) (Value, error) {
	if !n.Valid {
		return Null(), nil
	}
	dv, err := n.Value()
	if err != nil {
		return Value{}, fmt.Errorf("render numeric: %w", err)
	}
	s, ok := dv.(string)
	if !ok {
		s = fmt.Sprint(dv)
	}
	return DecimalValue(s), nil
}
