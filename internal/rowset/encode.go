package rowset

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// EncodePlan converts decoded Rows into insert arguments for the target
// table. Columns are matched by name, never by ordinal position: the
// insert lists the source column names and each value is re-encoded per
// the declared type of the same-named target column.
type EncodePlan struct {
	columns []string
	targets []typeInfo
}

// NewEncodePlan builds an encode plan. sourceNames is the source column
// order; targetTypes maps target column name to its declared type.
func NewEncodePlan(sourceNames []string, targetTypes map[string]string) (*EncodePlan, error) {
	targets := make([]typeInfo, len(sourceNames))
	for i, name := range sourceNames {
		dt, ok := targetTypes[name]
		if !ok {
			return nil, fmt.Errorf("encode plan: target has no column %s", name)
		}
		ti, ok := lookup(dt)
		if !ok {
			return nil, fmt.Errorf("encode plan: column %s has unsupported type %s", name, dt)
		}
		targets[i] = ti
	}
	return &EncodePlan{columns: sourceNames, targets: targets}, nil
}

// Columns returns the insert column list.
func (p *EncodePlan) Columns() []string { return p.columns }

// AppendArgs re-encodes one row and appends its insert arguments.
func (p *EncodePlan) AppendArgs(args []any, row Row) ([]any, error) {
	if len(row) != len(p.columns) {
		return nil, fmt.Errorf("encode: row has %d values for %d columns", len(row), len(p.columns))
	}
	for i, v := range row {
		arg, err := encodeValue(v, p.targets[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", p.columns[i], err)
		}
		args = append(args, arg)
	}
	return args, nil
}

// encodeValue converts one value to a driver argument for the target type.
func encodeValue(v Value, target typeInfo) (any, error) {
	if v.Kind == KindNull {
		return nil, nil
	}

	switch v.Kind {
	case KindBool:
		if target.kind == KindBool {
			return v.Bool, nil
		}
	case KindInt:
		switch target.kind {
		case KindInt:
			return v.Int, nil
		case KindFloat:
			return float64(v.Int), nil
		case KindDecimal:
			return v.Int, nil
		}
	case KindFloat:
		switch target.kind {
		case KindFloat:
			return v.Float, nil
		case KindDecimal:
			return v.Float, nil
		}
	case KindText:
		if target.kind == KindText {
			return v.Text, nil
		}
	case KindBytes:
		if target.kind == KindBytes {
			return v.Bytes, nil
		}
	case KindDecimal:
		if target.kind == KindDecimal {
			var n pgtype.Numeric
			if err := n.Scan(v.Text); err != nil {
				return nil, fmt.Errorf("parse decimal %q: %w", v.Text, err)
			}
			return n, nil
		}
	case KindTimestamp:
		if target.kind == KindTimestamp {
			return v.Time, nil
		}
	}
	return nil, fmt.Errorf("cannot encode %s value into %s column", v.Kind, target.kind)
}
