package catalog

import (
	"fmt"
	"strings"

	"github.com/withObsrvr/pgcopier/internal/rowset"
)

// SchemaMismatchError reports source columns the target table cannot
// accept. It is raised before any data movement.
type SchemaMismatchError struct {
	Source string
	Target string
	Issues []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch copying %s into %s: %s",
		e.Source, e.Target, strings.Join(e.Issues, "; "))
}

// Validate checks that every source column has a same-named, type-compatible
// counterpart in the target table. All problems are collected so the operator
// sees the full set at once.
func Validate(src, tgt Table) error {
	var issues []string
	for _, sc := range src.Columns {
		if !rowset.Supported(sc.DataType) {
			issues = append(issues, fmt.Sprintf("column %s has unsupported type %s", sc.Name, sc.DataType))
			continue
		}
		tc, ok := tgt.Column(sc.Name)
		if !ok {
			issues = append(issues, fmt.Sprintf("column %s missing in target", sc.Name))
			continue
		}
		if !rowset.Compatible(sc.DataType, tc.DataType) {
			issues = append(issues, fmt.Sprintf("column %s: source %s incompatible with target %s",
				sc.Name, sc.DataType, tc.DataType))
		}
	}
	if len(issues) > 0 {
		return &SchemaMismatchError{
			Source: src.QualifiedName(),
			Target: tgt.QualifiedName(),
			Issues: issues,
		}
	}
	return nil
}
