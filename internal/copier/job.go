// Package copier implements the concurrent table copy engine: per-table
// orchestration, chunk workers and the sequential batch runner.
package copier

// Job names a schema's tables to copy plus filter and truncate options.
// Jobs are externally produced (see internal/jobfile) and immutable.
type Job struct {
	Schema string
	Tables []string

	// WhereClause is a raw predicate appended verbatim after WHERE in both
	// the count and the chunk queries. Empty means no filter.
	WhereClause string

	// Truncate empties each target table before copying into it.
	Truncate bool
	// Cascade additionally clears dependent rows. Meaningful only with
	// Truncate.
	Cascade bool
}
