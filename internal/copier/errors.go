package copier

import (
	"context"
	"errors"
	"fmt"

	"github.com/withObsrvr/pgcopier/internal/partition"
)

// ConnectionError reports a failure to reach or acquire a connection to
// the source or target database.
type ConnectionError struct {
	DB  string // "source" | "target"
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s database connection: %v", e.DB, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a malformed predicate or a failed read query.
type QueryError struct {
	Table string
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("query against %s failed: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("query against %s failed: %v (query: %s)", e.Table, e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }

// TimeoutError reports a query or insert call that exceeded its deadline.
type TimeoutError struct {
	Table string
	Op    string
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s on %s timed out: %v", e.Op, e.Table, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// TruncateError reports a failed TRUNCATE, typically blocked by dependent
// rows when cascade was not requested.
type TruncateError struct {
	Table string
	Err   error
}

func (e *TruncateError) Error() string {
	return fmt.Sprintf("truncate %s failed: %v", e.Table, e.Err)
}

func (e *TruncateError) Unwrap() error { return e.Err }

// BatchInsertError reports one failed insert batch: constraint violation,
// duplicate key or type coercion failure. It carries the chunk bounds and
// the batch's absolute row span so the operator can re-run just that chunk.
type BatchInsertError struct {
	Table    string
	Chunk    partition.Chunk
	FirstRow int64 // absolute offset of the batch's first row
	Rows     int   // rows in the failed batch
	Err      error
}

func (e *BatchInsertError) Error() string {
	return fmt.Sprintf("batch insert into %s failed (chunk %d-%d, rows %d-%d): %v",
		e.Table, e.Chunk.Offset, e.Chunk.End(), e.FirstRow, e.FirstRow+int64(e.Rows), e.Err)
}

func (e *BatchInsertError) Unwrap() error { return e.Err }

// timeoutOr wraps a deadline error as a TimeoutError, otherwise returns
// the fallback classification.
func timeoutOr(table, op string, err, fallback error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Table: table, Op: op, Err: err}
	}
	return fallback
}
