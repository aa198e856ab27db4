// Package partition counts matching rows and splits them into disjoint,
// exhaustive offset ranges for the worker pool.
package partition

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Chunk is one contiguous slice of a table's matching row set, assigned
// to exactly one worker.
type Chunk struct {
	Offset int64
	Limit  int64
}

// End returns the exclusive upper bound of the chunk.
func (c Chunk) End() int64 { return c.Offset + c.Limit }

// CountRows counts the rows the copy will read. The predicate must be the
// exact predicate of the chunk SELECTs, or the chunk ranges drift.
func CountRows(ctx context.Context, pool *pgxpool.Pool, schema, table, where string) (int64, error) {
	q := fmt.Sprintf("SELECT count(1) FROM %s", pgx.Identifier{schema, table}.Sanitize())
	if where != "" {
		q += " WHERE " + where
	}
	var total int64
	if err := pool.QueryRow(ctx, q).Scan(&total); err != nil {
		return 0, fmt.Errorf("count rows in %s.%s: %w", schema, table, err)
	}
	return total, nil
}

// Split divides total rows into up to workers contiguous chunks. Chunks
// are pairwise disjoint and cover [0, total) exactly; the last chunk
// absorbs the remainder. A zero total yields no chunks, and no chunk is
// ever empty.
func Split(total int64, workers int) []Chunk {
	if total <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	n := int64(workers)
	if n > total {
		n = total
	}

	per := total / n
	chunks := make([]Chunk, 0, n)
	var offset int64
	for i := int64(0); i < n; i++ {
		limit := per
		if i == n-1 {
			limit = total - offset
		}
		chunks = append(chunks, Chunk{Offset: offset, Limit: limit})
		offset += limit
	}
	return chunks
}
