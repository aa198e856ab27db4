package copier

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/withObsrvr/pgcopier/internal/metrics"
	"github.com/withObsrvr/pgcopier/internal/partition"
	"github.com/withObsrvr/pgcopier/internal/rowset"
)

// tablePlan bundles what every worker of one table copy shares: names,
// predicate, ordering and the decode/encode plans. All fields are
// read-only during the copy.
type tablePlan struct {
	schema   string
	table    string
	columns  []string
	where    string
	orderKey string
	decode   *rowset.DecodePlan
	encode   *rowset.EncodePlan
}

func (p *tablePlan) qualified() string { return p.schema + "." + p.table }

// chunkWorker copies exactly one chunk. It owns one dedicated source and
// one dedicated target connection for its whole lifetime.
type chunkWorker struct {
	id     int
	plan   *tablePlan
	chunk  partition.Chunk
	source *pgxpool.Pool
	target *pgxpool.Pool
	opts   Options
	mx     *metrics.Metrics
	log    *slog.Logger
}

// workerOutcome is what the orchestrator aggregates per worker.
type workerOutcome struct {
	rows    int64
	elapsed time.Duration
	err     error
}

func (w *chunkWorker) run(ctx context.Context) workerOutcome {
	start := time.Now()
	rows, err := w.copyChunk(ctx)
	out := workerOutcome{rows: rows, elapsed: time.Since(start), err: err}
	if w.mx != nil {
		if err != nil {
			w.mx.ChunkFailures.WithLabelValues(w.plan.schema, w.plan.table).Inc()
		} else {
			w.mx.ChunksProcessed.WithLabelValues(w.plan.schema, w.plan.table).Inc()
		}
	}
	return out
}

// copyChunk fetches the chunk in sub-selects of at most RowsForSelect
// rows, decoding into a buffer flushed every RowsForInsert rows (capped
// for wide tables, see flushThreshold). Returns the rows committed,
// which survive a later batch's failure.
func (w *chunkWorker) copyChunk(ctx context.Context) (int64, error) {
	srcConn, err := w.source.Acquire(ctx)
	if err != nil {
		return 0, &ConnectionError{DB: "source", Err: err}
	}
	defer srcConn.Release()

	tgtConn, err := w.target.Acquire(ctx)
	if err != nil {
		return 0, &ConnectionError{DB: "target", Err: err}
	}
	defer tgtConn.Release()

	flushAt := w.flushThreshold()
	var committed int64
	buf := make([]rowset.Row, 0, flushAt)

	offset := w.chunk.Offset
	end := w.chunk.End()
	for offset < end {
		limit := end - offset
		if max := int64(w.opts.RowsForSelect); limit > max {
			limit = max
		}

		fetched, err := w.fetchSub(ctx, srcConn, partition.Chunk{Offset: offset, Limit: limit})
		if err != nil {
			return committed, err
		}
		for _, row := range fetched {
			buf = append(buf, row)
			if len(buf) >= flushAt {
				if err := w.flush(ctx, tgtConn, buf, &committed); err != nil {
					return committed, err
				}
				buf = buf[:0]
			}
		}
		offset += limit
	}

	if len(buf) > 0 {
		if err := w.flush(ctx, tgtConn, buf, &committed); err != nil {
			return committed, err
		}
	}

	w.log.Debug("chunk complete", "offset", w.chunk.Offset, "limit", w.chunk.Limit, "rows", committed)
	return committed, nil
}

// fetchSub reads one bounded sub-range of the chunk and decodes it.
func (w *chunkWorker) fetchSub(ctx context.Context, conn *pgxpool.Conn, sub partition.Chunk) ([]rowset.Row, error) {
	q := selectQuery(w.plan.schema, w.plan.table, w.plan.columns, w.plan.where, w.plan.orderKey, sub)

	qctx, cancel := w.queryCtx(ctx)
	defer cancel()

	rows, err := conn.Query(qctx, q)
	if err != nil {
		return nil, timeoutOr(w.plan.qualified(), "chunk select", err,
			&QueryError{Table: w.plan.qualified(), Query: q, Err: err})
	}
	defer rows.Close()

	fetched := make([]rowset.Row, 0, sub.Limit)
	for rows.Next() {
		dest := w.plan.decode.Dest()
		if err := rows.Scan(dest...); err != nil {
			return nil, &QueryError{Table: w.plan.qualified(), Query: q, Err: err}
		}
		row, err := w.plan.decode.Row(dest)
		if err != nil {
			return nil, &QueryError{Table: w.plan.qualified(), Query: q, Err: err}
		}
		fetched = append(fetched, row)
	}
	if err := rows.Err(); err != nil {
		return nil, timeoutOr(w.plan.qualified(), "chunk select", err,
			&QueryError{Table: w.plan.qualified(), Query: q, Err: err})
	}
	return fetched, nil
}

// flush re-encodes the buffered rows for the target and commits them as
// one batched insert in its own transaction.
func (w *chunkWorker) flush(ctx context.Context, conn *pgxpool.Conn, batch []rowset.Row, committed *int64) error {
	firstRow := w.chunk.Offset + *committed

	batchErr := func(err error) error {
		if w.mx != nil {
			w.mx.BatchFailures.WithLabelValues(w.plan.schema, w.plan.table).Inc()
		}
		return timeoutOr(w.plan.qualified(), "batch insert", err, &BatchInsertError{
			Table:    w.plan.qualified(),
			Chunk:    w.chunk,
			FirstRow: firstRow,
			Rows:     len(batch),
			Err:      err,
		})
	}

	args := make([]any, 0, len(batch)*len(w.plan.columns))
	var err error
	for _, row := range batch {
		if args, err = w.plan.encode.AppendArgs(args, row); err != nil {
			return batchErr(err)
		}
	}
	q := insertQuery(w.plan.schema, w.plan.table, w.plan.encode.Columns(), len(batch))

	qctx, cancel := w.queryCtx(ctx)
	defer cancel()

	tx, err := conn.Begin(qctx)
	if err != nil {
		return timeoutOr(w.plan.qualified(), "batch insert", err, &ConnectionError{DB: "target", Err: err})
	}
	if _, err := tx.Exec(qctx, q, args...); err != nil {
		_ = tx.Rollback(ctx)
		return batchErr(err)
	}
	if err := tx.Commit(qctx); err != nil {
		return batchErr(err)
	}

	*committed += int64(len(batch))
	if w.mx != nil {
		w.mx.RowsCopied.WithLabelValues(w.plan.schema, w.plan.table).Add(float64(len(batch)))
		w.mx.BatchesCommitted.WithLabelValues(w.plan.schema, w.plan.table).Inc()
	}
	return nil
}

// maxBindParams is the Postgres extended-protocol ceiling on bind
// parameters per statement.
const maxBindParams = 65535

// flushThreshold caps the insert batch size so a wide table's batch
// never exceeds the bind parameter ceiling.
func (w *chunkWorker) flushThreshold() int {
	n := w.opts.RowsForInsert
	if cols := len(w.plan.columns); cols > 0 && n*cols > maxBindParams {
		n = maxBindParams / cols
		if n < 1 {
			n = 1
		}
	}
	return n
}

// queryCtx bounds one query or insert call when a timeout is configured.
func (w *chunkWorker) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.opts.QueryTimeout > 0 {
		return context.WithTimeout(ctx, w.opts.QueryTimeout)
	}
	return context.WithCancel(ctx)
}
