package copier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/withObsrvr/pgcopier/internal/catalog"
	"github.com/withObsrvr/pgcopier/internal/logging"
	"github.com/withObsrvr/pgcopier/internal/metrics"
	"github.com/withObsrvr/pgcopier/internal/partition"
	"github.com/withObsrvr/pgcopier/internal/rowset"
)

// Options holds the copy engine tunables.
type Options struct {
	Workers       int
	RowsForInsert int
	RowsForSelect int
	QueryTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 8
	}
	if o.RowsForInsert < 1 {
		o.RowsForInsert = 1000
	}
	if o.RowsForSelect < 1 {
		o.RowsForSelect = 10000
	}
	return o
}

// Orchestrator copies tables from a source to a target database. The
// worker pool is scoped to each CopyTable call: spawn, then join all.
type Orchestrator struct {
	source     *pgxpool.Pool
	target     *pgxpool.Pool
	srcCatalog *catalog.Resolver
	tgtCatalog *catalog.Resolver
	opts       Options
	mx         *metrics.Metrics
	log        *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given pools. Pools
// must be sized at least to Options.Workers; each worker holds one
// dedicated connection from each pool for its chunk's lifetime.
func NewOrchestrator(source, target *pgxpool.Pool, opts Options) *Orchestrator {
	return &Orchestrator{
		source:     source,
		target:     target,
		srcCatalog: catalog.NewResolver(source),
		tgtCatalog: catalog.NewResolver(target),
		opts:       opts.withDefaults(),
		mx:         metrics.Default(),
		log:        logging.Component("copier"),
	}
}

// CopyTable copies one table of the job. Compatibility is validated and
// the optional truncate completes before any row is counted or fetched,
// so the post-copy target holds exactly the copied rows when truncating.
// Partial success is surfaced: a failed result still reports the rows
// committed by the workers that succeeded.
func (o *Orchestrator) CopyTable(ctx context.Context, job Job, table string) CopyResult {
	log := logging.TableLogger(job.Schema, table)
	start := time.Now()

	fail := func(err error) CopyResult {
		log.Error("table copy aborted", "error", err)
		if o.mx != nil {
			o.mx.TablesCopied.WithLabelValues(job.Schema, string(StatusFailed)).Inc()
		}
		return CopyResult{Schema: job.Schema, Table: table, Errors: []error{err}, Status: StatusFailed}
	}

	src, err := o.srcCatalog.DescribeTable(ctx, job.Schema, table)
	if err != nil {
		return fail(err)
	}
	tgt, err := o.tgtCatalog.DescribeTable(ctx, job.Schema, table)
	if err != nil {
		return fail(err)
	}
	if err := catalog.Validate(src, tgt); err != nil {
		return fail(err)
	}

	columns := src.ColumnNames()
	decode, err := rowset.NewDecodePlan(columns, columnTypes(src))
	if err != nil {
		return fail(err)
	}
	encode, err := rowset.NewEncodePlan(columns, tgt.TypesByName())
	if err != nil {
		return fail(err)
	}

	if job.Truncate {
		log.Info("truncating target table", "cascade", job.Cascade)
		if err := o.truncate(ctx, job, table); err != nil {
			return fail(err)
		}
	}

	orderKey, err := o.srcCatalog.OrderKey(ctx, src)
	if err != nil {
		return fail(err)
	}

	total, err := partition.CountRows(ctx, o.source, job.Schema, table, job.WhereClause)
	if err != nil {
		return fail(&QueryError{Table: src.QualifiedName(), Err: err})
	}

	result := CopyResult{Schema: job.Schema, Table: table, Status: StatusCompleted}

	chunks := partition.Split(total, o.opts.Workers)
	if len(chunks) == 0 {
		log.Info("no rows to copy")
		if o.mx != nil {
			o.mx.TablesCopied.WithLabelValues(job.Schema, string(StatusCompleted)).Inc()
		}
		return result
	}

	log.Info("copying table",
		"rows", total,
		"chunks", len(chunks),
		"workers", o.opts.Workers,
		"order_by", orderKey,
	)

	plan := &tablePlan{
		schema:   job.Schema,
		table:    table,
		columns:  columns,
		where:    job.WhereClause,
		orderKey: orderKey,
		decode:   decode,
		encode:   encode,
	}

	// Join barrier: every worker finishes, success or failure. A failing
	// worker never cancels its siblings.
	outcomes := make([]workerOutcome, len(chunks))
	var wg sync.WaitGroup
	for i, c := range chunks {
		wg.Add(1)
		go func(i int, c partition.Chunk) {
			defer wg.Done()
			if o.mx != nil {
				o.mx.WorkersActive.Inc()
				defer o.mx.WorkersActive.Dec()
			}
			w := &chunkWorker{
				id:     i,
				plan:   plan,
				chunk:  c,
				source: o.source,
				target: o.target,
				opts:   o.opts,
				mx:     o.mx,
				log:    logging.WorkerLogger(job.Schema, table, i),
			}
			outcomes[i] = w.run(ctx)
		}(i, c)
	}
	wg.Wait()

	result = aggregateOutcomes(result, outcomes)

	if o.mx != nil {
		o.mx.TablesCopied.WithLabelValues(job.Schema, string(result.Status)).Inc()
		o.mx.TableDuration.WithLabelValues(job.Schema, table).Observe(result.Elapsed.Seconds())
	}

	if result.Failed() {
		log.Warn("table copy failed",
			"rows_committed", result.Rows,
			"errors", len(result.Errors),
			"duration", time.Since(start).String(),
		)
	} else {
		log.Info("table copy complete",
			"rows", result.Rows,
			"duration", time.Since(start).String(),
		)
	}
	return result
}

// truncate empties the target table in its own transaction, before any
// row counting begins.
func (o *Orchestrator) truncate(ctx context.Context, job Job, table string) error {
	qualified := job.Schema + "." + table

	tctx := ctx
	if o.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, o.opts.QueryTimeout)
		defer cancel()
	}

	tx, err := o.target.Begin(tctx)
	if err != nil {
		return &ConnectionError{DB: "target", Err: err}
	}
	if _, err := tx.Exec(tctx, truncateQuery(job.Schema, table, job.Cascade)); err != nil {
		_ = tx.Rollback(ctx)
		return timeoutOr(qualified, "truncate", err, &TruncateError{Table: qualified, Err: err})
	}
	if err := tx.Commit(tctx); err != nil {
		return timeoutOr(qualified, "truncate", err, &TruncateError{Table: qualified, Err: err})
	}
	return nil
}

// aggregateOutcomes folds the per-worker outcomes into the table result:
// committed rows are summed, the wall-clock duration is the slowest
// worker's elapsed time, errors are collected in chunk order, and any
// worker failure marks the table failed.
func aggregateOutcomes(result CopyResult, outcomes []workerOutcome) CopyResult {
	for _, out := range outcomes {
		result.Rows += out.rows
		if out.elapsed > result.Elapsed {
			result.Elapsed = out.elapsed
		}
		if out.err != nil {
			result.Errors = append(result.Errors, out.err)
			result.Status = StatusFailed
		}
	}
	return result
}

func columnTypes(t catalog.Table) []string {
	types := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		types[i] = c.DataType
	}
	return types
}
