package copier

import (
	"context"
	"log/slog"

	"github.com/withObsrvr/pgcopier/internal/logging"
)

// Runner executes an ordered list of jobs, strictly sequentially: jobs
// never run against each other, and within a job tables are processed in
// turn. Each table's own copy is internally parallelized.
type Runner struct {
	orch *Orchestrator
	log  *slog.Logger
}

// NewRunner creates a runner over the orchestrator.
func NewRunner(orch *Orchestrator) *Runner {
	return &Runner{orch: orch, log: logging.Component("runner")}
}

// Run executes the jobs and returns one result per (schema, table) pair
// in declaration order. A table failure does not abort the run; the
// caller inspects AnyFailed for the batch's completion status. An
// unreachable source or target is fatal and stops the run before any
// job starts.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]CopyResult, error) {
	if err := r.orch.source.Ping(ctx); err != nil {
		return nil, &ConnectionError{DB: "source", Err: err}
	}
	if err := r.orch.target.Ping(ctx); err != nil {
		return nil, &ConnectionError{DB: "target", Err: err}
	}

	var results []CopyResult
	for i, job := range jobs {
		r.log.Info("starting job",
			"job", i,
			"schema", job.Schema,
			"tables", len(job.Tables),
			"truncate", job.Truncate,
		)
		for _, table := range job.Tables {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			res := r.orch.CopyTable(ctx, job, table)
			results = append(results, res)
		}
	}
	return results, nil
}
