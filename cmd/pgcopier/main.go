package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/withObsrvr/pgcopier/internal/config"
	"github.com/withObsrvr/pgcopier/internal/copier"
	"github.com/withObsrvr/pgcopier/internal/jobfile"
	"github.com/withObsrvr/pgcopier/internal/logging"
	"github.com/withObsrvr/pgcopier/internal/metrics"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})

	log := logging.Component("main")
	log.Info("pgcopier starting", "version", Version, "git_sha", GitSHA)

	batchFile := cfg.BatchFile
	if len(os.Args) > 1 {
		batchFile = os.Args[1]
	}
	if batchFile == "" {
		log.Error("no batch file: pass it as the first argument or set BATCH_FILENAME")
		os.Exit(2)
	}

	jobs, err := jobfile.Load(batchFile)
	if err != nil {
		log.Error("failed to load batch file", "error", err)
		os.Exit(2)
	}

	if cfg.Metrics.Enabled {
		metrics.Init("pgcopier")
		go func() {
			if err := metrics.Serve(metrics.Config(cfg.Metrics)); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	source, err := openPool(ctx, cfg.Source.DSN(), cfg.Copy.Workers)
	if err != nil {
		log.Error("failed to connect to source", "addr", cfg.Source.Addr(), "error", err)
		os.Exit(1)
	}
	defer source.Close()

	target, err := openPool(ctx, cfg.Target.DSN(), cfg.Copy.Workers)
	if err != nil {
		log.Error("failed to connect to target", "addr", cfg.Target.Addr(), "error", err)
		os.Exit(1)
	}
	defer target.Close()

	log.Info("databases reachable",
		"source", cfg.Source.Addr(),
		"target", cfg.Target.Addr(),
		"workers", cfg.Copy.Workers,
		"rows_for_insert", cfg.Copy.RowsForInsert,
		"rows_for_select", cfg.Copy.RowsForSelect,
	)

	orch := copier.NewOrchestrator(source, target, copier.Options{
		Workers:       cfg.Copy.Workers,
		RowsForInsert: cfg.Copy.RowsForInsert,
		RowsForSelect: cfg.Copy.RowsForSelect,
		QueryTimeout:  cfg.Copy.QueryTimeout,
	})

	results, err := copier.NewRunner(orch).Run(ctx, jobs)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown before batch completion")
		} else {
			log.Error("batch run failed", "error", err)
		}
		os.Exit(1)
	}

	var total int64
	failed := 0
	for _, res := range results {
		total += res.Rows
		status := slog.Group("result",
			"schema", res.Schema,
			"table", res.Table,
			"rows", res.Rows,
			"duration", res.Elapsed.String(),
			"status", string(res.Status),
		)
		if res.Failed() {
			failed++
			log.Warn("table result", status, "errors", len(res.Errors))
			for _, e := range res.Errors {
				log.Warn("table error", "schema", res.Schema, "table", res.Table, "error", e)
			}
		} else {
			log.Info("table result", status)
		}
	}

	log.Info("batch complete", "tables", len(results), "failed", failed, "rows_copied", total)
	if failed > 0 {
		os.Exit(1)
	}
}

// openPool connects a pool sized for the worker count plus headroom for
// catalog and count queries, and verifies the database is reachable.
func openPool(ctx context.Context, dsn string, workers int) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(workers + 2)
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
