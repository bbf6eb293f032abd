package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"replicator/internal/config"
	"replicator/internal/db"
	"replicator/internal/replerr"
	"replicator/internal/replicate"
	"replicator/internal/storage"
)

// Test hooks.
var (
	openPool = db.Open
	newSink  = storage.New
)

// runOnce opens the connections, syncs every table and closes everything
// again. Each run gets its own id in the logs.
func runOnce(ctx context.Context, cfg config.Config, verbose bool) error {
	runID := uuid.NewString()
	start := time.Now()

	tables, err := replicate.Tables(cfg)
	if err != nil {
		return err
	}
	log.Printf("run %s: start job=%s tables=%d discovery=%s workers=%d",
		runID, cfg.Job, len(tables), cfg.Discovery, cfg.Runtime.Workers)

	src, err := openPool(ctx, cfg.Source.DSN, cfg.SSLMode)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer src.Close()

	dst, err := openPool(ctx, cfg.Target.DSN, cfg.SSLMode)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	defer dst.Close()

	lookup, err := replicate.NewLookup(cfg, src)
	if err != nil {
		return err
	}

	strategies := make(map[string]replicate.Strategy, 2)
	if hasMode(tables, config.ModeCopy) {
		strategies[config.ModeCopy] = replicate.NewCopyStrategy(cfg, replicate.PoolConns{Source: src, Target: dst}, lookup, dst)
	}
	if hasMode(tables, config.ModeJSON) {
		sink, err := openSink(ctx, cfg)
		if err != nil {
			return err
		}
		defer sink.Close()
		strategies[config.ModeJSON] = replicate.NewJSONStrategy(cfg, src, lookup, sink)
	}

	r := &replicate.Runner{
		Job:               cfg.Job,
		Strategies:        strategies,
		Workers:           cfg.Runtime.Workers,
		AbortOnTableError: cfg.AbortOnTableError(),
		Verbose:           verbose,
	}
	results, err := r.Run(ctx, tables)
	log.Printf("run %s: done tables=%d elapsed=%s ok=%v", runID, len(results), time.Since(start).Truncate(time.Millisecond), err == nil)
	return err
}

// openSink opens the json-mode sink. A postgres sink gets the same TLS
// settings as the source and target.
func openSink(ctx context.Context, cfg config.Config) (storage.Sink, error) {
	dsn := cfg.Sink.DSN
	if cfg.Sink.Kind == "postgres" {
		var err error
		if dsn, err = db.WithSSLMode(dsn, cfg.SSLMode); err != nil {
			return nil, replerr.Connectivity(err, "sink dsn")
		}
	}
	sink, err := newSink(ctx, storage.Config{Kind: cfg.Sink.Kind, DSN: dsn})
	if err != nil {
		return nil, replerr.Connectivity(err, "open %s sink", cfg.Sink.Kind)
	}
	return sink, nil
}

func hasMode(tables []replicate.Table, mode string) bool {
	for _, t := range tables {
		if t.Mode == mode {
			return true
		}
	}
	return false
}

// runScheduled runs on cfg.Runtime.Schedule until ctx is done. A run that is
// still going when the next one is due causes that one to be skipped. Failed
// runs are logged; the schedule keeps going.
func runScheduled(ctx context.Context, cfg config.Config, verbose bool) error {
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(logger)))

	if _, err := c.AddFunc(cfg.Runtime.Schedule, func() {
		if err := runOnce(ctx, cfg, verbose); err != nil {
			log.Printf("schedule: run failed: %v", err)
		}
		flushMetrics()
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Runtime.Schedule, err)
	}

	log.Printf("schedule: %q job=%s", cfg.Runtime.Schedule, cfg.Job)
	c.Start()
	<-ctx.Done()
	log.Printf("schedule: stopping, waiting for the running job")
	<-c.Stop().Done()
	return nil
}
