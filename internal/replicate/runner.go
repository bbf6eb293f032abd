package replicate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"replicator/internal/metrics"
	"replicator/internal/replerr"
)

// Runner syncs a list of tables with the strategy of each table's mode.
//
// A connectivity failure ends the run. Any other table failure ends the run
// only when AbortOnTableError is set; otherwise it is logged, the remaining
// tables still run and the failure is part of the returned error.
type Runner struct {
	Job        string
	Strategies map[string]Strategy

	// Workers is the number of tables synced at once; <= 1 is sequential.
	Workers int

	AbortOnTableError bool
	Verbose           bool
}

// Run syncs tables and returns one Result per table that was started, in
// table order. The error joins every table failure.
func (r *Runner) Run(ctx context.Context, tables []Table) ([]Result, error) {
	start := time.Now()
	var (
		results []Result
		err     error
	)
	if r.Workers <= 1 {
		results, err = r.runSequential(ctx, tables)
	} else {
		results, err = r.runParallel(ctx, tables)
	}

	var rows int64
	failed := 0
	for _, res := range results {
		rows += res.Rows
		if res.Err != nil {
			failed++
		}
	}
	log.Printf("replicate: job=%s tables=%d/%d failed=%d rows=%d elapsed=%s",
		r.Job, len(results), len(tables), failed, rows, time.Since(start).Truncate(time.Millisecond))
	return results, err
}

func (r *Runner) runSequential(ctx context.Context, tables []Table) ([]Result, error) {
	results := make([]Result, 0, len(tables))
	var errs []error
	for _, t := range tables {
		res := r.runTable(ctx, t)
		results = append(results, res)
		if res.Err == nil {
			continue
		}
		errs = append(errs, res.Err)
		if r.stops(ctx, res.Err) {
			break
		}
	}
	return results, errors.Join(errs...)
}

func (r *Runner) runParallel(ctx context.Context, tables []Table) ([]Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)

	var mu sync.Mutex
	results := make([]*Result, len(tables))
	var errs []error

	for i, t := range tables {
		if gctx.Err() != nil {
			break
		}
		i, t := i, t
		g.Go(func() error {
			res := r.runTable(gctx, t)

			mu.Lock()
			defer mu.Unlock()
			// A table cut short because a sibling aborted the run is not a
			// failure of its own.
			if res.Err != nil && ctx.Err() == nil && gctx.Err() != nil && errors.Is(res.Err, context.Canceled) {
				return nil
			}
			results[i] = &res
			if res.Err == nil {
				return nil
			}
			errs = append(errs, res.Err)
			if r.stops(ctx, res.Err) {
				return res.Err
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Result, 0, len(tables))
	for _, res := range results {
		if res != nil {
			out = append(out, *res)
		}
	}
	return out, errors.Join(errs...)
}

func (r *Runner) stops(ctx context.Context, err error) bool {
	return replerr.IsRunFatal(err) || r.AbortOnTableError || ctx.Err() != nil
}

func (r *Runner) runTable(ctx context.Context, t Table) Result {
	start := time.Now()
	s, ok := r.Strategies[t.Mode]
	if !ok {
		err := &replerr.TableError{Table: t.Name, Step: StepTable, Err: fmt.Errorf("no strategy for mode %q", t.Mode)}
		return Result{Table: t.Name, Mode: t.Mode, Err: err}
	}

	res, err := s.Sync(ctx, t.Name)
	res.Table, res.Mode = t.Name, s.Name()
	res.Elapsed = time.Since(start)
	res.Err = err
	metrics.RecordStep(r.Job, t.Name, StepTable, err, res.Elapsed)

	if r.Verbose && res.Query != "" {
		log.Printf("replicate: table=%s query=%q", t.Name, res.Query)
	}
	if err != nil {
		log.Printf("replicate: table=%s mode=%s failed after %s: %v", t.Name, res.Mode, res.Elapsed.Truncate(time.Millisecond), err)
		return res
	}
	log.Printf("replicate: table=%s mode=%s rows=%d bytes=%d watermark=%s elapsed=%s",
		t.Name, res.Mode, res.Rows, res.Bytes, formatWatermark(res.Watermark), res.Elapsed.Truncate(time.Millisecond))
	return res
}

func formatWatermark(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
