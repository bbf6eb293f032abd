// Package replicate runs table syncs. A Strategy moves one table's new rows
// from source to target; a Runner applies strategies to the configured
// tables and enforces the error policy.
package replicate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"replicator/internal/config"
	"replicator/internal/metrics"
	"replicator/internal/replerr"
	"replicator/internal/watermark"
)

// Step names used in metrics and TableError.
const (
	StepEnsure   = "ensure"
	StepResolve  = "resolve"
	StepExtract  = "extract"
	StepTransfer = "transfer"
	StepTable    = "table"
)

// Table is one unit of work.
type Table struct {
	Name string
	Mode string
}

// Result describes one table sync, successful or not.
type Result struct {
	Table     string
	Mode      string
	Query     string
	Watermark *time.Time
	Rows      int64
	Bytes     int64
	Elapsed   time.Duration
	Err       error
}

// Strategy syncs a single table.
type Strategy interface {
	Name() string
	Sync(ctx context.Context, table string) (Result, error)
}

// runStep times fn, records it and attributes a failure to table and step.
func runStep(job, table, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(job, table, step, err, time.Since(start))
	if err != nil {
		return &replerr.TableError{Table: table, Step: step, Err: err}
	}
	return nil
}

// NewLookup returns the column presence lookup selected by c.Discovery.
func NewLookup(c config.Config, source watermark.RowQuerier) (watermark.Lookup, error) {
	switch c.Discovery {
	case config.DiscoveryCatalog:
		return watermark.CatalogLookup{DB: source}, nil
	case config.DiscoveryColumnsFile:
		return watermark.FileLookup{Dir: c.ColumnsDir, IgnorePrefix: c.IgnoreColumnPrefix}, nil
	}
	return nil, fmt.Errorf("replicate: unknown discovery %q", c.Discovery)
}

// Names converts the configured watermark columns.
func Names(c config.Config) watermark.Names {
	return watermark.Names{
		Created:  c.Watermark.Created,
		Updated:  c.Watermark.Updated,
		Identity: c.Watermark.Identity,
	}
}

// Tables lists the tables to sync. Without configured tables, column-file
// discovery syncs every table that has a metadata file.
func Tables(c config.Config) ([]Table, error) {
	if len(c.Tables) > 0 {
		out := make([]Table, 0, len(c.Tables))
		for _, t := range c.Tables {
			out = append(out, Table{Name: t.Name, Mode: c.TableMode(t)})
		}
		return out, nil
	}
	if c.Discovery != config.DiscoveryColumnsFile {
		return nil, errors.New("replicate: no tables configured")
	}
	names, err := watermark.ListTables(c.ColumnsDir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("replicate: no column files in %s", c.ColumnsDir)
	}
	out := make([]Table, 0, len(names))
	for _, n := range names {
		out = append(out, Table{Name: n, Mode: c.Mode})
	}
	return out, nil
}
