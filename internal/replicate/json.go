package replicate

import (
	"context"
	"errors"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/time/rate"

	"replicator/internal/config"
	"replicator/internal/decode"
	"replicator/internal/metrics"
	"replicator/internal/query"
	"replicator/internal/replerr"
	"replicator/internal/storage"
	"replicator/internal/watermark"
)

// Querier is the multi-row query surface of pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// JSONStrategy extracts new rows, decodes every value generically and
// appends each row as one JSON document to the sink.
type JSONStrategy struct {
	Job      string
	Source   Querier
	Sink     storage.Sink
	Resolver *watermark.Resolver

	// SinkTable maps a source table to its sink table.
	SinkTable func(table string) string

	AutoCreate bool

	// Cap bounds the rows extracted per run; <= 0 is unbounded.
	Cap int

	// RowsPerSecond throttles appends; <= 0 disables the throttle.
	RowsPerSecond float64
}

// NewJSONStrategy wires a JSONStrategy from c. The watermark is read back
// from the sink.
func NewJSONStrategy(c config.Config, source Querier, lookup watermark.Lookup, sink storage.Sink) *JSONStrategy {
	sinkTable := func(table string) string {
		return storage.TableName(c.Sink.Schema, table, c.Sink.Suffix)
	}
	return &JSONStrategy{
		Job:    c.Job,
		Source: source,
		Sink:   sink,
		Resolver: &watermark.Resolver{
			Lookup: lookup,
			Source: sink,
			Names:  Names(c),
			Target: sinkTable,
		},
		SinkTable:     sinkTable,
		AutoCreate:    c.Sink.AutoCreateEnabled(),
		Cap:           query.CapFor(c.CellLimit, 2),
		RowsPerSecond: c.Runtime.RowsPerSecond,
	}
}

func (s *JSONStrategy) Name() string { return config.ModeJSON }

// Sync implements Strategy. Rows appended before a failure stay in the sink.
func (s *JSONStrategy) Sync(ctx context.Context, table string) (Result, error) {
	res := Result{Table: table, Mode: config.ModeJSON}
	sinkTable := table
	if s.SinkTable != nil {
		sinkTable = s.SinkTable(table)
	}

	if s.AutoCreate {
		err := runStep(s.Job, table, StepEnsure, func() error {
			return replerr.Query(s.Sink.EnsureTable(ctx, sinkTable), "ensure sink table %s", sinkTable)
		})
		if err != nil {
			return res, err
		}
	}

	var rz watermark.Resolution
	err := runStep(s.Job, table, StepResolve, func() (err error) {
		rz, err = s.Resolver.Resolve(ctx, table)
		return err
	})
	if err != nil {
		return res, err
	}
	res.Watermark = rz.Watermark
	res.Query = query.Build(query.Plan{
		Table:     table,
		Columns:   rz.Columns,
		Watermark: rz.Watermark,
		Cap:       s.Cap,
	})

	err = runStep(s.Job, table, StepExtract, func() error {
		rows, err := s.Source.Query(ctx, res.Query)
		if err != nil {
			return replerr.Query(err, "extract %s", table)
		}
		dec := decode.New(typeMap(rows))
		lim := newLimiter(s.RowsPerSecond)

		var decoded int64
		n, err := dec.ProjectRows(rows, func(doc []byte) error {
			decoded++
			if lim != nil {
				if err := lim.Wait(ctx); err != nil {
					return err
				}
			}
			return replerr.Query(s.Sink.Append(ctx, sinkTable, doc), "append %s", sinkTable)
		})
		res.Rows = n
		metrics.RecordRow(s.Job, table, "decoded", decoded)
		metrics.RecordRow(s.Job, table, "appended", n)

		if err != nil && ctx.Err() == nil && !errors.Is(err, replerr.ErrQuery) {
			err = replerr.Query(err, "extract %s", table)
		}
		return err
	})
	return res, err
}

// typeMap is the connection's type map so that custom types registered on
// the connection decode too. Rows without a connection use a fresh map.
func typeMap(rows pgx.Rows) *pgtype.Map {
	if c := rows.Conn(); c != nil {
		return c.TypeMap()
	}
	return nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(math.Ceil(rps))
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
