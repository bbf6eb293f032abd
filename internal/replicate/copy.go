package replicate

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"replicator/internal/config"
	"replicator/internal/metrics"
	"replicator/internal/query"
	"replicator/internal/replerr"
	"replicator/internal/transfer"
	"replicator/internal/watermark"
)

// CopyConns hands out the two connections of one COPY transfer. The
// returned func releases the connection.
type CopyConns interface {
	Exporter(ctx context.Context) (transfer.Exporter, func(), error)
	Importer(ctx context.Context) (transfer.Importer, func(), error)
}

// PoolConns acquires raw connections from the source and target pools.
type PoolConns struct {
	Source *pgxpool.Pool
	Target *pgxpool.Pool
}

// Exporter implements CopyConns.
func (p PoolConns) Exporter(ctx context.Context) (transfer.Exporter, func(), error) {
	c, err := p.Source.Acquire(ctx)
	if err != nil {
		return nil, nil, replerr.Connectivity(err, "acquire source connection")
	}
	return c.Conn().PgConn(), c.Release, nil
}

// Importer implements CopyConns.
func (p PoolConns) Importer(ctx context.Context) (transfer.Importer, func(), error) {
	c, err := p.Target.Acquire(ctx)
	if err != nil {
		return nil, nil, replerr.Connectivity(err, "acquire target connection")
	}
	return c.Conn().PgConn(), c.Release, nil
}

// CopyStrategy streams new rows into a same-schema target table with COPY.
// The target table must exist; a table's load is all or nothing.
type CopyStrategy struct {
	Job      string
	Conns    CopyConns
	Resolver *watermark.Resolver
}

// NewCopyStrategy wires a CopyStrategy from c. The watermark is read from the
// target table itself.
func NewCopyStrategy(c config.Config, conns CopyConns, lookup watermark.Lookup, target watermark.RowQuerier) *CopyStrategy {
	return &CopyStrategy{
		Job:   c.Job,
		Conns: conns,
		Resolver: &watermark.Resolver{
			Lookup: lookup,
			Source: watermark.TableSource{DB: target},
			Names:  Names(c),
		},
	}
}

func (s *CopyStrategy) Name() string { return config.ModeCopy }

// Sync implements Strategy.
func (s *CopyStrategy) Sync(ctx context.Context, table string) (Result, error) {
	res := Result{Table: table, Mode: config.ModeCopy}

	var rz watermark.Resolution
	err := runStep(s.Job, table, StepResolve, func() (err error) {
		rz, err = s.Resolver.Resolve(ctx, table)
		return err
	})
	if err != nil {
		return res, err
	}
	res.Watermark = rz.Watermark
	res.Query = query.Build(query.Plan{Table: table, Columns: rz.Columns, Watermark: rz.Watermark})

	err = runStep(s.Job, table, StepTransfer, func() error {
		exp, releaseExp, err := s.Conns.Exporter(ctx)
		if err != nil {
			return err
		}
		defer releaseExp()
		imp, releaseImp, err := s.Conns.Importer(ctx)
		if err != nil {
			return err
		}
		defer releaseImp()

		st, err := transfer.Transfer(ctx, exp, imp, table, res.Query)
		if err != nil {
			return err
		}
		res.Rows, res.Bytes = st.RowsImported, st.Bytes
		metrics.RecordRow(s.Job, table, "copied", st.RowsImported)
		metrics.RecordBytes(s.Job, table, st.Bytes)
		return nil
	})
	return res, err
}
