// Package watermark discovers which incremental-sync columns a table has and
// reads the current high-water mark from the target.
//
// The watermark is always read from data that has already been replicated,
// never from the source, so a table that has never been synced (or whose
// target is empty) resolves to a nil watermark and a full extraction.
package watermark

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"replicator/internal/query"
	"replicator/internal/replerr"
)

// Names are the configured watermark column names.
type Names struct {
	Created  string
	Updated  string
	Identity string
}

// DefaultNames returns created_at / updated_at / id.
func DefaultNames() Names {
	d := query.DefaultColumns()
	return Names{Created: d.Created, Updated: d.Updated, Identity: d.Identity}
}

// Source reads the maximum timestamp of column in an already replicated
// table. It returns nil when there is nothing to read.
type Source interface {
	MaxTimestamp(ctx context.Context, table, column string) (*time.Time, error)
}

// TableSource reads MAX(column) from a same-schema target table.
type TableSource struct {
	DB RowQuerier
}

// MaxTimestamp implements Source.
func (s TableSource) MaxTimestamp(ctx context.Context, table, column string) (*time.Time, error) {
	var hi *time.Time
	err := s.DB.QueryRow(ctx, query.MaxSQL(table, column)).Scan(&hi)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hi, nil
}

// Resolution is what a table run needs to build its statement.
type Resolution struct {
	Columns   query.Columns
	Watermark *time.Time
}

// Resolver combines a Lookup with a Source.
type Resolver struct {
	Lookup Lookup
	Source Source
	Names  Names
	// Target maps a source table to the name the Source knows it by. Nil
	// means the same name.
	Target func(table string) string
}

// Resolve discovers column presence for table and, when the creation column
// exists, the current watermark. Failures are query errors; nothing retries.
func (r *Resolver) Resolve(ctx context.Context, table string) (Resolution, error) {
	p, err := r.Lookup.Presence(ctx, table, r.Names)
	if err != nil {
		if !errors.Is(err, replerr.ErrQuery) {
			err = replerr.Query(err, "presence %s", table)
		}
		return Resolution{}, err
	}

	res := Resolution{Columns: query.Columns{
		Created:     r.Names.Created,
		Updated:     r.Names.Updated,
		Identity:    r.Names.Identity,
		HasCreated:  p.Created,
		HasUpdated:  p.Updated,
		HasIdentity: p.Identity,
	}}
	if !p.Created {
		return res, nil
	}

	target := table
	if r.Target != nil {
		target = r.Target(table)
	}
	wm, err := r.Source.MaxTimestamp(ctx, target, r.Names.Created)
	if err != nil {
		return Resolution{}, replerr.Query(err, "watermark %s.%s", target, r.Names.Created)
	}
	res.Watermark = wm
	return res, nil
}
