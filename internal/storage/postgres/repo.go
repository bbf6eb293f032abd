// Package postgres implements the Postgres document sink using pgx v5. Each
// document is one INSERT into a JSONB column.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"replicator/internal/ddl"
	"replicator/internal/storage"
)

// Config holds Postgres sink configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// dbtx is the subset of *pgxpool.Pool the repository uses.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is a Postgres-backed storage.Sink.
type Repository struct {
	db dbtx
}

// dialect renders Postgres DDL: double-quoted identifiers and
// CREATE TABLE IF NOT EXISTS.
var dialect = ddl.Dialect{Name: "postgres ddl", QuoteIdent: ddl.DoubleQuote}

var sinkTypes = ddl.SinkTypes{ID: "BIGSERIAL", Data: "JSONB"}

// NewRepository opens a pool and returns a Repository plus a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: pool}, pool.Close, nil
}

// EnsureTable creates the schema and the sink table if they do not exist.
func (r *Repository) EnsureTable(ctx context.Context, table string) error {
	if schema, _ := storage.SplitFQN(table); schema != "" {
		if _, err := r.db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+dialect.QuoteFQN(schema)); err != nil {
			return pgError("create schema", err)
		}
	}
	stmt, err := ddl.BuildCreateTableSQL(dialect, ddl.SinkTable(table, sinkTypes))
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, stmt); err != nil {
		return pgError("create table", err)
	}
	return nil
}

// Append inserts one document.
func (r *Repository) Append(ctx context.Context, table string, doc []byte) error {
	sql := fmt.Sprintf("INSERT INTO %s (data) VALUES ($1)", dialect.QuoteFQN(table))
	// string, not []byte: a []byte argument would be sent as bytea.
	if _, err := r.db.Exec(ctx, sql, string(doc)); err != nil {
		return pgError("insert", err)
	}
	return nil
}

// MaxTimestamp reads the greatest value of a document field.
func (r *Repository) MaxTimestamp(ctx context.Context, table, field string) (*time.Time, error) {
	sql := fmt.Sprintf("SELECT MAX(data->>$1) FROM %s", dialect.QuoteFQN(table))
	var s *string
	if err := r.db.QueryRow(ctx, sql, field).Scan(&s); err != nil {
		return nil, pgError("max "+field, err)
	}
	return storage.ParseMax(s)
}

// pgError surfaces the server's detail and SQLSTATE when available.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %s (%s): %w", op, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
