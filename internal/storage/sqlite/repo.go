// Package sqlite implements the SQLite document sink using database/sql and
// the pure-Go modernc.org/sqlite driver. Documents are stored as TEXT and
// queried with the JSON1 functions.
//
// SQLite has a single namespace per database file, so the schema part of a
// sink table name is dropped: "transform.orders_data" is stored as
// "orders_data".
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"replicator/internal/ddl"
	"replicator/internal/storage"
)

// Config holds SQLite sink configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:replica.db?cache=shared"
	//   ":memory:"
	DSN string
}

// Repository is a SQLite-backed storage.Sink.
type Repository struct {
	db *sql.DB
}

var dialect = ddl.Dialect{Name: "sqlite ddl", QuoteIdent: ddl.DoubleQuote}

// INTEGER PRIMARY KEY makes id an alias of the rowid, so it is assigned on
// insert.
var sinkTypes = ddl.SinkTypes{ID: "INTEGER", Data: "TEXT"}

// Open opens a SQLite database limited to one connection. With ":memory:"
// every connection would otherwise see its own empty database.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// New wraps an open database.
func New(db *sql.DB) *Repository { return &Repository{db: db} }

// NewRepository opens the database named by cfg.DSN and returns a Repository
// plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return New(db), func() { db.Close() }, nil
}

func tableName(fqn string) string {
	_, t := storage.SplitFQN(fqn)
	return dialect.QuoteFQN(t)
}

// EnsureTable creates the sink table if it does not exist.
func (r *Repository) EnsureTable(ctx context.Context, table string) error {
	_, name := storage.SplitFQN(table)
	stmt, err := ddl.BuildCreateTableSQL(dialect, ddl.SinkTable(name, sinkTypes))
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: create table: %w", err)
	}
	return nil
}

// Append inserts one document.
func (r *Repository) Append(ctx context.Context, table string, doc []byte) error {
	q := fmt.Sprintf("INSERT INTO %s (data) VALUES (?)", tableName(table))
	if _, err := r.db.ExecContext(ctx, q, string(doc)); err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}
	return nil
}

// MaxTimestamp reads the greatest value of a document field.
func (r *Repository) MaxTimestamp(ctx context.Context, table, field string) (*time.Time, error) {
	path, err := storage.JSONPath(field)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT MAX(json_extract(data, ?)) FROM %s", tableName(table))
	var s sql.NullString
	if err := r.db.QueryRowContext(ctx, q, path).Scan(&s); err != nil {
		return nil, fmt.Errorf("sqlite: max %s: %w", field, err)
	}
	if !s.Valid {
		return nil, nil
	}
	return storage.ParseMax(&s.String)
}
