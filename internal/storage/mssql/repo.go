// Package mssql implements the Microsoft SQL Server document sink using
// go-mssqldb. Documents are stored as NVARCHAR(MAX) and queried with
// JSON_VALUE (SQL Server 2016+).
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"replicator/internal/ddl"
	"replicator/internal/storage"
)

// Config holds MSSQL sink configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed storage.Sink.
type Repository struct {
	db *sql.DB
}

// dialect brackets identifiers and wraps CREATE TABLE in an OBJECT_ID guard,
// since T-SQL has no CREATE TABLE IF NOT EXISTS.
var dialect = ddl.Dialect{
	Name:       "mssql ddl",
	QuoteIdent: msIdent,
	Guard: func(fqn, create string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  %s\nEND;",
			strings.ReplaceAll(fqn, "'", "''"), create)
	},
}

var sinkTypes = ddl.SinkTypes{ID: "BIGINT IDENTITY(1,1)", Data: "NVARCHAR(MAX)"}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db}, func() { _ = db.Close() }, nil
}

// ensureSQL renders the schema guard and the table guard as one batch.
func ensureSQL(table string) (string, error) {
	create, err := ddl.BuildCreateTableSQL(dialect, ddl.SinkTable(table, sinkTypes))
	if err != nil {
		return "", err
	}
	schema, _ := storage.SplitFQN(table)
	if schema == "" {
		return create, nil
	}
	lit := strings.ReplaceAll(schema, "'", "''")
	guard := fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL\n  EXEC(N'CREATE SCHEMA %s');\n",
		lit, strings.ReplaceAll(msIdent(schema), "'", "''"))
	return guard + create, nil
}

func insertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (data) VALUES (@p1)", dialect.QuoteFQN(table))
}

// maxSQL inlines the path: JSON_VALUE only accepts a literal path before
// SQL Server 2017.
func maxSQL(table, field string) (string, error) {
	path, err := storage.JSONPath(field)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT MAX(JSON_VALUE(data, '%s')) FROM %s", path, dialect.QuoteFQN(table)), nil
}

// EnsureTable creates the schema and the sink table if they do not exist.
func (r *Repository) EnsureTable(ctx context.Context, table string) error {
	stmt, err := ensureSQL(table)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mssql: create table: %w", err)
	}
	return nil
}

// Append inserts one document.
func (r *Repository) Append(ctx context.Context, table string, doc []byte) error {
	if _, err := r.db.ExecContext(ctx, insertSQL(table), string(doc)); err != nil {
		return fmt.Errorf("mssql: insert: %w", err)
	}
	return nil
}

// MaxTimestamp reads the greatest value of a document field.
func (r *Repository) MaxTimestamp(ctx context.Context, table, field string) (*time.Time, error) {
	q, err := maxSQL(table, field)
	if err != nil {
		return nil, err
	}
	var s sql.NullString
	if err := r.db.QueryRowContext(ctx, q).Scan(&s); err != nil {
		return nil, fmt.Errorf("mssql: max %s: %w", field, err)
	}
	if !s.Valid {
		return nil, nil
	}
	return storage.ParseMax(&s.String)
}

// msIdent quotes a single identifier segment using bracket syntax, escaping
// closing brackets.
//
//	name      -> [name]
//	weird]id  -> [weird]]id]
func msIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}
