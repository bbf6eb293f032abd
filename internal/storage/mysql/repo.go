// Package mysql implements the MySQL document sink using go-sql-driver/mysql.
// Documents are stored in a native JSON column. The schema part of a sink
// table name is a MySQL database and is created on demand.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"replicator/internal/ddl"
	"replicator/internal/storage"
)

// Config holds MySQL sink configuration.
type Config struct {
	DSN string // e.g. "user:pass@tcp(localhost:3306)/replica"
}

// Repository is a MySQL-backed storage.Sink.
type Repository struct {
	db *sql.DB
}

var dialect = ddl.Dialect{Name: "mysql ddl", QuoteIdent: myIdent}

var sinkTypes = ddl.SinkTypes{ID: "BIGINT AUTO_INCREMENT", Data: "JSON"}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db}, func() { _ = db.Close() }, nil
}

func insertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (data) VALUES (?)", dialect.QuoteFQN(table))
}

// maxSQL only considers string values; JSON_UNQUOTE turns a JSON null into
// the text "null", which would win the lexical MAX.
func maxSQL(table string) string {
	return fmt.Sprintf(
		"SELECT MAX(JSON_UNQUOTE(JSON_EXTRACT(data, ?))) FROM %s WHERE JSON_TYPE(JSON_EXTRACT(data, ?)) = 'STRING'",
		dialect.QuoteFQN(table))
}

// EnsureTable creates the database and the sink table if they do not exist.
func (r *Repository) EnsureTable(ctx context.Context, table string) error {
	if schema, _ := storage.SplitFQN(table); schema != "" {
		if _, err := r.db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+myIdent(schema)); err != nil {
			return fmt.Errorf("mysql: create database: %w", err)
		}
	}
	stmt, err := ddl.BuildCreateTableSQL(dialect, ddl.SinkTable(table, sinkTypes))
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mysql: create table: %w", err)
	}
	return nil
}

// Append inserts one document.
func (r *Repository) Append(ctx context.Context, table string, doc []byte) error {
	if _, err := r.db.ExecContext(ctx, insertSQL(table), string(doc)); err != nil {
		return fmt.Errorf("mysql: insert: %w", err)
	}
	return nil
}

// MaxTimestamp reads the greatest value of a document field.
func (r *Repository) MaxTimestamp(ctx context.Context, table, field string) (*time.Time, error) {
	path, err := storage.JSONPath(field)
	if err != nil {
		return nil, err
	}
	var s sql.NullString
	if err := r.db.QueryRowContext(ctx, maxSQL(table), path, path).Scan(&s); err != nil {
		return nil, fmt.Errorf("mysql: max %s: %w", field, err)
	}
	if !s.Valid {
		return nil, nil
	}
	return storage.ParseMax(&s.String)
}

// myIdent quotes an identifier with backticks, doubling embedded backticks.
func myIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}
