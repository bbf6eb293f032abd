// Package db opens the source and target Postgres pools.
package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"replicator/internal/replerr"
)

// ApplicationName is reported to the server for every connection.
const ApplicationName = "replicator"

// Open parses dsn, enforces sslMode on it and returns a pinged pool. Every
// failure is a connectivity error.
func Open(ctx context.Context, dsn, sslMode string) (*pgxpool.Pool, error) {
	dsn, err := WithSSLMode(dsn, sslMode)
	if err != nil {
		return nil, replerr.Connectivity(err, "dsn")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, replerr.Connectivity(err, "parse dsn")
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, replerr.Connectivity(err, "connect %s", Redact(dsn))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, replerr.Connectivity(err, "ping %s", Redact(dsn))
	}
	return pool, nil
}

// WithSSLMode adds sslmode=mode to dsn unless it already names one. Both URL
// ("postgres://...") and keyword ("host=... dbname=...") forms are accepted.
// An empty mode leaves dsn unchanged.
func WithSSLMode(dsn, mode string) (string, error) {
	if mode == "" {
		return dsn, nil
	}
	if isURL(dsn) {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		if q.Get("sslmode") != "" {
			return dsn, nil
		}
		q.Set("sslmode", mode)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	for _, kv := range strings.Fields(dsn) {
		if strings.HasPrefix(kv, "sslmode=") {
			return dsn, nil
		}
	}
	if strings.TrimSpace(dsn) == "" {
		return "sslmode=" + mode, nil
	}
	return dsn + " sslmode=" + mode, nil
}

// Redact hides the password of a URL dsn for logs. Keyword dsns are reduced
// to their host and dbname.
func Redact(dsn string) string {
	if isURL(dsn) {
		u, err := url.Parse(dsn)
		if err != nil {
			return "<invalid dsn>"
		}
		return u.Redacted()
	}
	var keep []string
	for _, kv := range strings.Fields(dsn) {
		if strings.HasPrefix(kv, "host=") || strings.HasPrefix(kv, "dbname=") || strings.HasPrefix(kv, "port=") {
			keep = append(keep, kv)
		}
	}
	return strings.Join(keep, " ")
}

func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
