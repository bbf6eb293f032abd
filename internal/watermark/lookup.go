package watermark

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"replicator/internal/replerr"
)

// Presence reports which of the configured watermark columns a table has.
type Presence struct {
	Created  bool
	Updated  bool
	Identity bool
}

// Lookup discovers column presence for a table.
type Lookup interface {
	Presence(ctx context.Context, table string, names Names) (Presence, error)
}

// RowQuerier is the single-row query surface of pgxpool.Pool and pgx.Conn.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const catalogSQL = `SELECT
  COALESCE(bool_or(column_name = $2), false),
  COALESCE(bool_or(column_name = $3), false),
  COALESCE(bool_or(column_name = $4), false)
FROM information_schema.columns
WHERE table_name = $1 AND ($5 = '' OR table_schema = $5)`

// CatalogLookup answers presence with one information_schema query against
// the source database.
type CatalogLookup struct {
	DB RowQuerier
	// Schema restricts the lookup when the table name is unqualified. Empty
	// matches any schema.
	Schema string
}

// Presence implements Lookup.
func (l CatalogLookup) Presence(ctx context.Context, table string, names Names) (Presence, error) {
	schema, name := splitTable(table)
	if schema == "" {
		schema = l.Schema
	}
	var p Presence
	err := l.DB.QueryRow(ctx, catalogSQL, name, names.Created, names.Updated, names.Identity, schema).
		Scan(&p.Created, &p.Updated, &p.Identity)
	if err != nil {
		return Presence{}, replerr.Query(err, "catalog lookup %s", table)
	}
	return p, nil
}

// FileColumn is one line of a column metadata file.
type FileColumn struct {
	Name string
	Type string
}

// FileLookup answers presence from per-table metadata files
// "<Dir>/<table>.txt" with one "column_name | data_type" line per column.
type FileLookup struct {
	Dir string
	// IgnorePrefix drops bookkeeping columns added by ingestion tools.
	IgnorePrefix string
}

// Presence implements Lookup.
func (l FileLookup) Presence(_ context.Context, table string, names Names) (Presence, error) {
	cols, err := l.Columns(table)
	if err != nil {
		return Presence{}, err
	}
	var p Presence
	for _, c := range cols {
		switch c.Name {
		case names.Created:
			p.Created = true
		case names.Updated:
			p.Updated = true
		case names.Identity:
			p.Identity = true
		}
	}
	return p, nil
}

// Columns reads the metadata file for table. UTF-8 and UTF-16 files with a
// byte order mark are accepted.
func (l FileLookup) Columns(table string) ([]FileColumn, error) {
	path := filepath.Join(l.Dir, table+".txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, replerr.Query(err, "column file %s", path)
	}
	defer f.Close()
	adviseSequential(f)

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	sc := bufio.NewScanner(transform.NewReader(f, dec))

	var cols []FileColumn
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		name, typ, _ := strings.Cut(line, "|")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if l.IgnorePrefix != "" && strings.HasPrefix(name, l.IgnorePrefix) {
			continue
		}
		cols = append(cols, FileColumn{Name: name, Type: strings.TrimSpace(typ)})
	}
	if err := sc.Err(); err != nil {
		return nil, replerr.Query(err, "read column file %s", path)
	}
	return cols, nil
}

// ListTables returns the table names that have a metadata file in dir,
// sorted.
func ListTables(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list column files: %w", err)
	}
	var tables []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		tables = append(tables, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(tables)
	return tables, nil
}

func splitTable(t string) (schema, name string) {
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		return t[:i], t[i+1:]
	}
	return "", t
}
