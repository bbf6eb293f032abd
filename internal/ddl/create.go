// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE TABLE statements from it for a given Dialect.
//
// The model stays generic: backends supply identifier quoting and the
// existence guard their engine understands (IF NOT EXISTS, or a wrapping
// script for engines without it). ColumnDef.Default is raw SQL; the caller is
// responsible for its safety and dialect correctness.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect carries the engine-specific parts of DDL rendering.
type Dialect struct {
	// Name prefixes error messages, e.g. "postgres ddl".
	Name string

	// QuoteIdent quotes one identifier segment. Nil emits names verbatim.
	QuoteIdent func(string) string

	// Guard wraps the bare CREATE TABLE statement so that it is a no-op when
	// the table exists. Nil renders CREATE TABLE IF NOT EXISTS.
	Guard func(quotedFQN, create string) string
}

// QuoteFQN quotes each segment of a possibly schema-qualified name. Empty
// segments are dropped.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.quote(p))
	}
	return strings.Join(out, ".")
}

func (d Dialect) quote(id string) string {
	if d.QuoteIdent == nil {
		return id
	}
	return d.QuoteIdent(id)
}

func (d Dialect) errorf(format string, args ...any) error {
	name := d.Name
	if name == "" {
		name = "ddl"
	}
	return fmt.Errorf(name+": "+format, args...)
}

// BuildCreateTableSQL renders an idempotent CREATE TABLE statement for t.
//
// Rules:
//
//   - t.FQN must be non-empty; each column must have a Name and SQLType.
//
//   - A column is rendered as
//
//     <Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
//     where NOT NULL is added when Nullable == false or the column is part of
//     the primary key.
//
//   - Primary-key columns are collected into a trailing PRIMARY KEY clause in
//     declaration order.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", d.errorf("table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", d.errorf("at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", d.errorf("column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", d.errorf("column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}

		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.quote(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	quoted := d.QuoteFQN(fqn)
	if d.Guard == nil {
		return fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
			quoted,
			strings.Join(cols, ",\n  "),
		), nil
	}
	create := fmt.Sprintf(
		"CREATE TABLE %s (\n    %s\n  );",
		quoted,
		strings.Join(cols, ",\n    "),
	)
	return d.Guard(quoted, create), nil
}

// DoubleQuote quotes an identifier the ANSI way, escaping embedded quotes:
//
//	DoubleQuote(`orders`)     => `"orders"`
//	DoubleQuote(`weird"name`) => `"weird""name"`
func DoubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
