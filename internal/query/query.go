// Package query renders the extraction statement for one table run.
//
// The statement shape is driven by which watermark columns the table has and
// by the current watermark:
//
//	created + watermark T   WHERE created >= 'T' [OR updated >= 'T'] ORDER BY created ASC
//	created, no watermark   WHERE created IS NOT NULL ORDER BY created ASC
//	no created, identity    ORDER BY identity ASC
//	otherwise               no filter, no order
//
// The comparison is inclusive, so the boundary row(s) are extracted again on
// the next run. Downstream consumers must tolerate those duplicates.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Columns names the watermark columns and reports which ones the table has.
type Columns struct {
	Created  string
	Updated  string
	Identity string

	HasCreated  bool
	HasUpdated  bool
	HasIdentity bool
}

// DefaultColumns returns the conventional column names with nothing present.
func DefaultColumns() Columns {
	return Columns{Created: "created_at", Updated: "updated_at", Identity: "id"}
}

// Plan is everything Build needs for one statement.
type Plan struct {
	// Table is the source table, optionally schema-qualified ("public.orders").
	Table   string
	Columns Columns
	// Watermark is the highest creation timestamp already replicated; nil on
	// cold start.
	Watermark *time.Time
	// Cap bounds the number of rows; <= 0 means unbounded.
	Cap int
}

// Build renders the SELECT for p.
func Build(p Plan) string {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(QuoteFQN(p.Table))

	c := p.Columns
	switch {
	case c.HasCreated && p.Watermark != nil:
		lit := Literal(*p.Watermark)
		created := QuoteIdent(c.Created)
		fmt.Fprintf(&sb, " WHERE %s >= %s", created, lit)
		if c.HasUpdated {
			fmt.Fprintf(&sb, " OR %s >= %s", QuoteIdent(c.Updated), lit)
		}
		fmt.Fprintf(&sb, " ORDER BY %s ASC", created)
	case c.HasCreated:
		created := QuoteIdent(c.Created)
		fmt.Fprintf(&sb, " WHERE %s IS NOT NULL ORDER BY %s ASC", created, created)
	case c.HasIdentity:
		fmt.Fprintf(&sb, " ORDER BY %s ASC", QuoteIdent(c.Identity))
	}

	if p.Cap > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(p.Cap))
	}
	return sb.String()
}

// CapFor derives the per-run row cap from a per-batch cell limit and the
// number of sink columns. Non-positive inputs disable the cap.
func CapFor(cellLimit, sinkColumns int) int {
	if cellLimit <= 0 || sinkColumns <= 0 {
		return 0
	}
	return cellLimit / sinkColumns
}

// Literal renders t as a quoted UTC timestamp literal with microsecond
// precision, e.g. '2024-01-01 00:00:00.5+00'.
func Literal(t time.Time) string {
	u := t.UTC().Truncate(time.Microsecond)
	s := u.Format("2006-01-02 15:04:05")
	if us := u.Nanosecond() / 1000; us != 0 {
		frac := strings.TrimRight(fmt.Sprintf("%06d", us), "0")
		s += "." + frac
	}
	return "'" + s + "+00'"
}

// ExportSQL wraps q for a CSV export over the COPY protocol.
func ExportSQL(q string) string {
	return "COPY (" + q + ") TO STDOUT WITH CSV HEADER"
}

// ImportSQL renders the matching CSV import into table.
func ImportSQL(table string) string {
	return "COPY " + QuoteFQN(table) + " FROM STDIN WITH CSV HEADER"
}

// MaxSQL reads the largest non-null value of col in table.
func MaxSQL(table, col string) string {
	c := QuoteIdent(col)
	return fmt.Sprintf("SELECT MAX(%s) FROM %s WHERE %s IS NOT NULL", c, QuoteFQN(table), c)
}

// QuoteIdent leaves plain lowercase identifiers bare and double-quotes the
// rest, escaping embedded quotes:
//
//	QuoteIdent(`orders`)     => `orders`
//	QuoteIdent(`Orders`)     => `"Orders"`
//	QuoteIdent(`weird"name`) => `"weird""name"`
func QuoteIdent(id string) string {
	if isPlain(id) {
		return id
	}
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each segment of a possibly schema-qualified name. Empty
// segments are dropped.
func QuoteFQN(f string) string {
	parts := strings.Split(f, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

func isPlain(id string) bool {
	if id == "" || reserved[id] {
		return false
	}
	for i, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '$'):
		default:
			return false
		}
	}
	return true
}

// reserved lists keywords that cannot appear bare as a table or column name.
var reserved = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "both": true, "case": true,
	"cast": true, "check": true, "collate": true, "column": true,
	"constraint": true, "create": true, "default": true, "desc": true,
	"distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "for": true, "foreign": true, "from": true, "grant": true,
	"group": true, "having": true, "in": true, "into": true, "is": true,
	"join": true, "limit": true, "not": true, "null": true, "offset": true,
	"on": true, "only": true, "or": true, "order": true, "primary": true,
	"references": true, "select": true, "table": true, "then": true,
	"to": true, "true": true, "union": true, "unique": true, "user": true,
	"using": true, "when": true, "where": true, "with": true,
}
