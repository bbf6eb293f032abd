package replicate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"replicator/internal/transfer"
	"replicator/internal/watermark"
)

// fakeRows serves text-format raw values.
type fakeRows struct {
	fields []pgconn.FieldDescription
	data   [][][]byte
	err    error
	i      int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Scan(...any) error                            { return errors.New("fakeRows: Scan") }
func (r *fakeRows) Values() ([]any, error)                       { return nil, errors.New("fakeRows: Values") }
func (r *fakeRows) RawValues() [][]byte                          { return r.data[r.i-1] }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

// fakeQuerier records the statement and returns rows or err.
type fakeQuerier struct {
	rows *fakeRows
	err  error
	sql  string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.sql = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

// fakeSink is an in-memory storage.Sink.
type fakeSink struct {
	max       *time.Time
	maxErr    error
	appendErr error

	ensured []string
	maxArgs []string
	docs    []string
	tables  []string
}

func (s *fakeSink) EnsureTable(_ context.Context, table string) error {
	s.ensured = append(s.ensured, table)
	return nil
}

func (s *fakeSink) Append(_ context.Context, table string, doc []byte) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.tables = append(s.tables, table)
	s.docs = append(s.docs, string(doc))
	return nil
}

func (s *fakeSink) MaxTimestamp(_ context.Context, table, field string) (*time.Time, error) {
	s.maxArgs = append(s.maxArgs, table+"/"+field)
	return s.max, s.maxErr
}

func (s *fakeSink) Close() {}

// fakeLookup returns a fixed presence.
type fakeLookup struct {
	p   watermark.Presence
	err error
}

func (l fakeLookup) Presence(context.Context, string, watermark.Names) (watermark.Presence, error) {
	return l.p, l.err
}

// fakeRow scans a *time.Time into the first destination.
type fakeRow struct {
	t   *time.Time
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(**time.Time) = r.t
	return nil
}

type fakeRowQuerier struct {
	row fakeRow
	sql string
}

func (q *fakeRowQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.sql = sql
	return q.row
}

// fakeExporter writes chunks, then fails with err if set.
type fakeExporter struct {
	chunks []string
	err    error
	sql    string
}

func (f *fakeExporter) CopyTo(_ context.Context, w io.Writer, sql string) (pgconn.CommandTag, error) {
	f.sql = sql
	for _, c := range f.chunks {
		if _, err := w.Write([]byte(c)); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag("COPY " + itoa(len(f.chunks)-1)), nil
}

// fakeImporter commits only on clean EOF.
type fakeImporter struct {
	got       bytes.Buffer
	committed bool
	sql       string
}

func (f *fakeImporter) CopyFrom(_ context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	f.sql = sql
	if _, err := io.Copy(&f.got, r); err != nil {
		return pgconn.CommandTag{}, err
	}
	f.committed = true
	return pgconn.NewCommandTag("COPY " + itoa(strings.Count(f.got.String(), "\n")-1)), nil
}

type fakeConns struct {
	exp        *fakeExporter
	imp        *fakeImporter
	acquireErr error

	mu       sync.Mutex
	released int
}

func (c *fakeConns) release() {
	c.mu.Lock()
	c.released++
	c.mu.Unlock()
}

func (c *fakeConns) Exporter(context.Context) (transfer.Exporter, func(), error) {
	if c.acquireErr != nil {
		return nil, nil, c.acquireErr
	}
	return c.exp, c.release, nil
}

func (c *fakeConns) Importer(context.Context) (transfer.Importer, func(), error) {
	return c.imp, c.release, nil
}

func itoa(n int) string {
	return strconv.Itoa(max(n, 0))
}
