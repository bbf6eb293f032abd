// Package transfer streams a query result from one Postgres server into a
// table on another using the COPY protocol.
//
// The export (COPY ... TO STDOUT) and the import (COPY ... FROM STDIN) run
// concurrently and are joined by an io.Pipe, so at most one chunk is in
// flight and chunks arrive in export order. The import is only completed when
// the export ends with a clean EOF. If the export fails, the pipe is closed
// with that error, the importing connection aborts its COPY with CopyFail and
// the server discards everything loaded so far.
package transfer

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"replicator/internal/query"
	"replicator/internal/replerr"
)

// Exporter is the export half of a connection (*pgconn.PgConn).
type Exporter interface {
	CopyTo(ctx context.Context, w io.Writer, sql string) (pgconn.CommandTag, error)
}

// Importer is the import half of a connection (*pgconn.PgConn).
type Importer interface {
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)
}

// Stats describes one completed transfer.
type Stats struct {
	Chunks       int64
	Bytes        int64
	RowsExported int64
	RowsImported int64
	// Checksum is the xxh3 hash of the exported byte stream.
	Checksum uint64
}

// Transfer copies the result of q (a SELECT) into table. Nothing is
// committed on the target unless both sides succeed.
func Transfer(ctx context.Context, src Exporter, dst Importer, table, q string) (Stats, error) {
	pr, pw := io.Pipe()
	cw := &countingWriter{w: pw, h: xxh3.New()}

	// Whichever side fails first is the cause; the other side only sees the
	// closed pipe.
	var (
		once  sync.Once
		cause error
	)
	fail := func(err error) { once.Do(func() { cause = err }) }

	var st Stats
	var g errgroup.Group

	g.Go(func() error {
		tag, err := src.CopyTo(ctx, cw, query.ExportSQL(q))
		if err != nil {
			err = replerr.TransferChunk(err, "export %s after %d chunks", table, cw.chunks)
			fail(err)
			pw.CloseWithError(err)
			return err
		}
		st.RowsExported = tag.RowsAffected()
		return pw.Close()
	})

	g.Go(func() error {
		tag, err := dst.CopyFrom(ctx, pr, query.ImportSQL(table))
		if err != nil {
			err = replerr.Query(err, "import %s", table)
			fail(err)
			// Unblock the exporter if it is waiting on a full pipe.
			pr.CloseWithError(err)
			return err
		}
		st.RowsImported = tag.RowsAffected()
		return nil
	})

	err := g.Wait()
	if cause != nil {
		err = cause
	}

	st.Chunks, st.Bytes, st.Checksum = cw.chunks, cw.bytes, cw.h.Sum64()
	if err != nil {
		log.Printf("transfer: table=%s aborted chunks=%d bytes=%d err=%v", table, st.Chunks, st.Bytes, err)
		return st, err
	}
	if st.RowsExported != st.RowsImported {
		log.Printf("transfer: table=%s row count mismatch exported=%d imported=%d", table, st.RowsExported, st.RowsImported)
	}
	return st, nil
}

// countingWriter sees every chunk the exporter writes. pgconn issues one
// Write per CopyData message.
type countingWriter struct {
	w      io.Writer
	h      *xxh3.Hasher
	chunks int64
	bytes  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.chunks++
		c.bytes += int64(n)
		_, _ = c.h.Write(p[:n])
	}
	return n, err
}
