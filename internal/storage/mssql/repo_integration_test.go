//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"
)

// getTestDSN reads the MSSQL_TEST_DSN environment variable.
// If it is empty, the caller should skip the test.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

// TestSinkRoundTripIntegration creates a sink table, appends documents and
// reads the watermark back from a real SQL Server.
func TestSinkRoundTripIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closeFn, err := NewRepository(ctx, Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository() error = %v, want nil", err)
	}
	defer closeFn()

	table := "dbo.replicator_it_data"
	_, _ = repo.db.ExecContext(ctx, "IF OBJECT_ID(N'dbo.replicator_it_data', N'U') IS NOT NULL DROP TABLE dbo.replicator_it_data;")

	if err := repo.EnsureTable(ctx, table); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	for _, d := range []string{
		`{"id":1,"created_at":"2024-01-01T00:00:00+00:00"}`,
		`{"id":2,"created_at":"2024-06-01T00:00:00+00:00"}`,
	} {
		if err := repo.Append(ctx, table, []byte(d)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := repo.MaxTimestamp(ctx, table, "created_at")
	if err != nil {
		t.Fatalf("MaxTimestamp() error = %v", err)
	}
	if want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC); got == nil || !got.Equal(want) {
		t.Fatalf("MaxTimestamp() = %v, want %v", got, want)
	}
}
