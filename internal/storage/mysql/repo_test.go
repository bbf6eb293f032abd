package mysql

import (
	"context"
	"strings"
	"testing"

	"replicator/internal/ddl"
	"replicator/internal/storage"
)

func TestMyIdent(t *testing.T) {
	cases := map[string]string{
		"orders": "`orders`",
		"we`ird": "`we``ird`",
		"a b":    "`a b`",
	}
	for in, want := range cases {
		if got := myIdent(in); got != want {
			t.Errorf("myIdent(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSinkStatements(t *testing.T) {
	create, err := ddl.BuildCreateTableSQL(dialect, ddl.SinkTable("transform.orders_data", sinkTypes))
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS `transform`.`orders_data` (\n" +
		"  `id` BIGINT AUTO_INCREMENT NOT NULL,\n  `data` JSON NOT NULL,\n  PRIMARY KEY (`id`)\n);"
	if create != want {
		t.Errorf("create =\n%s\nwant:\n%s", create, want)
	}

	if got, want := insertSQL("transform.orders_data"), "INSERT INTO `transform`.`orders_data` (data) VALUES (?)"; got != want {
		t.Errorf("insertSQL = %q, want %q", got, want)
	}
	if got := maxSQL("t"); !strings.Contains(got, "JSON_TYPE(JSON_EXTRACT(data, ?)) = 'STRING'") {
		t.Errorf("maxSQL = %q, must skip non-string values", got)
	}
}

func TestNewRepositoryRejectsBadDSN(t *testing.T) {
	if _, _, err := NewRepository(context.Background(), Config{DSN: "not a dsn"}); err == nil {
		t.Fatal("expected DSN parse error")
	}
}

func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotDSN string
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotDSN = cfg.DSN
		return &Repository{}, func() { closed = true }, nil
	}

	dsn := "user:pass@tcp(localhost:3306)/replica"
	s, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotDSN != dsn {
		t.Errorf("DSN = %q, want %q", gotDSN, dsn)
	}
	s.Close()
	if !closed {
		t.Fatal("Close did not call closeFn")
	}
}
