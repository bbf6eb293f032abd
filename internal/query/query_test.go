package query

import (
	"testing"
	"time"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	wm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	with := func(created, updated, id bool) Columns {
		c := DefaultColumns()
		c.HasCreated, c.HasUpdated, c.HasIdentity = created, updated, id
		return c
	}

	cases := []struct {
		name string
		plan Plan
		want string
	}{
		{
			name: "created with watermark and cap",
			plan: Plan{Table: "orders", Columns: with(true, false, false), Watermark: &wm, Cap: 3},
			want: "SELECT * FROM orders WHERE created_at >= '2024-01-01 00:00:00+00' ORDER BY created_at ASC LIMIT 3",
		},
		{
			name: "created and updated with watermark",
			plan: Plan{Table: "orders", Columns: with(true, true, true), Watermark: &wm},
			want: "SELECT * FROM orders WHERE created_at >= '2024-01-01 00:00:00+00' OR updated_at >= '2024-01-01 00:00:00+00' ORDER BY created_at ASC",
		},
		{
			name: "created cold start",
			plan: Plan{Table: "orders", Columns: with(true, false, false), Cap: 3},
			want: "SELECT * FROM orders WHERE created_at IS NOT NULL ORDER BY created_at ASC LIMIT 3",
		},
		{
			name: "created and updated cold start ignores updated",
			plan: Plan{Table: "orders", Columns: with(true, true, false)},
			want: "SELECT * FROM orders WHERE created_at IS NOT NULL ORDER BY created_at ASC",
		},
		{
			name: "identity only",
			plan: Plan{Table: "customers", Columns: with(false, false, true)},
			want: "SELECT * FROM customers ORDER BY id ASC",
		},
		{
			name: "updated only falls back to identity",
			plan: Plan{Table: "customers", Columns: with(false, true, true), Watermark: &wm},
			want: "SELECT * FROM customers ORDER BY id ASC",
		},
		{
			name: "no watermark columns",
			plan: Plan{Table: "lookup", Columns: with(false, false, false), Cap: 32500},
			want: "SELECT * FROM lookup LIMIT 32500",
		},
		{
			name: "quoted identifiers",
			plan: Plan{
				Table:   "Sales.Order",
				Columns: Columns{Created: "CreatedAt", HasCreated: true},
			},
			want: `SELECT * FROM "Sales"."Order" WHERE "CreatedAt" IS NOT NULL ORDER BY "CreatedAt" ASC`,
		},
		{
			name: "negative cap is unbounded",
			plan: Plan{Table: "t", Cap: -1},
			want: "SELECT * FROM t",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Build(tc.plan); got != tc.want {
				t.Errorf("Build()\n got: %s\nwant: %s", got, tc.want)
			}
		})
	}
}

func TestCapFor(t *testing.T) {
	t.Parallel()

	cases := []struct{ cells, cols, want int }{
		{65000, 2, 32500},
		{65000, 3, 21666},
		{0, 2, 0},
		{65000, 0, 0},
	}
	for _, tc := range cases {
		if got := CapFor(tc.cells, tc.cols); got != tc.want {
			t.Errorf("CapFor(%d, %d) = %d, want %d", tc.cells, tc.cols, got, tc.want)
		}
	}
}

func TestLiteral(t *testing.T) {
	t.Parallel()

	cet := time.FixedZone("CET", 3600)
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 1, 1, 1, 0, 0, 0, cet), "'2024-01-01 00:00:00+00'"},
		{time.Date(2024, 1, 1, 0, 0, 0, 500_000_000, time.UTC), "'2024-01-01 00:00:00.5+00'"},
		{time.Date(2024, 1, 1, 0, 0, 0, 123_456_789, time.UTC), "'2024-01-01 00:00:00.123456+00'"},
	}
	for _, tc := range cases {
		if got := Literal(tc.in); got != tc.want {
			t.Errorf("Literal(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestCopyStatements(t *testing.T) {
	t.Parallel()

	q := "SELECT * FROM orders"
	if got, want := ExportSQL(q), "COPY (SELECT * FROM orders) TO STDOUT WITH CSV HEADER"; got != want {
		t.Errorf("ExportSQL = %q, want %q", got, want)
	}
	if got, want := ImportSQL("public.orders"), "COPY public.orders FROM STDIN WITH CSV HEADER"; got != want {
		t.Errorf("ImportSQL = %q, want %q", got, want)
	}
	if got, want := MaxSQL("orders", "created_at"), "SELECT MAX(created_at) FROM orders WHERE created_at IS NOT NULL"; got != want {
		t.Errorf("MaxSQL = %q, want %q", got, want)
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"orders":     "orders",
		"order_2":    "order_2",
		"Orders":     `"Orders"`,
		"order":      `"order"`,
		"2fast":      `"2fast"`,
		`weird"name`: `"weird""name"`,
		"":           `""`,
	}
	for in, want := range cases {
		if got := QuoteIdent(in); got != want {
			t.Errorf("QuoteIdent(%q) = %s, want %s", in, got, want)
		}
	}
}
