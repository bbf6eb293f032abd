package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// fakeSink is a minimal Sink implementation for tests.
type fakeSink struct {
	closed bool
}

func (f *fakeSink) EnsureTable(context.Context, string) error    { return nil }
func (f *fakeSink) Append(context.Context, string, []byte) error { return nil }
func (f *fakeSink) Close()                                       { f.closed = true }
func (f *fakeSink) MaxTimestamp(context.Context, string, string) (*time.Time, error) {
	return nil, nil
}

// TestRegisterAndNew_Success verifies that registering a backend enables New()
// to return the corresponding sink.
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Sink, error) {
		return &fakeSink{}, nil
	})

	s, err := New(context.Background(), Config{Kind: kind})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if s == nil {
		t.Fatalf("New returned nil sink")
	}

	found := false
	for _, k := range ListKinds() {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("registered kind %q not present in ListKinds", kind)
	}
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
	if got, want := err.Error(), "unsupported sink.kind=does-not-exist"; got != want {
		t.Fatalf("error = %q, want %q", got, want)
	}
}

// TestRegister_Override verifies that re-registering a kind replaces the
// previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0
	Register(kind, func(ctx context.Context, cfg Config) (Sink, error) {
		calls++
		return &fakeSink{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Sink, error) {
		calls += 10
		return &fakeSink{}, nil
	})

	if _, err := New(context.Background(), Config{Kind: kind}); err != nil {
		t.Fatalf("New error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("factory call count = %d, want 10", calls)
	}
}

func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Sink, error) { return &fakeSink{}, nil })

	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	a[0] = "mutated"
	if b := ListKinds(); reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned same slice; want snapshot copy")
	}
}

func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(ctx context.Context, cfg Config) (Sink, error) { return nil, want })

	if _, err := New(context.Background(), Config{Kind: "errkind"}); !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func TestTableName(t *testing.T) {
	t.Parallel()

	cases := []struct{ schema, table, suffix, want string }{
		{"transform", "orders", "_data", "transform.orders_data"},
		{"transform", "public.orders", "_data", "transform.orders_data"},
		{"", "orders", "_data", "orders_data"},
		{"", "orders", "", "orders"},
	}
	for _, tc := range cases {
		if got := TableName(tc.schema, tc.table, tc.suffix); got != tc.want {
			t.Errorf("TableName(%q, %q, %q) = %q, want %q", tc.schema, tc.table, tc.suffix, got, tc.want)
		}
	}
}

func TestParseMax(t *testing.T) {
	t.Parallel()

	str := func(s string) *string { return &s }
	cases := []struct {
		in      *string
		want    *time.Time
		wantErr bool
	}{
		{in: nil},
		{in: str("")},
		{in: str("2024-01-01T00:00:00+00:00"), want: ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{in: str("2024-01-01T00:00:00.250+00:00"), want: ptr(time.Date(2024, 1, 1, 0, 0, 0, 250_000_000, time.UTC))},
		{in: str("2024-01-01 05:06:07.123456"), want: ptr(time.Date(2024, 1, 1, 5, 6, 7, 123_456_000, time.UTC))},
		{in: str("yesterday"), wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseMax(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseMax(%v) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("ParseMax = %v, want nil", got)
		case tc.want != nil && (got == nil || !got.Equal(*tc.want)):
			t.Errorf("ParseMax = %v, want %v", got, tc.want)
		}
	}
}

func TestJSONPath(t *testing.T) {
	t.Parallel()

	if got, err := JSONPath("created_at"); err != nil || got != `$."created_at"` {
		t.Fatalf("JSONPath = %q, %v", got, err)
	}
	for _, bad := range []string{"", `a"b`, "a.b", "1x", "x'--"} {
		if _, err := JSONPath(bad); err == nil {
			t.Errorf("JSONPath(%q) accepted", bad)
		}
	}
}

func ptr[T any](v T) *T { return &v }
