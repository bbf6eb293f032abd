// Package storage contains the backend-agnostic sink contract, the factory
// that selects a backend by kind, and helpers shared by backends.
//
// Backends register themselves from init(); import storage/all to enable all
// built-in kinds.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Sink appends JSON documents to per-table sink tables.
//
// The sink table has two columns: an auto-assigned "id" and the document in
// "data". Every Append is one INSERT; there is no upsert, dedup or batching,
// so re-extracted boundary rows are appended again.
type Sink interface {
	// EnsureTable creates the sink table (and its schema where the engine has
	// one) if it does not exist.
	EnsureTable(ctx context.Context, table string) error

	// Append inserts one document.
	Append(ctx context.Context, table string, doc []byte) error

	// MaxTimestamp returns the greatest timestamp stored under field across
	// all documents of table, or nil when there is none.
	MaxTimestamp(ctx context.Context, table, field string) (*time.Time, error)

	Close()
}

// Config selects and configures a sink backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Sink for a backend.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Sink of cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported sink.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// TableName renders the sink table for a source table:
// "<schema>.<table><suffix>", or "<table><suffix>" without a schema. A
// schema-qualified source table keeps only its last segment.
func TableName(schema, table, suffix string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	name := table + suffix
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// SplitFQN splits "schema.table" at the last dot.
func SplitFQN(fqn string) (schema, table string) {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[:i], fqn[i+1:]
	}
	return "", fqn
}
