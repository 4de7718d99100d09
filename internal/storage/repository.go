// Package storage holds the backend-agnostic output contract. A Writer
// persists whole tables; concrete backends (parquet, postgres, sqlite)
// register a Factory under their kind at init time, and callers obtain one
// through New without importing the backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/errs"

	"songetl/internal/objectstore"
	"songetl/internal/table"
)

// ErrWrite classifies failures to persist a table.
var ErrWrite = errs.Class("write failure")

// Writer persists tables. Each table name is written at most once per run;
// writing it again replaces the previous artifact. Implementations must accept
// concurrent WriteTable calls for distinct names.
type Writer interface {
	// WriteTable persists t under name, partitioned by the given columns when
	// the backend supports partitioning. It returns the number of rows
	// written.
	WriteTable(ctx context.Context, name string, t *table.Table, partitionBy []string) (int64, error)
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Kind string
	// Location is the output base: a directory, an s3:// URL, or a DSN.
	Location  string
	Overwrite bool
	BatchSize int
	// RunID names staging areas so concurrent runs never collide.
	RunID string
	// ObjectStore is required for s3:// locations.
	ObjectStore *objectstore.Client
}

// Factory constructs a Writer.
type Factory func(ctx context.Context, cfg Config) (Writer, error)

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

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs the Writer registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Writer, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds understood by KindFor.
const (
	KindParquet  = "parquet"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
)

// KindFor picks a backend kind from an output location:
//
//	postgres://..., postgresql://...  -> postgres
//	sqlite:..., *.db, *.sqlite        -> sqlite
//	anything else                     -> parquet
func KindFor(location string) string {
	l := strings.ToLower(location)
	switch {
	case strings.HasPrefix(l, "postgres://"), strings.HasPrefix(l, "postgresql://"):
		return KindPostgres
	case strings.HasPrefix(l, "sqlite:"), strings.HasSuffix(l, ".db"), strings.HasSuffix(l, ".sqlite"):
		return KindSQLite
	default:
		return KindParquet
	}
}
