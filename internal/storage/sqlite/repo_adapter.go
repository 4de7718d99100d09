package sqlite

import (
	"context"
	"strings"

	"songetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adds Close to *Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Writer = (*wrappedRepo)(nil)

// Close implements storage.Writer.
func (w *wrappedRepo) Close() error {
	if w.closeFn != nil {
		w.closeFn()
	}
	return nil
}

// DSN converts an output location into a driver DSN by removing a leading
// "sqlite:" or "sqlite://".
func DSN(location string) string {
	for _, p := range []string{"sqlite://", "sqlite:"} {
		if rest, ok := strings.CutPrefix(location, p); ok {
			return rest
		}
	}
	return location
}

func init() {
	storage.Register(storage.KindSQLite, func(ctx context.Context, cfg storage.Config) (storage.Writer, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:       DSN(cfg.Location),
			BatchSize: cfg.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
