package postgres

import (
	"context"

	"songetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Writer by delegating to *Repository and
// calling the close function returned by NewRepository.
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

func init() {
	storage.Register(storage.KindPostgres, func(ctx context.Context, cfg storage.Config) (storage.Writer, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:       cfg.Location,
			BatchSize: cfg.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
