// Package sqlite implements a SQLite-backed storage.Writer using
// database/sql. Each table is replaced inside one transaction with batched
// prepared INSERTs; SQLite has no bulk-load API like Postgres COPY, but a
// single transaction keeps moderate volumes fast.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"songetl/internal/ddl"
	"songetl/internal/storage"
	"songetl/internal/table"
)

// Repository writes tables into one SQLite database.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: writes are serialized anyway, and ":memory:" databases
	// exist per connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// WriteTable replaces table name with the rows of t: create if missing,
// delete old rows, insert, commit. partitionBy is ignored.
func (r *Repository) WriteTable(ctx context.Context, name string, t *table.Table, _ []string) (int64, error) {
	create, err := ddl.BuildCreateTableSQL(ddl.FromDescriptor(name, t.Schema, MapType))
	if err != nil {
		return 0, storage.ErrWrite.Wrap(err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storage.ErrWrite.New("sqlite: begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, storage.ErrWrite.New("sqlite: create %s: %v", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+ddl.QuoteFQN(name)); err != nil {
		return 0, storage.ErrWrite.New("sqlite: clear %s: %v", name, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Schema)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		ddl.QuoteFQN(name), ddl.QuoteList(t.Schema.Names()), placeholders,
	))
	if err != nil {
		return 0, storage.ErrWrite.New("sqlite: prepare insert: %v", err)
	}
	defer stmt.Close()

	n, err := storage.LoadTable(ctx, t, r.cfg.BatchSize, func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
		var inserted int64
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return inserted, fmt.Errorf("sqlite: insert: %w", err)
			}
			inserted++
		}
		return inserted, nil
	})
	if err != nil {
		return n, storage.ErrWrite.Wrap(err)
	}

	if err := tx.Commit(); err != nil {
		return n, storage.ErrWrite.New("sqlite: commit: %v", err)
	}
	log.Info().Str("backend", "sqlite").Str("table", name).Int64("rows", n).Msg("table written")
	return n, nil
}

// Query runs a read-only query; it exists for verification and tests.
func (r *Repository) Query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, q, args...)
}
