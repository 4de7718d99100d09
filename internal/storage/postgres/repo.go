// Package postgres implements a Postgres storage.Writer using pgx v5. Each
// table is replaced in one transaction: CREATE TABLE IF NOT EXISTS, TRUNCATE,
// then batched COPY FROM.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"songetl/internal/ddl"
	"songetl/internal/schema"
	"songetl/internal/storage"
	"songetl/internal/table"
)

// Config holds Postgres writer configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	Schema    string // optional target schema, e.g. "public"
	BatchSize int    // rows per COPY
}

// Repository writes tables into one Postgres database.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, closeFn, nil
}

// MapType maps a logical column type to a Postgres SQL type.
//
//	int       -> BIGINT
//	float     -> DOUBLE PRECISION
//	bool      -> BOOLEAN
//	timestamp -> TIMESTAMPTZ
//	string    -> TEXT
func MapType(t schema.Type) string {
	switch t {
	case schema.Int:
		return "BIGINT"
	case schema.Float:
		return "DOUBLE PRECISION"
	case schema.Bool:
		return "BOOLEAN"
	case schema.Timestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// fqn qualifies name with the configured schema.
func (r *Repository) fqn(name string) string {
	if r.cfg.Schema == "" {
		return name
	}
	return r.cfg.Schema + "." + name
}

// WriteTable replaces table name with the rows of t. partitionBy is ignored.
func (r *Repository) WriteTable(ctx context.Context, name string, t *table.Table, _ []string) (int64, error) {
	fqn := r.fqn(name)
	create, err := ddl.BuildCreateTableSQL(ddl.FromDescriptor(fqn, t.Schema, MapType))
	if err != nil {
		return 0, storage.ErrWrite.Wrap(err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, storage.ErrWrite.New("postgres: begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, storage.ErrWrite.New("postgres: create %s: %s", fqn, describe(err))
	}
	if _, err := tx.Exec(ctx, "TRUNCATE "+ddl.QuoteFQN(fqn)); err != nil {
		return 0, storage.ErrWrite.New("postgres: truncate %s: %s", fqn, describe(err))
	}

	ident := splitFQN(fqn)
	n, err := storage.LoadTable(ctx, t, r.cfg.BatchSize, func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		return tx.CopyFrom(ctx, ident, cols, pgx.CopyFromRows(rows))
	})
	if err != nil {
		return n, storage.ErrWrite.New("postgres: copy into %s: %s", fqn, describe(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return n, storage.ErrWrite.New("postgres: commit: %s", describe(err))
	}

	log.Info().Str("backend", "postgres").Str("table", fqn).Int64("rows", n).Msg("table written")
	return n, nil
}

// describe surfaces the server detail and SQLSTATE of a Postgres error.
func describe(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return fmt.Sprintf("%s: %s (%s)", pgErr.Message, pgErr.Detail, pgErr.SQLState())
		}
		return fmt.Sprintf("%s (%s)", pgErr.Message, pgErr.SQLState())
	}
	return err.Error()
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
