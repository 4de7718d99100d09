// Package parquet implements the columnar storage.Writer. Rows are appended
// into an in-memory DuckDB table and exported with COPY ... (FORMAT PARQUET,
// PARTITION_BY ...) into a staging directory, which is then published:
// renamed into place on local disk, or uploaded under an S3 prefix.
//
// A table directory at its final location is therefore either the previous
// run's complete artifact or this run's complete artifact. S3 has no rename,
// so a failure in the middle of an upload can leave a partial prefix.
package parquet

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog/log"

	"songetl/internal/ddl"
	"songetl/internal/objectstore"
	"songetl/internal/schema"
	"songetl/internal/storage"
	"songetl/internal/table"
)

// Writer exports tables as hive-partitioned Parquet directories.
type Writer struct {
	db        *sql.DB
	staging   string
	overwrite bool

	// local output
	base string

	// S3 output
	s3     *objectstore.Client
	bucket string
	prefix string
}

var _ storage.Writer = (*Writer)(nil)

// New opens an in-memory DuckDB and prepares the staging directory.
func New(ctx context.Context, cfg storage.Config) (*Writer, error) {
	if strings.TrimSpace(cfg.Location) == "" {
		return nil, fmt.Errorf("parquet: output location must not be empty")
	}
	w := &Writer{overwrite: cfg.Overwrite}
	stageName := ".songetl-staging"
	if cfg.RunID != "" {
		stageName += "-" + cfg.RunID
	}

	if bucket, prefix, ok := objectstore.ParseURL(cfg.Location); ok {
		if cfg.ObjectStore == nil {
			return nil, fmt.Errorf("parquet: %s needs an object store client", cfg.Location)
		}
		w.s3, w.bucket, w.prefix = cfg.ObjectStore, bucket, prefix
		dir, err := os.MkdirTemp("", "songetl-")
		if err != nil {
			return nil, fmt.Errorf("parquet: staging: %w", err)
		}
		w.staging = filepath.Join(dir, stageName)
	} else {
		w.base = cfg.Location
		w.staging = filepath.Join(cfg.Location, stageName)
	}
	if err := os.MkdirAll(w.staging, 0o755); err != nil {
		return nil, fmt.Errorf("parquet: staging: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("parquet: open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("parquet: ping duckdb: %w", err)
	}
	w.db = db
	return w, nil
}

// MapType maps a logical column type to a DuckDB type.
func MapType(t schema.Type) string {
	switch t {
	case schema.Int:
		return "BIGINT"
	case schema.Float:
		return "DOUBLE"
	case schema.Bool:
		return "BOOLEAN"
	case schema.Timestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// WriteTable exports t as <location>/<name>/, partitioned by partitionBy.
func (w *Writer) WriteTable(ctx context.Context, name string, t *table.Table, partitionBy []string) (int64, error) {
	start := time.Now()
	for _, p := range partitionBy {
		if t.Schema.Index(p) < 0 {
			return 0, storage.ErrWrite.New("parquet: %s: unknown partition column %q", name, p)
		}
	}

	if err := w.checkTarget(ctx, name); err != nil {
		return 0, err
	}

	dst := filepath.Join(w.staging, name)
	if err := os.RemoveAll(dst); err != nil {
		return 0, storage.ErrWrite.Wrap(err)
	}
	if err := w.export(ctx, name, t, dst, partitionBy); err != nil {
		return 0, storage.ErrWrite.New("parquet: %s: %v", name, err)
	}
	if err := w.publish(ctx, name, dst); err != nil {
		return 0, storage.ErrWrite.New("parquet: publish %s: %v", name, err)
	}

	log.Info().
		Str("backend", "parquet").
		Str("table", name).
		Strs("partition_by", partitionBy).
		Int("rows", t.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("table written")
	return int64(t.Len()), nil
}

// export loads t into DuckDB on a single connection and copies it to dst.
func (w *Writer) export(ctx context.Context, name string, t *table.Table, dst string, partitionBy []string) error {
	conn, err := w.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stage := "stage_" + name
	create, err := ddl.BuildCreateTableSQL(ddl.FromDescriptor(stage, t.Schema, MapType))
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+ddl.QuoteIdent(stage)); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create stage table: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+ddl.QuoteIdent(stage))
	}()

	err = conn.Raw(func(dc any) error {
		dconn, ok := dc.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", dc)
		}
		app, err := duckdb.NewAppenderFromConn(dconn, "", stage)
		if err != nil {
			return err
		}
		vals := make([]driver.Value, len(t.Schema))
		for i, r := range t.Rows {
			if i%1024 == 0 && ctx.Err() != nil {
				_ = app.Close()
				return ctx.Err()
			}
			for j, v := range r {
				vals[j] = toDuck(v)
			}
			if err := app.AppendRow(vals...); err != nil {
				_ = app.Close()
				return fmt.Errorf("append row %d: %w", i, err)
			}
		}
		return app.Close()
	})
	if err != nil {
		return err
	}

	var copySQL string
	if len(partitionBy) > 0 {
		copySQL = fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET, PARTITION_BY (%s))",
			ddl.QuoteIdent(stage), quoteLiteral(dst), ddl.QuoteList(partitionBy))
	} else {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return err
		}
		copySQL = fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)",
			ddl.QuoteIdent(stage), quoteLiteral(filepath.Join(dst, "data_0.parquet")))
	}
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("copy to parquet: %w", err)
	}
	// A partitioned export of an empty table writes nothing.
	return os.MkdirAll(dst, 0o755)
}

// toDuck converts a row value for the appender. Timestamps keep their wall
// clock: DuckDB TIMESTAMP has no zone, so the local reading is stored as is.
func toDuck(v any) driver.Value {
	if t, ok := v.(time.Time); ok {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	return v
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// checkTarget fails early when the final artifact exists and overwriting is
// disabled.
func (w *Writer) checkTarget(ctx context.Context, name string) error {
	if w.overwrite {
		return nil
	}
	if w.s3 != nil {
		objs, err := w.s3.List(ctx, w.bucket, w.tableKey(name)+"/")
		if err != nil {
			return storage.ErrWrite.Wrap(err)
		}
		if len(objs) > 0 {
			return storage.ErrWrite.New("parquet: s3://%s/%s exists and overwrite is disabled", w.bucket, w.tableKey(name))
		}
		return nil
	}
	final := filepath.Join(w.base, name)
	if _, err := os.Stat(final); err == nil {
		return storage.ErrWrite.New("parquet: %s exists and overwrite is disabled", final)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return storage.ErrWrite.Wrap(err)
	}
	return nil
}

func (w *Writer) tableKey(name string) string { return objectstore.JoinKey(w.prefix, name) }

// publish moves a staged table directory to its final location.
func (w *Writer) publish(ctx context.Context, name, dst string) error {
	if w.s3 != nil {
		key := w.tableKey(name)
		if w.overwrite {
			if _, err := w.s3.DeletePrefix(ctx, w.bucket, key+"/"); err != nil {
				return err
			}
		}
		keys, err := w.s3.UploadDir(ctx, dst, w.bucket, key)
		if err != nil {
			return err
		}
		log.Debug().Str("table", name).Int("objects", len(keys)).Str("prefix", key).Msg("uploaded")
		return os.RemoveAll(dst)
	}

	final := filepath.Join(w.base, name)
	if w.overwrite {
		if err := os.RemoveAll(final); err != nil {
			return err
		}
	}
	return os.Rename(dst, final)
}

// Close releases DuckDB and removes the staging directory.
func (w *Writer) Close() error {
	err := w.db.Close()
	if rmErr := os.RemoveAll(w.staging); rmErr != nil && err == nil {
		err = rmErr
	}
	if w.s3 != nil {
		_ = os.Remove(filepath.Dir(w.staging))
	}
	return err
}

func init() {
	storage.Register(storage.KindParquet, func(ctx context.Context, cfg storage.Config) (storage.Writer, error) {
		return New(ctx, cfg)
	})
}
