// Package reader loads JSON record collections from a datasource.Source into
// typed tables.
//
// Catalog files are read against a declared descriptor. Event files are read
// schema-on-read: the descriptor is inferred from the union of keys seen
// across every record. In both cases one bad record is rejected and counted
// while the rest of the input proceeds; a declared or required field that no
// record carries at all means the input does not match its schema, which is
// fatal.
package reader

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/errs"
	"golang.org/x/sync/errgroup"

	"songetl/internal/datasource"
	"songetl/internal/parser"
	"songetl/internal/parser/json"
	"songetl/internal/schema"
	"songetl/internal/table"
)

// Error is the class for unusable inputs (nothing found, unreadable object).
var Error = errs.Class("reader")

// Options tunes a read.
type Options struct {
	// Workers bounds the number of files decoded concurrently. Zero means
	// GOMAXPROCS.
	Workers int
}

// Stats summarizes one read.
type Stats struct {
	Files    int
	Records  int
	Rejected int
}

// ReadCatalog reads every file of src and coerces each record to desc.
func ReadCatalog(ctx context.Context, src datasource.Source, desc schema.Descriptor, opts Options) (*table.Table, Stats, error) {
	files, err := readAll(ctx, src, opts)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Files: len(files)}
	present := make(map[string]bool, len(desc))
	decoded := 0
	var rows []table.Row
	for _, f := range files {
		stats.Records += f.rejected
		stats.Rejected += f.rejected
		for _, rec := range f.records {
			stats.Records++
			decoded++
			for k := range rec {
				present[k] = true
			}
			row, err := schema.CoerceRecord(desc, rec)
			if err != nil {
				stats.Rejected++
				log.Debug().Str("object", f.key).Err(err).Msg("catalog record rejected")
				continue
			}
			rows = append(rows, row)
		}
	}

	if err := requireFields(desc.Names(), present, decoded); err != nil {
		return nil, stats, err
	}
	t, err := table.New(desc, rows)
	if err != nil {
		return nil, stats, err
	}
	logRead(src, "catalog", stats)
	return t, stats, nil
}

// ReadEvents reads every file of src, infers a descriptor from all records and
// aligns them with it. Every name in required must be carried by at least
// one record.
func ReadEvents(ctx context.Context, src datasource.Source, required []string, opts Options) (*table.Table, Stats, error) {
	files, err := readAll(ctx, src, opts)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Files: len(files)}
	decoded := 0
	inf := schema.NewInferrer()
	for _, f := range files {
		stats.Records += f.rejected
		stats.Rejected += f.rejected
		for _, rec := range f.records {
			decoded++
			inf.Observe(rec)
		}
	}
	desc := inf.Descriptor()

	present := make(map[string]bool, len(desc))
	for _, n := range desc.Names() {
		present[n] = true
	}

	var rows []table.Row
	for _, f := range files {
		for _, rec := range f.records {
			stats.Records++
			row, err := schema.CoerceRecord(desc, rec)
			if err != nil {
				stats.Rejected++
				log.Debug().Str("object", f.key).Err(err).Msg("event record rejected")
				continue
			}
			rows = append(rows, row)
		}
	}

	if err := requireFields(required, present, decoded); err != nil {
		return nil, stats, err
	}
	t, err := table.New(desc, rows)
	if err != nil {
		return nil, stats, err
	}
	logRead(src, "events", stats)
	log.Debug().Str("schema", desc.String()).Msg("inferred event schema")
	return t, stats, nil
}

// requireFields fails when some name is carried by none of the decoded
// records. An input with no decodable record at all is left to the caller.
func requireFields(names []string, present map[string]bool, decoded int) error {
	if decoded == 0 {
		return nil
	}
	var missing []string
	for _, n := range names {
		if !present[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return schema.ErrSchemaMismatch.New("fields absent from every record: %v", missing)
	}
	return nil
}

func logRead(src datasource.Source, kind string, s Stats) {
	log.Info().
		Str("kind", kind).
		Str("location", src.Location()).
		Int("files", s.Files).
		Int("records", s.Records).
		Int("rejected", s.Rejected).
		Msg("input read")
}

type fileRecords struct {
	key      string
	records  []parser.Record
	rejected int
}

// readAll lists src and decodes every object with bounded parallelism. The
// result keeps listing order so that reads are deterministic.
func readAll(ctx context.Context, src datasource.Source, opts Options) ([]fileRecords, error) {
	objs, err := src.List(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if len(objs) == 0 {
		return nil, Error.New("no input files under %s", src.Location())
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	out := make([]fileRecords, len(objs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	var bytes int64
	for i, obj := range objs {
		g.Go(func() error {
			fr, err := readObject(gctx, src, obj)
			if err != nil {
				return err
			}
			out[i] = fr
			mu.Lock()
			bytes += obj.Size
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("location", src.Location()).
		Int("files", len(objs)).
		Int64("bytes", bytes).
		Dur("elapsed", time.Since(start)).
		Msg("objects decoded")
	return out, nil
}

func readObject(ctx context.Context, src datasource.Source, obj datasource.Object) (fileRecords, error) {
	rc, err := src.Open(ctx, obj)
	if err != nil {
		return fileRecords{}, Error.Wrap(err)
	}
	defer rc.Close()

	fr := fileRecords{key: obj.Key}
	dec := json.NewDecoder(rc)
	for {
		if err := ctx.Err(); err != nil {
			return fileRecords{}, err
		}
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return fr, nil
		}
		var re *parser.RecordError
		if errors.As(err, &re) {
			fr.rejected++
			log.Warn().Str("object", obj.Key).Int("record", re.Index).Err(re.Err).Msg("undecodable record")
			continue
		}
		if err != nil {
			return fileRecords{}, Error.New("read %s: %v", obj.Key, err)
		}
		fr.records = append(fr.records, rec)
	}
}
