package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/errs"

	"songetl/internal/config"
	"songetl/internal/datasource"
	"songetl/internal/datasource/file"
	"songetl/internal/datasource/s3src"
	"songetl/internal/metrics"
	"songetl/internal/metrics/datadog"
	"songetl/internal/metrics/prompush"
	"songetl/internal/objectstore"
	"songetl/internal/pipeline"
	"songetl/internal/reader"
	"songetl/internal/schema"
	"songetl/internal/starschema"
	"songetl/internal/storage"
	"songetl/internal/table"
)

// Seams for tests.
var (
	newWriterFn      = storage.New
	newObjectStoreFn = objectstore.New
)

// Stage names in the plan.
const (
	stageCatalog = "catalog"
	stageEvents  = "events"
	stagePlays   = "plays"
)

// newRunID identifies one invocation in logs and staging paths.
func newRunID() string { return uuid.NewString() }

// runPipeline executes one full run: both phases, all five tables.
func runPipeline(ctx context.Context, cfg *config.Config, runID string) (report pipeline.Report, err error) {
	start := time.Now()

	loc, err := cfg.TimeLocation()
	if err != nil {
		return report, err
	}
	matcher, err := starschema.MatcherFor(cfg.Transform.Matcher)
	if err != nil {
		return report, err
	}

	var store *objectstore.Client
	if cfg.UsesS3() {
		if store, err = newObjectStoreFn(cfg.ObjectStore()); err != nil {
			return report, err
		}
	}
	songs, err := openSource(cfg.SongLocation(), cfg.Input.Pattern, store)
	if err != nil {
		return report, err
	}
	events, err := openSource(cfg.LogLocation(), cfg.Input.Pattern, store)
	if err != nil {
		return report, err
	}

	kind := cfg.Output.Kind
	if kind == "" {
		kind = storage.KindFor(cfg.Output.Base)
	}
	w, err := newWriterFn(ctx, storage.Config{
		Kind:        kind,
		Location:    cfg.Output.Base,
		Overwrite:   cfg.Output.Overwrite,
		BatchSize:   cfg.Output.BatchSize,
		RunID:       runID,
		ObjectStore: store,
	})
	if err != nil {
		return report, err
	}
	defer func() { err = errs.Combine(err, w.Close()) }()

	log.Info().
		Str("songs", songs.Location()).
		Str("events", events.Location()).
		Str("output", cfg.Output.Base).
		Str("kind", kind).
		Str("matcher", matcher.Name()).
		Str("timezone", loc.String()).
		Msg("run started")

	plan, err := buildPlan(planInputs{
		job:     cfg.Metrics.Job,
		songs:   songs,
		events:  events,
		loc:     loc,
		matcher: matcher,
		read:    reader.Options{Workers: cfg.Runtime.ReaderWorkers},
	})
	if err != nil {
		return report, err
	}

	report, err = pipeline.Run(ctx, plan, w, phases()...)
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err).Strs("failed", report.Failed)
	}
	ev.Interface("rows", report.Rows).Dur("elapsed", time.Since(start)).Msg("run finished")
	return report, err
}

// openSource picks a backend by scheme.
func openSource(loc, pattern string, store *objectstore.Client) (datasource.Source, error) {
	if objectstore.IsURL(loc) {
		src, err := s3src.FromURL(store, loc, pattern)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return file.NewLocal(loc, pattern), nil
}

type planInputs struct {
	job     string
	songs   datasource.Source
	events  datasource.Source
	loc     *time.Location
	matcher starschema.Matcher
	read    reader.Options
}

// buildPlan declares every stage. Nothing runs until a sink materializes it;
// the catalog is read once even though both phases need it.
func buildPlan(in planInputs) (*pipeline.Plan, error) {
	p := pipeline.NewPlan(in.job)
	type stage struct {
		name string
		deps []string
		fn   pipeline.Func
	}
	stages := []stage{
		{stageCatalog, nil, func(ctx context.Context, _ map[string]*table.Table) (*table.Table, error) {
			t, st, err := reader.ReadCatalog(ctx, in.songs, schema.Catalog, in.read)
			metrics.RecordRow(in.job, "catalog_read", int64(st.Records))
			metrics.RecordRow(in.job, "catalog_rejected", int64(st.Rejected))
			return t, err
		}},
		{stageEvents, nil, func(ctx context.Context, _ map[string]*table.Table) (*table.Table, error) {
			t, st, err := reader.ReadEvents(ctx, in.events, schema.EventFields, in.read)
			metrics.RecordRow(in.job, "events_read", int64(st.Records))
			metrics.RecordRow(in.job, "events_rejected", int64(st.Rejected))
			return t, err
		}},
		{schema.TableSongs, []string{stageCatalog}, func(_ context.Context, d map[string]*table.Table) (*table.Table, error) {
			return starschema.Songs(d[stageCatalog])
		}},
		{schema.TableArtists, []string{stageCatalog}, func(_ context.Context, d map[string]*table.Table) (*table.Table, error) {
			return starschema.Artists(d[stageCatalog])
		}},
		{stagePlays, []string{stageEvents}, func(_ context.Context, d map[string]*table.Table) (*table.Table, error) {
			t, st, err := starschema.Plays(d[stageEvents], in.loc)
			metrics.RecordRow(in.job, "plays", int64(st.Plays))
			metrics.RecordRow(in.job, "bad_timestamp", int64(st.BadTimestamp))
			if st.BadTimestamp > 0 {
				log.Warn().Int("rejected", st.BadTimestamp).Msg("plays without a usable ts")
			}
			return t, err
		}},
		{schema.TableUsers, []string{stagePlays}, func(_ context.Context, d map[string]*table.Table) (*table.Table, error) {
			return starschema.Users(d[stagePlays])
		}},
		{schema.TableTime, []string{stagePlays}, func(_ context.Context, d map[string]*table.Table) (*table.Table, error) {
			return starschema.Times(d[stagePlays])
		}},
		{schema.TableSongplays, []string{stagePlays, stageCatalog}, func(_ context.Context, d map[string]*table.Table) (*table.Table, error) {
			t, st, err := starschema.Songplays(d[stagePlays], d[stageCatalog], in.matcher)
			if err != nil {
				return nil, err
			}
			metrics.RecordJoinMisses(in.job, int64(st.Missed))
			log.Info().
				Int("events", st.Events).
				Int("matched", st.Matched).
				Int("missed", st.Missed).
				Int("rows", st.Rows).
				Msg("songplays joined")
			return t, nil
		}},
	}
	for _, s := range stages {
		if _, err := p.Add(s.name, s.fn, s.deps...); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// phases returns the two independent write sequences: catalog-derived
// tables, then event-derived tables.
func phases() []pipeline.Phase {
	sink := func(name string) pipeline.Sink {
		return pipeline.Sink{Table: name, Stage: name, PartitionBy: schema.PartitionBy[name]}
	}
	return []pipeline.Phase{
		{Name: "catalog", Sinks: []pipeline.Sink{
			sink(schema.TableSongs),
			sink(schema.TableArtists),
		}},
		{Name: "events", Sinks: []pipeline.Sink{
			sink(schema.TableUsers),
			sink(schema.TableTime),
			sink(schema.TableSongplays),
		}},
	}
}

// setupMetrics installs the configured backend and returns its flush.
func setupMetrics(cfg config.MetricsConfig) (func(), error) {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Backend {
	case "", "none":
		return func() {}, nil
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.DatadogAddr,
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		return nil, config.Error.New("unknown metrics backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	metrics.SetBackend(b)
	log.Info().Str("backend", cfg.Backend).Str("job", cfg.Job).Msg("metrics enabled")
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Str("backend", cfg.Backend).Msg("metrics flush failed")
		}
	}, nil
}
