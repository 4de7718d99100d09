// Package bench holds cross-package benchmarks of the in-memory hot path.
package bench

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"songetl/internal/schema"
	"songetl/internal/starschema"
	"songetl/internal/storage"
	"songetl/internal/table"
)

// fixture builds a catalog of songs and an event log where roughly half of
// the plays have a catalog partner.
func fixture(b *testing.B, songs, events int) (catalog, log *table.Table) {
	b.Helper()

	catRows := make([]table.Row, 0, songs)
	for i := range songs {
		rec := map[string]any{
			"artist_id":   fmt.Sprintf("AR%06d", i%(songs/4+1)),
			"artist_name": fmt.Sprintf("Artist %d", i%(songs/4+1)),
			"duration":    float64(180 + i%120),
			"num_songs":   int64(1),
			"song_id":     fmt.Sprintf("SO%08d", i),
			"title":       fmt.Sprintf("Title %d", i),
			"year":        int64(1990 + i%30),
		}
		row, err := schema.CoerceRecord(schema.Catalog, rec)
		if err != nil {
			b.Fatalf("CoerceRecord: %v", err)
		}
		catRows = append(catRows, row)
	}

	recs := make([]map[string]any, 0, events)
	base := time.Date(2018, 11, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for i := range events {
		page := starschema.PagePlay
		if i%5 == 0 {
			page = "Home"
		}
		song := i % (2 * songs)
		recs = append(recs, map[string]any{
			"artist":    fmt.Sprintf("Artist %d", song%(songs/4+1)),
			"firstName": "Sylvie",
			"gender":    "F",
			"lastName":  "Cruz",
			"level":     []string{"free", "paid"}[i%2],
			"location":  "Washington-Arlington-Alexandria, DC-MD-WV-VA",
			"page":      page,
			"sessionId": int64(i / 20),
			"song":      fmt.Sprintf("Title %d", song),
			"ts":        base + int64(i)*1000,
			"userAgent": "Mozilla/5.0",
			"userId":    fmt.Sprintf("%d", i%97),
		})
	}
	desc := schema.Infer(recs)
	logRows := make([]table.Row, 0, events)
	for _, rec := range recs {
		row, err := schema.CoerceRecord(desc, rec)
		if err != nil {
			b.Fatalf("CoerceRecord(event): %v", err)
		}
		logRows = append(logRows, row)
	}
	return table.MustNew(schema.Catalog, catRows...), table.MustNew(desc, logRows...)
}

// BenchmarkEndToEnd runs the normalizers, the songplays join and the batched
// loader against a fake COPY function, isolating transformation cost from
// I/O.
//
// Run with:
//
//	go test -run=^$ -bench ^BenchmarkEndToEnd$ -cpuprofile cpu.out -memprofile mem.out -count=1
func BenchmarkEndToEnd(b *testing.B) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	b.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	ctx := context.Background()
	catalog, events := fixture(b, 2000, 20000)
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		return int64(len(rows)), nil
	}

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		songs, err := starschema.Songs(catalog)
		if err != nil {
			b.Fatalf("Songs: %v", err)
		}
		plays, _, err := starschema.Plays(events, time.UTC)
		if err != nil {
			b.Fatalf("Plays: %v", err)
		}
		times, err := starschema.Times(plays)
		if err != nil {
			b.Fatalf("Times: %v", err)
		}
		facts, _, err := starschema.Songplays(plays, catalog, starschema.Exact{})
		if err != nil {
			b.Fatalf("Songplays: %v", err)
		}
		for _, t := range []*table.Table{songs, times, facts} {
			if _, err := storage.LoadTable(ctx, t, 4096, copyFn); err != nil {
				b.Fatalf("LoadTable: %v", err)
			}
		}
	}
}

// BenchmarkSongplaysMatcher compares the exact and folded join keys.
func BenchmarkSongplaysMatcher(b *testing.B) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	b.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	catalog, events := fixture(b, 2000, 20000)
	plays, _, err := starschema.Plays(events, time.UTC)
	if err != nil {
		b.Fatalf("Plays: %v", err)
	}
	for _, m := range []starschema.Matcher{starschema.Exact{}, starschema.Folded{}} {
		b.Run(m.Name(), func(b *testing.B) {
			b.ReportAllocs()
			for range b.N {
				if _, _, err := starschema.Songplays(plays, catalog, m); err != nil {
					b.Fatalf("Songplays: %v", err)
				}
			}
		})
	}
}
