package starschema

import (
	"time"

	"songetl/internal/schema"
	"songetl/internal/table"
	"songetl/internal/transformer/builtin"
)

// JoinStats describes one songplays join.
type JoinStats struct {
	Events  int // plays offered to the join
	Matched int // plays with at least one catalog partner
	Missed  int // plays with none; they are dropped
	Rows    int // fact rows after de-duplication
}

// Songplays joins plays with the catalog on (artist, song) == (artist_name,
// title) under m, an inner join: plays without a catalog partner, or with a
// null artist or song, are dropped and counted in JoinStats.Missed. The
// result carries the year and month of ts_timestamp for partitioning and is
// de-duplicated on the full row.
func Songplays(plays, catalog *table.Table, m Matcher) (*table.Table, JoinStats, error) {
	if m == nil {
		m = Exact{}
	}
	stats := JoinStats{Events: plays.Len()}

	pc, err := columns(plays, "userId", "ts_timestamp", "level", "sessionId", "location", "userAgent", "artist", "song")
	if err != nil {
		return nil, stats, err
	}
	cc, err := columns(catalog, "song_id", "artist_id", "artist_name", "title")
	if err != nil {
		return nil, stats, err
	}

	// Build side: the catalog is the smaller input.
	index := make(map[string][]table.Row, len(catalog.Rows))
	for _, r := range catalog.Rows {
		artist, ok1 := r[cc[2]].(string)
		title, ok2 := r[cc[3]].(string)
		if !ok1 || !ok2 {
			continue
		}
		k := m.Key(artist, title)
		index[k] = append(index[k], r)
	}

	desc := schema.Descriptor{
		plays.Schema[pc[0]],
		plays.Schema[pc[1]],
		plays.Schema[pc[2]],
		catalog.Schema[cc[0]],
		catalog.Schema[cc[1]],
		plays.Schema[pc[3]],
		plays.Schema[pc[4]],
		plays.Schema[pc[5]],
		{Name: "year", Type: schema.Int},
		{Name: "month", Type: schema.Int},
	}
	desc, err = desc.Rename(schema.SongplayColumns...)
	if err != nil {
		return nil, stats, err
	}

	var rows []table.Row
	for _, p := range plays.Rows {
		artist, ok1 := p[pc[6]].(string)
		song, ok2 := p[pc[7]].(string)
		var partners []table.Row
		if ok1 && ok2 {
			partners = index[m.Key(artist, song)]
		}
		if len(partners) == 0 {
			stats.Missed++
			continue
		}
		stats.Matched++

		ts, ok := p[pc[1]].(time.Time)
		if !ok {
			return nil, stats, schema.ErrSchemaMismatch.New("ts_timestamp: want timestamp, got %T", p[pc[1]])
		}
		for _, c := range partners {
			rows = append(rows, table.Row{
				p[pc[0]], ts, p[pc[2]], c[cc[0]], c[cc[1]],
				p[pc[3]], p[pc[4]], p[pc[5]],
				int64(ts.Year()), int64(ts.Month()),
			})
		}
	}

	joined, err := table.New(desc, rows)
	if err != nil {
		return nil, stats, err
	}
	out, err := builtin.DeDup{}.Apply(joined)
	if err != nil {
		return nil, stats, err
	}
	stats.Rows = out.Len()
	logLayout(schema.TableSongplays, out)
	return out, stats, nil
}

func columns(t *table.Table, names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		j, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		out[i] = j
	}
	return out, nil
}
