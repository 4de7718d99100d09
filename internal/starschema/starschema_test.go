package starschema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songetl/internal/schema"
	"songetl/internal/table"
	"songetl/internal/transformer/builtin"
)

// eventSchema is what inference yields for the event log keys used here.
var eventSchema = schema.Descriptor{
	{Name: "artist", Type: schema.String, Nullable: true},
	{Name: "firstName", Type: schema.String, Nullable: true},
	{Name: "gender", Type: schema.String, Nullable: true},
	{Name: "lastName", Type: schema.String, Nullable: true},
	{Name: "level", Type: schema.String, Nullable: true},
	{Name: "location", Type: schema.String, Nullable: true},
	{Name: "page", Type: schema.String, Nullable: true},
	{Name: "sessionId", Type: schema.Int, Nullable: true},
	{Name: "song", Type: schema.String, Nullable: true},
	{Name: "ts", Type: schema.Int, Nullable: true},
	{Name: "userAgent", Type: schema.String, Nullable: true},
	{Name: "userId", Type: schema.String, Nullable: true},
}

type event struct {
	artist, song, page, user, level string
	ts                              any
	session                         int64
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func events(tb testing.TB, evs ...event) *table.Table {
	tb.Helper()
	rows := make([]table.Row, len(evs))
	for i, e := range evs {
		rows[i] = table.Row{
			nullable(e.artist), "Kaylee", "F", "Summers", e.level, "Phoenix-Mesa-Scottsdale, AZ",
			e.page, e.session, nullable(e.song), e.ts, "Mozilla/5.0", e.user,
		}
	}
	t, err := table.New(eventSchema, rows)
	require.NoError(tb, err)
	return t
}

func catalog(tb testing.TB, rows ...table.Row) *table.Table {
	tb.Helper()
	t, err := table.New(schema.Catalog, rows)
	require.NoError(tb, err)
	return t
}

// catalogRow follows schema.Catalog order.
func catalogRow(artistID, artist, songID, title string, year int64) table.Row {
	return table.Row{artistID, nil, "Los Angeles", nil, artist, 218.93179, int64(1), songID, title, year}
}

const tsExplorers = int64(1542241826796) // 2018-11-15 00:30:26.796 UTC

func TestSongsAndArtists(t *testing.T) {
	t.Parallel()

	cat := catalog(t,
		catalogRow("AR1", "Casual", "S1", "I Didn't Mean To", 0),
		catalogRow("AR1", "Casual", "S1", "I Didn't Mean To", 0),
		catalogRow("AR1", "Casual", "S2", "Other", 2004),
		catalogRow("AR2", "Explorers", "S3", "Lorelei", 2008),
	)

	songs, err := Songs(cat)
	require.NoError(t, err)
	assert.True(t, songs.Schema.Equal(schema.Songs))
	assert.Equal(t, 3, songs.Len())
	assert.Equal(t, table.Row{"S1", "I Didn't Mean To", "AR1", int64(0), 218.93179}, songs.Rows[0])

	artists, err := Artists(cat)
	require.NoError(t, err)
	assert.True(t, artists.Schema.Equal(schema.Artists))
	assert.Equal(t, []table.Row{
		{"AR1", "Casual", "Los Angeles", nil, nil},
		{"AR2", "Explorers", "Los Angeles", nil, nil},
	}, artists.Rows)

	// Input untouched.
	assert.Equal(t, 4, cat.Len())
}

func TestPlaysFilterAndTimestamp(t *testing.T) {
	t.Parallel()

	evs := events(t,
		event{artist: "Explorers", song: "Lorelai", page: "NextSong", user: "8", level: "free", ts: tsExplorers, session: 139},
		event{page: "Home", user: "8", level: "free", ts: tsExplorers + 4000, session: 139},
		event{page: "Logout", user: "8", level: "free", ts: tsExplorers + 5000, session: 139},
		event{artist: "A", song: "B", page: "NextSong", user: "9", level: "paid", ts: nil, session: 1},
		event{artist: "A", song: "B", page: "nextsong", user: "9", level: "paid", ts: tsExplorers, session: 1},
	)

	plays, stats, err := Plays(evs, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, PlayStats{Events: 5, Plays: 1, BadTimestamp: 1}, stats)
	require.Equal(t, 1, plays.Len())

	i := plays.Schema.Index("ts_timestamp")
	require.Equal(t, len(eventSchema), i)
	ts := plays.Rows[0][i].(time.Time)
	assert.True(t, ts.Equal(time.Date(2018, 11, 15, 0, 30, 26, 796_000_000, time.UTC)), ts)
	assert.Equal(t, time.UTC, ts.Location())

	pages, err := plays.Values("page")
	require.NoError(t, err)
	for _, p := range pages {
		assert.Equal(t, PagePlay, p)
	}
}

func TestPlaysNilLocationIsLocal(t *testing.T) {
	t.Parallel()

	plays, _, err := Plays(events(t, event{page: "NextSong", ts: tsExplorers}), nil)
	require.NoError(t, err)
	ts := plays.Rows[0][plays.Schema.Index("ts_timestamp")].(time.Time)
	assert.Equal(t, time.Local, ts.Location())
	assert.True(t, ts.Equal(time.UnixMilli(tsExplorers)))
}

func TestDecompose(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ms   int64
		want TimeParts
	}{
		{"explorers", tsExplorers, TimeParts{Hour: 0, Day: 15, Week: 46, Month: 11, Year: 2018, Weekday: "Thu"}},
		{"dec31_week1", 1546214400000, TimeParts{Hour: 0, Day: 31, Week: 1, Month: 12, Year: 2018, Weekday: "Mon"}},
		{"jan1_week53", 1609459200000, TimeParts{Hour: 0, Day: 1, Week: 53, Month: 1, Year: 2021, Weekday: "Fri"}},
		{"late_evening", 1542326399000, TimeParts{Hour: 23, Day: 15, Week: 46, Month: 11, Year: 2018, Weekday: "Thu"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Decompose(time.UnixMilli(tc.ms).In(time.UTC)))
		})
	}
}

func TestDecomposeFollowsLocation(t *testing.T) {
	t.Parallel()

	// 00:30 UTC on the 15th is still the 14th in Phoenix (UTC-7).
	phx := time.FixedZone("MST", -7*3600)
	p := Decompose(time.UnixMilli(tsExplorers).In(phx))
	assert.Equal(t, 17, p.Hour)
	assert.Equal(t, 14, p.Day)
	assert.Equal(t, "Wed", p.Weekday)
}

func TestUsersAndTimes(t *testing.T) {
	t.Parallel()

	evs := events(t,
		event{artist: "A", song: "B", page: "NextSong", user: "8", level: "free", ts: tsExplorers},
		event{artist: "A", song: "B", page: "NextSong", user: "8", level: "free", ts: tsExplorers},
		event{artist: "A", song: "C", page: "NextSong", user: "8", level: "paid", ts: tsExplorers + 1000},
		event{artist: "A", song: "C", page: "NextSong", user: "9", level: "paid", ts: tsExplorers + 2000},
		event{page: "Home", user: "10", level: "free", ts: tsExplorers + 3000},
	)
	plays, _, err := Plays(evs, time.UTC)
	require.NoError(t, err)

	users, err := Users(plays)
	require.NoError(t, err)
	assert.Equal(t, schema.UserColumns, users.Schema.Names())
	// User 8 appears once per level; user 10 never played.
	assert.Equal(t, []table.Row{
		{"8", "Kaylee", "Summers", "F", "free"},
		{"8", "Kaylee", "Summers", "F", "paid"},
		{"9", "Kaylee", "Summers", "F", "paid"},
	}, users.Rows)
	assert.LessOrEqual(t, users.Len(), plays.Len())

	times, err := Times(plays)
	require.NoError(t, err)
	assert.True(t, times.Schema.Equal(schema.Time))
	require.Equal(t, 3, times.Len())
	assert.Equal(t, table.Row{
		time.UnixMilli(tsExplorers).In(time.UTC), int64(0), int64(15), int64(46), int64(11), int64(2018), "Thu",
	}, times.Rows[0])
}

func TestSongplaysJoin(t *testing.T) {
	t.Parallel()

	cat := catalog(t,
		catalogRow("AR5KOSW1187FB35FF4", "Explorers", "SOWQTQZ12A58A7B63E", "Lorelei", 1983),
		catalogRow("ARMJAGH1187FB546F3", "The Box Tops", "SOCIWDW12A8C13D406", "Soul Deep", 1969),
	)
	evs := events(t,
		// Spelling differs from the catalog: no match under any matcher.
		event{artist: "Explorers", song: "Lorelai", page: "NextSong", user: "8", level: "free", ts: tsExplorers, session: 139},
		event{artist: "The Box Tops", song: "Soul Deep", page: "NextSong", user: "8", level: "free", ts: tsExplorers + 1000, session: 139},
		event{artist: "The Box Tops", song: "Soul Deep", page: "NextSong", user: "8", level: "free", ts: tsExplorers + 1000, session: 139},
		event{artist: "the box  tops", song: "SOUL DEEP", page: "NextSong", user: "9", level: "paid", ts: tsExplorers + 2000, session: 7},
		event{song: "Soul Deep", page: "NextSong", user: "9", level: "paid", ts: tsExplorers + 3000, session: 7},
	)
	plays, _, err := Plays(evs, time.UTC)
	require.NoError(t, err)

	fact, stats, err := Songplays(plays, cat, Exact{})
	require.NoError(t, err)
	assert.Equal(t, schema.SongplayColumns, fact.Schema.Names())
	assert.Equal(t, JoinStats{Events: 5, Matched: 2, Missed: 3, Rows: 1}, stats)
	require.Equal(t, 1, fact.Len())
	assert.Equal(t, table.Row{
		"8", time.UnixMilli(tsExplorers + 1000).In(time.UTC), "free",
		"SOCIWDW12A8C13D406", "ARMJAGH1187FB546F3", int64(139),
		"Phoenix-Mesa-Scottsdale, AZ", "Mozilla/5.0", int64(2018), int64(11),
	}, fact.Rows[0])

	folded, fstats, err := Songplays(plays, cat, Folded{})
	require.NoError(t, err)
	assert.Equal(t, 2, folded.Len())
	assert.Equal(t, 3, fstats.Matched)
	assert.Equal(t, 2, fstats.Missed)

	for _, tbl := range []*table.Table{fact, folded} {
		for _, col := range []string{"song_id", "artist_id"} {
			vals, err := tbl.Values(col)
			require.NoError(t, err)
			for _, v := range vals {
				assert.NotNil(t, v)
			}
		}
		assert.LessOrEqual(t, tbl.Len(), plays.Len())
	}
}

func TestSongplaysEmptyCatalog(t *testing.T) {
	t.Parallel()

	plays, _, err := Plays(events(t, event{artist: "A", song: "B", page: "NextSong", ts: tsExplorers}), time.UTC)
	require.NoError(t, err)

	fact, stats, err := Songplays(plays, catalog(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, fact.Len())
	assert.Equal(t, 1, stats.Missed)
}

func TestDerivationsAreIdempotentUnderDedup(t *testing.T) {
	t.Parallel()

	cat := catalog(t,
		catalogRow("AR1", "Casual", "S1", "T", 0),
		catalogRow("AR1", "Casual", "S1", "T", 0),
		catalogRow("AR2", "Explorers", "S2", "Lorelai", 1983),
	)
	evs := events(t,
		event{artist: "Explorers", song: "Lorelai", page: "NextSong", user: "8", level: "free", ts: tsExplorers, session: 139},
		event{artist: "Explorers", song: "Lorelai", page: "NextSong", user: "8", level: "free", ts: tsExplorers, session: 139},
		event{artist: "Casual", song: "T", page: "NextSong", user: "8", level: "paid", ts: tsExplorers + 1000, session: 139},
		event{artist: "Casual", song: "T", page: "NextSong", user: "9", level: "paid", ts: tsExplorers + 1000, session: 7},
	)
	plays, _, err := Plays(evs, time.UTC)
	require.NoError(t, err)

	songs, err := Songs(cat)
	require.NoError(t, err)
	users, err := Users(plays)
	require.NoError(t, err)
	times, err := Times(plays)
	require.NoError(t, err)
	fact, _, err := Songplays(plays, cat, Exact{})
	require.NoError(t, err)

	for name, tbl := range map[string]*table.Table{
		"songs":     songs,
		"users":     users,
		"time":      times,
		"songplays": fact,
	} {
		require.NotZero(t, tbl.Len(), name)
		again, err := builtin.DeDup{}.Apply(tbl)
		require.NoError(t, err, name)
		assert.Equal(t, tbl.Rows, again.Rows, name)
	}
	assert.Equal(t, 3, users.Len())
	assert.Equal(t, 2, times.Len())
	assert.Equal(t, 3, fact.Len())
}

func TestSongplaysJoinIsLiteral(t *testing.T) {
	t.Parallel()

	plays, _, err := Plays(events(t,
		event{artist: "Explorers", song: "Lorelai", page: "NextSong", user: "8", level: "free", ts: tsExplorers, session: 139},
	), time.UTC)
	require.NoError(t, err)

	match := catalog(t, catalogRow("AR5KOSW1187FB35FF4", "Explorers", "SOWQTQZ12A58A7B63E", "Lorelai", 1983))
	fact, stats, err := Songplays(plays, match, Exact{})
	require.NoError(t, err)
	require.Equal(t, 1, fact.Len())
	assert.Equal(t, JoinStats{Events: 1, Matched: 1, Rows: 1}, stats)
	songID, err := fact.Values("song_id")
	require.NoError(t, err)
	assert.Equal(t, []any{"SOWQTQZ12A58A7B63E"}, songID)

	miss := catalog(t, catalogRow("AR5KOSW1187FB35FF4", "Explorers", "SOWQTQZ12A58A7B63E", "Lorelei", 1983))
	fact, stats, err = Songplays(plays, miss, Exact{})
	require.NoError(t, err)
	assert.Equal(t, 0, fact.Len())
	assert.Equal(t, JoinStats{Events: 1, Missed: 1}, stats)
}

func TestEpochMillis(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(tsExplorers), tsExplorers, true},
		{float64(tsExplorers), tsExplorers, true},
		{"1542241826796", tsExplorers, true},
		{" 1542241826796.0 ", tsExplorers, true},
		{"oops", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := epochMillis(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestMatcherFor(t *testing.T) {
	t.Parallel()

	m, err := MatcherFor("")
	require.NoError(t, err)
	assert.Equal(t, "exact", m.Name())

	m, err = MatcherFor("Folded")
	require.NoError(t, err)
	assert.Equal(t, "folded", m.Name())
	assert.Equal(t, m.Key("Beyoncé", "Halo"), m.Key("BEYONCÉ", "halo"))

	_, err = MatcherFor("soundex")
	require.Error(t, err)
}
