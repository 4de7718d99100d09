package starschema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"songetl/internal/schema"
	"songetl/internal/table"
	"songetl/internal/transformer"
	"songetl/internal/transformer/builtin"
)

// PagePlay is the page value of events that represent a song play.
const PagePlay = "NextSong"

// PlayStats counts what Plays kept and dropped.
type PlayStats struct {
	Events       int // input events of any page
	Plays        int // NextSong events with a usable timestamp
	BadTimestamp int // NextSong events whose ts was missing or not numeric
}

// Plays keeps NextSong events and appends ts_timestamp, the event time
// (epoch milliseconds in ts) expressed in loc. A nil loc means time.Local.
func Plays(events *table.Table, loc *time.Location) (*table.Table, PlayStats, error) {
	if loc == nil {
		loc = time.Local
	}
	stats := PlayStats{Events: events.Len()}

	tsIdx, err := events.Column("ts")
	if err != nil {
		return nil, stats, err
	}

	out, err := transformer.Chain{
		builtin.Equals{Column: "page", Value: PagePlay},
		builtin.Extend{
			Field: schema.Field{Name: "ts_timestamp", Type: schema.Timestamp},
			Fn: func(_ schema.Descriptor, r table.Row) (any, bool) {
				ms, ok := epochMillis(r[tsIdx])
				if !ok {
					return nil, false
				}
				return time.UnixMilli(ms).In(loc), true
			},
			OnDrop: func(table.Row) { stats.BadTimestamp++ },
		},
	}.Apply(events)
	if err != nil {
		return nil, stats, err
	}
	stats.Plays = out.Len()
	return out, stats, nil
}

// epochMillis reads ts as epoch milliseconds. A single non-numeric ts widens
// the inferred column to string, so numeric strings are accepted as well.
func epochMillis(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		return floatMillis(x)
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatMillis(f)
		}
	}
	return 0, false
}

func floatMillis(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// Users derives the user dimension from plays. A user whose level changed
// during the covered period appears once per level.
func Users(plays *table.Table) (*table.Table, error) {
	out, err := transformer.Chain{
		builtin.Select{Columns: []string{"userId", "firstName", "lastName", "gender", "level"}},
		builtin.Rename{Columns: schema.UserColumns},
		builtin.DeDup{},
	}.Apply(plays)
	if err != nil {
		return nil, err
	}
	logLayout(schema.TableUsers, out)
	return out, nil
}

// TimeParts are the calendar components of one instant.
type TimeParts struct {
	Hour    int
	Day     int
	Week    int // ISO-8601 week of year
	Month   int
	Year    int
	Weekday string
}

// Decompose splits t into the time dimension columns, in t's own location.
// Week follows ISO-8601, so the last days of December may fall into week 1
// while Year stays the calendar year.
func Decompose(t time.Time) TimeParts {
	_, week := t.ISOWeek()
	return TimeParts{
		Hour:    t.Hour(),
		Day:     t.Day(),
		Week:    week,
		Month:   int(t.Month()),
		Year:    t.Year(),
		Weekday: t.Format("Mon"),
	}
}

// Times derives the time dimension: one row per distinct ts_timestamp of
// plays.
func Times(plays *table.Table) (*table.Table, error) {
	out, err := transformer.Chain{
		builtin.Select{Columns: []string{"ts_timestamp"}},
		builtin.DeDup{},
		transformer.Func(decomposeRows),
	}.Apply(plays)
	if err != nil {
		return nil, err
	}
	logLayout(schema.TableTime, out)
	return out, nil
}

func decomposeRows(in *table.Table) (*table.Table, error) {
	rows := make([]table.Row, 0, len(in.Rows))
	for _, r := range in.Rows {
		t, ok := r[0].(time.Time)
		if !ok {
			return nil, schema.ErrSchemaMismatch.New("start_time: want timestamp, got %T", r[0])
		}
		p := Decompose(t)
		rows = append(rows, table.Row{
			t, int64(p.Hour), int64(p.Day), int64(p.Week), int64(p.Month), int64(p.Year), p.Weekday,
		})
	}
	return table.New(schema.Time, rows)
}
