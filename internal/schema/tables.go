package schema

// Catalog is the declared schema of song catalog records. Location and
// coordinates are frequently absent in the source data.
var Catalog = Descriptor{
	{Name: "artist_id", Type: String},
	{Name: "artist_latitude", Type: Float, Nullable: true},
	{Name: "artist_location", Type: String, Nullable: true},
	{Name: "artist_longitude", Type: Float, Nullable: true},
	{Name: "artist_name", Type: String},
	{Name: "duration", Type: Float},
	{Name: "num_songs", Type: Int},
	{Name: "song_id", Type: String},
	{Name: "title", Type: String},
	{Name: "year", Type: Int},
}

// EventFields are the keys every event-log collection must carry somewhere.
// Event records have no declared schema; their types are inferred.
var EventFields = []string{
	"artist", "firstName", "gender", "lastName", "level", "location",
	"page", "sessionId", "song", "ts", "userAgent", "userId",
}

// Output tables.
const (
	TableSongs     = "songs"
	TableArtists   = "artists"
	TableUsers     = "users"
	TableTime      = "time"
	TableSongplays = "songplays"
)

var (
	Songs = Descriptor{
		{Name: "song_id", Type: String},
		{Name: "title", Type: String},
		{Name: "artist_id", Type: String},
		{Name: "year", Type: Int},
		{Name: "duration", Type: Float},
	}

	Artists = Descriptor{
		{Name: "artist_id", Type: String},
		{Name: "name", Type: String},
		{Name: "location", Type: String, Nullable: true},
		{Name: "latitude", Type: Float, Nullable: true},
		{Name: "longitude", Type: Float, Nullable: true},
	}

	Time = Descriptor{
		{Name: "start_time", Type: Timestamp},
		{Name: "hour", Type: Int},
		{Name: "day", Type: Int},
		{Name: "week", Type: Int},
		{Name: "month", Type: Int},
		{Name: "year", Type: Int},
		{Name: "weekday", Type: String},
	}
)

// UserColumns and SongplayColumns are the output names of the event-derived
// tables. Their types follow whatever was inferred for the event log.
var (
	UserColumns = []string{"user_id", "first_name", "last_name", "gender", "level"}

	SongplayColumns = []string{
		"user_id", "ts_timestamp", "level", "song_id", "artist_id",
		"session_id", "location", "user_agent", "year", "month",
	}
)

// PartitionBy lists the partition columns of each output table.
var PartitionBy = map[string][]string{
	TableSongs:     {"year", "artist_id"},
	TableArtists:   nil,
	TableUsers:     nil,
	TableTime:      {"year", "month"},
	TableSongplays: {"year", "month"},
}
