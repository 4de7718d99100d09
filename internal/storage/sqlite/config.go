package sqlite

// Config holds SQLite writer configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:songetl.db?cache=shared"
	//   "songetl.db" (interpreted by the driver)
	DSN string

	// BatchSize is the number of rows per prepared-statement batch.
	BatchSize int
}
