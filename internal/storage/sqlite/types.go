package sqlite

import "songetl/internal/schema"

// MapType maps a logical column type to a SQLite column type. SQLite is
// dynamically typed, so this picks canonical affinities:
//   - int, bool   -> INTEGER (bool as 0/1)
//   - float       -> REAL
//   - timestamp   -> TEXT (the driver stores time.Time as text)
//   - others      -> TEXT
func MapType(t schema.Type) string {
	switch t {
	case schema.Int, schema.Bool:
		return "INTEGER"
	case schema.Float:
		return "REAL"
	default:
		return "TEXT"
	}
}
