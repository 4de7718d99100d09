// Package all registers every built-in storage backend. Import it for side
// effects in the wiring layer:
//
//	import _ "songetl/internal/storage/all"
//
// after which storage.New understands the kinds "parquet", "postgres" and
// "sqlite". A binary that needs fewer backends imports only those packages.
package all

import (
	_ "songetl/internal/storage/parquet"
	_ "songetl/internal/storage/postgres"
	_ "songetl/internal/storage/sqlite"
)
