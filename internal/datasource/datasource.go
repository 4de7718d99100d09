// Package datasource abstracts where raw input files live. A Source lists the
// objects under a base location whose base name matches a glob, recursively,
// and opens them for reading.
package datasource

import (
	"context"
	"io"
)

// Object identifies one readable input file. Key is a path (local) or object
// key (S3) that the owning Source understands.
type Object struct {
	Key  string
	Size int64
}

// Source is a read-only, recursively listable collection of files.
type Source interface {
	// List returns matching objects sorted by key.
	List(ctx context.Context) ([]Object, error)
	// Open opens one listed object.
	Open(ctx context.Context, obj Object) (io.ReadCloser, error)
	// Location describes the source for logs and errors.
	Location() string
}
