// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"songetl/internal/datasource"
)

// Local is a directory tree whose files are matched by base name against a
// glob such as "*.json". It is safe for concurrent use.
type Local struct {
	root    string
	pattern string
}

// NewLocal returns a Local source rooted at root. An empty pattern matches
// every regular file.
func NewLocal(root, pattern string) *Local {
	if pattern == "" {
		pattern = "*"
	}
	return &Local{root: root, pattern: pattern}
}

var _ datasource.Source = (*Local)(nil)

// Location implements datasource.Source.
func (l *Local) Location() string { return filepath.Join(l.root, "**", l.pattern) }

// List walks the tree under root and returns matching regular files sorted
// by path. A missing root is an error.
func (l *Local) List(ctx context.Context) ([]datasource.Object, error) {
	if _, err := filepath.Match(l.pattern, ""); err != nil {
		return nil, fmt.Errorf("file: bad pattern %q: %w", l.pattern, err)
	}

	var out []datasource.Object
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(l.pattern, d.Name()); !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, datasource.Object{Key: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", l.root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Open opens a listed file.
//
// Behavior:
//   - If the context is already done, Open returns the context error without
//     touching the filesystem.
//   - Filesystem errors are wrapped with the path while still permitting
//     errors.Is checks (e.g. errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context, obj datasource.Object) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(obj.Key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", obj.Key, err)
	}
	return f, nil
}
