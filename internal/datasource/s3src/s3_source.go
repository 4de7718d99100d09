// Package s3src implements a data source over an S3 prefix.
package s3src

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"songetl/internal/datasource"
	"songetl/internal/objectstore"
)

// Source lists objects below s3://bucket/prefix whose base name matches a glob.
type Source struct {
	client  *objectstore.Client
	bucket  string
	prefix  string
	pattern string
}

// New returns a Source. An empty pattern matches every object.
func New(client *objectstore.Client, bucket, prefix, pattern string) *Source {
	if pattern == "" {
		pattern = "*"
	}
	return &Source{client: client, bucket: bucket, prefix: prefix, pattern: pattern}
}

// FromURL builds a Source from an s3:// location.
func FromURL(client *objectstore.Client, loc, pattern string) (*Source, error) {
	bucket, prefix, ok := objectstore.ParseURL(loc)
	if !ok {
		return nil, fmt.Errorf("s3src: not an s3 location: %q", loc)
	}
	return New(client, bucket, prefix, pattern), nil
}

var _ datasource.Source = (*Source)(nil)

// Location implements datasource.Source.
func (s *Source) Location() string {
	return "s3://" + s.bucket + "/" + objectstore.JoinKey(s.prefix, "**", s.pattern)
}

// List returns matching objects sorted by key. Keys ending in "/" are
// directory markers and are skipped.
func (s *Source) List(ctx context.Context) ([]datasource.Object, error) {
	if _, err := path.Match(s.pattern, ""); err != nil {
		return nil, fmt.Errorf("s3src: bad pattern %q: %w", s.pattern, err)
	}
	objs, err := s.client.List(ctx, s.bucket, dirPrefix(s.prefix))
	if err != nil {
		return nil, err
	}
	var out []datasource.Object
	for _, o := range objs {
		if o.Key == "" || o.Key[len(o.Key)-1] == '/' {
			continue
		}
		if ok, _ := path.Match(s.pattern, path.Base(o.Key)); !ok {
			continue
		}
		out = append(out, datasource.Object{Key: o.Key, Size: o.Size})
	}
	return out, nil
}

// dirPrefix treats prefix as a directory so that siblings sharing its
// leading characters (song_data_old next to song_data) are not listed.
func dirPrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// Open implements datasource.Source.
func (s *Source) Open(ctx context.Context, obj datasource.Object) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.client.Get(ctx, s.bucket, obj.Key)
}
