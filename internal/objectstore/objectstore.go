// Package objectstore is a thin S3 client used by the S3 data source and the
// Parquet writer. Credentials come from an explicit Config built once at
// startup; nothing here reads the process environment.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/zeebo/errs"
)

// Error is the error class for object store operations.
var Error = errs.Class("objectstore")

// deleteBatch is the S3 DeleteObjects limit.
const deleteBatch = 1000

// Config carries S3 connection settings.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ForcePathStyle  bool
}

// Object is a listed key.
type Object struct {
	Key  string
	Size int64
}

// Client wraps the S3 API.
type Client struct {
	api s3iface.S3API
}

// New creates a Client from cfg. Static credentials are used when an access
// key is configured; otherwise the SDK's default chain applies.
func New(cfg Config) (*Client, error) {
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.ForcePathStyle {
		awsCfg = awsCfg.WithS3ForcePathStyle(true)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, Error.New("session: %v", err)
	}
	return &Client{api: s3.New(sess)}, nil
}

// NewWithAPI wraps an existing S3 API implementation.
func NewWithAPI(api s3iface.S3API) *Client { return &Client{api: api} }

// ParseURL splits "s3://bucket/prefix" (or s3a/s3n) into bucket and prefix.
// ok is false for any other scheme.
func ParseURL(loc string) (bucket, prefix string, ok bool) {
	u, err := url.Parse(loc)
	if err != nil {
		return "", "", false
	}
	switch u.Scheme {
	case "s3", "s3a", "s3n":
	default:
		return "", "", false
	}
	if u.Host == "" {
		return "", "", false
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), true
}

// IsURL reports whether loc names an S3 location.
func IsURL(loc string) bool {
	_, _, ok := ParseURL(loc)
	return ok
}

// List returns every object under prefix, sorted by key.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var out []Object
	in := &s3.ListObjectsV2Input{Bucket: aws.String(bucket), Prefix: aws.String(prefix)}
	err := c.api.ListObjectsV2PagesWithContext(ctx, in, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, o := range page.Contents {
			out = append(out, Object{Key: aws.StringValue(o.Key), Size: aws.Int64Value(o.Size)})
		}
		return true
	})
	if err != nil {
		return nil, Error.New("list s3://%s/%s: %v", bucket, prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get opens an object for reading.
func (c *Client) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, Error.New("get s3://%s/%s: %v", bucket, key, err)
	}
	return resp.Body, nil
}

// Put uploads body under key.
func (c *Client) Put(ctx context.Context, bucket, key string, body io.ReadSeeker) error {
	_, err := c.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return Error.New("put s3://%s/%s: %v", bucket, key, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix and returns how many were
// deleted.
func (c *Client) DeletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	objs, err := c.List(ctx, bucket, prefix)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for start := 0; start < len(objs); start += deleteBatch {
		end := min(start+deleteBatch, len(objs))
		ids := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, o := range objs[start:end] {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(o.Key)})
		}
		_, err := c.api.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, Error.New("delete s3://%s/%s: %v", bucket, prefix, err)
		}
		deleted += len(ids)
	}
	return deleted, nil
}

// UploadDir uploads every regular file below dir to prefix, keeping relative
// paths (with forward slashes) as key suffixes. It returns the uploaded keys.
func (c *Client) UploadDir(ctx context.Context, dir, bucket, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := joinKey(prefix, filepath.ToSlash(rel))

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := c.Put(ctx, bucket, key, f); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return keys, fmt.Errorf("upload %s: %w", dir, err)
	}
	return keys, nil
}

func joinKey(prefix, rest string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return rest
	}
	return prefix + "/" + rest
}

// JoinKey joins key segments with single slashes.
func JoinKey(parts ...string) string {
	out := ""
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		out = joinKey(out, p)
	}
	return out
}
