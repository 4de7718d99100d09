// Package objectstoretest provides an in-memory S3 API for tests.
package objectstoretest

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Memory implements the subset of s3iface.S3API used by objectstore.Client.
// Calling any other method panics through the nil embedded interface.
type Memory struct {
	s3iface.S3API

	mu      sync.Mutex
	objects map[string][]byte // "bucket/key" -> body

	// FailPut, when set, is returned by PutObject for keys containing it.
	FailPut string
}

// NewMemory returns an empty store.
func NewMemory() *Memory { return &Memory{objects: make(map[string][]byte)} }

// Set stores an object directly.
func (m *Memory) Set(bucket, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = body
}

// Keys returns the sorted keys stored in bucket.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		if rest, ok := strings.CutPrefix(k, bucket+"/"); ok {
			out = append(out, rest)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Memory) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	prefix := aws.StringValue(in.Bucket) + "/" + aws.StringValue(in.Prefix)
	page := &s3.ListObjectsV2Output{}
	m.mu.Lock()
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			key := strings.TrimPrefix(k, aws.StringValue(in.Bucket)+"/")
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(key), Size: aws.Int64(int64(len(v)))})
		}
	}
	m.mu.Unlock()
	fn(page, true)
	return nil
}

func (m *Memory) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (m *Memory) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	key := aws.StringValue(in.Key)
	if m.FailPut != "" && strings.Contains(key, m.FailPut) {
		return nil, awserr.New("AccessDenied", "denied", nil)
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.Set(aws.StringValue(in.Bucket), key, b)
	return &s3.PutObjectOutput{}, nil
}

func (m *Memory) DeleteObjectsWithContext(_ aws.Context, in *s3.DeleteObjectsInput, _ ...request.Option) (*s3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range in.Delete.Objects {
		delete(m.objects, aws.StringValue(in.Bucket)+"/"+aws.StringValue(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}
