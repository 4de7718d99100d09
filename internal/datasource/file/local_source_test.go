package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songetl/internal/datasource"
)

func writeFile(tb testing.TB, path, body string) {
	tb.Helper()
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tb, os.WriteFile(path, []byte(body), 0o644))
}

// TestLocalList checks recursive discovery, base-name matching and ordering.
func TestLocalList(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "A", "B", "C", "TRABCEI128F424C983.json"), `{}`)
	writeFile(t, filepath.Join(root, "A", "A", "TRAAAAW128F429D538.json"), `{}`)
	writeFile(t, filepath.Join(root, "A", "notes.txt"), `x`)
	writeFile(t, filepath.Join(root, "top.json"), `{}`)

	objs, err := NewLocal(root, "*.json").List(context.Background())
	require.NoError(t, err)

	var keys []string
	for _, o := range objs {
		rel, err := filepath.Rel(root, o.Key)
		require.NoError(t, err)
		keys = append(keys, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{
		"A/A/TRAAAAW128F429D538.json",
		"A/B/C/TRABCEI128F424C983.json",
		"top.json",
	}, keys)
}

func TestLocalListErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		root    func(t *testing.T) string
		pattern string
		ctx     func() context.Context
	}{
		{
			name:    "missing_root",
			root:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing") },
			pattern: "*.json",
			ctx:     context.Background,
		},
		{
			name:    "bad_pattern",
			root:    func(t *testing.T) string { return t.TempDir() },
			pattern: "[",
			ctx:     context.Background,
		},
		{
			name: "canceled",
			root: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, filepath.Join(dir, "a.json"), `{}`)
				return dir
			},
			pattern: "*.json",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewLocal(tc.root(t), tc.pattern).List(tc.ctx())
			require.Error(t, err)
		})
	}
}

// TestLocalOpen covers success, missing file, and pre-canceled context.
func TestLocalOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, "data.json")
	writeFile(t, p, `{"a":1}`)
	src := NewLocal(dir, "")

	rc, err := src.Open(context.Background(), datasource.Object{Key: p})
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"a":1}`, string(b))

	_, err = src.Open(context.Background(), datasource.Object{Key: filepath.Join(dir, "missing.json")})
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "open ")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Open(ctx, datasource.Object{Key: p})
	require.ErrorIs(t, err, context.Canceled)

	assert.Contains(t, src.Location(), "**")
}
