package pkgcache

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pkgcache/arena"
	"github.com/hupe1980/pkgcache/internal/mmap"
)

func TestOpenCacheFile_AdviseFailureLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgcache.bin")
	store, err := arena.CreateFileStore(nil, path, 0)
	require.NoError(t, err)
	a, err := arena.New(store)
	require.NoError(t, err)
	g, err := NewGenerator(a)
	require.NoError(t, err)
	require.NoError(t, g.Finish())
	require.NoError(t, a.Close())

	refused := errors.New("madvise refused")
	orig := adviseRandom
	adviseRandom = func(*mmap.Mapping) error { return refused }
	t.Cleanup(func() { adviseRandom = orig })

	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, err := OpenCacheFile(path, WithLogger(logger))
	require.NoError(t, err)
	defer c.Close()

	assert.Contains(t, buf.String(), `"msg":"mapping advice failed"`)
	assert.Contains(t, buf.String(), "madvise refused")
	assert.Zero(t, c.Stats().Packages)
}
