package arena

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/pkgcache/internal/fs"
	"github.com/hupe1980/pkgcache/internal/mmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgcache.bin")

	store, err := CreateFileStore(nil, path, PageSize)
	require.NoError(t, err)
	a, err := New(store)
	require.NoError(t, err)

	_, err = a.Allocate(16, 8)
	require.NoError(t, err)
	off, err := a.WriteString([]byte("persisted"))
	require.NoError(t, err)
	_, err = a.Allocate(3*PageSize, 8) // forces remapping the file
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.Stats().Growths)
	used := a.Used()
	require.NoError(t, a.Sync())
	require.NoError(t, a.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(used), fi.Size(), "file is truncated to the used size")

	// Reopen for extension: allocation continues after the committed bytes.
	store, err = OpenFileStore(nil, path, PageSize)
	require.NoError(t, err)
	a, err = New(store)
	require.NoError(t, err)
	assert.Equal(t, used, a.Used())
	assert.Equal(t, "persisted", a.String(off))

	next, err := a.WriteString([]byte("appended"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, int(next), used)
	require.NoError(t, a.Close())

	// Read-only view of the final file.
	m, err := mmap.Open(path)
	require.NoError(t, err)
	ro, err := New(NewReadOnlyStore(m))
	require.NoError(t, err)
	defer ro.Close()
	assert.Equal(t, "persisted", ro.String(off))
	assert.Equal(t, "appended", ro.String(next))

	_, err = ro.Allocate(1<<20, 1)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestFileStore_FaultyTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.bin")
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("broken", fs.Fault{FailOnTruncate: true})

	_, err := CreateFileStore(ffs, path, PageSize)
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestFileStore_FaultySyncOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nosync.bin")
	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("nosync", fs.Fault{FailOnSync: true})

	store, err := CreateFileStore(ffs, path, PageSize)
	require.NoError(t, err)
	a, err := New(store)
	require.NoError(t, err)
	_, err = a.Allocate(64, 8)
	require.NoError(t, err)

	assert.ErrorIs(t, a.Sync(), fs.ErrInjected)
	assert.ErrorIs(t, a.Close(), fs.ErrInjected)

	// The descriptor is released even though Close reported an error.
	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(64), fi.Size())
}

func TestAnonStore_Growth(t *testing.T) {
	store, err := NewAnonStore(PageSize)
	require.NoError(t, err)
	a, err := New(store)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Allocate(16, 8)
	require.NoError(t, err)
	off, err := a.WriteString([]byte("anon"))
	require.NoError(t, err)

	_, err = a.Allocate(2*PageSize, 8)
	require.NoError(t, err)
	assert.Equal(t, "anon", a.String(off))
	assert.GreaterOrEqual(t, a.Capacity(), 2*PageSize)
}

func TestHeapStoreFrom(t *testing.T) {
	a, err := New(NewHeapStoreFrom(make([]byte, 100)))
	require.NoError(t, err)
	assert.Equal(t, 100, a.Used())

	off, err := a.Allocate(8, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(104), off)
	assert.Equal(t, uint64(1), a.Stats().Growths)
}
