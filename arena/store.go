package arena

import (
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/pkgcache/internal/fs"
	"github.com/hupe1980/pkgcache/internal/mmap"
)

// ErrReadOnly is returned when growing or syncing a read-only store.
var ErrReadOnly = errors.New("arena: store is read-only")

// Store is the backing memory of an Arena.
type Store interface {
	// Bytes returns the whole current workspace. The slice is invalidated by Grow.
	Bytes() []byte
	// Committed returns how many leading bytes held data when the store was opened.
	Committed() int
	// Grow extends the workspace to size bytes, preserving its contents.
	Grow(size int) error
	// Sync persists the first used bytes.
	Sync(used int) error
	// Close releases the store, keeping the first used bytes.
	Close(used int) error
}

// HeapStore is a Store backed by a Go byte slice.
type HeapStore struct {
	buf       []byte
	committed int
}

// NewHeapStore returns an empty heap workspace of size bytes.
func NewHeapStore(size int) *HeapStore {
	if size <= 0 {
		size = DefaultWorkspace
	}
	return &HeapStore{buf: make([]byte, size)}
}

// NewHeapStoreFrom wraps data, treating all of it as committed content.
func NewHeapStoreFrom(data []byte) *HeapStore {
	return &HeapStore{buf: data, committed: len(data)}
}

func (s *HeapStore) Bytes() []byte  { return s.buf }
func (s *HeapStore) Committed() int { return s.committed }
func (s *HeapStore) Sync(int) error { return nil }

func (s *HeapStore) Grow(size int) error {
	if size <= len(s.buf) {
		return nil
	}
	nb := make([]byte, size)
	copy(nb, s.buf)
	s.buf = nb
	return nil
}

func (s *HeapStore) Close(used int) error {
	if used < len(s.buf) {
		s.buf = s.buf[:used]
	}
	return nil
}

// AnonStore is a Store backed by anonymous memory mappings. It stands in for
// a file-backed workspace when no cache file is wanted.
type AnonStore struct {
	m *mmap.Mapping
}

// NewAnonStore maps an anonymous workspace of size bytes.
func NewAnonStore(size int) (*AnonStore, error) {
	if size <= 0 {
		size = DefaultWorkspace
	}
	m, err := mmap.MapAnon(size)
	if err != nil {
		return nil, err
	}
	return &AnonStore{m: m}, nil
}

func (s *AnonStore) Bytes() []byte  { return s.m.Bytes() }
func (s *AnonStore) Committed() int { return 0 }
func (s *AnonStore) Sync(int) error { return nil }

func (s *AnonStore) Grow(size int) error {
	if size <= s.m.Size() {
		return nil
	}
	nm, err := mmap.MapAnon(size)
	if err != nil {
		return err
	}
	copy(nm.Bytes(), s.m.Bytes())
	old := s.m
	s.m = nm
	return old.Close()
}

func (s *AnonStore) Close(int) error {
	return s.m.Close()
}

// FileStore is a Store backed by a shared read-write mapping of a file.
// The file is extended to the workspace size while open and truncated back
// to the used size on Close.
type FileStore struct {
	f         fs.File
	m         *mmap.Mapping
	committed int
}

// CreateFileStore creates (or truncates) path and maps a workspace of size
// bytes. A nil fsys uses the local file system.
func CreateFileStore(fsys fs.FileSystem, path string, size int) (*FileStore, error) {
	return openFileStore(fsys, path, size, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
}

// OpenFileStore maps an existing cache file for extension. Its current
// contents are committed; the workspace is at least size bytes.
func OpenFileStore(fsys fs.FileSystem, path string, size int) (*FileStore, error) {
	return openFileStore(fsys, path, size, os.O_RDWR)
}

func openFileStore(fsys fs.FileSystem, path string, size int, flag int) (*FileStore, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if size <= 0 {
		size = DefaultWorkspace
	}

	f, err := fsys.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	committed := int(fi.Size())
	if int64(committed) != fi.Size() || uint64(committed) > MaxSize {
		return nil, errors.Join(fmt.Errorf("%w: cache file of %d bytes", ErrExhausted, fi.Size()), f.Close())
	}

	capacity := max(size, committed)
	capacity = (capacity + PageSize - 1) &^ (PageSize - 1)
	if err := f.Truncate(int64(capacity)); err != nil {
		return nil, errors.Join(err, f.Close())
	}

	m, err := mmap.MapFile(f, capacity)
	if err != nil {
		// Leave the file as it was found.
		return nil, errors.Join(err, f.Truncate(int64(committed)), f.Close())
	}
	return &FileStore{f: f, m: m, committed: committed}, nil
}

func (s *FileStore) Bytes() []byte  { return s.m.Bytes() }
func (s *FileStore) Committed() int { return s.committed }

// Name returns the path of the backing file.
func (s *FileStore) Name() string { return s.f.Name() }

func (s *FileStore) Grow(size int) error {
	if size <= s.m.Size() {
		return nil
	}
	// Flush first: without mmap(2) the new mapping is read back from the file.
	if err := s.m.Sync(); err != nil {
		return err
	}
	if err := s.f.Truncate(int64(size)); err != nil {
		return err
	}
	nm, err := mmap.MapFile(s.f, size)
	if err != nil {
		return err
	}
	old := s.m
	s.m = nm
	return old.Close()
}

func (s *FileStore) Sync(used int) error {
	if err := s.m.Sync(); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *FileStore) Close(used int) error {
	errMap := s.m.Sync()
	errUnmap := s.m.Close()
	errTrunc := s.f.Truncate(int64(used))
	errSync := s.f.Sync()
	errClose := s.f.Close()
	return errors.Join(errMap, errUnmap, errTrunc, errSync, errClose)
}

// ReadOnlyStore exposes an existing read-only mapping as a Store. It cannot grow.
type ReadOnlyStore struct {
	m *mmap.Mapping
}

// NewReadOnlyStore wraps m.
func NewReadOnlyStore(m *mmap.Mapping) *ReadOnlyStore {
	return &ReadOnlyStore{m: m}
}

func (s *ReadOnlyStore) Bytes() []byte   { return s.m.Bytes() }
func (s *ReadOnlyStore) Committed() int  { return s.m.Size() }
func (s *ReadOnlyStore) Grow(int) error  { return ErrReadOnly }
func (s *ReadOnlyStore) Sync(int) error  { return ErrReadOnly }
func (s *ReadOnlyStore) Close(int) error { return s.m.Close() }
