package pkgcache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/pkgcache/arena"
	"github.com/hupe1980/pkgcache/internal/mmap"
	"github.com/hupe1980/pkgcache/internal/resource"
)

// Source is one input of BuildCache.
type Source struct {
	// Path identifies the file; it is stat'ed for IsOk.
	Path  string
	Flags uint32
	// Release, if set, is recorded on the file.
	Release *ReleaseInfo
	// Open returns the parser for the file. A parser that implements
	// io.Closer is closed once merged.
	Open func() (ListParser, error)
}

// BuildCache runs a whole generation session into a new cache file at path.
// The cache is written to a temporary file beside path and renamed over it
// only once it is complete and clean, so readers of path see the old cache
// or the new one, never a partial write. Every handle is released on return.
func BuildCache(path string, sources []Source, optFns ...Option) (err error) {
	o := applyOptions(optFns)
	ctx := context.Background()
	defer func() { o.logger.LogFinish(ctx, path, err) }()

	tmp := path + ".new"
	store, err := arena.CreateFileStore(o.fsys, tmp, o.workspaceSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	controller := resource.NewController(resource.Config{MemoryLimitBytes: o.memoryLimit})
	a, err := arena.New(store,
		arena.WithMaxSize(o.maxSize),
		arena.WithMemoryAcquirer(controller),
	)
	if err != nil {
		return errors.Join(translateError(err), store.Close(0), o.fsys.Remove(tmp))
	}

	if err := generate(a, sources, optFns); err != nil {
		return errors.Join(err, a.Close(), o.fsys.Remove(tmp))
	}
	if err := a.Close(); err != nil {
		return errors.Join(translateError(err), o.fsys.Remove(tmp))
	}
	if err := o.fsys.Rename(tmp, path); err != nil {
		return errors.Join(fmt.Errorf("%w: %w", ErrIOFailure, err), o.fsys.Remove(tmp))
	}
	return nil
}

func generate(a *arena.Arena, sources []Source, optFns []Option) error {
	g, err := NewGenerator(a, optFns...)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if err := mergeSource(g, src); err != nil {
			return err
		}
	}
	return g.Finish()
}

func mergeSource(g *Generator, src Source) (err error) {
	if err := g.SelectFile(src.Path, src.Flags); err != nil {
		return err
	}
	if src.Release != nil {
		if err := g.SetReleaseInfo(*src.Release); err != nil {
			return err
		}
	}
	list, err := src.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIOFailure, src.Path, err)
	}
	if c, ok := list.(io.Closer); ok {
		defer func() {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("%w: close %s: %w", ErrIOFailure, src.Path, cerr)
			}
		}()
	}
	return g.MergeList(list)
}

// adviseRandom hints the kernel that lookups jump around the mapping.
var adviseRandom = func(m *mmap.Mapping) error { return m.Advise(mmap.AccessRandom) }

// OpenCacheFile maps the cache file at path read-only and opens it. The
// returned cache owns the mapping; Close releases it.
func OpenCacheFile(path string, optFns ...Option) (*Cache, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	o := applyOptions(optFns)
	if err := adviseRandom(m); err != nil {
		o.logger.LogAdvise(context.Background(), path, err)
	}

	a, err := arena.New(arena.NewReadOnlyStore(m))
	if err != nil {
		return nil, errors.Join(translateError(err), m.Close())
	}
	c, err := Open(a, optFns...)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	c.closeFn = a.Close
	return c, nil
}
