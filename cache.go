package pkgcache

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/hupe1980/pkgcache/arena"
	"github.com/hupe1980/pkgcache/internal/fs"
	"github.com/hupe1980/pkgcache/versioning"
)

// Cache is a read view of a package cache living in an arena.
//
// Every handle it returns is an offset bound to the cache and re-derives its
// record through the arena's current base on each access, so handles stay
// valid while a generator grows the arena underneath.
type Cache struct {
	a       *arena.Arena
	vs      versioning.System
	logger  *Logger
	metrics MetricsCollector
	fsys    fs.FileSystem

	closeOnce sync.Once
	closeFn   func() error
	closeErr  error
}

// Open validates the cache held by a and returns a read view of it. A cache
// that is dirty or has a bad signature fails with ErrCorruptCache, as does
// one holding a record offset outside the workspace; one built with
// different record layouts, structure version or version system fails with
// ErrIncompatibleVersion. The caller keeps ownership of a.
func Open(a *arena.Arena, optFns ...Option) (*Cache, error) {
	o := applyOptions(optFns)
	start := time.Now()

	c, err := openCache(a, o)
	o.metricsCollector.RecordOpen(time.Since(start), err)
	if err != nil {
		o.logger.LogOpen(context.Background(), 0, 0, err)
		return nil, err
	}
	h := c.header()
	o.logger.LogOpen(context.Background(), int(h.PackageCount), int(h.VersionCount), nil)
	return c, nil
}

func openCache(a *arena.Arena, o options) (*Cache, error) {
	vs, err := validate(a, o.versionSystem)
	if err != nil {
		return nil, err
	}
	o.versionSystem = vs
	return newCache(a, o), nil
}

// newCache wraps a without validation; the generator reads its own
// half-built cache through it.
func newCache(a *arena.Arena, o options) *Cache {
	return &Cache{
		a:       a,
		vs:      o.versionSystem,
		logger:  o.logger,
		metrics: o.metricsCollector,
		fsys:    o.fsys,
	}
}

// validate checks the header of a against this build. It resolves the
// version system from the header label when vs is nil.
func validate(a *arena.Arena, vs versioning.System) (versioning.System, error) {
	used := uint64(a.Used())
	sizesEnd := unsafe.Offsetof(Header{}.PackageCount)
	if used < uint64(sizesEnd) {
		return nil, fmt.Errorf("%w: %d byte workspace holds no header", ErrCorruptCache, used)
	}

	// The size table sits at a fixed position in every structure version,
	// so it can be compared before anything else is trusted.
	h := (*Header)(a.Get(0, sizesEnd))
	if !h.checkSizes() {
		want := fmt.Sprintf("%d/%d/%d/%d/%d/%d/%d/%d", headerSize, packageSize, packageFileSize,
			versionSize, dependencySize, providesSize, verFileSize, stringItemSize)
		got := fmt.Sprintf("%d/%d/%d/%d/%d/%d/%d/%d", h.HeaderSz, h.PackageSz, h.PackageFileSz,
			h.VersionSz, h.DependencySz, h.ProvidesSz, h.VerFileSz, h.StringItemSz)
		return nil, &IncompatibleError{Field: "record sizes", Want: want, Got: got}
	}
	if used < uint64(headerSize) {
		return nil, fmt.Errorf("%w: truncated header", ErrCorruptCache)
	}

	h = arena.At[Header](a, 0)
	if h.Signature != Signature {
		return nil, fmt.Errorf("%w: bad signature %#x", ErrCorruptCache, h.Signature)
	}
	if h.Dirty != 0 {
		return nil, fmt.Errorf("%w: cache is dirty", ErrCorruptCache)
	}
	if h.MajorVersion != MajorVersion || h.MinorVersion != MinorVersion {
		return nil, &IncompatibleError{
			Field: "structure version",
			Want:  fmt.Sprintf("%d.%d", MajorVersion, MinorVersion),
			Got:   fmt.Sprintf("%d.%d", h.MajorVersion, h.MinorVersion),
		}
	}

	inBounds := func(off uint32) bool {
		return off == 0 || uint64(off) >= uint64(headerSize) && uint64(off) < used
	}
	for i, head := range h.HashTable {
		if !inBounds(head) {
			return nil, fmt.Errorf("%w: hash bucket %d points outside the cache", ErrCorruptCache, i)
		}
	}
	if !inBounds(h.FileList) || !inBounds(h.VerSysName) {
		return nil, fmt.Errorf("%w: header list points outside the cache", ErrCorruptCache)
	}
	for _, head := range h.StringList {
		if !inBounds(head) {
			return nil, fmt.Errorf("%w: string list points outside the cache", ErrCorruptCache)
		}
	}

	if err := verifyRecords(a); err != nil {
		return nil, err
	}

	label := a.String(h.VerSysName)
	if vs == nil {
		var ok bool
		if vs, ok = versioning.Lookup(label); !ok {
			return nil, &IncompatibleError{
				Field: "version system",
				Want:  strings.Join(versioning.Labels(), " | "),
				Got:   fmt.Sprintf("%q", label),
			}
		}
	} else if vs.Label() != label {
		return nil, &IncompatibleError{
			Field: "version system",
			Want:  fmt.Sprintf("%q", vs.Label()),
			Got:   fmt.Sprintf("%q", label),
		}
	}
	return vs, nil
}

func (c *Cache) header() *Header {
	return arena.At[Header](c.a, 0)
}

func (c *Cache) str(off uint32) string {
	return c.a.String(off)
}

// VersionSystem returns the version grammar of the cache.
func (c *Cache) VersionSystem() versioning.System {
	return c.vs
}

// Arena returns the workspace backing the cache.
func (c *Cache) Arena() *arena.Arena {
	return c.a
}

// Dirty reports whether the cache is mid-generation.
func (c *Cache) Dirty() bool {
	return c.header().Dirty != 0
}

// hashName is the package bucket of name: h = 5*h + byte over the raw
// bytes, modulo the table size. Generator and reader must agree on it.
func hashName(name string) int {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = 5*h + uint32(name[i])
	}
	return int(h % HashTableSize)
}

// FindPkg returns the package called name; the returned iterator is at its
// end when there is none. Lookup is case-sensitive.
func (c *Cache) FindPkg(name string) PkgIterator {
	bucket := hashName(name)
	for off := c.header().HashTable[bucket]; off != 0; {
		p := arena.At[Package](c.a, off)
		if string(c.a.StringBytes(p.Name)) == name {
			return PkgIterator{c: c, off: off, bucket: bucket}
		}
		off = p.NextPackage
	}
	return PkgIterator{c: c, bucket: HashTableSize}
}

// PkgBegin returns an iterator at the first package in hash order.
func (c *Cache) PkgBegin() PkgIterator {
	return PkgIterator{c: c, bucket: -1}.Next()
}

// Packages yields every package in hash order.
func (c *Cache) Packages() iter.Seq[PkgIterator] {
	return func(yield func(PkgIterator) bool) {
		for p := c.PkgBegin(); !p.End(); p = p.Next() {
			if !yield(p) {
				return
			}
		}
	}
}

// FileBegin returns an iterator at the most recently selected source file.
func (c *Cache) FileBegin() PkgFileIterator {
	return PkgFileIterator{c: c, off: c.header().FileList}
}

// Files yields every source file, most recently selected first.
func (c *Cache) Files() iter.Seq[PkgFileIterator] {
	return func(yield func(PkgFileIterator) bool) {
		for f := c.FileBegin(); !f.End(); f = f.Next() {
			if !yield(f) {
				return
			}
		}
	}
}

// Close releases the cache. A cache returned by Open does not own its arena
// and Close is a no-op; one returned by OpenCacheFile unmaps the file.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		if c.closeFn != nil {
			c.closeErr = c.closeFn()
		}
	})
	return c.closeErr
}
