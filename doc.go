// Package pkgcache is the data engine of a package manager: a memory-mappable
// binary cache of packages, versions, dependencies and provides across one or
// more repositories, the generator that builds it and the resolution queries
// that walk it.
//
// # Layout
//
// A cache is a single arena. A [Header] sits at offset 0, followed by
// fixed-size records ([Package], [Version], [Dependency], [Provides],
// [PackageFile], [VerFile], [StringItem]) carved from size-class pools, and
// length-prefixed strings. Records refer to each other only by 32-bit offsets
// from the arena base; offset 0 means "absent". Readers compare the record
// sizes stored in the header with their own and refuse a cache built with
// other layouts.
//
// # Generating
//
//	a, _ := arena.New(arena.NewHeapStore(0))
//	gen, _ := pkgcache.NewGenerator(a, pkgcache.WithVersionSystem(deb.System))
//	_ = gen.SelectFile("/var/lib/apt/lists/main_Packages", 0)
//	_ = gen.MergeList(parser) // any ListParser, e.g. deblist.New(r)
//	_ = gen.Finish()
//
// BuildCache runs a whole session into a file and publishes it atomically.
//
// # Querying
//
//	cache, _ := pkgcache.OpenCacheFile("pkgcache.bin")
//	defer cache.Close()
//
//	pkg := cache.FindPkg("foo")
//	cand := cache.GetCandidateVer(pkg, false)
//	for d := cand.DependsList(); !d.End(); {
//	    start, end, next := d.GlobOr()
//	    ...
//	    d = next
//	}
//
// Handles are cheap values bound to their cache. They re-derive their record
// on every access, so a handle obtained from a generator's cache stays valid
// while the arena grows.
//
// # Dirty flag
//
// A generator marks the cache dirty for the whole session and clears the flag
// in Finish. Open refuses a dirty cache with ErrCorruptCache, so an aborted
// generation is never mistaken for a valid cache. Mutual exclusion between a
// writer and readers of the same file is the caller's business.
package pkgcache
