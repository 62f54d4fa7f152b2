package pkgcache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pkgcache"
	"github.com/hupe1980/pkgcache/arena"
	"github.com/hupe1980/pkgcache/testutil"
)

func newArena(t *testing.T, size int) *arena.Arena {
	t.Helper()
	a, err := arena.New(arena.NewHeapStore(size))
	require.NoError(t, err)
	return a
}

func newGenerator(t *testing.T, opts ...pkgcache.Option) (*pkgcache.Generator, *arena.Arena) {
	t.Helper()
	a := newArena(t, 1<<16)
	g, err := pkgcache.NewGenerator(a, opts...)
	require.NoError(t, err)
	return g, a
}

func mergeEntries(t *testing.T, g *pkgcache.Generator, file string, flags uint32, entries ...testutil.Entry) {
	t.Helper()
	require.NoError(t, g.SelectFile(file, flags))
	require.NoError(t, g.MergeList(testutil.NewParser(entries...)))
}

// buildCache merges entries from one file and returns the finished cache.
func buildCache(t *testing.T, entries ...testutil.Entry) *pkgcache.Cache {
	t.Helper()
	g, _ := newGenerator(t)
	mergeEntries(t, g, "Packages", 0, entries...)
	require.NoError(t, g.Finish())
	return g.GetCache()
}

// copyArena returns an arena holding a copy of the used bytes of a.
func copyArena(t *testing.T, a *arena.Arena) *arena.Arena {
	t.Helper()
	data := append([]byte(nil), a.Bytes()[:a.Used()]...)
	b, err := arena.New(arena.NewHeapStoreFrom(data))
	require.NoError(t, err)
	return b
}

func verStrs(p pkgcache.PkgIterator) []string {
	var out []string
	for v := range p.Versions() {
		out = append(out, v.VerStr())
	}
	return out
}

func pkgNames(ps []pkgcache.PkgIterator) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name())
	}
	return out
}
