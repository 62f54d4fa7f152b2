package pkgcache_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pkgcache"
	"github.com/hupe1980/pkgcache/arena"
	"github.com/hupe1980/pkgcache/testutil"
	"github.com/hupe1980/pkgcache/versioning/deb"
	"github.com/hupe1980/pkgcache/versioning/rpm"
)

func TestSinglePackage(t *testing.T) {
	a := newArena(t, 1<<16)
	g, err := pkgcache.NewGenerator(a)
	require.NoError(t, err)

	h := arena.At[pkgcache.Header](a, 0)
	assert.Equal(t, uint32(0x98FE76DC), h.Signature)
	assert.Equal(t, uint16(3), h.MajorVersion)
	assert.Equal(t, uint16(7), h.MinorVersion)

	mergeEntries(t, g, "Packages", 0, testutil.Entry{Package: "foo", Version: "1.0-1"})
	require.NoError(t, g.Finish())

	c, err := pkgcache.Open(a)
	require.NoError(t, err)
	st := c.Stats()
	assert.Equal(t, 1, st.Packages)
	assert.Equal(t, 1, st.Versions)

	foo := c.FindPkg("foo")
	require.False(t, foo.End())
	cand := c.GetCandidateVer(foo, false)
	require.False(t, cand.End())
	assert.Equal(t, "1.0-1", cand.VerStr())
	assert.Equal(t, deb.Label, c.VersionSystem().Label())
}

func TestFindPkg(t *testing.T) {
	for _, nonASCII := range []bool{false, true} {
		rng := testutil.NewRNG(42)
		names := rng.PackageNames(500, nonASCII)

		entries := make([]testutil.Entry, 0, len(names))
		for _, n := range names {
			entries = append(entries, testutil.Entry{Package: n, Version: rng.DebVersion()})
		}

		g, a := newGenerator(t)
		mergeEntries(t, g, "Packages", 0, entries...)
		require.NoError(t, g.Finish())

		offsets := make(map[string]uint32, len(names))
		for _, n := range names {
			p := g.GetCache().FindPkg(n)
			require.False(t, p.End(), n)
			offsets[n] = p.Offset()
		}

		c, err := pkgcache.Open(copyArena(t, a))
		require.NoError(t, err)
		for _, n := range names {
			p := c.FindPkg(n)
			require.False(t, p.End(), n)
			assert.Equal(t, n, p.Name())
			assert.Equal(t, offsets[n], p.Offset())
		}

		count := 0
		for p := range c.Packages() {
			_, ok := offsets[p.Name()]
			assert.True(t, ok)
			count++
		}
		assert.Equal(t, len(names), count)
		assert.True(t, c.FindPkg("no-such-package").End())
	}
}

func TestOpen_Validation(t *testing.T) {
	g, base := newGenerator(t)
	mergeEntries(t, g, "Packages", 0, testutil.Entry{Package: "foo", Version: "1.0-1"})
	require.NoError(t, g.Finish())

	tests := []struct {
		name   string
		mutate func(h *pkgcache.Header)
		opts   []pkgcache.Option
		want   error
	}{
		{
			name:   "record sizes",
			mutate: func(h *pkgcache.Header) { h.VersionSz++ },
			want:   pkgcache.ErrIncompatibleVersion,
		},
		{
			name: "record sizes with bad signature",
			mutate: func(h *pkgcache.Header) {
				h.PackageSz++
				h.Signature = 0
			},
			want: pkgcache.ErrIncompatibleVersion,
		},
		{
			name:   "signature",
			mutate: func(h *pkgcache.Header) { h.Signature = 0xdeadbeef },
			want:   pkgcache.ErrCorruptCache,
		},
		{
			name:   "dirty",
			mutate: func(h *pkgcache.Header) { h.Dirty = 1 },
			want:   pkgcache.ErrCorruptCache,
		},
		{
			name:   "major version",
			mutate: func(h *pkgcache.Header) { h.MajorVersion++ },
			want:   pkgcache.ErrIncompatibleVersion,
		},
		{
			name:   "minor version",
			mutate: func(h *pkgcache.Header) { h.MinorVersion++ },
			want:   pkgcache.ErrIncompatibleVersion,
		},
		{
			name:   "hash bucket out of bounds",
			mutate: func(h *pkgcache.Header) { h.HashTable[7] = 0xfffffff0 },
			want:   pkgcache.ErrCorruptCache,
		},
		{
			name:   "file list out of bounds",
			mutate: func(h *pkgcache.Header) { h.FileList = 12 },
			want:   pkgcache.ErrCorruptCache,
		},
		{
			name:   "unknown version system",
			mutate: func(h *pkgcache.Header) { h.VerSysName = 0 },
			want:   pkgcache.ErrIncompatibleVersion,
		},
		{
			name:   "other version system",
			mutate: func(*pkgcache.Header) {},
			opts:   []pkgcache.Option{pkgcache.WithVersionSystem(rpm.System)},
			want:   pkgcache.ErrIncompatibleVersion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := copyArena(t, base)
			tt.mutate(arena.At[pkgcache.Header](a, 0))

			metrics := &pkgcache.BasicMetricsCollector{}
			opts := append([]pkgcache.Option{pkgcache.WithMetricsCollector(metrics)}, tt.opts...)
			_, err := pkgcache.Open(a, opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int64(1), metrics.GetStats().OpenErrors)
		})
	}

	t.Run("incompatible error fields", func(t *testing.T) {
		a := copyArena(t, base)
		arena.At[pkgcache.Header](a, 0).VersionSz++

		_, err := pkgcache.Open(a)
		var ie *pkgcache.IncompatibleError
		require.True(t, errors.As(err, &ie))
		assert.Equal(t, "record sizes", ie.Field)
		assert.NotEqual(t, ie.Want, ie.Got)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := pkgcache.Open(newArena(t, 4096))
		assert.ErrorIs(t, err, pkgcache.ErrCorruptCache)
	})

	t.Run("explicit system", func(t *testing.T) {
		c, err := pkgcache.Open(copyArena(t, base), pkgcache.WithVersionSystem(deb.System))
		require.NoError(t, err)
		assert.False(t, c.Dirty())
	})
}

func TestOpen_DuringGeneration(t *testing.T) {
	g, a := newGenerator(t)
	mergeEntries(t, g, "Packages", 0, testutil.Entry{Package: "foo", Version: "1"})

	assert.True(t, g.GetCache().Dirty())
	_, err := pkgcache.Open(copyArena(t, a))
	assert.ErrorIs(t, err, pkgcache.ErrCorruptCache)

	require.NoError(t, g.Finish())
	assert.False(t, g.GetCache().Dirty())
	_, err = pkgcache.Open(copyArena(t, a))
	assert.NoError(t, err)
}

func TestCache_Close(t *testing.T) {
	c := buildCache(t, testutil.Entry{Package: "foo", Version: "1"})
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestPkgIterator_State(t *testing.T) {
	g, _ := newGenerator(t)
	mergeEntries(t, g, "status", pkgcache.FlagNotSource,
		testutil.Entry{Package: "ok", Version: "1", Installed: true},
		testutil.Entry{Package: "absent", Version: "1"},
	)
	c := g.GetCache()

	ok := c.FindPkg("ok")
	assert.Equal(t, pkgcache.NeedsNothing, ok.State())
	assert.Equal(t, "1", ok.CurrentVer().VerStr())
	assert.True(t, c.FindPkg("absent").CurrentVer().End())
}

func TestOpen_CorruptRecords(t *testing.T) {
	g, a := newGenerator(t)
	mergeEntries(t, g, "Packages", 0,
		testutil.Entry{Package: "foo", Version: "1.0", Depends: []testutil.Dep{{Name: "bar"}}},
		testutil.Entry{Package: "bar", Version: "2.0"},
	)
	require.NoError(t, g.Finish())
	c := g.GetCache()
	foo := c.FindPkg("foo")
	ver := foo.VersionList()
	dep := ver.DependsList()
	pkgOff, verOff, depOff := foo.Offset(), ver.Offset(), dep.Offset()

	tests := []struct {
		name    string
		corrupt func(b *arena.Arena)
	}{
		{"version list past the end", func(b *arena.Arena) {
			arena.At[pkgcache.Package](b, pkgOff).VersionList = uint32(b.Used())
		}},
		{"misaligned version", func(b *arena.Arena) {
			arena.At[pkgcache.Package](b, pkgOff).VersionList = verOff + 2
		}},
		{"version cycle", func(b *arena.Arena) {
			arena.At[pkgcache.Version](b, verOff).NextVer = verOff
		}},
		{"dependency target", func(b *arena.Arena) {
			arena.At[pkgcache.Dependency](b, depOff).Package = 1 << 30
		}},
		{"version string overrun", func(b *arena.Arena) {
			s := arena.At[pkgcache.Version](b, verOff).VerStr
			binary.LittleEndian.PutUint32(b.Bytes()[s:], 1<<20)
		}},
		{"reverse dependency in the header", func(b *arena.Arena) {
			arena.At[pkgcache.Package](b, pkgOff).RevDepends = 4
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := copyArena(t, a)
			tt.corrupt(b)

			assert.NotPanics(t, func() {
				_, err := pkgcache.Open(b)
				assert.ErrorIs(t, err, pkgcache.ErrCorruptCache)
			})
		})
	}

	_, err := pkgcache.Open(copyArena(t, a))
	assert.NoError(t, err)
}
