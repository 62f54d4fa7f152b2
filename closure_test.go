package pkgcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/pkgcache"
	"github.com/hupe1980/pkgcache/testutil"
)

func closureCache(t *testing.T) *pkgcache.Cache {
	return buildCache(t,
		testutil.Entry{Package: "libc", Version: "1"},
		testutil.Entry{Package: "lib", Version: "1", Depends: []dep{{Name: "libc"}}},
		testutil.Entry{Package: "postfix", Version: "1", Provides: []testutil.Prv{{Name: "mta"}}},
		testutil.Entry{Package: "docbase", Version: "1"},
		testutil.Entry{Package: "doc", Version: "1", Depends: []dep{{Name: "docbase"}}},
		testutil.Entry{Package: "extra", Version: "1"},
		testutil.Entry{Package: "enemy", Version: "1"},
		testutil.Entry{
			Package: "app",
			Version: "1",
			Depends: []dep{
				{Name: "lib"},
				{Name: "mta"},
				{Name: "doc", Kind: pkgcache.Recommends},
				{Name: "extra", Kind: pkgcache.Suggests},
				{Name: "enemy", Kind: pkgcache.Conflicts},
			},
		},
	)
}

func TestClosure(t *testing.T) {
	c := closureCache(t)
	roots := []pkgcache.PkgIterator{c.FindPkg("app")}

	assert.Equal(t, []string{"app", "lib", "postfix", "libc"}, pkgNames(c.Closure(roots, true)))
	assert.Equal(t,
		[]string{"app", "lib", "postfix", "doc", "extra", "libc", "docbase"},
		pkgNames(c.Closure(roots, false)))

	virtual := []pkgcache.PkgIterator{c.FindPkg("mta")}
	assert.Equal(t, []string{"mta", "postfix"}, pkgNames(c.Closure(virtual, true)))

	// Duplicate and end roots are ignored.
	roots = append(roots, c.FindPkg("app"), c.FindPkg("no-such-package"))
	assert.Len(t, c.Closure(roots, true), 4)
}

func TestStats(t *testing.T) {
	c := buildCache(t,
		testutil.Entry{Package: "a", Version: "1", Provides: []testutil.Prv{{Name: "virt1"}}},
		testutil.Entry{Package: "b", Version: "1", Provides: []testutil.Prv{{Name: "virt2"}}},
		testutil.Entry{Package: "c", Version: "1", Provides: []testutil.Prv{{Name: "virt2"}}},
		testutil.Entry{Package: "d", Version: "1", Depends: []dep{{Name: "ghost"}}},
		testutil.Entry{Package: "e", Version: "1"},
		testutil.Entry{Package: "f", Version: "1", Provides: []testutil.Prv{{Name: "e"}}},
	)

	st := c.Stats()
	assert.Equal(t, 9, st.Packages)
	assert.Equal(t, 6, st.Versions)
	assert.Equal(t, 1, st.Dependencies)
	assert.Equal(t, 4, st.Provides)
	assert.Equal(t, 1, st.PackageFiles)
	assert.Equal(t, 6, st.VerFiles)

	assert.Equal(t, 5, st.NormalPackages)
	assert.Equal(t, 2, st.PureVirtual)
	assert.Equal(t, 1, st.SingleVirtual)
	assert.Equal(t, 1, st.MixedVirtual)
	assert.Equal(t, 1, st.MissingPackages)

	assert.Equal(t, 100, st.MaxVerFileSize)
	assert.Positive(t, st.WorkspaceUsed)
	assert.GreaterOrEqual(t, st.WorkspaceCapacity, st.WorkspaceUsed)
	assert.Equal(t, uint64(st.WorkspaceUsed), st.Arena.BytesUsed)
}
