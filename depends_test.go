package pkgcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pkgcache"
	"github.com/hupe1980/pkgcache/testutil"
	"github.com/hupe1980/pkgcache/versioning"
	"github.com/hupe1980/pkgcache/versioning/rpm"
)

type dep = testutil.Dep

// firstDep returns the first dependency of the newest version of name.
func firstDep(t *testing.T, c *pkgcache.Cache, name string) pkgcache.DepIterator {
	t.Helper()
	p := c.FindPkg(name)
	require.False(t, p.End(), name)
	d := p.VersionList().DependsList()
	require.False(t, d.End(), name)
	return d
}

func targetNames(d pkgcache.DepIterator) []string {
	var out []string
	for _, v := range d.AllTargets() {
		if !v.End() {
			out = append(out, v.ParentPkg().Name()+"="+v.VerStr())
		}
	}
	return out
}

func TestGlobOr(t *testing.T) {
	c := buildCache(t, testutil.Entry{
		Package: "app",
		Version: "1",
		Depends: []dep{
			{Name: "a", Op: versioning.OrFlag},
			{Name: "b", Version: "2", Op: versioning.GreaterEq | versioning.OrFlag},
			{Name: "c"},
			{Name: "d"},
		},
	})

	d := firstDep(t, c, "app")
	start, end, next := d.GlobOr()
	assert.Equal(t, "a", start.TargetPkg().Name())
	assert.Equal(t, "c", end.TargetPkg().Name())
	assert.Equal(t, "d", next.TargetPkg().Name())
	assert.True(t, start.IsOr())
	assert.False(t, end.IsOr())
	assert.Equal(t, ">=", start.Next().CompType())

	start, end, next = next.GlobOr()
	assert.Equal(t, "d", start.TargetPkg().Name())
	assert.Equal(t, start.Offset(), end.Offset())
	assert.True(t, next.End())
}

func TestAllTargets(t *testing.T) {
	g, _ := newGenerator(t)
	mergeEntries(t, g, "old/Packages", 0, testutil.Entry{Package: "lib", Version: "1.0"})
	mergeEntries(t, g, "new/Packages", 0,
		testutil.Entry{Package: "lib", Version: "2.0"},
		testutil.Entry{Package: "postfix", Version: "3.5", Provides: []testutil.Prv{{Name: "mta"}}},
		testutil.Entry{Package: "exim", Version: "4.9", Provides: []testutil.Prv{{Name: "mta"}, {Name: "lib", Version: "1.5"}}},
		testutil.Entry{Package: "dup", Version: "1", Provides: []testutil.Prv{{Name: "mta"}, {Name: "mta"}}},
		testutil.Entry{
			Package: "app",
			Version: "1",
			Depends: []dep{
				{Name: "lib", Version: "1.5", Op: versioning.GreaterEq},
				{Name: "mta"},
				{Name: "lib"},
				{Name: "missing"},
			},
		},
	)
	c := g.GetCache()

	d := firstDep(t, c, "app")
	targets := d.AllTargets()
	require.Len(t, targets, 3)
	assert.True(t, targets[2].End())
	assert.ElementsMatch(t, []string{"lib=2.0", "exim=4.9"}, targetNames(d))

	d = d.Next()
	assert.ElementsMatch(t, []string{"postfix=3.5", "exim=4.9", "dup=1"}, targetNames(d))

	d = d.Next()
	assert.ElementsMatch(t, []string{"lib=1.0", "lib=2.0", "exim=4.9"}, targetNames(d))

	d = d.Next()
	targets = d.AllTargets()
	require.Len(t, targets, 1)
	assert.True(t, targets[0].End())
}

func TestAllTargets_ExcludesSelf(t *testing.T) {
	c := buildCache(t,
		testutil.Entry{
			Package:  "a",
			Version:  "1",
			Depends:  []dep{{Name: "virt", Kind: pkgcache.Conflicts}, {Name: "virt"}},
			Provides: []testutil.Prv{{Name: "virt"}},
		},
		testutil.Entry{Package: "b", Version: "1", Provides: []testutil.Prv{{Name: "virt"}}},
	)

	d := firstDep(t, c, "a")
	assert.Equal(t, pkgcache.Conflicts, d.Type())
	assert.Equal(t, []string{"b=1"}, targetNames(d))
	assert.ElementsMatch(t, []string{"a=1", "b=1"}, targetNames(d.Next()))
}

func TestAllTargets_Obsoletes(t *testing.T) {
	g, _ := newGenerator(t, pkgcache.WithVersionSystem(rpm.System))
	mergeEntries(t, g, "primary.xml", 0,
		testutil.Entry{Package: "old", Version: "1.0-1"},
		testutil.Entry{Package: "shim", Version: "2.0-1", Provides: []testutil.Prv{{Name: "old"}}},
		testutil.Entry{
			Package: "new",
			Version: "2.0-1",
			Depends: []dep{
				{Name: "old", Kind: pkgcache.Obsoletes},
				{Name: "old"},
			},
		},
	)
	c := g.GetCache()
	assert.Equal(t, rpm.Label, c.VersionSystem().Label())

	d := firstDep(t, c, "new")
	assert.Equal(t, []string{"old=1.0-1"}, targetNames(d))
	assert.ElementsMatch(t, []string{"old=1.0-1", "shim=2.0-1"}, targetNames(d.Next()))
}

func TestSmartTargetPkg(t *testing.T) {
	c := buildCache(t,
		testutil.Entry{Package: "postfix", Version: "1", Provides: []testutil.Prv{{Name: "mta"}}},
		testutil.Entry{Package: "exim", Version: "1", Provides: []testutil.Prv{{Name: "mta"}}},
		testutil.Entry{Package: "bash", Version: "1", Provides: []testutil.Prv{{Name: "sh"}}},
		testutil.Entry{Package: "x11", Version: "1", Provides: []testutil.Prv{{Name: "display"}}},
		testutil.Entry{Package: "wayland", Version: "1", Provides: []testutil.Prv{{Name: "display"}}},
		testutil.Entry{Package: "awk", Version: "1"},
		testutil.Entry{Package: "mawk", Version: "1", Provides: []testutil.Prv{{Name: "awk"}}},
		testutil.Entry{
			Package:  "app",
			Version:  "1",
			Depends:  []dep{{Name: "sh"}, {Name: "mta"}, {Name: "libc"}, {Name: "display"}, {Name: "awk"}},
			Provides: []testutil.Prv{{Name: "display"}},
		},
	)

	tests := []struct {
		target     string
		want       string
		expandable bool
	}{
		{"sh", "bash", false},
		{"mta", "mta", true},
		{"libc", "libc", false},
		{"display", "display", true},
		{"awk", "awk", true},
	}
	d := firstDep(t, c, "app")
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			require.Equal(t, tt.target, d.TargetPkg().Name())
			p, expandable := d.SmartTargetPkg()
			assert.Equal(t, tt.want, p.Name())
			assert.Equal(t, tt.expandable, expandable)
		})
		d = d.Next()
	}
}

func TestSmartTargetPkg_SelfProvide(t *testing.T) {
	c := buildCache(t,
		testutil.Entry{Package: "b", Version: "1", Provides: []testutil.Prv{{Name: "virt"}}},
		testutil.Entry{
			Package:  "a",
			Version:  "1",
			Depends:  []dep{{Name: "virt"}},
			Provides: []testutil.Prv{{Name: "virt"}},
		},
	)

	p, expandable := firstDep(t, c, "a").SmartTargetPkg()
	assert.Equal(t, "b", p.Name())
	assert.False(t, expandable)
}

func TestRevDepends(t *testing.T) {
	c := buildCache(t,
		testutil.Entry{Package: "libc", Version: "1"},
		testutil.Entry{Package: "a", Version: "1", Depends: []dep{{Name: "libc"}}},
		testutil.Entry{Package: "b", Version: "1", Depends: []dep{{Name: "libc", Kind: pkgcache.Recommends}}},
	)

	var parents []string
	for d := c.FindPkg("libc").RevDependsList(); !d.End(); d = d.Next() {
		assert.Equal(t, "libc", d.TargetPkg().Name())
		parents = append(parents, d.ParentPkg().Name()+":"+d.DepType())
	}
	assert.Equal(t, []string{"b:Recommends", "a:Depends"}, parents)
}

func TestDepKind(t *testing.T) {
	assert.True(t, pkgcache.Depends.IsCritical())
	assert.True(t, pkgcache.PreDepends.IsCritical())
	assert.True(t, pkgcache.Conflicts.IsCritical())
	assert.True(t, pkgcache.Obsoletes.IsCritical())
	assert.False(t, pkgcache.Recommends.IsCritical())
	assert.False(t, pkgcache.Suggests.IsCritical())
	assert.False(t, pkgcache.Replaces.IsCritical())
	assert.Equal(t, "PreDepends", pkgcache.PreDepends.String())
	assert.Empty(t, pkgcache.DepKind(99).String())
}
