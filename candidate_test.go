package pkgcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/pkgcache"
	"github.com/hupe1980/pkgcache/testutil"
)

func TestGetCandidateVer(t *testing.T) {
	g, _ := newGenerator(t)
	mergeEntries(t, g, "main/Packages", 0,
		testutil.Entry{Package: "pkg", Version: "1.0"},
		testutil.Entry{Package: "inst", Version: "1.0"},
		testutil.Entry{Package: "shared", Version: "1.0"},
	)
	mergeEntries(t, g, "experimental/Packages", pkgcache.FlagNotAutomatic,
		testutil.Entry{Package: "pkg", Version: "2.0"},
		testutil.Entry{Package: "only-exp", Version: "3.0"},
	)
	// The status file comes last, so installed versions lead their chains.
	mergeEntries(t, g, "status", pkgcache.FlagNotSource,
		testutil.Entry{Package: "local", Version: "0.1"},
		testutil.Entry{Package: "inst", Version: "0.9", Installed: true},
		testutil.Entry{Package: "shared", Version: "1.0"},
	)
	c := g.GetCache()

	tests := []struct {
		name         string
		pkg          string
		allowCurrent bool
		want         string // "" for none
	}{
		{"automatic preferred over newer not-automatic", "pkg", false, "1.0"},
		{"not-automatic when nothing else", "only-exp", false, "3.0"},
		{"not-source only", "local", false, ""},
		{"current allowed", "inst", true, "0.9"},
		{"current not allowed", "inst", false, "1.0"},
		{"same version in status and archive", "shared", false, "1.0"},
		{"virtual", "no-such-package", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.GetCandidateVer(c.FindPkg(tt.pkg), tt.allowCurrent)
			if tt.want == "" {
				assert.True(t, v.End())
				return
			}
			assert.False(t, v.End())
			assert.Equal(t, tt.want, v.VerStr())
		})
	}

	assert.Equal(t, []string{"2.0", "1.0"}, verStrs(c.FindPkg("pkg")))
	assert.True(t, c.FindPkg("pkg").VersionList().Downloadable())
	assert.False(t, c.FindPkg("local").VersionList().Downloadable())
	assert.False(t, c.FindPkg("pkg").VersionList().Automatic())
	assert.True(t, c.FindPkg("pkg").VersionList().Next().Automatic())
}

func TestGetCandidateVer_HighestNotAutomatic(t *testing.T) {
	g, _ := newGenerator(t)
	mergeEntries(t, g, "backports/Packages", pkgcache.FlagNotAutomatic,
		testutil.Entry{Package: "pkg", Version: "2.0"},
	)
	mergeEntries(t, g, "experimental/Packages", pkgcache.FlagNotAutomatic,
		testutil.Entry{Package: "pkg", Version: "1.0"},
	)
	c := g.GetCache()
	p := c.FindPkg("pkg")

	// The lower version leads the chain; the fallback is ranked, not positional.
	assert.Equal(t, []string{"1.0", "2.0"}, verStrs(p))
	assert.Equal(t, "2.0", c.GetCandidateVer(p, false).VerStr())
	assert.Equal(t, "2.0", c.GetCandidateVer(p, true).VerStr())
}
