package pkgcache_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pkgcache"
	"github.com/hupe1980/pkgcache/deblist"
	"github.com/hupe1980/pkgcache/internal/fs"
	"github.com/hupe1980/pkgcache/testutil"
)

type closingParser struct {
	*testutil.Parser
	closed bool
}

func (p *closingParser) Close() error {
	p.closed = true
	return nil
}

func scripted(path string, flags uint32, entries ...testutil.Entry) pkgcache.Source {
	return pkgcache.Source{
		Path:  path,
		Flags: flags,
		Open: func() (pkgcache.ListParser, error) {
			return testutil.NewParser(entries...), nil
		},
	}
}

func TestBuildCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkgcache.bin")

	closer := &closingParser{Parser: testutil.NewParser(testutil.Entry{Package: "extra", Version: "1"})}
	sources := []pkgcache.Source{
		scripted(filepath.Join(dir, "status"), pkgcache.FlagNotSource,
			testutil.Entry{Package: "foo", Version: "1.0-1", Installed: true}),
		scripted(filepath.Join(dir, "Packages"), 0,
			testutil.Entry{Package: "foo", Version: "1.0-1"},
			testutil.Entry{Package: "foo", Version: "1.1-1"},
			testutil.Entry{Package: "bar", Version: "2.0", Depends: []dep{{Name: "foo"}}},
			testutil.Entry{Package: "broken", Version: "1", Malformed: "bad"},
		),
		{
			Path:    filepath.Join(dir, "extra_Packages"),
			Release: &pkgcache.ReleaseInfo{Archive: "unstable", Component: "contrib"},
			Open:    func() (pkgcache.ListParser, error) { return closer, nil },
		},
	}

	metrics := &pkgcache.BasicMetricsCollector{}
	require.NoError(t, pkgcache.BuildCache(path, sources,
		pkgcache.WithMetricsCollector(metrics),
		pkgcache.WithWorkspaceSize(16<<10),
	))
	assert.True(t, closer.closed)
	assert.NoFileExists(t, path+".new")

	st := metrics.GetStats()
	assert.Equal(t, int64(3), st.MergeCount)
	assert.Equal(t, int64(1), st.MergeSkipped)

	c, err := pkgcache.OpenCacheFile(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close()) }()

	foo := c.FindPkg("foo")
	require.False(t, foo.End())
	assert.Equal(t, []string{"1.1-1", "1.0-1"}, verStrs(foo))
	assert.Equal(t, "1.0-1", foo.CurrentVer().VerStr())
	assert.Equal(t, "1.1-1", c.GetCandidateVer(foo, false).VerStr())
	assert.Equal(t, "bar", foo.RevDependsList().ParentPkg().Name())

	extra := c.FindPkg("extra").VersionList().FileList().File()
	assert.Equal(t, "unstable", extra.Archive())
	assert.Equal(t, "contrib", extra.Component())

	assert.Equal(t, 3, c.Stats().PackageFiles)
	assert.False(t, c.Dirty())
}

func TestBuildCache_Rebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgcache.bin")

	require.NoError(t, pkgcache.BuildCache(path, []pkgcache.Source{
		scripted("Packages", 0, testutil.Entry{Package: "old", Version: "1"}),
	}))
	require.NoError(t, pkgcache.BuildCache(path, []pkgcache.Source{
		scripted("Packages", 0, testutil.Entry{Package: "new", Version: "1"}),
	}))

	c, err := pkgcache.OpenCacheFile(path)
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, c.FindPkg("old").End())
	assert.False(t, c.FindPkg("new").End())
}

func TestBuildCache_Failure(t *testing.T) {
	boom := errors.New("no such mirror")

	tests := []struct {
		name    string
		sources []pkgcache.Source
		fsys    func() fs.FileSystem
		want    error
	}{
		{
			name: "open source",
			sources: []pkgcache.Source{{
				Path: "Packages",
				Open: func() (pkgcache.ListParser, error) { return nil, boom },
			}},
			want: boom,
		},
		{
			name: "read source",
			sources: []pkgcache.Source{{
				Path: "Packages",
				Open: func() (pkgcache.ListParser, error) {
					p := testutil.NewParser(testutil.Entry{Package: "foo", Version: "1"})
					p.ReadErr = boom
					return p, nil
				},
			}},
			want: boom,
		},
		{
			name:    "workspace ceiling",
			sources: []pkgcache.Source{scripted("Packages", 0, randomEntries(testutil.NewRNG(9), 2000)...)},
			want:    pkgcache.ErrAllocationExhausted,
		},
		{
			name:    "rename",
			sources: []pkgcache.Source{scripted("Packages", 0, testutil.Entry{Package: "foo", Version: "1"})},
			fsys: func() fs.FileSystem {
				ffs := fs.NewFaultyFS(nil)
				ffs.AddRule("pkgcache.bin", fs.Fault{FailOnRename: true})
				return ffs
			},
			want: fs.ErrInjected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "pkgcache.bin")
			opts := []pkgcache.Option{
				pkgcache.WithWorkspaceSize(16 << 10),
				pkgcache.WithMaxSize(64 << 10),
			}
			if tt.fsys != nil {
				opts = append(opts, pkgcache.WithFileSystem(tt.fsys()))
			}

			err := pkgcache.BuildCache(path, tt.sources, opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.NoFileExists(t, path)
			assert.NoFileExists(t, path+".new")
		})
	}
}

func TestBuildCache_Deblist(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "Packages")
	content := strings.Join([]string{
		"Package: hello\nVersion: 2.10-3\nArchitecture: amd64\nDepends: libc6 (>= 2.34)\n",
		"Package: libc6\nVersion: 2.36-9\nArchitecture: amd64\nPriority: required\n",
	}, "\n")
	require.NoError(t, os.WriteFile(index, []byte(content), 0o644))

	path := filepath.Join(dir, "pkgcache.bin")
	require.NoError(t, pkgcache.BuildCache(path, []pkgcache.Source{{
		Path: index,
		Open: func() (pkgcache.ListParser, error) { return deblist.Open(index) },
	}}))

	c, err := pkgcache.OpenCacheFile(path)
	require.NoError(t, err)
	defer c.Close()

	d := c.FindPkg("hello").VersionList().DependsList()
	require.False(t, d.End())
	targets := d.AllTargets()
	require.Len(t, targets, 2)
	assert.Equal(t, "2.36-9", targets[0].VerStr())
	assert.Equal(t, "required", strings.ToLower(targets[0].PriorityType()))

	stale, err := c.CheckSources(t.Context())
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestOpenCacheFile_Missing(t *testing.T) {
	_, err := pkgcache.OpenCacheFile(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, pkgcache.ErrIOFailure)
}
