package pkgcache

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type fileStamp struct {
	name  string
	size  uint64
	mtime int64
}

// CheckSources stats every source file of the cache concurrently and returns
// the paths whose size or modification time differs from the values recorded
// at generation, in file-list order. An error is returned only when ctx ends
// first.
func (c *Cache) CheckSources(ctx context.Context) ([]string, error) {
	var stamps []fileStamp
	for f := range c.Files() {
		r := f.rec()
		stamps = append(stamps, fileStamp{name: f.FileName(), size: r.Size, mtime: r.Mtime})
	}

	stale := make([]bool, len(stamps))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, st := range stamps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fi, err := c.fsys.Stat(st.name)
			stale[i] = err != nil || fi.Size() != int64(st.size) || fi.ModTime().Unix() != st.mtime
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []string
	for i, s := range stale {
		if s {
			out = append(out, stamps[i].name)
		}
	}
	return out, nil
}
