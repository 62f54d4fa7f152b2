package pkgcache

import (
	"github.com/hupe1980/pkgcache/arena"
)

// Stats summarizes a cache.
type Stats struct {
	Packages     int
	Versions     int
	Dependencies int
	Provides     int
	PackageFiles int
	VerFiles     int
	StringItems  int

	NormalPackages  int // versions, nothing provides them
	PureVirtual     int // no versions, provided
	SingleVirtual   int // pure virtual with exactly one provider
	MixedVirtual    int // versions and provided
	MissingPackages int // neither, only referenced

	MaxVerFileSize    int
	WorkspaceUsed     int
	WorkspaceCapacity int
	Arena             arena.Stats
}

// Stats counts the records of the cache and classifies its packages.
func (c *Cache) Stats() Stats {
	h := c.header()
	s := Stats{
		Packages:          int(h.PackageCount),
		Versions:          int(h.VersionCount),
		Dependencies:      int(h.DependsCount),
		Provides:          int(h.ProvidesCount),
		PackageFiles:      int(h.PackageFileCount),
		VerFiles:          int(h.VerFileCount),
		StringItems:       int(h.StringItemCount),
		MaxVerFileSize:    int(h.MaxVerFileSize),
		WorkspaceUsed:     c.a.Used(),
		WorkspaceCapacity: c.a.Capacity(),
		Arena:             c.a.Stats(),
	}

	for p := range c.Packages() {
		r := p.rec()
		switch {
		case r.VersionList != 0 && r.ProvidesList == 0:
			s.NormalPackages++
		case r.VersionList == 0 && r.ProvidesList != 0:
			s.PureVirtual++
			if p.ProvidesList().Next().End() {
				s.SingleVirtual++
			}
		case r.VersionList != 0:
			s.MixedVirtual++
		default:
			s.MissingPackages++
		}
	}
	return s
}
