package pkgcache

// GetCandidateVer returns the version that should be installed for p. The
// version list is walked newest merged first and the first match wins:
//
//   - the current version, if allowCurrent is set;
//   - a version available from a real source that allows automatic
//     installation.
//
// The highest version only available from NotAutomatic sources, as ranked
// by the cache's version system, is the fallback when the walk finds
// neither. Versions only known from NotSource files (such as the status
// file) are never candidates otherwise. The end iterator is returned when
// nothing qualifies.
func (c *Cache) GetCandidateVer(p PkgIterator, allowCurrent bool) VerIterator {
	last := VerIterator{c: c}
	if p.End() {
		return last
	}
	current := p.rec().CurrentVer

	for v := p.VersionList(); !v.End(); v = v.Next() {
		if allowCurrent && current != 0 && v.off == current {
			return v
		}
		for f := v.FileList(); !f.End(); f = f.Next() {
			flags := f.File().Flags()
			if flags&FlagNotSource != 0 {
				continue
			}
			if flags&FlagNotAutomatic != 0 {
				if last.End() || c.vs.CompareVersion(v.VerStr(), last.VerStr()) > 0 {
					last = v
				}
				continue
			}
			return v
		}
	}
	return last
}
