package pkgcache

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Closure returns the packages reachable from roots through the
// dependencies of their candidate versions, roots included, in breadth-first
// order. Only Depends and PreDepends are followed when criticalOnly is set;
// Recommends and Suggests are followed otherwise. A dependency leads to the
// packages of every version AllTargets reports for it.
func (c *Cache) Closure(roots []PkgIterator, criticalOnly bool) []PkgIterator {
	seen := roaring.New()
	var out, queue []PkgIterator
	push := func(p PkgIterator) {
		if !p.End() && seen.CheckedAdd(p.off) {
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	for _, r := range roots {
		push(r)
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		cand := c.GetCandidateVer(p, true)
		if cand.End() {
			// A virtual package leads to its providers.
			for prv := p.ProvidesList(); !prv.End(); prv = prv.Next() {
				push(prv.OwnerPkg())
			}
			continue
		}
		for d := range cand.Depends() {
			if !followed(d.Type(), criticalOnly) {
				continue
			}
			for _, v := range d.AllTargets() {
				if !v.End() {
					push(v.ParentPkg())
				}
			}
		}
	}
	return out
}

func followed(k DepKind, criticalOnly bool) bool {
	switch k {
	case Depends, PreDepends:
		return true
	case Recommends, Suggests:
		return !criticalOnly
	}
	return false
}
