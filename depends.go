package pkgcache

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/pkgcache/versioning"
)

// DepKind is the kind of a dependency.
type DepKind uint8

const (
	Depends DepKind = iota + 1
	PreDepends
	Suggests
	Recommends
	Conflicts
	Replaces
	Obsoletes
)

var depKindNames = [...]string{"", "Depends", "PreDepends", "Suggests", "Recommends", "Conflicts", "Replaces", "Obsoletes"}

func (k DepKind) String() string {
	if int(k) < len(depKindNames) {
		return depKindNames[k]
	}
	return ""
}

// IsCritical reports whether the kind must be satisfied (Depends,
// PreDepends) or avoided (Conflicts, Obsoletes), as opposed to advisory.
func (k DepKind) IsCritical() bool {
	switch k {
	case Depends, PreDepends, Conflicts, Obsoletes:
		return true
	}
	return false
}

// excludesSelf reports whether a package can never satisfy this kind of
// its own dependency.
func (k DepKind) excludesSelf() bool {
	return k == Conflicts || k == Obsoletes
}

// GlobOr returns the first and last dependency of the OR-group that starts
// at d, and the dependency following the group. A group ends at the first
// entry without the OR flag, which is included.
//
//	for d := v.DependsList(); !d.End(); {
//	    start, end, next := d.GlobOr()
//	    ...
//	    d = next
//	}
func (d DepIterator) GlobOr() (start, end, next DepIterator) {
	start, end, next = d, d, d
	for !next.End() {
		end = next
		or := next.IsOr()
		next = next.Next()
		if !or {
			break
		}
	}
	return start, end, next
}

// checkDep reports whether pkgVer satisfies the dependency d.
func (d DepIterator) checkDep(pkgVer string) bool {
	r := d.rec()
	op := versioning.Op(r.CompareOp)
	depVer := d.c.str(r.Version)
	if DepKind(r.Type) == Obsoletes {
		if oc, ok := d.c.vs.(versioning.ObsoletesChecker); ok {
			return oc.CheckObsoletes(pkgVer, op, depVer)
		}
	}
	return d.c.vs.CheckDependency(pkgVer, op, depVer)
}

// visitTargets calls fn for every version satisfying d: versions of the
// target package, then versions reached through provides of it. A version
// is reported once even when reachable more than one way.
func (d DepIterator) visitTargets(fn func(VerIterator)) {
	target := d.TargetPkg()
	if target.End() {
		return
	}
	self := d.ParentVer().rec().ParentPkg
	skipSelf := d.Type().excludesSelf()
	seen := roaring.New()

	for v := target.VersionList(); !v.End(); v = v.Next() {
		if !d.checkDep(v.VerStr()) {
			continue
		}
		if skipSelf && v.rec().ParentPkg == self {
			continue
		}
		if seen.CheckedAdd(v.off) {
			fn(v)
		}
	}
	for p := target.ProvidesList(); !p.End(); p = p.Next() {
		if !d.checkDep(p.ProvideVersion()) {
			continue
		}
		if skipSelf && p.rec().OwnerPkg == self {
			continue
		}
		if owner := p.OwnerVer(); seen.CheckedAdd(owner.off) {
			fn(owner)
		}
	}
}

// AllTargets returns every version that could satisfy d, directly or
// through a provide, as judged by the cache's version system. A package
// never satisfies its own Conflicts or Obsoletes. The result is sized
// exactly and its last element is an end iterator.
func (d DepIterator) AllTargets() []VerIterator {
	n := 0
	d.visitTargets(func(VerIterator) { n++ })

	res := make([]VerIterator, 0, n+1)
	d.visitTargets(func(v VerIterator) { res = append(res, v) })
	return append(res, VerIterator{c: d.c})
}

// SmartTargetPkg resolves the target of d through provides. It returns the
// target itself when nothing provides it. Otherwise, ignoring provides by
// the package declaring d, it returns the single remaining provider, or the
// target with expandable set when there are several (or when the target
// also has versions of its own) and the caller must present alternatives.
func (d DepIterator) SmartTargetPkg() (result PkgIterator, expandable bool) {
	result = d.TargetPkg()
	if result.End() || result.rec().ProvidesList == 0 {
		return result, false
	}
	// The target itself and at least one provider.
	if result.rec().VersionList != 0 {
		return result, true
	}

	self := d.ParentVer().rec().ParentPkg
	first := result.ProvidesList()
	for !first.End() && first.rec().OwnerPkg == self {
		first = first.Next()
	}
	// Nothing but indirect self provides.
	if first.End() {
		return result, false
	}

	owner := first.rec().OwnerPkg
	for p := first.Next(); !p.End(); p = p.Next() {
		o := p.rec().OwnerPkg
		if o != self && o != owner {
			return result, true
		}
	}
	return d.c.pkgAt(owner), false
}
