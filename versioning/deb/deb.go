// Package deb implements the Debian version grammar
// ([epoch:]upstream[-revision]) on top of pault.ag/go/debian/version.
package deb

import (
	"strings"

	"github.com/hupe1980/pkgcache/versioning"
	"pault.ag/go/debian/version"
)

// Label is the header label of the Debian system.
const Label = "Standard .deb"

// System is the Debian version system.
var System versioning.System = debSystem{}

func init() {
	versioning.Register(System)
}

type debSystem struct{}

func (debSystem) Label() string { return Label }

// CompareVersion orders a and b with dpkg semantics. Strings that do not
// parse as Debian versions are ordered bytewise after valid ones.
func (debSystem) CompareVersion(a, b string) int {
	if a == b {
		return 0
	}
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	switch {
	case errA == nil && errB == nil:
		return version.Compare(va, vb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// CheckDependency matches pkgVer against "op depVer". An unversioned
// dependency is satisfied by anything; an unversioned provide satisfies
// only unversioned dependencies.
func (s debSystem) CheckDependency(pkgVer string, op versioning.Op, depVer string) bool {
	if depVer == "" || op.Mask() == versioning.None {
		return true
	}
	if pkgVer == "" {
		return false
	}
	return versioning.CheckOp(s.CompareVersion(pkgVer, depVer), op)
}

// UpstreamVersion drops the epoch and the Debian revision.
func (debSystem) UpstreamVersion(v string) string {
	if pv, err := version.Parse(v); err == nil {
		return pv.Version
	}
	if i := strings.IndexByte(v, ':'); i >= 0 {
		v = v[i+1:]
	}
	if i := strings.LastIndexByte(v, '-'); i >= 0 {
		v = v[:i]
	}
	return v
}
