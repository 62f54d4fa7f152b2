// Package semver implements Semantic Versioning 2.0.0 ordering using
// golang.org/x/mod/semver. A leading "v" is optional.
package semver

import (
	"strings"

	"github.com/hupe1980/pkgcache/versioning"
	"golang.org/x/mod/semver"
)

// Label is the header label of the semantic version system.
const Label = "Semantic Versioning"

// System is the semantic version system.
var System versioning.System = semverSystem{}

func init() {
	versioning.Register(System)
}

type semverSystem struct{}

func (semverSystem) Label() string { return Label }

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// CompareVersion orders a and b by semver precedence. Invalid versions sort
// before valid ones and compare bytewise among themselves.
func (semverSystem) CompareVersion(a, b string) int {
	ca, cb := canonical(a), canonical(b)
	if !semver.IsValid(ca) && !semver.IsValid(cb) {
		return strings.Compare(a, b)
	}
	return semver.Compare(ca, cb)
}

func (s semverSystem) CheckDependency(pkgVer string, op versioning.Op, depVer string) bool {
	if depVer == "" || op.Mask() == versioning.None {
		return true
	}
	if pkgVer == "" {
		return false
	}
	return versioning.CheckOp(s.CompareVersion(pkgVer, depVer), op)
}

// UpstreamVersion drops build metadata, which carries no precedence.
func (semverSystem) UpstreamVersion(v string) string {
	if i := strings.IndexByte(v, '+'); i >= 0 {
		return v[:i]
	}
	return v
}
