// Package rpm implements the RPM version grammar
// ([epoch:]version[-release]) with rpmvercmp segment ordering.
package rpm

import (
	"strconv"
	"strings"

	"github.com/hupe1980/pkgcache/versioning"
)

// Label is the header label of the RPM system.
const Label = "Standard .rpm"

// System is the RPM version system.
var System versioning.System = rpmSystem{}

func init() {
	versioning.Register(System)
}

type rpmSystem struct{}

func (rpmSystem) Label() string { return Label }

// evr is a parsed epoch:version-release triple. Missing parts are empty.
type evr struct {
	epoch, version, release string
	hasEpoch, hasRelease     bool
}

func parseEVR(s string) evr {
	// A trailing "@buildtime" is not part of the ordering.
	if i := strings.LastIndexByte(s, '@'); i >= 0 && isDigits(s[i+1:]) {
		s = s[:i]
	}
	var e evr
	end := 0
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	if end < len(s) && s[end] == ':' {
		e.epoch, e.hasEpoch = s[:end], true
		s = s[end+1:]
	}
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		e.release, e.hasRelease = s[i+1:], true
		s = s[:i]
	}
	e.version = s
	return e
}

func epochInt(e evr) int {
	n, _ := strconv.Atoi(e.epoch)
	return n
}

// CompareVersion orders a and b: a present epoch sorts after a missing one,
// then versions and releases compare with rpmvercmp.
func (rpmSystem) CompareVersion(a, b string) int {
	if a == b {
		return 0
	}
	ea, eb := parseEVR(a), parseEVR(b)
	switch {
	case ea.hasEpoch && !eb.hasEpoch:
		return 1
	case !ea.hasEpoch && eb.hasEpoch:
		return -1
	case ea.hasEpoch && eb.hasEpoch:
		if c := cmpInt(epochInt(ea), epochInt(eb)); c != 0 {
			return c
		}
	}
	if c := vercmp(ea.version, eb.version); c != 0 {
		return c
	}
	switch {
	case ea.hasRelease && !eb.hasRelease:
		return 1
	case !ea.hasRelease && eb.hasRelease:
		return -1
	case ea.hasRelease && eb.hasRelease:
		return vercmp(ea.release, eb.release)
	}
	return 0
}

// CheckDependency reports whether the range "= pkgVer" overlaps "op depVer".
// A side without a version overlaps everything, a missing epoch counts as
// zero, and a release only matters when both sides carry one.
func (rpmSystem) CheckDependency(pkgVer string, op versioning.Op, depVer string) bool {
	if op.Mask() == versioning.None || pkgVer == "" || depVer == "" {
		return true
	}
	if pkgVer == depVer {
		switch op.Mask() {
		case versioning.Equals:
			return true
		case versioning.NotEquals:
			return false
		}
	}
	p, d := parseEVR(pkgVer), parseEVR(depVer)
	c := cmpInt(epochInt(p), epochInt(d))
	if c == 0 {
		c = vercmp(p.version, d.version)
	}
	if c == 0 && p.hasRelease && d.hasRelease {
		c = vercmp(p.release, d.release)
	}
	return versioning.CheckOp(c, op)
}

// CheckObsoletes is CheckDependency except that an unversioned package
// never matches an Obsoletes.
func (s rpmSystem) CheckObsoletes(pkgVer string, op versioning.Op, depVer string) bool {
	if pkgVer == "" {
		return false
	}
	return s.CheckDependency(pkgVer, op, depVer)
}

// UpstreamVersion drops the epoch and the release.
func (rpmSystem) UpstreamVersion(v string) string {
	return parseEVR(v).version
}

// vercmp compares two version fragments segment by segment. Numeric
// segments compare numerically and sort after alphabetic ones; a tilde
// sorts before anything, even the end of the string.
func vercmp(a, b string) int {
	if a == b {
		return 0
	}
	for len(a) > 0 || len(b) > 0 {
		a = strings.TrimLeftFunc(a, isSeparator)
		b = strings.TrimLeftFunc(b, isSeparator)

		aTilde := strings.HasPrefix(a, "~")
		bTilde := strings.HasPrefix(b, "~")
		if aTilde || bTilde {
			if !aTilde {
				return 1
			}
			if !bTilde {
				return -1
			}
			a, b = a[1:], b[1:]
			continue
		}
		if len(a) == 0 || len(b) == 0 {
			break
		}

		numeric := isDigit(a[0])
		var sa, sb string
		if numeric {
			sa, a = span(a, isDigit)
			sb, b = span(b, isDigit)
		} else {
			sa, a = span(a, isAlpha)
			sb, b = span(b, isAlpha)
		}

		// Segments of different kinds: numbers are newer.
		if sb == "" {
			if numeric {
				return 1
			}
			return -1
		}

		if numeric {
			sa = strings.TrimLeft(sa, "0")
			sb = strings.TrimLeft(sb, "0")
			if c := cmpInt(len(sa), len(sb)); c != 0 {
				return c
			}
		}
		if c := strings.Compare(sa, sb); c != 0 {
			return c
		}
	}
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) > 0:
		return 1
	}
	return -1
}

func span(s string, pred func(byte) bool) (string, string) {
	i := 0
	for i < len(s) && pred(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isSeparator(r rune) bool {
	return r != '~' && !(r < 0x80 && (isDigit(byte(r)) || isAlpha(byte(r))))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	_, rest := span(s, isDigit)
	return rest == ""
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
