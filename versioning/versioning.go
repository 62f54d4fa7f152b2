// Package versioning defines the version-comparison capability a package
// cache is parameterized with. Concrete grammars live in sub-packages:
// deb (epoch:upstream-revision), rpm (epoch:version-release) and semver.
package versioning

import (
	"fmt"
	"sort"
	"sync"
)

// Op is a dependency compare operator. The low nibble holds the operator;
// the cache stores an OR-continuation flag in the high bits (see OrFlag).
type Op uint8

const (
	None Op = iota
	LessEq
	GreaterEq
	Less
	Greater
	Equals
	NotEquals
)

// OrFlag marks a dependency whose successor is an alternative to it.
const OrFlag Op = 0x10

// Mask strips flags and returns the bare operator.
func (o Op) Mask() Op { return o & 0x0F }

// Or reports whether the OR-continuation flag is set.
func (o Op) Or() bool { return o&OrFlag != 0 }

var opNames = [...]string{"", "<=", ">=", "<", ">", "=", "!="}

// String returns the operator in control-file notation.
func (o Op) String() string {
	if int(o.Mask()) < len(opNames) {
		return opNames[o.Mask()]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// ParseOp parses control-file notation. The legacy "<" and ">" forms mean
// "<=" and ">=", and "<<" and ">>" are strict.
func ParseOp(s string) (Op, error) {
	switch s {
	case "":
		return None, nil
	case "<=", "<":
		return LessEq, nil
	case ">=", ">":
		return GreaterEq, nil
	case "<<":
		return Less, nil
	case ">>":
		return Greater, nil
	case "=":
		return Equals, nil
	case "!=":
		return NotEquals, nil
	}
	return None, fmt.Errorf("versioning: unknown operator %q", s)
}

// System is an ecosystem's version grammar.
type System interface {
	// Label identifies the system; it is stored in the cache header.
	Label() string
	// CompareVersion returns <0, 0 or >0 as a sorts before, equal to or after b.
	CompareVersion(a, b string) int
	// CheckDependency reports whether a package at pkgVer satisfies
	// "op depVer". An empty pkgVer stands for an unversioned provide.
	CheckDependency(pkgVer string, op Op, depVer string) bool
	// UpstreamVersion strips epoch and packaging revision from v.
	UpstreamVersion(v string) string
}

// ObsoletesChecker is implemented by systems that match Obsoletes
// differently from other dependency kinds.
type ObsoletesChecker interface {
	CheckObsoletes(pkgVer string, op Op, depVer string) bool
}

// CheckOp applies op to the result of comparing a package version with a
// dependency version.
func CheckOp(cmp int, op Op) bool {
	switch op.Mask() {
	case LessEq:
		return cmp <= 0
	case GreaterEq:
		return cmp >= 0
	case Less:
		return cmp < 0
	case Greater:
		return cmp > 0
	case Equals:
		return cmp == 0
	case NotEquals:
		return cmp != 0
	}
	return true
}

var (
	mu      sync.RWMutex
	systems = make(map[string]System)
)

// Register makes s available to Lookup under its label. Registering the
// same label twice panics.
func Register(s System) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := systems[s.Label()]; dup {
		panic("versioning: Register called twice for " + s.Label())
	}
	systems[s.Label()] = s
}

// Lookup returns the system registered under label.
func Lookup(label string) (System, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := systems[label]
	return s, ok
}

// Labels returns the sorted labels of all registered systems.
func Labels() []string {
	mu.RLock()
	defer mu.RUnlock()
	labels := make([]string, 0, len(systems))
	for l := range systems {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
