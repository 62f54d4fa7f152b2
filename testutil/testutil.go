package testutil

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/pkgcache"
	"github.com/hupe1980/pkgcache/versioning"
)

// ErrFatal is a non-recoverable parser error for failure-path tests.
var ErrFatal = errors.New("testutil: fatal parser error")

// Dep is a scripted dependency.
type Dep struct {
	Name    string
	Version string
	Op      versioning.Op
	Kind    pkgcache.DepKind // Depends if zero
}

// Prv is a scripted provide.
type Prv struct {
	Name    string
	Version string
}

// Entry is one scripted record.
type Entry struct {
	Package string
	Version string
	Arch    string
	// Hash overrides the fingerprint derived from the other fields.
	Hash uint16

	Depends  []Dep
	Provides []Prv

	Section       string
	Priority      uint8
	Size          uint64
	InstalledSize uint64
	Installed     bool

	// Malformed makes NewVersion fail with a malformed-record error after
	// dependencies and provides were added.
	Malformed string
	// Fail makes NewVersion return this error.
	Fail error
}

func (e Entry) hash() uint16 {
	if e.Hash != 0 {
		return e.Hash
	}
	d := xxhash.New()
	_, _ = d.WriteString(e.Package + "\x00" + e.Version + "\x00" + e.Arch)
	for _, dep := range e.Depends {
		_, _ = fmt.Fprintf(d, "\x00%d%s%d%s", dep.Kind, dep.Name, dep.Op, dep.Version)
	}
	for _, p := range e.Provides {
		_, _ = d.WriteString("\x00P" + p.Name + "=" + p.Version)
	}
	s := d.Sum64()
	return uint16(s ^ s>>16 ^ s>>32 ^ s>>48)
}

// Parser is a pkgcache.ListParser replaying scripted entries.
type Parser struct {
	entries []Entry
	pos     int
	// ReadErr is reported by Err once the entries are exhausted.
	ReadErr error

	NewVersionCalls int
	UsePackageCalls int
}

// NewParser returns a parser over entries.
func NewParser(entries ...Entry) *Parser {
	return &Parser{entries: entries, pos: -1}
}

func (p *Parser) cur() *Entry { return &p.entries[p.pos] }

// Step implements pkgcache.ListParser.
func (p *Parser) Step() bool {
	if p.pos+1 >= len(p.entries) {
		p.pos = len(p.entries)
		return false
	}
	p.pos++
	return true
}

func (p *Parser) Err() error           { return p.ReadErr }
func (p *Parser) Package() string      { return p.cur().Package }
func (p *Parser) Version() string      { return p.cur().Version }
func (p *Parser) Architecture() string { return p.cur().Arch }
func (p *Parser) VersionHash() uint16  { return p.cur().hash() }
func (p *Parser) Offset() uint64       { return uint64(p.pos) * 100 }
func (p *Parser) Size() uint32         { return 100 }

// NewVersion implements pkgcache.ListParser.
func (p *Parser) NewVersion(r *pkgcache.Record) error {
	p.NewVersionCalls++
	e := p.cur()
	if e.Fail != nil {
		return e.Fail
	}
	for _, d := range e.Depends {
		kind := d.Kind
		if kind == 0 {
			kind = pkgcache.Depends
		}
		if err := r.NewDepends(d.Name, d.Version, d.Op, kind); err != nil {
			return err
		}
	}
	for _, pr := range e.Provides {
		if err := r.NewProvides(pr.Name, pr.Version); err != nil {
			return err
		}
	}
	if e.Malformed != "" {
		return pkgcache.NewMalformedRecordError(e.Package, e.Malformed, nil)
	}
	if err := r.SetSection(e.Section); err != nil {
		return err
	}
	if e.Priority != 0 {
		if err := r.SetPriority(e.Priority); err != nil {
			return err
		}
	}
	return r.SetSize(e.Size, e.InstalledSize)
}

// UsePackage implements pkgcache.ListParser.
func (p *Parser) UsePackage(r *pkgcache.Record) error {
	p.UsePackageCalls++
	e := p.cur()
	if e.Installed {
		r.SetState(pkgcache.SelInstall, pkgcache.InstOk, pkgcache.CurInstalled)
		return r.MarkInstalled()
	}
	return nil
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789+-."

// PackageNames returns n distinct names of 2 to 24 bytes. With nonASCII set,
// some names contain bytes >= 0x80.
func (r *RNG) PackageNames(n int, nonASCII bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, n)
	names := make([]string, 0, n)
	for len(names) < n {
		b := make([]byte, 2+r.rand.Intn(23))
		b[0] = nameAlphabet[r.rand.Intn(26)]
		for i := 1; i < len(b); i++ {
			if nonASCII && r.rand.Intn(8) == 0 {
				b[i] = byte(0x80 + r.rand.Intn(0x80))
				continue
			}
			b[i] = nameAlphabet[r.rand.Intn(len(nameAlphabet))]
		}
		if _, dup := seen[string(b)]; dup {
			continue
		}
		seen[string(b)] = struct{}{}
		names = append(names, string(b))
	}
	return names
}

// DebVersion returns a random Debian version string.
func (r *RNG) DebVersion() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := fmt.Sprintf("%d.%d-%d", r.rand.Intn(10), r.rand.Intn(20), 1+r.rand.Intn(5))
	if r.rand.Intn(4) == 0 {
		v = fmt.Sprintf("%d:%s", 1+r.rand.Intn(2), v)
	}
	return v
}
