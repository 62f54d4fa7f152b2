package deblist

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"pault.ag/go/debian/control"
	"pault.ag/go/debian/dependency"

	"github.com/hupe1980/pkgcache"
	"github.com/hupe1980/pkgcache/internal/tagfile"
	"github.com/hupe1980/pkgcache/versioning"
)

var depFields = []struct {
	tag  string
	kind pkgcache.DepKind
}{
	{"Depends", pkgcache.Depends},
	{"Pre-Depends", pkgcache.PreDepends},
	{"Suggests", pkgcache.Suggests},
	{"Recommends", pkgcache.Recommends},
	{"Conflicts", pkgcache.Conflicts},
	{"Replaces", pkgcache.Replaces},
	{"Obsoletes", pkgcache.Obsoletes},
}

// Fields that make up the version fingerprint.
var hashFields = []string{
	"Installed-Size", "Depends", "Pre-Depends", "Suggests", "Recommends",
	"Conflicts", "Replaces", "Obsoletes", "Provides",
}

var priorities = map[string]uint8{
	"important": pkgcache.PriorityImportant,
	"required":  pkgcache.PriorityRequired,
	"standard":  pkgcache.PriorityStandard,
	"optional":  pkgcache.PriorityOptional,
	"extra":     pkgcache.PriorityExtra,
}

var (
	wantStates = map[string]uint8{
		"unknown":   pkgcache.SelUnknown,
		"install":   pkgcache.SelInstall,
		"hold":      pkgcache.SelHold,
		"deinstall": pkgcache.SelDeInstall,
		"purge":     pkgcache.SelPurge,
	}
	flagStates = map[string]uint8{
		"ok":             pkgcache.InstOk,
		"reinstreq":      pkgcache.InstReInstReq,
		"hold":           pkgcache.InstHoldInst,
		"hold-reinstreq": pkgcache.InstHoldReInstReq,
	}
	curStates = map[string]uint8{
		"not-installed":    pkgcache.CurNotInstalled,
		"unpacked":         pkgcache.CurUnPacked,
		"half-configured":  pkgcache.CurHalfConfigured,
		"half-installed":   pkgcache.CurHalfInstalled,
		"config-files":     pkgcache.CurConfigFiles,
		"installed":        pkgcache.CurInstalled,
		"triggers-awaited": pkgcache.CurTriggersAwaited,
		"triggers-pending": pkgcache.CurTriggersPending,
	}
)

// Parser is a pkgcache.ListParser over a Debian tag file.
type Parser struct {
	sc      *tagfile.Scanner
	closeFn func() error

	para     control.Paragraph
	parseErr error
}

var _ pkgcache.ListParser = (*Parser)(nil)

// New returns a parser reading an uncompressed tag file from r.
func New(r io.Reader) *Parser {
	return &Parser{sc: tagfile.NewScanner(r)}
}

// Close releases the underlying file, if the parser owns one.
func (p *Parser) Close() error {
	if p.closeFn == nil {
		return nil
	}
	fn := p.closeFn
	p.closeFn = nil
	return fn()
}

// Step advances to the next stanza.
func (p *Parser) Step() bool {
	if !p.sc.Scan() {
		return false
	}
	p.para = control.Paragraph{}
	p.parseErr = nil

	pr, err := control.NewParagraphReader(bytes.NewReader(p.sc.Stanza()), nil)
	if err == nil {
		var para *control.Paragraph
		if para, err = pr.Next(); err == nil {
			p.para = *para
		}
	}
	if err != nil {
		p.parseErr = err
	}
	return true
}

// Err returns the read error that stopped Step.
func (p *Parser) Err() error { return p.sc.Err() }

func (p *Parser) field(tag string) string {
	return strings.TrimSpace(p.para.Values[tag])
}

// Package returns the package name. It is empty for a stanza that could
// not be parsed, which the generator skips as malformed.
func (p *Parser) Package() string {
	if p.parseErr != nil {
		return ""
	}
	return p.field("Package")
}

func (p *Parser) Version() string      { return p.field("Version") }
func (p *Parser) Architecture() string { return p.field("Architecture") }
func (p *Parser) Offset() uint64       { return p.sc.Offset() }

func (p *Parser) Size() uint32 {
	if n := p.sc.Size(); n <= uint64(^uint32(0)) {
		return uint32(n)
	}
	return ^uint32(0)
}

// VersionHash fingerprints the dependency relevant fields, ignoring
// whitespace, so that the same version from two indexes compares equal.
func (p *Parser) VersionHash() uint16 {
	d := xxhash.New()
	for _, tag := range hashFields {
		v, ok := p.para.Values[tag]
		if !ok {
			continue
		}
		_, _ = d.WriteString(tag)
		for _, f := range strings.Fields(v) {
			_, _ = d.WriteString(f)
		}
		_, _ = d.Write([]byte{0})
	}
	s := d.Sum64()
	return uint16(s ^ s>>16 ^ s>>32 ^ s>>48)
}

func (p *Parser) malformed(reason string, err error) error {
	return pkgcache.NewMalformedRecordError(p.Package(), reason, err)
}

// NewVersion fills a freshly created version.
func (p *Parser) NewVersion(r *pkgcache.Record) error {
	if s := p.field("Section"); s != "" {
		if err := r.SetSection(s); err != nil {
			return err
		}
	}
	if s := p.field("Priority"); s != "" {
		prio, ok := priorities[strings.ToLower(s)]
		if !ok {
			return p.malformed(fmt.Sprintf("unknown priority %q", s), nil)
		}
		if err := r.SetPriority(prio); err != nil {
			return err
		}
	}

	size, err := p.uintField("Size")
	if err != nil {
		return err
	}
	installed, err := p.uintField("Installed-Size")
	if err != nil {
		return err
	}
	if err := r.SetSize(size, installed*1024); err != nil {
		return err
	}

	for _, f := range depFields {
		if err := p.parseDepends(r, f.tag, f.kind); err != nil {
			return err
		}
	}
	return p.parseProvides(r)
}

func (p *Parser) uintField(tag string) (uint64, error) {
	s := p.field(tag)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, p.malformed("bad "+tag, err)
	}
	return n, nil
}

func (p *Parser) relations(tag string) ([]dependency.Relation, error) {
	s := p.field(tag)
	if s == "" {
		return nil, nil
	}
	d, err := dependency.Parse(s)
	if err != nil {
		return nil, p.malformed("bad "+tag, err)
	}
	return d.Relations, nil
}

func (p *Parser) parseDepends(r *pkgcache.Record, tag string, kind pkgcache.DepKind) error {
	rels, err := p.relations(tag)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		alts := make([]dependency.Possibility, 0, len(rel.Possibilities))
		for _, poss := range rel.Possibilities {
			if !poss.Substvar {
				alts = append(alts, poss)
			}
		}
		for i, poss := range alts {
			version, op, err := p.versionRelation(tag, poss)
			if err != nil {
				return err
			}
			if i < len(alts)-1 {
				op |= versioning.OrFlag
			}
			if err := r.NewDepends(poss.Name, version, op, kind); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Parser) versionRelation(tag string, poss dependency.Possibility) (string, versioning.Op, error) {
	if poss.Version == nil {
		return "", versioning.None, nil
	}
	op, err := versioning.ParseOp(poss.Version.Operator)
	if err != nil {
		return "", 0, p.malformed("bad operator in "+tag, err)
	}
	return poss.Version.Number, op, nil
}

func (p *Parser) parseProvides(r *pkgcache.Record) error {
	rels, err := p.relations("Provides")
	if err != nil {
		return err
	}
	for _, rel := range rels {
		for _, poss := range rel.Possibilities {
			version, op, err := p.versionRelation("Provides", poss)
			if err != nil {
				return err
			}
			if op != versioning.None && op != versioning.Equals {
				return p.malformed("provides with an operator other than =", nil)
			}
			if err := r.NewProvides(poss.Name, version); err != nil {
				return err
			}
		}
	}
	return nil
}

// UsePackage applies package level fields: Essential, Important and the
// dpkg Status.
func (p *Parser) UsePackage(r *pkgcache.Record) error {
	if strings.EqualFold(p.field("Essential"), "yes") {
		r.SetFlags(pkgcache.PkgFlagEssential)
	}
	if strings.EqualFold(p.field("Important"), "yes") {
		r.SetFlags(pkgcache.PkgFlagImportant)
	}

	status := p.field("Status")
	if status == "" {
		return nil
	}
	words := strings.Fields(status)
	if len(words) != 3 {
		return p.malformed(fmt.Sprintf("bad status %q", status), nil)
	}
	want, ok1 := wantStates[words[0]]
	flag, ok2 := flagStates[words[1]]
	cur, ok3 := curStates[words[2]]
	if !ok1 || !ok2 || !ok3 {
		return p.malformed(fmt.Sprintf("bad status %q", status), nil)
	}
	r.SetState(want, flag, cur)

	if cur != pkgcache.CurNotInstalled && cur != pkgcache.CurConfigFiles && !r.Version().End() {
		return r.MarkInstalled()
	}
	return nil
}
