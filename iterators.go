package pkgcache

import (
	"iter"
	"time"

	"github.com/hupe1980/pkgcache/arena"
	"github.com/hupe1980/pkgcache/versioning"
)

// PkgIterator is a handle to a Package. The zero offset is the end.
type PkgIterator struct {
	c      *Cache
	off    uint32
	bucket int
}

func (c *Cache) pkgAt(off uint32) PkgIterator {
	if off == 0 {
		return PkgIterator{c: c, bucket: HashTableSize}
	}
	return PkgIterator{c: c, off: off, bucket: hashName(c.a.String(arena.At[Package](c.a, off).Name))}
}

func (p PkgIterator) rec() *Package { return arena.At[Package](p.c.a, p.off) }

// End reports whether the iterator is past the last package.
func (p PkgIterator) End() bool { return p.off == 0 }

// Offset returns the arena offset of the package record.
func (p PkgIterator) Offset() uint32 { return p.off }

// Next advances to the next package in the bucket, then to the next
// non-empty bucket.
func (p PkgIterator) Next() PkgIterator {
	if p.off != 0 {
		p.off = p.rec().NextPackage
	}
	h := p.c.header()
	for p.off == 0 && p.bucket < HashTableSize-1 {
		p.bucket++
		p.off = h.HashTable[p.bucket]
	}
	if p.off == 0 {
		p.bucket = HashTableSize
	}
	return p
}

func (p PkgIterator) Name() string    { return p.c.str(p.rec().Name) }
func (p PkgIterator) Section() string { return p.c.str(p.rec().Section) }
func (p PkgIterator) ID() uint32      { return p.rec().ID }
func (p PkgIterator) Flags() uint8    { return p.rec().Flags }

func (p PkgIterator) SelectedState() uint8 { return p.rec().SelectedState }
func (p PkgIterator) InstState() uint8     { return p.rec().InstState }
func (p PkgIterator) CurrentState() uint8  { return p.rec().CurrentState }

// VersionList returns the newest merged version.
func (p PkgIterator) VersionList() VerIterator {
	return VerIterator{c: p.c, off: p.rec().VersionList}
}

// CurrentVer returns the installed version, if any.
func (p PkgIterator) CurrentVer() VerIterator {
	return VerIterator{c: p.c, off: p.rec().CurrentVer}
}

// ProvidesList returns the provides that target this package.
func (p PkgIterator) ProvidesList() PrvIterator {
	return PrvIterator{c: p.c, off: p.rec().ProvidesList}
}

// RevDependsList returns the dependencies that target this package.
func (p PkgIterator) RevDependsList() DepIterator {
	return DepIterator{c: p.c, off: p.rec().RevDepends, rev: true}
}

// Versions yields the versions of the package, newest merged first.
func (p PkgIterator) Versions() iter.Seq[VerIterator] {
	return func(yield func(VerIterator) bool) {
		for v := p.VersionList(); !v.End(); v = v.Next() {
			if !yield(v) {
				return
			}
		}
	}
}

// IsVirtual reports whether the package has no versions of its own.
func (p PkgIterator) IsVirtual() bool { return p.rec().VersionList == 0 }

// OkState summarizes whether an installed package is cleanly installed.
type OkState uint8

const (
	NeedsNothing OkState = iota
	NeedsUnpack
	NeedsConfigure
)

func (s OkState) String() string {
	switch s {
	case NeedsUnpack:
		return "needs unpack"
	case NeedsConfigure:
		return "needs configure"
	}
	return "ok"
}

// State reports whether the package is cleanly installed or removed.
func (p PkgIterator) State() OkState {
	r := p.rec()
	if r.InstState == InstReInstReq || r.InstState == InstHoldReInstReq {
		return NeedsUnpack
	}
	if r.CurrentState == CurUnPacked || r.CurrentState == CurHalfConfigured {
		return NeedsConfigure
	}
	if r.CurrentState == CurHalfInstalled || r.InstState != InstOk {
		return NeedsUnpack
	}
	return NeedsNothing
}

func (p PkgIterator) String() string {
	if p.End() {
		return "<end>"
	}
	return p.Name()
}

// VerIterator is a handle to a Version.
type VerIterator struct {
	c   *Cache
	off uint32
}

func (v VerIterator) rec() *Version { return arena.At[Version](v.c.a, v.off) }

func (v VerIterator) End() bool      { return v.off == 0 }
func (v VerIterator) Offset() uint32 { return v.off }

// Next returns the next older version of the same package.
func (v VerIterator) Next() VerIterator {
	return VerIterator{c: v.c, off: v.rec().NextVer}
}

func (v VerIterator) VerStr() string        { return v.c.str(v.rec().VerStr) }
func (v VerIterator) Section() string       { return v.c.str(v.rec().Section) }
func (v VerIterator) Arch() string          { return v.c.str(v.rec().Arch) }
func (v VerIterator) ID() uint32            { return v.rec().ID }
func (v VerIterator) Hash() uint16          { return v.rec().Hash }
func (v VerIterator) Priority() uint8       { return v.rec().Priority }
func (v VerIterator) Size() uint64          { return v.rec().Size }
func (v VerIterator) InstalledSize() uint64 { return v.rec().InstalledSize }

// ParentPkg returns the package owning the version.
func (v VerIterator) ParentPkg() PkgIterator {
	return v.c.pkgAt(v.rec().ParentPkg)
}

// DependsList returns the first dependency of the version.
func (v VerIterator) DependsList() DepIterator {
	return DepIterator{c: v.c, off: v.rec().DependsList}
}

// ProvidesList returns the first provide declared by the version.
func (v VerIterator) ProvidesList() PrvIterator {
	return PrvIterator{c: v.c, off: v.rec().ProvidesList, owner: true}
}

// FileList returns the first file the version was read from.
func (v VerIterator) FileList() VerFileIterator {
	return VerFileIterator{c: v.c, off: v.rec().FileList}
}

// Depends yields the dependencies of the version in declaration order.
func (v VerIterator) Depends() iter.Seq[DepIterator] {
	return func(yield func(DepIterator) bool) {
		for d := v.DependsList(); !d.End(); d = d.Next() {
			if !yield(d) {
				return
			}
		}
	}
}

// Provides yields the provides declared by the version.
func (v VerIterator) Provides() iter.Seq[PrvIterator] {
	return func(yield func(PrvIterator) bool) {
		for p := v.ProvidesList(); !p.End(); p = p.Next() {
			if !yield(p) {
				return
			}
		}
	}
}

// Files yields the files the version was read from.
func (v VerIterator) Files() iter.Seq[VerFileIterator] {
	return func(yield func(VerFileIterator) bool) {
		for f := v.FileList(); !f.End(); f = f.Next() {
			if !yield(f) {
				return
			}
		}
	}
}

var priorityNames = [...]string{"", "Important", "Required", "Standard", "Optional", "Extra"}

// PriorityType returns the name of the version's priority.
func (v VerIterator) PriorityType() string {
	return PriorityName(v.Priority())
}

// PriorityName returns the name of a priority value, "" if unknown.
func PriorityName(p uint8) string {
	if int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return ""
}

// CompareVer orders two versions of the same package by chain position:
// a version merged later compares greater.
func (v VerIterator) CompareVer(b VerIterator) int {
	switch {
	case v.off == b.off:
		return 0
	case v.End():
		return -1
	case b.End():
		return 1
	}
	for i := v; !i.End(); i = i.Next() {
		if i.off == b.off {
			return 1
		}
	}
	return -1
}

// Downloadable reports whether any file of the version is a real source.
func (v VerIterator) Downloadable() bool {
	for f := range v.Files() {
		if f.File().Flags()&FlagNotSource == 0 {
			return true
		}
	}
	return false
}

// Automatic reports whether any file of the version allows automatic
// installation.
func (v VerIterator) Automatic() bool {
	for f := range v.Files() {
		if f.File().Flags()&FlagNotAutomatic == 0 {
			return true
		}
	}
	return false
}

// NewestFile returns the file link whose release version is highest.
func (v VerIterator) NewestFile() VerFileIterator {
	highest := v.FileList()
	if highest.End() {
		return highest
	}
	for f := range v.Files() {
		if v.c.vs.CompareVersion(f.File().Version(), highest.File().Version()) > 0 {
			highest = f
		}
	}
	return highest
}

func (v VerIterator) String() string {
	if v.End() {
		return "<end>"
	}
	return v.ParentPkg().Name() + " " + v.VerStr()
}

// DepIterator is a handle to a Dependency. It walks either the dependencies
// of one version or, when obtained from RevDependsList, the dependencies
// targeting one package.
type DepIterator struct {
	c   *Cache
	off uint32
	rev bool
}

func (d DepIterator) rec() *Dependency { return arena.At[Dependency](d.c.a, d.off) }

func (d DepIterator) End() bool      { return d.off == 0 }
func (d DepIterator) Offset() uint32 { return d.off }

// Next returns the next dependency in the list being walked.
func (d DepIterator) Next() DepIterator {
	r := d.rec()
	if d.rev {
		d.off = r.NextRevDepends
	} else {
		d.off = r.NextDepends
	}
	return d
}

func (d DepIterator) ID() uint32 { return d.rec().ID }

// TargetVer returns the version string the dependency is restricted to.
func (d DepIterator) TargetVer() string { return d.c.str(d.rec().Version) }

// TargetPkg returns the package the dependency names.
func (d DepIterator) TargetPkg() PkgIterator { return d.c.pkgAt(d.rec().Package) }

// ParentVer returns the version declaring the dependency.
func (d DepIterator) ParentVer() VerIterator {
	return VerIterator{c: d.c, off: d.rec().ParentVer}
}

// ParentPkg returns the package declaring the dependency.
func (d DepIterator) ParentPkg() PkgIterator {
	return d.c.pkgAt(d.ParentVer().rec().ParentPkg)
}

// Op returns the compare operator, including the OR flag.
func (d DepIterator) Op() versioning.Op { return versioning.Op(d.rec().CompareOp) }

// Type returns the dependency kind.
func (d DepIterator) Type() DepKind { return DepKind(d.rec().Type) }

// IsOr reports whether the next dependency is an alternative to this one.
func (d DepIterator) IsOr() bool { return d.Op().Or() }

// CompType returns the compare operator in control-file notation.
func (d DepIterator) CompType() string { return d.Op().String() }

// DepType returns the name of the dependency kind.
func (d DepIterator) DepType() string { return d.Type().String() }

// IsCritical reports whether the dependency must be satisfied or avoided.
func (d DepIterator) IsCritical() bool { return d.Type().IsCritical() }

func (d DepIterator) String() string {
	if d.End() {
		return "<end>"
	}
	s := d.ParentPkg().Name() + " " + d.DepType() + " " + d.TargetPkg().Name()
	if d.Op().Mask() != versioning.None {
		s += " (" + d.CompType() + " " + d.TargetVer() + ")"
	}
	return s
}

// PrvIterator is a handle to a Provides. It walks either the provides
// declared by one version or the provides targeting one package.
type PrvIterator struct {
	c     *Cache
	off   uint32
	owner bool
}

func (p PrvIterator) rec() *Provides { return arena.At[Provides](p.c.a, p.off) }

func (p PrvIterator) End() bool      { return p.off == 0 }
func (p PrvIterator) Offset() uint32 { return p.off }

// Next returns the next provide in the list being walked.
func (p PrvIterator) Next() PrvIterator {
	r := p.rec()
	if p.owner {
		p.off = r.NextPkgProv
	} else {
		p.off = r.NextProvides
	}
	return p
}

// Name returns the provided package name.
func (p PrvIterator) Name() string { return p.ParentPkg().Name() }

// ProvideVersion returns the provided version, "" when unversioned.
func (p PrvIterator) ProvideVersion() string { return p.c.str(p.rec().ProvideVersion) }

// ParentPkg returns the package being provided.
func (p PrvIterator) ParentPkg() PkgIterator { return p.c.pkgAt(p.rec().ParentPkg) }

// OwnerVer returns the providing version.
func (p PrvIterator) OwnerVer() VerIterator {
	return VerIterator{c: p.c, off: p.rec().Version}
}

// OwnerPkg returns the providing package.
func (p PrvIterator) OwnerPkg() PkgIterator { return p.c.pkgAt(p.rec().OwnerPkg) }

// PkgFileIterator is a handle to a PackageFile.
type PkgFileIterator struct {
	c   *Cache
	off uint32
}

func (f PkgFileIterator) rec() *PackageFile { return arena.At[PackageFile](f.c.a, f.off) }

func (f PkgFileIterator) End() bool      { return f.off == 0 }
func (f PkgFileIterator) Offset() uint32 { return f.off }

func (f PkgFileIterator) Next() PkgFileIterator {
	return PkgFileIterator{c: f.c, off: f.rec().NextFile}
}

func (f PkgFileIterator) FileName() string     { return f.c.str(f.rec().FileName) }
func (f PkgFileIterator) Archive() string      { return f.c.str(f.rec().Archive) }
func (f PkgFileIterator) Component() string    { return f.c.str(f.rec().Component) }
func (f PkgFileIterator) Version() string      { return f.c.str(f.rec().Version) }
func (f PkgFileIterator) Origin() string       { return f.c.str(f.rec().Origin) }
func (f PkgFileIterator) Label() string        { return f.c.str(f.rec().Label) }
func (f PkgFileIterator) Architecture() string { return f.c.str(f.rec().Architecture) }
func (f PkgFileIterator) Site() string         { return f.c.str(f.rec().Site) }
func (f PkgFileIterator) IndexType() string    { return f.c.str(f.rec().IndexType) }
func (f PkgFileIterator) ID() uint32           { return f.rec().ID }
func (f PkgFileIterator) Flags() uint32        { return f.rec().Flags }
func (f PkgFileIterator) Size() uint64         { return f.rec().Size }

// Mtime returns the modification time recorded at generation.
func (f PkgFileIterator) Mtime() time.Time { return time.Unix(f.rec().Mtime, 0) }

// IsOk reports whether the file on disk still has the size and modification
// time recorded at generation.
func (f PkgFileIterator) IsOk() bool {
	fi, err := f.c.fsys.Stat(f.FileName())
	if err != nil {
		return false
	}
	r := f.rec()
	return fi.Size() == int64(r.Size) && fi.ModTime().Unix() == r.Mtime
}

// VerFileIterator is a handle to a VerFile.
type VerFileIterator struct {
	c   *Cache
	off uint32
}

func (f VerFileIterator) rec() *VerFile { return arena.At[VerFile](f.c.a, f.off) }

func (f VerFileIterator) End() bool      { return f.off == 0 }
func (f VerFileIterator) Offset() uint32 { return f.off }

func (f VerFileIterator) Next() VerFileIterator {
	return VerFileIterator{c: f.c, off: f.rec().NextFile}
}

// File returns the source file.
func (f VerFileIterator) File() PkgFileIterator {
	return PkgFileIterator{c: f.c, off: f.rec().File}
}

// RecordOffset returns where the record starts in the source file.
func (f VerFileIterator) RecordOffset() uint64 { return f.rec().Offset }

// RecordSize returns the length of the record in the source file.
func (f VerFileIterator) RecordSize() uint32 { return f.rec().Size }
