package pkgcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/hupe1980/pkgcache/arena"
	"github.com/hupe1980/pkgcache/internal/conv"
	"github.com/hupe1980/pkgcache/versioning"
	"github.com/hupe1980/pkgcache/versioning/deb"
)

// ListParser reads the records of one source file. Implementations exist per
// packaging ecosystem; the generator drives them one record at a time.
type ListParser interface {
	// Step advances to the next record. It returns false at the end of the
	// input or on an unrecoverable read error, reported by Err.
	Step() bool
	Err() error

	// Identity of the current record.
	Package() string
	Version() string
	Architecture() string
	// VersionHash fingerprints the fields of the record that matter to the
	// cache, so an unchanged record is recognized on the next merge.
	VersionHash() uint16

	// NewVersion fills a freshly created version (dependencies, provides,
	// sizes). It is not called for a duplicate.
	NewVersion(r *Record) error
	// UsePackage is called once per accepted record, after NewVersion.
	UsePackage(r *Record) error

	// Location of the current record in the source file.
	Offset() uint64
	Size() uint32
}

// ReleaseInfo describes the archive a source file belongs to.
type ReleaseInfo struct {
	Archive      string
	Component    string
	Version      string
	Origin       string
	Label        string
	Architecture string
	Site         string
	IndexType    string
}

// Generator merges source files into a cache. A generator owns the dirty
// flag of its cache from NewGenerator until Finish.
type Generator struct {
	a     *arena.Arena
	cache *Cache
	opts  options

	curFile  uint32
	fileName string

	warnings []error
	finished bool

	// packages created while merging the current record
	recPkgs []uint32
}

// NewGenerator starts a generation session on a. An empty arena gets a
// fresh header; an arena holding a finished cache is validated and extended.
// In both cases the cache is dirty until Finish.
func NewGenerator(a *arena.Arena, optFns ...Option) (*Generator, error) {
	o := applyOptions(optFns)

	if a.Used() == 0 {
		if o.versionSystem == nil {
			o.versionSystem = deb.System
		}
		if err := initCache(a, o.versionSystem); err != nil {
			return nil, translateError(err)
		}
	} else {
		vs, err := validate(a, o.versionSystem)
		if err != nil {
			return nil, err
		}
		o.versionSystem = vs
		a.UsePools(uint32(poolsOffset), PoolCount)
		arena.At[Header](a, 0).Dirty = 1
		// Readers mapping the file must see the flag before anything changes.
		if err := a.Sync(); err != nil && !errors.Is(err, arena.ErrReadOnly) {
			return nil, translateError(err)
		}
	}

	g := &Generator{
		a:     a,
		cache: newCache(a, o),
		opts:  o,
	}
	a.SetGrowthHook(func(oldSize, newSize int) {
		o.logger.LogGrowth(context.Background(), oldSize, newSize)
		o.metricsCollector.RecordGrowth(oldSize, newSize)
	})
	return g, nil
}

func initCache(a *arena.Arena, vs versioning.System) error {
	off, err := a.Allocate(int(headerSize), int(unsafe.Alignof(Header{})))
	if err != nil {
		return err
	}
	if off != 0 {
		return fmt.Errorf("%w: header allocated at %d", ErrCorruptCache, off)
	}
	initHeader(arena.At[Header](a, 0))
	a.UsePools(uint32(poolsOffset), PoolCount)

	label, err := a.WriteString([]byte(vs.Label()))
	if err != nil {
		return err
	}
	arena.At[Header](a, 0).VerSysName = label
	return nil
}

func (g *Generator) header() *Header { return arena.At[Header](g.a, 0) }

// recordAlign keeps 8-byte aligned sizes on 8-byte boundaries so records of
// equal size can share a pool whatever their field types.
func recordAlign(size uintptr) int {
	if size%8 == 0 {
		return 8
	}
	return 4
}

func (g *Generator) allocRecord(size uintptr) (uint32, error) {
	off, err := g.a.AllocateItem(int(size), recordAlign(size))
	if err != nil {
		return 0, translateError(err)
	}
	return off, nil
}

func (g *Generator) writeString(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	off, err := g.a.WriteString([]byte(s))
	if err != nil {
		return 0, translateError(err)
	}
	return off, nil
}

func uniqBucket(s string) int {
	c := s[0]
	switch {
	case c >= 'a' && c <= 'z':
		return int(c - 'a')
	case c >= 'A' && c <= 'Z':
		return int(c - 'A')
	}
	return int(c) % UniqBuckets
}

// writeUniqString interns s: identical strings written through it share one
// copy. Chains are kept sorted so a lookup stops early.
func (g *Generator) writeUniqString(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	bucket := uniqBucket(s)

	var prev uint32 // 0: the chain head in the header
	next := g.header().StringList[bucket]
	for next != 0 {
		item := arena.At[StringItem](g.a, next)
		cmp := compareBytes(s, g.a.StringBytes(item.String))
		if cmp == 0 {
			return item.String, nil
		}
		if cmp < 0 {
			break
		}
		prev, next = next, item.NextItem
	}

	str, err := g.writeString(s)
	if err != nil {
		return 0, err
	}
	off, err := g.allocRecord(stringItemSize)
	if err != nil {
		return 0, err
	}
	item := arena.At[StringItem](g.a, off)
	item.String = str
	item.NextItem = next
	if prev == 0 {
		g.header().StringList[bucket] = off
	} else {
		arena.At[StringItem](g.a, prev).NextItem = off
	}
	g.header().StringItemCount++
	return str, nil
}

func compareBytes(s string, b []byte) int {
	n := min(len(s), len(b))
	for i := 0; i < n; i++ {
		if s[i] != b[i] {
			if s[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(s) < len(b):
		return -1
	case len(s) > len(b):
		return 1
	}
	return 0
}

// newPackage returns the package called name, creating and hashing it if
// it does not exist yet.
func (g *Generator) newPackage(name string) (uint32, error) {
	if p := g.cache.FindPkg(name); !p.End() {
		return p.off, nil
	}
	nameOff, err := g.writeString(name)
	if err != nil {
		return 0, err
	}
	off, err := g.allocRecord(packageSize)
	if err != nil {
		return 0, err
	}
	h := g.header()
	bucket := hashName(name)
	p := arena.At[Package](g.a, off)
	p.Name = nameOff
	p.ID = h.PackageCount
	p.NextPackage = h.HashTable[bucket]
	h.HashTable[bucket] = off
	h.PackageCount++
	g.recPkgs = append(g.recPkgs, off)
	return off, nil
}

// unhashPackage removes the package at off from its hash bucket.
func (g *Generator) unhashPackage(off uint32) {
	p := arena.At[Package](g.a, off)
	h := g.header()
	bucket := hashName(string(g.a.StringBytes(p.Name)))
	if h.HashTable[bucket] == off {
		h.HashTable[bucket] = p.NextPackage
		return
	}
	for cur := h.HashTable[bucket]; cur != 0; {
		c := arena.At[Package](g.a, cur)
		if c.NextPackage == off {
			c.NextPackage = p.NextPackage
			return
		}
		cur = c.NextPackage
	}
}

// SelectFile makes path the source of the records merged next. A path that
// was merged before keeps its file record, which is refreshed; otherwise a
// new one is created. flags are PackageFile flags such as FlagNotSource.
func (g *Generator) SelectFile(path string, flags uint32) error {
	if g.finished {
		return ErrFinished
	}

	var size uint64
	var mtime int64
	fi, err := g.opts.fsys.Stat(path)
	switch {
	case err == nil:
		if size, err = conv.Int64ToUint64(fi.Size()); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrIOFailure, path, err)
		}
		mtime = fi.ModTime().Unix()
	case errors.Is(err, os.ErrNotExist):
		// Records may come from a stream without a file; IsOk reports it stale.
	default:
		return fmt.Errorf("%w: stat %s: %w", ErrIOFailure, path, err)
	}

	var off uint32
	for f := g.cache.FileBegin(); !f.End(); f = f.Next() {
		if string(g.a.StringBytes(f.rec().FileName)) == path {
			off = f.off
			break
		}
	}
	if off == 0 {
		nameOff, err := g.writeString(path)
		if err != nil {
			return err
		}
		if off, err = g.allocRecord(packageFileSize); err != nil {
			return err
		}
		h := g.header()
		f := arena.At[PackageFile](g.a, off)
		f.FileName = nameOff
		f.ID = h.PackageFileCount
		f.NextFile = h.FileList
		h.FileList = off
		h.PackageFileCount++
	}

	f := arena.At[PackageFile](g.a, off)
	f.Flags = flags
	f.Size = size
	f.Mtime = mtime

	g.curFile = off
	g.fileName = path
	return nil
}

// CurrentFile returns the file selected by the last SelectFile.
func (g *Generator) CurrentFile() PkgFileIterator {
	return PkgFileIterator{c: g.cache, off: g.curFile}
}

// SetReleaseInfo records archive metadata on the current file.
func (g *Generator) SetReleaseInfo(info ReleaseInfo) error {
	if g.finished {
		return ErrFinished
	}
	if g.curFile == 0 {
		return ErrNoFile
	}
	fields := []struct {
		value string
		set   func(*PackageFile, uint32)
	}{
		{info.Archive, func(f *PackageFile, o uint32) { f.Archive = o }},
		{info.Component, func(f *PackageFile, o uint32) { f.Component = o }},
		{info.Version, func(f *PackageFile, o uint32) { f.Version = o }},
		{info.Origin, func(f *PackageFile, o uint32) { f.Origin = o }},
		{info.Label, func(f *PackageFile, o uint32) { f.Label = o }},
		{info.Architecture, func(f *PackageFile, o uint32) { f.Architecture = o }},
		{info.Site, func(f *PackageFile, o uint32) { f.Site = o }},
		{info.IndexType, func(f *PackageFile, o uint32) { f.IndexType = o }},
	}
	for _, fld := range fields {
		off, err := g.writeUniqString(fld.value)
		if err != nil {
			return err
		}
		fld.set(arena.At[PackageFile](g.a, g.curFile), off)
	}
	return nil
}

// GetCache returns the cache being generated. It is dirty until Finish; the
// generator's own reads are the only valid ones until then.
func (g *Generator) GetCache() *Cache {
	return g.cache
}

// Warnings returns the malformed records skipped so far.
func (g *Generator) Warnings() []error {
	return g.warnings
}

// MergeList merges every record of list into the cache as coming from the
// current file. A malformed record is skipped with a warning; a read error
// of list or a failure of the workspace aborts the merge and leaves the
// cache dirty.
func (g *Generator) MergeList(list ListParser) (err error) {
	if g.finished {
		return ErrFinished
	}
	if g.curFile == 0 {
		return ErrNoFile
	}

	ctx := context.Background()
	logger := g.opts.logger.WithFile(g.fileName)
	start := time.Now()
	records, skipped := 0, 0
	prog := newProgress(g.opts, g.fileName, g.CurrentFile().Size())
	defer func() {
		g.opts.metricsCollector.RecordMerge(records, skipped, time.Since(start), err)
		logger.LogMerge(ctx, g.fileName, records, skipped, err)
		if err == nil {
			prog.done(records)
		}
	}()

	for list.Step() {
		records++
		prog.step(records, list.Offset())

		merr := g.mergeRecord(list)
		if merr == nil {
			continue
		}
		if errors.Is(merr, ErrMalformedRecord) {
			var mre *MalformedRecordError
			if !errors.As(merr, &mre) {
				mre = NewMalformedRecordError(list.Package(), "", merr)
			}
			mre.File, mre.Offset = g.fileName, list.Offset()
			skipped++
			g.warnings = append(g.warnings, mre)
			logger.LogSkippedRecord(ctx, list.Package(), mre)
			continue
		}
		return merr
	}
	if lerr := list.Err(); lerr != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrIOFailure, g.fileName, lerr)
	}
	return nil
}

func (g *Generator) mergeRecord(list ListParser) error {
	g.recPkgs = g.recPkgs[:0]
	name := list.Package()
	if name == "" {
		return NewMalformedRecordError("", "record has no package name", nil)
	}
	pkg, err := g.newPackage(name)
	if err != nil {
		return err
	}

	verStr := list.Version()
	if verStr == "" {
		// A package-only record carries state, no version.
		r := &Record{g: g, pkg: pkg}
		return g.guard(r, func() error { return list.UsePackage(r) })
	}

	arch := list.Architecture()
	hash := list.VersionHash()
	for v := (PkgIterator{c: g.cache, off: pkg}).VersionList(); !v.End(); v = v.Next() {
		vr := v.rec()
		if vr.Hash == hash && string(g.a.StringBytes(vr.VerStr)) == verStr &&
			string(g.a.StringBytes(vr.Arch)) == arch {
			// Seen before: only the new file location is recorded.
			r := &Record{g: g, pkg: pkg, ver: v.off}
			if err := g.guard(r, func() error { return list.UsePackage(r) }); err != nil {
				return err
			}
			return g.newFileVer(v.off, list)
		}
	}

	ver, err := g.newVersion(pkg, verStr, arch, hash)
	if err != nil {
		return err
	}
	r := &Record{g: g, pkg: pkg, ver: ver, fresh: true}
	err = g.guard(r, func() error {
		if err := list.NewVersion(r); err != nil {
			return err
		}
		return list.UsePackage(r)
	})
	if err != nil {
		return err
	}
	return g.newFileVer(ver, list)
}

// undo holds what a record changed so a malformed one can be taken back.
type undo struct {
	pkg      Package
	versions uint32
	depends  uint32
	provides uint32
}

// guard runs fn for the record r. When fn reports a malformed record, every
// structure r linked into the cache is unlinked again, including packages
// that only the record brought in. Their bytes stay behind, unreachable.
func (g *Generator) guard(r *Record, fn func() error) error {
	h := g.header()
	u := undo{
		pkg:      *arena.At[Package](g.a, r.pkg),
		versions: h.VersionCount,
		depends:  h.DependsCount,
		provides: h.ProvidesCount,
	}
	if r.ver != 0 && r.fresh {
		// The version was spliced in just before.
		u.pkg.VersionList = arena.At[Version](g.a, r.ver).NextVer
		u.versions--
	}

	err := fn()
	if err == nil || !errors.Is(err, ErrMalformedRecord) {
		return err
	}

	for i := len(r.deps) - 1; i >= 0; i-- {
		d := arena.At[Dependency](g.a, r.deps[i])
		if t := arena.At[Package](g.a, d.Package); t.RevDepends == r.deps[i] {
			t.RevDepends = d.NextRevDepends
		}
	}
	for i := len(r.provides) - 1; i >= 0; i-- {
		p := arena.At[Provides](g.a, r.provides[i])
		if t := arena.At[Package](g.a, p.ParentPkg); t.ProvidesList == r.provides[i] {
			t.ProvidesList = p.NextProvides
		}
	}
	*arena.At[Package](g.a, r.pkg) = u.pkg
	for i := len(g.recPkgs) - 1; i >= 0; i-- {
		g.unhashPackage(g.recPkgs[i])
	}

	h = g.header()
	h.PackageCount -= uint32(len(g.recPkgs))
	g.recPkgs = g.recPkgs[:0]
	h.VersionCount = u.versions
	h.DependsCount = u.depends
	h.ProvidesCount = u.provides
	return err
}

// newVersion creates a version and splices it at the head of the package's
// version list.
func (g *Generator) newVersion(pkg uint32, verStr, arch string, hash uint16) (uint32, error) {
	verOff, err := g.writeString(verStr)
	if err != nil {
		return 0, err
	}
	archOff, err := g.writeUniqString(arch)
	if err != nil {
		return 0, err
	}
	off, err := g.allocRecord(versionSize)
	if err != nil {
		return 0, err
	}
	h := g.header()
	p := arena.At[Package](g.a, pkg)
	v := arena.At[Version](g.a, off)
	v.VerStr = verOff
	v.Arch = archOff
	v.ParentPkg = pkg
	v.Hash = hash
	v.ID = h.VersionCount
	v.NextVer = p.VersionList
	p.VersionList = off
	h.VersionCount++
	return off, nil
}

// newFileVer appends a link from ver to the current file unless the
// version already lists it.
func (g *Generator) newFileVer(ver uint32, list ListParser) error {
	var last uint32
	for f := (VerIterator{c: g.cache, off: ver}).FileList(); !f.End(); f = f.Next() {
		if f.rec().File == g.curFile {
			return nil
		}
		last = f.off
	}

	off, err := g.allocRecord(verFileSize)
	if err != nil {
		return err
	}
	vf := arena.At[VerFile](g.a, off)
	vf.File = g.curFile
	vf.Offset = list.Offset()
	vf.Size = list.Size()
	if last == 0 {
		arena.At[Version](g.a, ver).FileList = off
	} else {
		arena.At[VerFile](g.a, last).NextFile = off
	}

	h := g.header()
	h.MaxVerFileSize = max(h.MaxVerFileSize, vf.Size)
	h.VerFileCount++
	return nil
}

// Finish ends the session: the cache is marked clean and flushed. The
// generator cannot be used afterwards; the arena stays with the caller.
func (g *Generator) Finish() error {
	if g.finished {
		return ErrFinished
	}
	g.finished = true
	g.a.SetGrowthHook(nil)
	g.header().Dirty = 0
	if err := g.a.Sync(); err != nil && !errors.Is(err, arena.ErrReadOnly) {
		return translateError(err)
	}
	return nil
}

// Record is the handle a ListParser fills the current record through.
type Record struct {
	g   *Generator
	pkg uint32
	ver uint32

	fresh    bool
	lastDep  uint32
	deps     []uint32
	provides []uint32
}

// Package returns the package of the record.
func (r *Record) Package() PkgIterator { return r.g.cache.pkgAt(r.pkg) }

// Version returns the version of the record; it is at its end for a
// package-only record.
func (r *Record) Version() VerIterator { return VerIterator{c: r.g.cache, off: r.ver} }

func (r *Record) needVersion(what string) error {
	if r.ver == 0 {
		return NewMalformedRecordError(r.Package().Name(), what+" without a version", nil)
	}
	return nil
}

// NewDepends adds a dependency of the record's version on name. Dependencies
// keep declaration order; set versioning.OrFlag in op to chain an
// alternative to the next one.
func (r *Record) NewDepends(name, version string, op versioning.Op, kind DepKind) error {
	if err := r.needVersion("dependency"); err != nil {
		return err
	}
	if name == "" {
		return NewMalformedRecordError(r.Package().Name(), "dependency without a package name", nil)
	}
	if kind < Depends || kind > Obsoletes {
		return NewMalformedRecordError(r.Package().Name(), fmt.Sprintf("unknown dependency kind %d", kind), nil)
	}
	if op.Mask() > versioning.NotEquals {
		return NewMalformedRecordError(r.Package().Name(), fmt.Sprintf("unknown compare operator %d", op), nil)
	}

	g := r.g
	target, err := g.newPackage(name)
	if err != nil {
		return err
	}
	verOff, err := g.writeString(version)
	if err != nil {
		return err
	}
	off, err := g.allocRecord(dependencySize)
	if err != nil {
		return err
	}

	h := g.header()
	d := arena.At[Dependency](g.a, off)
	d.ParentVer = r.ver
	d.Package = target
	d.Version = verOff
	d.Type = uint8(kind)
	d.CompareOp = uint8(op)
	d.ID = h.DependsCount
	h.DependsCount++

	t := arena.At[Package](g.a, target)
	d.NextRevDepends = t.RevDepends
	t.RevDepends = off

	// Append to the version's list, remembering the tail between calls.
	if r.lastDep == 0 {
		for dd := (VerIterator{c: g.cache, off: r.ver}).DependsList(); !dd.End(); dd = dd.Next() {
			r.lastDep = dd.off
		}
	}
	if r.lastDep == 0 {
		arena.At[Version](g.a, r.ver).DependsList = off
	} else {
		arena.At[Dependency](g.a, r.lastDep).NextDepends = off
	}
	r.lastDep = off
	r.deps = append(r.deps, off)
	return nil
}

// NewProvides records that the record's version provides name, optionally
// at version. A package providing its own name is not recorded.
func (r *Record) NewProvides(name, version string) error {
	if err := r.needVersion("provides"); err != nil {
		return err
	}
	if name == "" {
		return NewMalformedRecordError(r.Package().Name(), "provides without a package name", nil)
	}
	if name == r.Package().Name() {
		return nil
	}

	g := r.g
	target, err := g.newPackage(name)
	if err != nil {
		return err
	}
	verOff, err := g.writeString(version)
	if err != nil {
		return err
	}
	off, err := g.allocRecord(providesSize)
	if err != nil {
		return err
	}

	h := g.header()
	p := arena.At[Provides](g.a, off)
	p.ParentPkg = target
	p.Version = r.ver
	p.OwnerPkg = r.pkg
	p.ProvideVersion = verOff
	h.ProvidesCount++

	v := arena.At[Version](g.a, r.ver)
	p.NextPkgProv = v.ProvidesList
	v.ProvidesList = off

	t := arena.At[Package](g.a, target)
	p.NextProvides = t.ProvidesList
	t.ProvidesList = off

	r.provides = append(r.provides, off)
	return nil
}

// SetSection sets the section of the version, and of the package when it
// has none yet.
func (r *Record) SetSection(section string) error {
	off, err := r.g.writeUniqString(section)
	if err != nil {
		return err
	}
	if r.ver != 0 {
		arena.At[Version](r.g.a, r.ver).Section = off
	}
	if p := arena.At[Package](r.g.a, r.pkg); p.Section == 0 {
		p.Section = off
	}
	return nil
}

// SetPriority sets the priority of the version.
func (r *Record) SetPriority(priority uint8) error {
	if err := r.needVersion("priority"); err != nil {
		return err
	}
	if int(priority) >= len(priorityNames) {
		return NewMalformedRecordError(r.Package().Name(), fmt.Sprintf("unknown priority %d", priority), nil)
	}
	arena.At[Version](r.g.a, r.ver).Priority = priority
	return nil
}

// SetSize sets the archive size and installed size of the version.
func (r *Record) SetSize(size, installed uint64) error {
	if err := r.needVersion("size"); err != nil {
		return err
	}
	v := arena.At[Version](r.g.a, r.ver)
	v.Size = size
	v.InstalledSize = installed
	return nil
}

// SetFlags adds package flags such as PkgFlagEssential.
func (r *Record) SetFlags(flags uint8) {
	arena.At[Package](r.g.a, r.pkg).Flags |= flags
}

// SetState records the dpkg-style state of the package.
func (r *Record) SetState(selected, inst, current uint8) {
	p := arena.At[Package](r.g.a, r.pkg)
	p.SelectedState = selected
	p.InstState = inst
	p.CurrentState = current
}

// MarkInstalled makes the record's version the current version.
func (r *Record) MarkInstalled() error {
	if err := r.needVersion("installed state"); err != nil {
		return err
	}
	arena.At[Package](r.g.a, r.pkg).CurrentVer = r.ver
	return nil
}
