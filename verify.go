package pkgcache

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/pkgcache/arena"
)

// verifier walks every record reachable from the header and checks that
// each offset it follows lands inside the used workspace, aligned for its
// record type. A list longer than the header's count for its records is
// a cycle. Records are only dereferenced after their offset was checked,
// so a crafted file fails here instead of panicking in an iterator.
type verifier struct {
	a    *arena.Arena
	h    *Header
	used uint64
}

func verifyRecords(a *arena.Arena) error {
	v := &verifier{a: a, h: arena.At[Header](a, 0), used: uint64(a.Used())}
	if err := v.walk(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptCache, err)
	}
	return nil
}

func (v *verifier) record(what string, off uint32, size uintptr) error {
	if off == 0 {
		return nil
	}
	if uint64(off) < uint64(headerSize) || uint64(off)+uint64(size) > v.used ||
		int(off)%recordAlign(size) != 0 {
		return fmt.Errorf("%s at %d outside the cache", what, off)
	}
	return nil
}

func (v *verifier) str(what string, off uint32) error {
	if off == 0 {
		return nil
	}
	if uint64(off) < uint64(headerSize) || uint64(off)+4 > v.used {
		return fmt.Errorf("%s string at %d outside the cache", what, off)
	}
	n := binary.LittleEndian.Uint32(v.a.Bytes()[off:])
	if uint64(off)+4+uint64(n) > v.used {
		return fmt.Errorf("%s string at %d overruns the cache", what, off)
	}
	return nil
}

func (v *verifier) strs(what string, offs ...uint32) error {
	for _, off := range offs {
		if err := v.str(what, off); err != nil {
			return err
		}
	}
	return nil
}

// chain follows a list starting at head. next checks one record and
// returns the offset of the following one.
func (v *verifier) chain(what string, head uint32, size uintptr, limit uint32, next func(off uint32) (uint32, error)) error {
	var n uint32
	for off := head; off != 0; n++ {
		if n >= limit {
			return fmt.Errorf("%s list longer than its %d records", what, limit)
		}
		if err := v.record(what, off, size); err != nil {
			return err
		}
		var err error
		if off, err = next(off); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) walk() error {
	h := v.h
	if err := v.str("version system", h.VerSysName); err != nil {
		return err
	}

	err := v.chain("package file", h.FileList, packageFileSize, h.PackageFileCount, func(off uint32) (uint32, error) {
		f := arena.At[PackageFile](v.a, off)
		return f.NextFile, v.strs("package file", f.FileName, f.Archive, f.Component, f.Version,
			f.Origin, f.Label, f.Architecture, f.Site, f.IndexType)
	})
	if err != nil {
		return err
	}

	for _, head := range h.StringList {
		err := v.chain("string item", head, stringItemSize, h.StringItemCount, func(off uint32) (uint32, error) {
			item := arena.At[StringItem](v.a, off)
			return item.NextItem, v.str("uniq", item.String)
		})
		if err != nil {
			return err
		}
	}

	for _, head := range h.HashTable {
		if err := v.chain("package", head, packageSize, h.PackageCount, v.pkg); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) pkg(off uint32) (uint32, error) {
	h := v.h
	p := arena.At[Package](v.a, off)
	if err := v.strs("package", p.Name, p.Section); err != nil {
		return 0, err
	}
	if err := v.record("current version", p.CurrentVer, versionSize); err != nil {
		return 0, err
	}
	if err := v.chain("version", p.VersionList, versionSize, h.VersionCount, v.ver); err != nil {
		return 0, err
	}
	err := v.chain("reverse dependency", p.RevDepends, dependencySize, h.DependsCount, func(off uint32) (uint32, error) {
		d := arena.At[Dependency](v.a, off)
		return d.NextRevDepends, v.dep(d)
	})
	if err != nil {
		return 0, err
	}
	err = v.chain("provides", p.ProvidesList, providesSize, h.ProvidesCount, func(off uint32) (uint32, error) {
		pr := arena.At[Provides](v.a, off)
		return pr.NextProvides, v.prv(pr)
	})
	return p.NextPackage, err
}

func (v *verifier) ver(off uint32) (uint32, error) {
	h := v.h
	ver := arena.At[Version](v.a, off)
	if err := v.strs("version", ver.VerStr, ver.Section, ver.Arch); err != nil {
		return 0, err
	}
	if err := v.record("parent package", ver.ParentPkg, packageSize); err != nil {
		return 0, err
	}
	err := v.chain("dependency", ver.DependsList, dependencySize, h.DependsCount, func(off uint32) (uint32, error) {
		d := arena.At[Dependency](v.a, off)
		return d.NextDepends, v.dep(d)
	})
	if err != nil {
		return 0, err
	}
	err = v.chain("declared provides", ver.ProvidesList, providesSize, h.ProvidesCount, func(off uint32) (uint32, error) {
		pr := arena.At[Provides](v.a, off)
		return pr.NextPkgProv, v.prv(pr)
	})
	if err != nil {
		return 0, err
	}
	err = v.chain("version file", ver.FileList, verFileSize, h.VerFileCount, func(off uint32) (uint32, error) {
		vf := arena.At[VerFile](v.a, off)
		return vf.NextFile, v.record("package file", vf.File, packageFileSize)
	})
	return ver.NextVer, err
}

func (v *verifier) dep(d *Dependency) error {
	if err := v.record("dependency target", d.Package, packageSize); err != nil {
		return err
	}
	if err := v.record("dependency owner", d.ParentVer, versionSize); err != nil {
		return err
	}
	return v.str("dependency", d.Version)
}

func (v *verifier) prv(p *Provides) error {
	if err := v.record("provided package", p.ParentPkg, packageSize); err != nil {
		return err
	}
	if err := v.record("providing package", p.OwnerPkg, packageSize); err != nil {
		return err
	}
	if err := v.record("providing version", p.Version, versionSize); err != nil {
		return err
	}
	return v.str("provides", p.ProvideVersion)
}
