package pkgcache

import (
	"unsafe"

	"github.com/hupe1980/pkgcache/arena"
)

// Structure identity. Bump MajorVersion whenever a record layout changes and
// MinorVersion whenever the generator changes what it writes.
const (
	Signature    uint32 = 0x98FE76DC
	MajorVersion uint16 = 3
	MinorVersion uint16 = 7
)

const (
	// HashTableSize is the number of package hash buckets in the header.
	HashTableSize = 2048
	// PoolCount is the number of size-class pool descriptors in the header.
	PoolCount = 12
	// UniqBuckets is the number of uniq string chains.
	UniqBuckets = 26
)

// Header is the record at offset 0 of every cache.
type Header struct {
	Signature    uint32
	MajorVersion uint16
	MinorVersion uint16
	Dirty        uint8
	_            [3]byte

	// Record sizes of the writer. A reader compiled with different
	// layouts rejects the cache.
	HeaderSz      uint16
	PackageSz     uint16
	PackageFileSz uint16
	VersionSz     uint16
	DependencySz  uint16
	ProvidesSz    uint16
	VerFileSz     uint16
	StringItemSz  uint16

	PackageCount     uint32
	VersionCount     uint32
	DependsCount     uint32
	PackageFileCount uint32
	VerFileCount     uint32
	ProvidesCount    uint32
	StringItemCount  uint32
	MaxVerFileSize   uint32

	FileList   uint32 // most recently selected PackageFile
	VerSysName uint32 // label of the version system

	StringList [UniqBuckets]uint32 // sorted uniq string chains by first letter

	HashTable [HashTableSize]uint32
	Pools     [PoolCount]arena.Pool
}

// Package is a named package, real or virtual.
type Package struct {
	Name         uint32 // string
	Section      uint32 // string
	VersionList  uint32 // newest merged first
	CurrentVer   uint32
	NextPackage  uint32 // next in the hash bucket
	RevDepends   uint32 // dependencies targeting this package
	ProvidesList uint32 // provides targeting this package
	ID           uint32

	SelectedState uint8
	InstState     uint8
	CurrentState  uint8
	Flags         uint8
}

// Version is one version of a package as read from one or more files.
type Version struct {
	VerStr       uint32 // string
	Section      uint32 // string
	Arch         uint32 // string
	ParentPkg    uint32
	FileList     uint32 // VerFile chain
	NextVer      uint32
	DependsList  uint32
	ProvidesList uint32 // provides declared by this version
	ID           uint32
	Hash         uint16
	Priority     uint8
	_            uint8

	Size          uint64
	InstalledSize uint64
}

// Dependency is one relation of a version on a target package.
type Dependency struct {
	Version        uint32 // target version string
	Package        uint32 // target package
	NextDepends    uint32 // next of the owning version
	NextRevDepends uint32 // next targeting the same package
	ParentVer      uint32
	ID             uint32
	Type           uint8
	CompareOp      uint8 // versioning.Op, with the OR flag
	_              [2]byte
}

// Provides records that a version satisfies a (possibly virtual) package name.
type Provides struct {
	ParentPkg      uint32 // the package being provided
	Version        uint32 // providing version
	OwnerPkg       uint32 // providing package
	ProvideVersion uint32 // string, 0 when unversioned
	NextProvides   uint32 // next providing the same package
	NextPkgProv    uint32 // next declared by the same version
}

// PackageFile is a source file merged into the cache.
type PackageFile struct {
	FileName     uint32
	Archive      uint32
	Component    uint32
	Version      uint32
	Origin       uint32
	Label        uint32
	Architecture uint32
	Site         uint32
	IndexType    uint32
	NextFile     uint32
	ID           uint32
	Flags        uint32

	Size  uint64
	Mtime int64
}

// VerFile links a version to the file and location it was read from.
type VerFile struct {
	File     uint32
	NextFile uint32
	Size     uint32
	_        uint32
	Offset   uint64
}

// StringItem is a node of a sorted uniq string chain.
type StringItem struct {
	String   uint32
	NextItem uint32
}

// PackageFile flags.
const (
	FlagNotSource    uint32 = 1 << 0
	FlagNotAutomatic uint32 = 1 << 1
)

// Package flags.
const (
	PkgFlagAuto      uint8 = 1 << 0
	PkgFlagEssential uint8 = 1 << 3
	PkgFlagImportant uint8 = 1 << 4
)

// SelectedState values.
const (
	SelUnknown uint8 = iota
	SelInstall
	SelHold
	SelDeInstall
	SelPurge
)

// InstState values.
const (
	InstOk uint8 = iota
	InstReInstReq
	InstHoldInst
	InstHoldReInstReq
)

// CurrentState values.
const (
	CurNotInstalled    uint8 = 0
	CurUnPacked        uint8 = 1
	CurHalfConfigured  uint8 = 2
	CurHalfInstalled   uint8 = 4
	CurConfigFiles     uint8 = 5
	CurInstalled       uint8 = 6
	CurTriggersAwaited uint8 = 7
	CurTriggersPending uint8 = 8
)

// Priority values.
const (
	PriorityImportant uint8 = iota + 1
	PriorityRequired
	PriorityStandard
	PriorityOptional
	PriorityExtra
)

const (
	headerSize      = unsafe.Sizeof(Header{})
	packageSize     = unsafe.Sizeof(Package{})
	packageFileSize = unsafe.Sizeof(PackageFile{})
	versionSize     = unsafe.Sizeof(Version{})
	dependencySize  = unsafe.Sizeof(Dependency{})
	providesSize    = unsafe.Sizeof(Provides{})
	verFileSize     = unsafe.Sizeof(VerFile{})
	stringItemSize  = unsafe.Sizeof(StringItem{})

	poolsOffset = unsafe.Offsetof(Header{}.Pools)
)

// initHeader fills a fresh header with this build's identity and sizes.
// The cache starts dirty.
func initHeader(h *Header) {
	h.Signature = Signature
	h.MajorVersion = MajorVersion
	h.MinorVersion = MinorVersion
	h.Dirty = 1
	h.HeaderSz = uint16(headerSize)
	h.PackageSz = uint16(packageSize)
	h.PackageFileSz = uint16(packageFileSize)
	h.VersionSz = uint16(versionSize)
	h.DependencySz = uint16(dependencySize)
	h.ProvidesSz = uint16(providesSize)
	h.VerFileSz = uint16(verFileSize)
	h.StringItemSz = uint16(stringItemSize)
}

// checkSizes reports whether h was written with this build's record layouts.
func (h *Header) checkSizes() bool {
	return h.HeaderSz == uint16(headerSize) &&
		h.PackageSz == uint16(packageSize) &&
		h.PackageFileSz == uint16(packageFileSize) &&
		h.VersionSz == uint16(versionSize) &&
		h.DependencySz == uint16(dependencySize) &&
		h.ProvidesSz == uint16(providesSize) &&
		h.VerFileSz == uint16(verFileSize) &&
		h.StringItemSz == uint16(stringItemSize)
}
