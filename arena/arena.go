package arena

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/hupe1980/pkgcache/internal/conv"
)

var (
	// ErrExhausted is returned when an allocation would overflow the offset
	// width or the configured growth ceiling.
	ErrExhausted = errors.New("arena: workspace exhausted")
	// ErrOutOfBounds is returned for offsets outside the used workspace.
	ErrOutOfBounds = errors.New("arena: offset out of bounds")
	// ErrClosed is returned when using an arena after Close.
	ErrClosed = errors.New("arena: closed")
)

const (
	// PageSize is the growth granularity.
	PageSize = 4096
	// MaxSize is the largest workspace addressable by 32-bit offsets.
	MaxSize = math.MaxUint32
	// DefaultWorkspace is the initial capacity of a fresh workspace.
	DefaultWorkspace = 2 * 1024 * 1024
)

// MemoryAcquirer reserves memory for workspace growth.
type MemoryAcquirer interface {
	AcquireMemory(amount int64) error
	ReleaseMemory(amount int64)
}

// Stats tracks arena memory usage metrics.
type Stats struct {
	BytesReserved uint64 // current capacity of the store
	BytesUsed     uint64 // bytes handed out, including padding
	BytesWasted   uint64 // alignment padding
	Growths       uint64 // number of growth events
	TotalAllocs   uint64
	PoolRefills   uint64
	Strings       uint64
	StringBytes   uint64
}

// GrowthFunc observes a growth event.
type GrowthFunc func(oldSize, newSize int)

// Arena is an offset-addressed bump allocator over a Store.
type Arena struct {
	store    Store
	used     uint64
	maxSize  uint64
	acquirer MemoryAcquirer
	acquired int64
	onGrow   GrowthFunc

	pools     uint32 // offset of the pool descriptor table, 0 if unset
	poolCount int
	poolChunk int

	stats  Stats
	closed bool
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMaxSize caps the workspace size. Zero means MaxSize.
func WithMaxSize(size uint64) Option {
	return func(a *Arena) {
		if size == 0 || size > MaxSize {
			size = MaxSize
		}
		a.maxSize = size
	}
}

// WithMemoryAcquirer sets the memory budget consulted on every growth.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// WithGrowthHook registers fn to be called after each growth event.
func WithGrowthHook(fn GrowthFunc) Option {
	return func(a *Arena) {
		a.onGrow = fn
	}
}

// WithPoolChunk sets how many items a size-class pool takes per refill.
func WithPoolChunk(items int) Option {
	return func(a *Arena) {
		if items > 0 {
			a.poolChunk = items
		}
	}
}

// New creates an Arena over store. Allocation continues after the bytes the
// store already holds (zero for a fresh store).
func New(store Store, opts ...Option) (*Arena, error) {
	a := &Arena{
		store:     store,
		maxSize:   MaxSize,
		poolChunk: 64,
	}
	for _, opt := range opts {
		opt(a)
	}

	committed, err := conv.IntToUint32(store.Committed())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExhausted, err)
	}
	a.used = uint64(committed)

	capacity := int64(len(store.Bytes()))
	if uint64(capacity) > a.maxSize {
		return nil, fmt.Errorf("%w: initial workspace %d exceeds ceiling %d", ErrExhausted, capacity, a.maxSize)
	}
	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(capacity); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExhausted, err)
		}
		a.acquired = capacity
	}
	a.stats.BytesReserved = uint64(capacity)
	a.stats.BytesUsed = a.used
	return a, nil
}

// Bytes returns the current base of the workspace, sliced to the used size.
// The slice is invalid after the next allocation that grows the store.
func (a *Arena) Bytes() []byte {
	if a.closed {
		return nil
	}
	return a.store.Bytes()[:a.used]
}

// Used returns the number of bytes handed out so far.
func (a *Arena) Used() int {
	return int(a.used)
}

// Capacity returns the current size of the store.
func (a *Arena) Capacity() int {
	return len(a.store.Bytes())
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return a.stats
}

// Allocate reserves size bytes aligned to align and returns their offset.
// The returned bytes are zeroed.
func (a *Arena) Allocate(size, align int) (uint32, error) {
	if a.closed {
		return 0, ErrClosed
	}
	if size < 0 {
		return 0, fmt.Errorf("arena: negative allocation size %d", size)
	}
	if align <= 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, fmt.Errorf("arena: alignment %d is not a power of two", align)
	}

	mask := uint64(align - 1)
	start := (a.used + mask) &^ mask
	end := start + uint64(size)
	if end > a.maxSize {
		return 0, fmt.Errorf("%w: need %d bytes, ceiling is %d", ErrExhausted, end, a.maxSize)
	}

	if end > uint64(len(a.store.Bytes())) {
		if err := a.grow(end); err != nil {
			return 0, err
		}
	}

	buf := a.store.Bytes()
	clear(buf[a.used:end])

	a.stats.BytesWasted += start - a.used
	a.stats.TotalAllocs++
	a.used = end
	a.stats.BytesUsed = end

	return uint32(start), nil
}

func (a *Arena) grow(need uint64) error {
	oldSize := uint64(len(a.store.Bytes()))

	newSize := max(oldSize*2, need, PageSize)
	newSize = (newSize + PageSize - 1) &^ (PageSize - 1)
	if newSize > a.maxSize {
		newSize = a.maxSize
	}
	if newSize < need {
		return fmt.Errorf("%w: need %d bytes, ceiling is %d", ErrExhausted, need, a.maxSize)
	}

	delta := int64(newSize - oldSize)
	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(delta); err != nil {
			return fmt.Errorf("%w: %w", ErrExhausted, err)
		}
	}

	if err := a.store.Grow(int(newSize)); err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(delta)
		}
		return fmt.Errorf("arena: grow workspace to %d bytes: %w", newSize, err)
	}
	a.acquired += delta

	a.stats.Growths++
	a.stats.BytesReserved = newSize
	if a.onGrow != nil {
		a.onGrow(int(oldSize), int(newSize))
	}
	return nil
}

// Get returns a pointer to the byte at off in the current base.
// It panics if off+size is outside the used workspace.
func (a *Arena) Get(off uint32, size uintptr) unsafe.Pointer {
	buf := a.store.Bytes()
	if uint64(off)+uint64(size) > a.used || size == 0 && uint64(off) >= a.used {
		panic(fmt.Sprintf("arena: offset %d (+%d) outside workspace of %d bytes", off, size, a.used))
	}
	return unsafe.Pointer(&buf[off]) //nolint:gosec // offset-addressed records
}

// At returns a typed pointer to the record of type T at off. The pointer is
// valid until the next growth of the arena.
func At[T any](a *Arena, off uint32) *T {
	var zero T
	return (*T)(a.Get(off, unsafe.Sizeof(zero)))
}

// Sync flushes the used part of the workspace to its backing store.
func (a *Arena) Sync() error {
	if a.closed {
		return ErrClosed
	}
	return a.store.Sync(int(a.used))
}

// Close releases the store and the reserved memory. The store keeps the used
// bytes (a file store truncates to them). Close is idempotent.
func (a *Arena) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	err := a.store.Close(int(a.used))
	if a.acquirer != nil && a.acquired > 0 {
		a.acquirer.ReleaseMemory(a.acquired)
		a.acquired = 0
	}
	return err
}

// Usage returns the used share of the reserved workspace in percent.
func (a *Arena) Usage() float64 {
	if a.stats.BytesReserved == 0 {
		return 0
	}
	return float64(a.stats.BytesUsed) / float64(a.stats.BytesReserved) * 100
}

// Describe summarizes the workspace statistics on one line.
func (a *Arena) Describe() string {
	return fmt.Sprintf(
		"Arena{reserved: %.2f MB, used: %.2f MB, wasted: %d B, growths: %d, allocs: %d}",
		float64(a.stats.BytesReserved)/(1024*1024),
		float64(a.stats.BytesUsed)/(1024*1024),
		a.stats.BytesWasted,
		a.stats.Growths,
		a.stats.TotalAllocs,
	)
}

// SetGrowthHook replaces the growth observer.
func (a *Arena) SetGrowthHook(fn GrowthFunc) {
	a.onGrow = fn
}
