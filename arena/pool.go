package arena

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrNoPool is returned when every pool descriptor is taken by another item size.
var ErrNoPool = errors.New("arena: ran out of allocation pools")

// Pool describes one size class: items of ItemSize bytes are carved from a
// contiguous run starting at Start, Count of which remain unused.
type Pool struct {
	ItemSize uint32
	Start    uint32
	Count    uint32
}

// PoolSize is the on-disk size of one Pool descriptor.
const PoolSize = int(unsafe.Sizeof(Pool{}))

// UsePools tells the arena that count Pool descriptors live at off. The table
// is part of the workspace (normally inside a header), so the arena reads it
// through the current base on every use.
func (a *Arena) UsePools(off uint32, count int) {
	a.pools = off
	a.poolCount = count
}

func (a *Arena) pool(i int) *Pool {
	return At[Pool](a, a.pools+uint32(i*PoolSize))
}

// AllocateItem returns the offset of a zeroed item of itemSize bytes, aligned
// to align, taken from the size-class pool for itemSize. Pools are refilled
// in chunks so items of one type form homogeneous runs.
func (a *Arena) AllocateItem(itemSize, align int) (uint32, error) {
	if a.poolCount == 0 {
		return 0, fmt.Errorf("arena: no pools configured")
	}
	if itemSize <= 0 || itemSize%max(align, 1) != 0 {
		return 0, fmt.Errorf("arena: item size %d incompatible with alignment %d", itemSize, align)
	}

	idx, empty := -1, -1
	for i := 0; i < a.poolCount; i++ {
		p := a.pool(i)
		if p.ItemSize == uint32(itemSize) {
			idx = i
			break
		}
		if p.ItemSize == 0 && empty < 0 {
			empty = i
		}
	}
	if idx < 0 {
		if empty < 0 {
			return 0, fmt.Errorf("%w: item size %d", ErrNoPool, itemSize)
		}
		idx = empty
		p := a.pool(idx)
		p.ItemSize = uint32(itemSize)
		p.Start = 0
		p.Count = 0
	}

	if a.pool(idx).Count == 0 {
		start, err := a.Allocate(a.poolChunk*itemSize, align)
		if err != nil {
			return 0, err
		}
		// Allocate may have grown the store; re-derive the descriptor.
		p := a.pool(idx)
		p.Start = start
		p.Count = uint32(a.poolChunk)
		a.stats.PoolRefills++
	}

	p := a.pool(idx)
	off := p.Start
	p.Start += uint32(itemSize)
	p.Count--
	return off, nil
}
