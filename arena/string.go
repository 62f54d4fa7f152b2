package arena

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

const stringPrefix = 4

// WriteString stores b in the workspace and returns its offset. Strings are
// length-prefixed, so they may contain any byte including NUL.
func (a *Arena) WriteString(b []byte) (uint32, error) {
	if uint64(len(b)) > math.MaxUint32-stringPrefix {
		return 0, fmt.Errorf("%w: string of %d bytes", ErrExhausted, len(b))
	}
	off, err := a.Allocate(stringPrefix+len(b), 1)
	if err != nil {
		return 0, err
	}
	buf := a.store.Bytes()
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(b)))
	copy(buf[off+stringPrefix:], b)

	a.stats.Strings++
	a.stats.StringBytes += uint64(len(b))
	return off, nil
}

// StringBytes returns a view of the string at off. The view aliases the
// workspace and is invalid after the next growth. Offset 0 yields nil.
func (a *Arena) StringBytes(off uint32) []byte {
	if off == 0 {
		return nil
	}
	buf := a.store.Bytes()[:a.used]
	if uint64(off)+stringPrefix > uint64(len(buf)) {
		panic(fmt.Sprintf("arena: string offset %d outside workspace", off))
	}
	n := binary.LittleEndian.Uint32(buf[off:])
	start := uint64(off) + stringPrefix
	if start+uint64(n) > uint64(len(buf)) {
		panic(fmt.Sprintf("arena: string at %d overruns workspace", off))
	}
	return buf[start : start+uint64(n) : start+uint64(n)]
}

// String returns a copy of the string at off; "" for offset 0.
func (a *Arena) String(off uint32) string {
	return string(a.StringBytes(off))
}

// UnsafeString returns the string at off without copying. Only valid while
// the arena does not grow, which holds for read-only caches.
func (a *Arena) UnsafeString(off uint32) string {
	b := a.StringBytes(off)
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
