// Package arena provides the offset-addressed workspace a package cache lives in.
//
// An Arena hands out byte ranges from a growable [Store] and returns 32-bit
// offsets, never addresses. Growing the store may move its memory, so every
// dereference is computed as base+offset against the current base. Nothing in
// this package caches a pointer into the store across calls.
//
// # Stores
//
//   - [HeapStore]: a Go byte slice, reallocated on growth
//   - [AnonStore]: an anonymous mapping, remapped on growth
//   - [FileStore]: a shared file mapping, extended with ftruncate and remapped
//
// # Allocation
//
// Allocate bump-allocates from the workspace with explicit alignment. Padding
// is zeroed and accounted as waste. AllocateItem serves fixed-size records
// from size-class pools whose descriptors live inside the arena itself (see
// UsePools), so a file-backed cache can be reopened and extended.
//
// # Concurrency
//
// An Arena is not safe for concurrent use. A generation session is a strict
// sequential loop; readers of a finished cache map it read-only instead.
package arena
