// Package mmap provides memory mappings for the package cache.
//
// Three kinds of mapping are supported:
//
//   - [Open]: read-only shared mapping of an existing cache file, used by readers
//   - [MapFile]: read-write shared mapping of an open file, used by the generator
//   - [MapAnon]: private anonymous mapping standing in for a file-backed workspace
//
// A mapping never moves once created. Growing a workspace means creating a new
// mapping and dropping the old one, so callers must never hold a slice of a
// mapping across a growth event; they re-derive it from the current mapping.
//
// # Platform Support
//
//   - Unix: mmap(2), msync(2) and madvise(2) via golang.org/x/sys/unix
//   - Others: the mapping is emulated with a heap buffer that is read from and
//     written back to the file
package mmap
