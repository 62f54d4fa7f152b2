// Package conv provides checked integer narrowing.
//
// Every cross-reference inside a package cache is a 32-bit offset, so sizes and
// positions computed with Go's int or uint64 must be narrowed before they are
// stored. These helpers fail instead of silently truncating.
package conv
