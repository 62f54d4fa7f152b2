package mmap

import (
	"errors"
	"io"
)

// AccessPattern is a paging hint for a mapping.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	// AccessRandom disables read-ahead; cache lookups chase offsets.
	AccessRandom
)

// Handle is the part of an open file needed to map it.
type Handle interface {
	io.ReaderAt
	Fd() uintptr
}

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the requested size is invalid.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrReadOnly is returned when syncing a read-only mapping.
	ErrReadOnly = errors.New("mmap: mapping is read-only")
)
