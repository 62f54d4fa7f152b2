package pkgcache

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pkgcache/arena"
	"github.com/hupe1980/pkgcache/internal/resource"
)

var (
	// ErrCorruptCache is returned when a cache has a bad signature or is
	// still marked dirty by an unfinished generation.
	ErrCorruptCache = errors.New("package cache is corrupted")

	// ErrIncompatibleVersion is returned when a cache was written with a
	// different structure version, record layout or version system.
	ErrIncompatibleVersion = errors.New("package cache is an incompatible version")

	// ErrAllocationExhausted is returned when the workspace cannot grow.
	ErrAllocationExhausted = errors.New("package cache workspace exhausted")

	// ErrMalformedRecord is returned by list parsers for a record that can
	// be skipped without aborting the merge.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrIOFailure wraps failures of the backing storage or the source files.
	ErrIOFailure = errors.New("package cache I/O failure")

	// ErrNoFile is returned when merging before SelectFile.
	ErrNoFile = errors.New("no package file selected")

	// ErrFinished is returned when using a generator after Finish.
	ErrFinished = errors.New("generator already finished")
)

// IncompatibleError details why a cache was rejected as incompatible.
//
// It matches ErrIncompatibleVersion with errors.Is.
type IncompatibleError struct {
	Field string
	Want  string
	Got   string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("%v: %s is %s, want %s", ErrIncompatibleVersion, e.Field, e.Got, e.Want)
}

func (e *IncompatibleError) Unwrap() error { return ErrIncompatibleVersion }

// MalformedRecordError is a skipped record together with its location.
//
// It matches ErrMalformedRecord with errors.Is.
type MalformedRecordError struct {
	File    string
	Offset  uint64
	Package string
	Reason  string
	cause   error
}

// NewMalformedRecordError returns a MalformedRecordError wrapping cause.
func NewMalformedRecordError(pkg, reason string, cause error) *MalformedRecordError {
	return &MalformedRecordError{Package: pkg, Reason: reason, cause: cause}
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("malformed record %q", e.Package)
	if e.File != "" {
		msg += fmt.Sprintf(" in %s at offset %d", e.File, e.Offset)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

func (e *MalformedRecordError) Unwrap() error { return e.cause }

// translateError maps arena and storage failures onto the cache taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrAllocationExhausted),
		errors.Is(err, ErrIOFailure),
		errors.Is(err, ErrMalformedRecord),
		errors.Is(err, ErrCorruptCache),
		errors.Is(err, ErrIncompatibleVersion):
		return err
	case errors.Is(err, arena.ErrExhausted),
		errors.Is(err, arena.ErrNoPool),
		errors.Is(err, resource.ErrMemoryLimitExceeded):
		return fmt.Errorf("%w: %w", ErrAllocationExhausted, err)
	}
	return fmt.Errorf("%w: %w", ErrIOFailure, err)
}
