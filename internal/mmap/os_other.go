//go:build !unix

package mmap

import (
	"errors"
	"io"
)

// Without mmap(2) the file is read into a heap buffer and written back on Sync.

func osMap(h Handle, size int, _ bool) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	n, err := h.ReadAt(data, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	if n < size {
		clear(data[n:])
	}
	return data, func([]byte) error { return nil }, nil
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}

func osFlushFunc(h Handle) func([]byte) error {
	w, ok := h.(io.WriterAt)
	if !ok {
		return nil
	}
	return func(data []byte) error {
		_, err := w.WriteAt(data, 0)
		return err
	}
}

func osAdvise([]byte, AccessPattern) error {
	return nil
}
