package deblist

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/pkgcache/internal/fs"
	"github.com/hupe1980/pkgcache/internal/resource"
)

// Option configures Open.
type Option func(*options)

type options struct {
	fsys      fs.FileSystem
	readLimit int64
}

// WithFileSystem sets the file system files are opened from.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithReadLimit throttles reading the file to bytesPerSec, counted before
// decompression. Zero means unlimited.
func WithReadLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.readLimit = bytesPerSec
	}
}

// Open opens the tag file at path. Files ending in .gz, .zst or .lz4 are
// decompressed.
func Open(path string, optFns ...Option) (*Parser, error) {
	o := options{fsys: fs.Default}
	for _, fn := range optFns {
		fn(&o)
	}

	f, err := o.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	var src io.Reader = f
	if o.readLimit > 0 {
		rc := resource.NewController(resource.Config{IOLimitBytesPerSec: o.readLimit})
		src = resource.NewRateLimitedReader(context.Background(), f, rc)
	}

	r, closeFn, err := decompress(filepath.Ext(path), src)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}

	p := New(r)
	p.closeFn = func() error {
		return errors.Join(closeFn(), f.Close())
	}
	return p, nil
}

func nopClose() error { return nil }

func decompress(ext string, r io.Reader) (io.Reader, func() error, error) {
	switch ext {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() error { zr.Close(); return nil }, nil
	case ".lz4":
		return lz4.NewReader(r), nopClose, nil
	default:
		return r, nopClose, nil
	}
}
