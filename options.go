package pkgcache

import (
	"log/slog"
	"time"

	"github.com/hupe1980/pkgcache/internal/fs"
	"github.com/hupe1980/pkgcache/versioning"
)

type options struct {
	versionSystem    versioning.System
	metricsCollector MetricsCollector
	logger           *Logger
	fsys             fs.FileSystem
	progress         ProgressFunc
	progressInterval time.Duration
	memoryLimit      int64
	maxSize          uint64
	workspaceSize    int
}

// Option configures Open, NewGenerator and BuildCache.
type Option func(*options)

// WithVersionSystem sets the version grammar used for comparisons and
// dependency checks. A generator stores its label in the header; a reader
// rejects a cache written with another system.
//
// When unset, a generator uses the Debian system and a reader uses the
// system named in the header.
func WithVersionSystem(vs versioning.System) Option {
	return func(o *options) {
		o.versionSystem = vs
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &pkgcache.BasicMetricsCollector{}
//	gen, _ := pkgcache.NewGenerator(a, pkgcache.WithMetricsCollector(metrics))
//	// ... merge lists ...
//	stats := metrics.GetStats()
//	fmt.Printf("Merges: %d, skipped: %d\n", stats.MergeCount, stats.MergeSkipped)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := pkgcache.NewJSONLogger(slog.LevelInfo)
//	gen, _ := pkgcache.NewGenerator(a, pkgcache.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFileSystem sets the file system used for cache and source files.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// WithProgress registers a callback that receives merge progress.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithProgressInterval sets the minimum time between two progress callbacks
// for the same file. Zero reports every record.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

// WithMemoryLimit caps the memory the workspace may reserve across growths.
// Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMaxSize caps the workspace size. Zero means the offset width.
func WithMaxSize(bytes uint64) Option {
	return func(o *options) {
		o.maxSize = bytes
	}
}

// WithWorkspaceSize sets the initial workspace capacity of BuildCache.
func WithWorkspaceSize(bytes int) Option {
	return func(o *options) {
		o.workspaceSize = bytes
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fsys:             fs.Default,
		progressInterval: 100 * time.Millisecond,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
