package pkgcache

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with pkgcache-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithFile adds the source file being merged.
func (l *Logger) WithFile(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("file", path),
	}
}

// WithPackage adds a package name field.
func (l *Logger) WithPackage(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("package", name),
	}
}

// LogOpen logs opening a cache.
func (l *Logger) LogOpen(ctx context.Context, packages, versions int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open cache failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache opened",
			"packages", packages,
			"versions", versions,
		)
	}
}

// LogMerge logs the end of one merge pass.
func (l *Logger) LogMerge(ctx context.Context, file string, records, skipped int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "merge failed",
			"file", file,
			"records", records,
			"error", err,
		)
	case skipped > 0:
		l.WarnContext(ctx, "merge completed with skipped records",
			"file", file,
			"records", records,
			"skipped", skipped,
		)
	default:
		l.InfoContext(ctx, "merge completed",
			"file", file,
			"records", records,
		)
	}
}

// LogSkippedRecord logs a malformed record that was skipped.
func (l *Logger) LogSkippedRecord(ctx context.Context, pkg string, err error) {
	l.WarnContext(ctx, "skipping malformed record",
		"package", pkg,
		"error", err,
	)
}

// LogGrowth logs a workspace growth event.
func (l *Logger) LogGrowth(ctx context.Context, oldSize, newSize int) {
	l.DebugContext(ctx, "workspace grown",
		"old_size", oldSize,
		"new_size", newSize,
	)
}

// LogAdvise logs a paging hint the kernel refused. The hint is advisory, so
// the cache is opened anyway.
func (l *Logger) LogAdvise(ctx context.Context, path string, err error) {
	l.DebugContext(ctx, "mapping advice failed",
		"path", path,
		"error", err,
	)
}

// LogFinish logs the end of a generation session.
func (l *Logger) LogFinish(ctx context.Context, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cache generation failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "cache generated",
			"path", path,
		)
	}
}
