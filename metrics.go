package pkgcache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordMerge is called after each merge pass.
	// records is the number of records stepped, skipped the number of
	// malformed records dropped, err is nil if successful.
	RecordMerge(records, skipped int, duration time.Duration, err error)

	// RecordGrowth is called after each workspace growth.
	RecordGrowth(oldSize, newSize int)

	// RecordOpen is called after each attempt to open a cache.
	RecordOpen(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMerge(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordGrowth(int, int)                      {}
func (NoopMetricsCollector) RecordOpen(time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MergeCount      atomic.Int64
	MergeErrors     atomic.Int64
	MergeRecords    atomic.Int64
	MergeSkipped    atomic.Int64
	MergeTotalNanos atomic.Int64
	Growths         atomic.Int64
	GrowthBytes     atomic.Int64
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(records, skipped int, duration time.Duration, err error) {
	b.MergeCount.Add(1)
	b.MergeRecords.Add(int64(records))
	b.MergeSkipped.Add(int64(skipped))
	b.MergeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MergeErrors.Add(1)
	}
}

// RecordGrowth implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrowth(oldSize, newSize int) {
	b.Growths.Add(1)
	b.GrowthBytes.Add(int64(newSize - oldSize))
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MergeCount:    b.MergeCount.Load(),
		MergeErrors:   b.MergeErrors.Load(),
		MergeRecords:  b.MergeRecords.Load(),
		MergeSkipped:  b.MergeSkipped.Load(),
		MergeAvgNanos: b.getAvgMergeNanos(),
		Growths:       b.Growths.Load(),
		GrowthBytes:   b.GrowthBytes.Load(),
		OpenCount:     b.OpenCount.Load(),
		OpenErrors:    b.OpenErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgMergeNanos() int64 {
	count := b.MergeCount.Load()
	if count == 0 {
		return 0
	}
	return b.MergeTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MergeCount    int64
	MergeErrors   int64
	MergeRecords  int64
	MergeSkipped  int64
	MergeAvgNanos int64
	Growths       int64
	GrowthBytes   int64
	OpenCount     int64
	OpenErrors    int64
}
