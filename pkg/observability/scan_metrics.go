package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal         = "deadwood.scan.files.total"
	metricParseFailuresTotal = "deadwood.scan.parse.failures.total"
	metricFileDuration       = "deadwood.scan.file.duration.seconds"
	metricBytesTotal         = "deadwood.scan.bytes.total"
	metricCacheHitsTotal     = "deadwood.scan.cache.hits.total"
	metricCacheMissesTotal   = "deadwood.scan.cache.misses.total"

	attrCache = "cache"

	refCacheName = "refs"
)

// ScanMetrics holds OTel instruments for scan-specific metrics.
type ScanMetrics struct {
	filesTotal    metric.Int64Counter
	parseFailures metric.Int64Counter
	fileDuration  metric.Float64Histogram
	bytesTotal    metric.Int64Counter
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
}

// ScanStats holds the statistics for a single scan run,
// decoupled from analysis types.
type ScanStats struct {
	Files          int64
	ParseFailures  int64
	FileDurations  []time.Duration
	BytesAnalyzed  int64
	RefCacheHits   int64
	RefCacheMisses int64
}

// NewScanMetrics creates scan metric instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Total source files scanned"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	failures, err := mt.Int64Counter(metricParseFailuresTotal,
		metric.WithDescription("Total files that failed to parse"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricParseFailuresTotal, err)
	}

	fileDur, err := mt.Float64Histogram(metricFileDuration,
		metric.WithDescription("Per-file parse and extraction duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFileDuration, err)
	}

	bytes, err := mt.Int64Counter(metricBytesTotal,
		metric.WithDescription("Total source bytes analyzed"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBytesTotal, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Cache hits by type"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Cache misses by type"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &ScanMetrics{
		filesTotal:    files,
		parseFailures: failures,
		fileDuration:  fileDur,
		bytesTotal:    bytes,
		cacheHits:     hits,
		cacheMisses:   misses,
	}, nil
}

// RecordRun records scan statistics for a completed run.
// Safe to call on a nil receiver (no-op).
func (sm *ScanMetrics) RecordRun(ctx context.Context, stats ScanStats) {
	if sm == nil {
		return
	}

	sm.filesTotal.Add(ctx, stats.Files)
	sm.parseFailures.Add(ctx, stats.ParseFailures)
	sm.bytesTotal.Add(ctx, stats.BytesAnalyzed)

	for _, d := range stats.FileDurations {
		sm.fileDuration.Record(ctx, d.Seconds())
	}

	refAttrs := metric.WithAttributes(attribute.String(attrCache, refCacheName))
	sm.cacheHits.Add(ctx, stats.RefCacheHits, refAttrs)
	sm.cacheMisses.Add(ctx, stats.RefCacheMisses, refAttrs)
}
