package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds the OTLP-exported instruments for the report pipeline.
// All record methods are safe on a nil receiver, so handlers can record
// unconditionally whether or not OTel is enabled.
type OTelMetrics struct {
	cacheHitsTotal   metric.Int64Counter
	cacheMissesTotal metric.Int64Counter

	reportGenerations metric.Int64Counter
	reportDuration    metric.Float64Histogram
	reportExportBytes metric.Int64Histogram
}

// NewOTelMetrics registers the instruments on the global meter provider.
// Call InitOTel first so the provider exports somewhere useful.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/eventez/analytics")

	m := &OTelMetrics{}
	var err error

	m.cacheHitsTotal, err = meter.Int64Counter(
		"report.cache.hits",
		metric.WithDescription("Report cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	m.cacheMissesTotal, err = meter.Int64Counter(
		"report.cache.misses",
		metric.WithDescription("Report cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	m.reportGenerations, err = meter.Int64Counter(
		"report.generations",
		metric.WithDescription("Report generations by type and status"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report generations counter: %w", err)
	}

	m.reportDuration, err = meter.Float64Histogram(
		"report.generation.duration",
		metric.WithDescription("Report generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report duration histogram: %w", err)
	}

	m.reportExportBytes, err = meter.Int64Histogram(
		"report.export.size",
		metric.WithDescription("Rendered export size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create export size histogram: %w", err)
	}

	return m, nil
}

// RecordCacheHit records a cache hit for the given cache segment.
func (m *OTelMetrics) RecordCacheHit(ctx context.Context, cache string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
	))
}

// RecordCacheMiss records a cache miss for the given cache segment.
func (m *OTelMetrics) RecordCacheMiss(ctx context.Context, cache string) {
	if m == nil {
		return
	}
	m.cacheMissesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
	))
}

// RecordReportGeneration records one generation attempt with its outcome.
func (m *OTelMetrics) RecordReportGeneration(ctx context.Context, reportType string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("report.type", reportType),
		attribute.String("status", status),
	)
	m.reportGenerations.Add(ctx, 1, attrs)
	m.reportDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordReportExport records the rendered size of one export download.
func (m *OTelMetrics) RecordReportExport(ctx context.Context, reportType, format string, sizeBytes int64) {
	if m == nil {
		return
	}
	m.reportExportBytes.Record(ctx, sizeBytes, metric.WithAttributes(
		attribute.String("report.type", reportType),
		attribute.String("format", format),
	))
}
