package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Analytics query metrics
	QueryTotal    *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// Report metrics
	ReportsGeneratedTotal  *prometheus.CounterVec
	ReportGenerationTime   *prometheus.HistogramVec
	ReportErrorsTotal      *prometheus.CounterVec
	ReportDeliveriesTotal  *prometheus.CounterVec
	ScheduledReportsSwept  prometheus.Counter

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge
	RedisCommandsTotal     *prometheus.CounterVec

	// Business metrics
	EventsTotal           prometheus.Gauge
	ReportsTotal          prometheus.Gauge
	ScheduledReportsTotal prometheus.Gauge
	ActiveUsersTotal      prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventez_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventez_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventez_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Analytics query metrics
		QueryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_analytics_queries_total",
				Help: "Total number of analytics queries",
			},
			[]string{"service", "operation", "status"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventez_analytics_query_duration_seconds",
				Help:    "Analytics query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
		QueryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_analytics_query_errors_total",
				Help: "Total number of analytics query errors",
			},
			[]string{"service", "operation"},
		),

		// Report metrics
		ReportsGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_reports_generated_total",
				Help: "Total number of reports generated",
			},
			[]string{"report_type", "status"},
		),
		ReportGenerationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventez_report_generation_duration_seconds",
				Help:    "Report generation duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"report_type"},
		),
		ReportErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_report_errors_total",
				Help: "Total number of report generation errors",
			},
			[]string{"report_type"},
		),
		ReportDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_report_deliveries_total",
				Help: "Total number of report delivery attempts",
			},
			[]string{"status"},
		),
		ScheduledReportsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "eventez_reports_swept_total",
				Help: "Total number of expired one-off reports removed",
			},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_cache_evictions_total",
				Help: "Total number of cache evictions",
			},
			[]string{"cache_type", "reason"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// Redis metrics
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_redis_connections_active",
				Help: "Number of active Redis connections",
			},
		),
		RedisCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventez_redis_commands_total",
				Help: "Total number of Redis commands",
			},
			[]string{"command", "status"},
		),

		// Business metrics
		EventsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_events_total",
				Help: "Total number of events on the platform",
			},
		),
		ReportsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_reports_total",
				Help: "Total number of stored reports",
			},
		),
		ScheduledReportsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_scheduled_reports_total",
				Help: "Number of reports with an active schedule",
			},
		),
		ActiveUsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventez_active_users_total",
				Help: "Total number of active users",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.QueryTotal,
		m.QueryDuration,
		m.QueryErrors,
		m.ReportsGeneratedTotal,
		m.ReportGenerationTime,
		m.ReportErrorsTotal,
		m.ReportDeliveriesTotal,
		m.ScheduledReportsSwept,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.RedisConnectionsActive,
		m.RedisCommandsTotal,
		m.EventsTotal,
		m.ReportsTotal,
		m.ScheduledReportsTotal,
		m.ActiveUsersTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
