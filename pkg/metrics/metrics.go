package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Export pipeline metrics
	ExportsCreated   *prometheus.CounterVec
	ExportsCompleted *prometheus.CounterVec
	ExportsFailed    *prometheus.CounterVec
	ExportsRejected  prometheus.Counter
	JobDuration      *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		ExportsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "export_jobs_created_total",
				Help: "Total number of export jobs admitted",
			},
			[]string{"report_type", "format"},
		),
		ExportsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "export_jobs_completed_total",
				Help: "Total number of export jobs finished in done",
			},
			[]string{"report_type", "format"},
		),
		ExportsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "export_jobs_failed_total",
				Help: "Total number of export jobs finished in error",
			},
			[]string{"report_type", "format"},
		),
		ExportsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "export_jobs_rejected_total",
			Help: "Total number of submissions rejected at admission",
		}),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "export_job_duration_seconds",
				Help:    "Export pipeline duration from running to terminal state",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"report_type", "format"},
		),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "report_cache_hits_total",
			Help: "Total number of report cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "report_cache_misses_total",
			Help: "Total number of report cache misses",
		}),
	}
}

// Middleware returns an Echo middleware that records HTTP metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
