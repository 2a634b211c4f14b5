// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	tileFetches         *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	buildDuration       prometheus.Histogram
	jobsTotal           *prometheus.CounterVec
	activeJobs          prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "basemap"
	}

	return &Collector{
		tileFetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tile_fetches_total",
				Help:      "Total number of tile fetch attempts by outcome",
			},
			[]string{"server", "status"},
		),

		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tile_fetch_duration_seconds",
				Help:      "Tile fetch duration in seconds, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"server"},
		),

		buildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mosaic_build_duration_seconds",
				Help:      "Mosaic assembly duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),

		jobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Total number of finished jobs by terminal status",
			},
			[]string{"status"},
		),

		activeJobs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_jobs",
				Help:      "Number of currently running pipeline jobs",
			},
		),

		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordTileFetch counts one tile fetch outcome.
func (c *Collector) RecordTileFetch(server string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.tileFetches.WithLabelValues(server, status).Inc()
}

// ObserveFetchDuration records one tile fetch duration.
func (c *Collector) ObserveFetchDuration(server string, d time.Duration) {
	c.fetchDuration.WithLabelValues(server).Observe(d.Seconds())
}

// ObserveBuildDuration records a mosaic assembly duration.
func (c *Collector) ObserveBuildDuration(d time.Duration) {
	c.buildDuration.Observe(d.Seconds())
}

// RecordJob counts a finished job by terminal status.
func (c *Collector) RecordJob(status string) {
	c.jobsTotal.WithLabelValues(status).Inc()
}

// SetActiveJobs sets the running-job gauge.
func (c *Collector) SetActiveJobs(n int) {
	c.activeJobs.Set(float64(n))
}

// RecordHTTPRequest counts an API request and records its duration.
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	p := normalizePath(path)
	c.httpRequestsTotal.WithLabelValues(method, p, strconv.Itoa(statusCode)).Inc()
	c.httpRequestDuration.WithLabelValues(method, p).Observe(d.Seconds())
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware for metrics collection.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		c.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// normalizePath collapses job ids into one label value so the metric
// cardinality stays bounded.
func normalizePath(path string) string {
	const jobsPrefix = "/api/v1/jobs/"
	if strings.HasPrefix(path, jobsPrefix) && len(path) > len(jobsPrefix) {
		return jobsPrefix + "{jobId}"
	}
	const serversPrefix = "/api/v1/servers/"
	if strings.HasPrefix(path, serversPrefix) && len(path) > len(serversPrefix) {
		return serversPrefix + "{serverId}"
	}
	return path
}
