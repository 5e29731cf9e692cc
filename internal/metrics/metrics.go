// Package metrics exposes Prometheus instrumentation for the query service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsoverhead_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whatsoverhead_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsoverhead_queries_total",
			Help: "Total number of nearest-satellite queries by metric.",
		},
		[]string{"metric"},
	)

	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whatsoverhead_query_duration_seconds",
			Help:    "Full-catalog query duration in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	querySatellitesRanked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsoverhead_query_satellites_ranked_total",
			Help: "Total satellites successfully ranked across all queries.",
		},
	)

	querySatellitesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsoverhead_query_satellites_failed_total",
			Help: "Total per-satellite failures across all queries.",
		},
	)

	catalogSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsoverhead_catalog_satellites",
			Help: "Number of satellites in the current catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsoverhead_catalog_age_seconds",
			Help: "Age of the current catalog in seconds.",
		},
	)

	snapshotCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsoverhead_snapshot_cache_hits_total",
			Help: "Snapshot cache hits.",
		},
	)

	snapshotCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsoverhead_snapshot_cache_misses_total",
			Help: "Snapshot cache misses.",
		},
	)

	streamClientsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatsoverhead_stream_clients_active",
			Help: "Number of connected SSE stream clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		queriesTotal,
		queryDurationSeconds,
		querySatellitesRanked,
		querySatellitesFailed,
		catalogSatellites,
		catalogAgeSeconds,
		snapshotCacheHits,
		snapshotCacheMisses,
		streamClientsActive,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordQuery records one full-catalog query.
func RecordQuery(metric string, d time.Duration, ranked, failed int) {
	queriesTotal.WithLabelValues(metric).Inc()
	queryDurationSeconds.Observe(d.Seconds())
	querySatellitesRanked.Add(float64(ranked))
	querySatellitesFailed.Add(float64(failed))
}

// SetCatalogCount sets the current catalog size gauge.
func SetCatalogCount(n int) {
	catalogSatellites.Set(float64(n))
}

// SetCatalogAge sets the current catalog age gauge.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// RecordSnapshotCacheHit counts a snapshot cache hit.
func RecordSnapshotCacheHit() {
	snapshotCacheHits.Inc()
}

// RecordSnapshotCacheMiss counts a snapshot cache miss.
func RecordSnapshotCacheMiss() {
	snapshotCacheMisses.Inc()
}

// StreamClientConnected adjusts the active SSE client gauge.
func StreamClientConnected(delta int) {
	streamClientsActive.Add(float64(delta))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
