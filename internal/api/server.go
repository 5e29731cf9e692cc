// Package api wires the HTTP surface of the service: the nearest-satellite
// query endpoint, catalog metadata, the SSE stream, and operational routes.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/wiseman/whatsoverhead-in-space/internal/auth"
	"github.com/wiseman/whatsoverhead-in-space/internal/cache"
	"github.com/wiseman/whatsoverhead-in-space/internal/health"
	"github.com/wiseman/whatsoverhead-in-space/internal/httputil"
	"github.com/wiseman/whatsoverhead-in-space/internal/metrics"
	"github.com/wiseman/whatsoverhead-in-space/internal/nearest"
	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
	"github.com/wiseman/whatsoverhead-in-space/internal/stream"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	cache      *cache.QueryCache
	store      *omm.Store
	logger     *slog.Logger
	trustProxy bool
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, qc *cache.QueryCache, store *omm.Store, sse *stream.Handler, logger *slog.Logger, authCfg auth.Config, trustProxy bool) *Server {
	s := &Server{
		cache:      qc,
		store:      store,
		logger:     logger,
		trustProxy: trustProxy,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/nearest", s.handleNearest)
	mux.HandleFunc("GET /api/v1/catalog/metadata", s.handleCatalogMetadata)
	mux.HandleFunc("GET /api/v1/stream/nearest", sse.HandleNearest)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = s.loggingMiddleware()(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Streams hold the connection open indefinitely.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// handleNearest answers GET /api/v1/nearest.
//
// Query parameters:
//
//	lat            observer latitude in degrees, required, [-90, 90]
//	lon            observer longitude in degrees, required, [-180, 180]
//	alt            observer altitude in km above the ellipsoid (default 0)
//	at             RFC 3339 query instant (default: now)
//	metric         "surface" (default) or "slant"
//	limit          truncate the ranking to N entries (default 10, 0 = all)
//	group_by_class also report the nearest satellite per orbit class
func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	req, err := parseNearestRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.cache.Query(r.Context(), req)
	if err != nil {
		if s.store.Get() == nil {
			writeError(w, http.StatusServiceUnavailable, "no catalog loaded")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseNearestRequest(r *http.Request) (nearest.Request, error) {
	q := r.URL.Query()
	var req nearest.Request

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return req, fmt.Errorf("invalid lat parameter")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return req, fmt.Errorf("invalid lon parameter")
	}
	req.Observer = nearest.Observer{LatDeg: lat, LonDeg: lon}

	if v := q.Get("alt"); v != "" {
		req.Observer.AltKm, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid alt parameter")
		}
	}

	req.At = time.Now().UTC()
	if v := q.Get("at"); v != "" {
		req.At, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return req, fmt.Errorf("invalid at parameter, want RFC 3339")
		}
	}

	req.Metric = nearest.MetricSurface
	if v := q.Get("metric"); v != "" {
		req.Metric = nearest.Metric(v)
		if !req.Metric.Valid() {
			return req, fmt.Errorf("invalid metric parameter, want surface or slant")
		}
	}

	req.Limit = 10
	if v := q.Get("limit"); v != "" {
		req.Limit, err = strconv.Atoi(v)
		if err != nil || req.Limit < 0 {
			return req, fmt.Errorf("invalid limit parameter")
		}
	}

	if v := q.Get("group_by_class"); v != "" {
		req.GroupByClass, err = strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid group_by_class parameter")
		}
	}
	return req, nil
}

// handleCatalogMetadata answers GET /api/v1/catalog/metadata with catalog
// provenance: source, fetch time, size and epoch range.
func (s *Server) handleCatalogMetadata(w http.ResponseWriter, r *http.Request) {
	cat := s.store.Get()
	if cat == nil {
		writeError(w, http.StatusServiceUnavailable, "no catalog loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":       cat.Source,
		"fetched_at":   cat.FetchedAt.UTC().Format(time.RFC3339),
		"age_seconds":  s.store.AgeSeconds(),
		"satellites":   len(cat.Satellites),
		"rejected":     len(cat.Rejected),
		"epoch_oldest": cat.EpochRange.Min.UTC().Format(time.RFC3339),
		"epoch_newest": cat.EpochRange.Max.UTC().Format(time.RFC3339),
	})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers flush through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) loggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			s.logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, s.trustProxy),
			)
		})
	}
}
