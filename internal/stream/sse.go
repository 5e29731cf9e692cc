// Package stream implements Server-Sent Events (SSE) streaming of
// nearest-satellite updates for a fixed observer. Clients connect via
// GET /api/v1/stream/nearest?lat=..&lon=.. and receive a re-ranked nearest
// satellite at a fixed interval.
//
// SSE message format:
//
//	data: {"type":"nearest","at":"2026-08-23T04:00:00Z","satellite":{...}}\n\n
//
// The first message is always metadata:
//
//	data: {"type":"metadata","catalog_fetched_at":"...","catalog_age_seconds":1800}\n\n
//
// Keep-alive comments (:\n\n) are sent on idle intervals so intermediaries
// do not drop the connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/wiseman/whatsoverhead-in-space/internal/cache"
	"github.com/wiseman/whatsoverhead-in-space/internal/httputil"
	"github.com/wiseman/whatsoverhead-in-space/internal/metrics"
	"github.com/wiseman/whatsoverhead-in-space/internal/nearest"
	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	UpdateInterval     time.Duration // Re-rank interval (default: 5s).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Honor X-Forwarded-For for rate limiting.
}

// Handler manages SSE streaming connections.
type Handler struct {
	cache   *cache.QueryCache
	store   *omm.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(qc *cache.QueryCache, store *omm.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = 5 * time.Second
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		cache:   qc,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

type metadataEvent struct {
	Type              string  `json:"type"`
	CatalogFetchedAt  string  `json:"catalog_fetched_at"`
	CatalogAgeSeconds float64 `json:"catalog_age_seconds"`
}

type nearestEvent struct {
	Type      string                  `json:"type"`
	At        string                  `json:"at"`
	Satellite nearest.RankedSatellite `json:"satellite"`
	Failures  int                     `json:"failures"`
}

// HandleNearest serves the SSE nearest-satellite stream.
// GET /api/v1/stream/nearest?lat=34.56&lon=-118.76&alt=0&metric=surface
func (h *Handler) HandleNearest(w http.ResponseWriter, r *http.Request) {
	obs, metric, err := parseObserver(r)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}
	defer h.limiter.release(ip)

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	metrics.StreamClientConnected(1)
	defer metrics.StreamClientConnected(-1)

	start := time.Now()
	h.logger.Info("stream connected", "remote_ip", ip, "lat", obs.LatDeg, "lon", obs.LonDeg)
	defer func() {
		h.logger.Info("stream disconnected", "remote_ip", ip, "duration_s", time.Since(start).Seconds())
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.sendMetadata(w)
	flusher.Flush()

	update := time.NewTicker(h.config.UpdateInterval)
	defer update.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	// First ranking immediately, then on each tick.
	h.sendNearest(w, r, obs, metric)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ":\n\n")
			flusher.Flush()
		case <-update.C:
			h.sendNearest(w, r, obs, metric)
			flusher.Flush()
		}
	}
}

func (h *Handler) sendMetadata(w http.ResponseWriter) {
	ev := metadataEvent{Type: "metadata"}
	if cat := h.store.Get(); cat != nil {
		ev.CatalogFetchedAt = cat.FetchedAt.UTC().Format(time.RFC3339)
		ev.CatalogAgeSeconds = h.store.AgeSeconds()
	}
	writeEvent(w, ev)
}

func (h *Handler) sendNearest(w http.ResponseWriter, r *http.Request, obs nearest.Observer, metric nearest.Metric) {
	req := nearest.Request{
		Observer: obs,
		At:       time.Now().UTC(),
		Metric:   metric,
		Limit:    1,
	}
	result, err := h.cache.Query(r.Context(), req)
	if err != nil {
		h.logger.Warn("stream query failed", "error", err)
		return
	}
	sat, ok := result.Nearest()
	if !ok {
		return
	}
	writeEvent(w, nearestEvent{
		Type:      "nearest",
		At:        result.At.Format(time.RFC3339),
		Satellite: sat,
		Failures:  len(result.Failures),
	})
}

func writeEvent(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// parseObserver extracts observer coordinates and metric from the query string.
func parseObserver(r *http.Request) (nearest.Observer, nearest.Metric, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return nearest.Observer{}, "", fmt.Errorf("invalid lat parameter")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return nearest.Observer{}, "", fmt.Errorf("invalid lon parameter")
	}
	alt := 0.0
	if v := q.Get("alt"); v != "" {
		alt, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nearest.Observer{}, "", fmt.Errorf("invalid alt parameter")
		}
	}
	metric := nearest.MetricSurface
	if v := q.Get("metric"); v != "" {
		metric = nearest.Metric(v)
		if !metric.Valid() {
			return nearest.Observer{}, "", fmt.Errorf("invalid metric parameter, want surface or slant")
		}
	}
	return nearest.Observer{LatDeg: lat, LonDeg: lon, AltKm: alt}, metric, nil
}
