package stream

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wiseman/whatsoverhead-in-space/internal/cache"
	"github.com/wiseman/whatsoverhead-in-space/internal/nearest"
	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
)

var catalogEpoch = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestHandler(cfg Config) (*Handler, *omm.Store) {
	logger := testLogger()
	store := omm.NewStore()
	store.Set(omm.NewCatalog("test", catalogEpoch, []omm.Elements{
		{
			NoradID:      100,
			Name:         "TESTSAT",
			Epoch:        catalogEpoch,
			MeanMotion:   15.2,
			Eccentricity: 0.0005,
			Inclination:  51.64 * math.Pi / 180,
			Bstar:        1e-4,
		},
	}))
	engine := nearest.NewEngine(store, nil, 2, logger)
	qc := cache.NewQueryCache(cache.Config{}, engine, store, logger)
	return NewHandler(qc, store, cfg, logger), store
}

// TestStreamLimiter exercises per-IP and global connection limits.
func TestStreamLimiter(t *testing.T) {
	l := newStreamLimiter(2)

	if !l.acquire("1.2.3.4") || !l.acquire("1.2.3.4") {
		t.Fatal("first two acquires for an IP should succeed")
	}
	if l.acquire("1.2.3.4") {
		t.Error("third acquire for the same IP should fail")
	}
	if !l.acquire("5.6.7.8") {
		t.Error("a different IP should not be limited")
	}
	if l.count("1.2.3.4") != 2 {
		t.Errorf("count = %d, want 2", l.count("1.2.3.4"))
	}

	l.release("1.2.3.4")
	if !l.acquire("1.2.3.4") {
		t.Error("acquire after release should succeed")
	}

	l.release("5.6.7.8")
	if l.count("5.6.7.8") != 0 {
		t.Errorf("released IP count = %d, want 0", l.count("5.6.7.8"))
	}
}

// TestParseObserver verifies query parameter parsing and defaults.
func TestParseObserver(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/stream/nearest?lat=34.5&lon=-118.7", nil)
	obs, metric, err := parseObserver(r)
	if err != nil {
		t.Fatalf("parseObserver failed: %v", err)
	}
	if obs.LatDeg != 34.5 || obs.LonDeg != -118.7 || obs.AltKm != 0 {
		t.Errorf("observer = %+v", obs)
	}
	if metric != nearest.MetricSurface {
		t.Errorf("metric = %q, want surface default", metric)
	}

	r = httptest.NewRequest("GET", "/api/v1/stream/nearest?lat=1&lon=2&alt=0.5&metric=slant", nil)
	obs, metric, err = parseObserver(r)
	if err != nil {
		t.Fatalf("parseObserver failed: %v", err)
	}
	if obs.AltKm != 0.5 || metric != nearest.MetricSlant {
		t.Errorf("obs=%+v metric=%q", obs, metric)
	}

	for _, query := range []string{
		"lon=2",            // missing lat
		"lat=1",            // missing lon
		"lat=x&lon=2",      // non-numeric
		"lat=1&lon=2&alt=x",
		"lat=1&lon=2&metric=closest",
	} {
		r = httptest.NewRequest("GET", "/api/v1/stream/nearest?"+query, nil)
		if _, _, err := parseObserver(r); err == nil {
			t.Errorf("query %q should fail", query)
		}
	}
}

// TestHandleNearestBadParams verifies invalid parameters fail fast with 400
// before any streaming starts.
func TestHandleNearestBadParams(t *testing.T) {
	h, _ := newTestHandler(Config{})

	r := httptest.NewRequest("GET", "/api/v1/stream/nearest?lat=bogus&lon=0", nil)
	w := httptest.NewRecorder()
	h.HandleNearest(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// TestHandleNearestStreamsEvents runs one stream tick and checks the SSE
// framing: a metadata event first, then a nearest event.
func TestHandleNearestStreamsEvents(t *testing.T) {
	h, _ := newTestHandler(Config{UpdateInterval: time.Hour, KeepaliveInterval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	r := httptest.NewRequest("GET", "/api/v1/stream/nearest?lat=34.5&lon=-118.7", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h.HandleNearest(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := w.Body.String()
	events := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(events) < 2 {
		t.Fatalf("got %d events, want at least metadata + nearest:\n%s", len(events), body)
	}
	if !strings.Contains(events[0], `"type":"metadata"`) {
		t.Errorf("first event is not metadata: %s", events[0])
	}
	if !strings.Contains(events[1], `"type":"nearest"`) {
		t.Errorf("second event is not nearest: %s", events[1])
	}
	if !strings.Contains(events[1], `"norad_id":100`) {
		t.Errorf("nearest event missing satellite: %s", events[1])
	}
}

// TestHandleNearestRateLimit verifies the per-IP concurrency cap returns 429.
func TestHandleNearestRateLimit(t *testing.T) {
	h, _ := newTestHandler(Config{MaxConcurrentPerIP: 1, UpdateInterval: time.Hour, KeepaliveInterval: time.Hour})

	// Saturate the limiter for the test IP directly.
	ip := "192.0.2.1"
	if !h.limiter.acquire(ip) {
		t.Fatal("priming acquire failed")
	}
	defer h.limiter.release(ip)

	r := httptest.NewRequest("GET", "/api/v1/stream/nearest?lat=1&lon=2", nil)
	r.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	h.HandleNearest(w, r)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}
