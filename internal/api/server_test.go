package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wiseman/whatsoverhead-in-space/internal/auth"
	"github.com/wiseman/whatsoverhead-in-space/internal/cache"
	"github.com/wiseman/whatsoverhead-in-space/internal/nearest"
	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
	"github.com/wiseman/whatsoverhead-in-space/internal/stream"
)

var catalogEpoch = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func leoElements(id int, raanDeg float64) omm.Elements {
	return omm.Elements{
		NoradID:      id,
		Name:         "TESTSAT",
		Epoch:        catalogEpoch,
		MeanMotion:   15.2,
		Eccentricity: 0.0005,
		Inclination:  51.64 * math.Pi / 180,
		RAAN:         raanDeg * math.Pi / 180,
		Bstar:        1e-4,
	}
}

func newTestServer(authCfg auth.Config) (*Server, *omm.Store) {
	logger := testLogger()
	store := omm.NewStore()
	engine := nearest.NewEngine(store, nil, 2, logger)
	qc := cache.NewQueryCache(cache.Config{}, engine, store, logger)
	sse := stream.NewHandler(qc, store, stream.Config{}, logger)
	return NewServer(":0", qc, store, sse, logger, authCfg, false), store
}

func loadTestCatalog(store *omm.Store) {
	store.Set(omm.NewCatalog("test", catalogEpoch, []omm.Elements{
		leoElements(100, 0),
		leoElements(200, 120),
	}))
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// TestHealthEndpoints verifies healthz is unconditional and readyz gates on
// the catalog.
func TestHealthEndpoints(t *testing.T) {
	srv, store := newTestServer(auth.Config{})

	if w := get(t, srv, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
	if w := get(t, srv, "/readyz"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz without catalog status = %d, want 503", w.Code)
	}

	loadTestCatalog(store)
	if w := get(t, srv, "/readyz"); w.Code != http.StatusOK {
		t.Errorf("readyz with catalog status = %d, want 200", w.Code)
	}
}

// TestNearestEndpoint verifies a successful query response shape.
func TestNearestEndpoint(t *testing.T) {
	srv, store := newTestServer(auth.Config{})
	loadTestCatalog(store)

	at := catalogEpoch.Add(30 * time.Minute).Format(time.RFC3339)
	w := get(t, srv, "/api/v1/nearest?lat=34.5&lon=-118.7&at="+at)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var result nearest.Result
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Metric != nearest.MetricSurface {
		t.Errorf("metric = %q, want surface default", result.Metric)
	}
	if len(result.Ranking) != 2 {
		t.Errorf("got %d ranked, want 2", len(result.Ranking))
	}
	for i := 1; i < len(result.Ranking); i++ {
		if result.Ranking[i].DistanceKm < result.Ranking[i-1].DistanceKm {
			t.Error("ranking not sorted by distance")
		}
	}
}

// TestNearestEndpointParamValidation verifies bad query parameters are 400s.
func TestNearestEndpointParamValidation(t *testing.T) {
	srv, store := newTestServer(auth.Config{})
	loadTestCatalog(store)

	tests := []struct {
		name  string
		query string
	}{
		{"missing lat", "lon=-118.7"},
		{"missing lon", "lat=34.5"},
		{"non-numeric lat", "lat=abc&lon=0"},
		{"latitude out of range", "lat=95&lon=0"},
		{"bad metric", "lat=34.5&lon=-118.7&metric=closest"},
		{"bad at", "lat=34.5&lon=-118.7&at=yesterday"},
		{"negative limit", "lat=34.5&lon=-118.7&limit=-1"},
		{"bad group_by_class", "lat=34.5&lon=-118.7&group_by_class=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, srv, "/api/v1/nearest?"+tt.query)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			var resp map[string]any
			json.NewDecoder(w.Body).Decode(&resp)
			if resp["error"] == nil {
				t.Error("expected error field in response")
			}
		})
	}
}

// TestRouteMethodRestrictions verifies the mux's method-qualified patterns
// are live: GET routes answer GETs and reject other verbs instead of
// falling through to a 404 on every request.
func TestRouteMethodRestrictions(t *testing.T) {
	srv, store := newTestServer(auth.Config{})
	loadTestCatalog(store)

	if w := get(t, srv, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want 200", w.Code)
	}

	for _, path := range []string{"/healthz", "/api/v1/nearest?lat=34.5&lon=-118.7", "/api/v1/catalog/metadata"} {
		req := httptest.NewRequest("POST", path, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s status = %d, want 405", path, w.Code)
		}
	}
}

// TestNearestEndpointNoCatalog verifies 503 before a catalog is loaded.
func TestNearestEndpointNoCatalog(t *testing.T) {
	srv, _ := newTestServer(auth.Config{})

	w := get(t, srv, "/api/v1/nearest?lat=34.5&lon=-118.7")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// TestCatalogMetadataEndpoint verifies the provenance payload.
func TestCatalogMetadataEndpoint(t *testing.T) {
	srv, store := newTestServer(auth.Config{})

	if w := get(t, srv, "/api/v1/catalog/metadata"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("metadata without catalog status = %d, want 503", w.Code)
	}

	loadTestCatalog(store)
	w := get(t, srv, "/api/v1/catalog/metadata")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var meta map[string]any
	if err := json.NewDecoder(w.Body).Decode(&meta); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if meta["source"] != "test" {
		t.Errorf("source = %v, want test", meta["source"])
	}
	if meta["satellites"] != float64(2) {
		t.Errorf("satellites = %v, want 2", meta["satellites"])
	}
}

// TestAuthMiddleware verifies Bearer auth on protected paths and the exempt
// list.
func TestAuthMiddleware(t *testing.T) {
	srv, store := newTestServer(auth.Config{Enabled: true, Token: "sekrit"})
	loadTestCatalog(store)

	// Protected path without a token.
	if w := get(t, srv, "/api/v1/nearest?lat=34.5&lon=-118.7"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", w.Code)
	}

	// Wrong token.
	req := httptest.NewRequest("GET", "/api/v1/nearest?lat=34.5&lon=-118.7", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}

	// Correct token.
	req = httptest.NewRequest("GET", "/api/v1/nearest?lat=34.5&lon=-118.7", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", w.Code)
	}

	// Exempt paths stay public.
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/api/v1/catalog/metadata"} {
		if w := get(t, srv, path); w.Code == http.StatusUnauthorized {
			t.Errorf("exempt path %s returned 401", path)
		}
	}
}
