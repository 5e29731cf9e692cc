package main

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestLoadCatalogConfigDefaults verifies the defaults with no env set.
func TestLoadCatalogConfigDefaults(t *testing.T) {
	cfg := loadCatalogConfig(discardLogger())
	if !cfg.EnableFetch {
		t.Error("EnableFetch default should be true")
	}
	if cfg.MaxAge != 24*time.Hour {
		t.Errorf("MaxAge = %v, want 24h", cfg.MaxAge)
	}
	if cfg.RefreshInterval != 2*time.Hour {
		t.Errorf("RefreshInterval = %v, want 2h", cfg.RefreshInterval)
	}
}

// TestLoadCatalogConfigFetchFlag verifies valid values are honored and an
// unparseable value warns and keeps the default, like the other env helpers.
func TestLoadCatalogConfigFetchFlag(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"false", false},
		{"0", false},
		{"1", true},
		{"banana", true}, // invalid keeps the default
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("WHATSOVERHEAD_ENABLE_CATALOG_FETCH", tt.value)
			cfg := loadCatalogConfig(discardLogger())
			if cfg.EnableFetch != tt.want {
				t.Errorf("EnableFetch with %q = %t, want %t", tt.value, cfg.EnableFetch, tt.want)
			}
		})
	}
}

// TestLoadCatalogConfigIntervals verifies duration parsing and the
// refresh-interval floor.
func TestLoadCatalogConfigIntervals(t *testing.T) {
	t.Setenv("WHATSOVERHEAD_CATALOG_MAX_AGE", "3600")
	t.Setenv("WHATSOVERHEAD_CATALOG_REFRESH_INTERVAL", "30")

	cfg := loadCatalogConfig(discardLogger())
	if cfg.MaxAge != time.Hour {
		t.Errorf("MaxAge = %v, want 1h", cfg.MaxAge)
	}
	if cfg.RefreshInterval != 2*time.Hour {
		t.Errorf("RefreshInterval below the floor should keep the default, got %v", cfg.RefreshInterval)
	}
}
