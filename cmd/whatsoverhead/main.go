package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/wiseman/whatsoverhead-in-space/internal/api"
	"github.com/wiseman/whatsoverhead-in-space/internal/auth"
	"github.com/wiseman/whatsoverhead-in-space/internal/cache"
	"github.com/wiseman/whatsoverhead-in-space/internal/metrics"
	"github.com/wiseman/whatsoverhead-in-space/internal/nearest"
	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
	"github.com/wiseman/whatsoverhead-in-space/internal/satcat"
	"github.com/wiseman/whatsoverhead-in-space/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("WHATSOVERHEAD_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	catalogCfg := loadCatalogConfig(logger)
	store := omm.NewStore()
	diskCache := omm.NewCache(catalogCfg.CacheDir, catalogCfg.MaxFiles)

	// Attempt to load a cached catalog on startup so queries work before
	// the first fetch completes.
	if data, ts, err := diskCache.LoadLatest(); err != nil {
		logger.Info("no catalog cache found, starting empty", "error", err)
	} else {
		sats, rejected, err := omm.Decode(data)
		if err != nil {
			logger.Warn("failed to decode cached catalog", "error", err)
		} else {
			cat := omm.NewCatalog("cache", ts, sats)
			cat.Rejected = rejected
			store.Set(cat)
			metrics.SetCatalogCount(len(sats))
			logger.Info("loaded catalog from cache",
				"count", len(sats),
				"rejected", len(rejected),
				"cached_at", ts.Format(time.RFC3339),
			)
		}
	}

	table := loadSatcat(logger)

	workers := runtime.NumCPU()
	if v := os.Getenv("WHATSOVERHEAD_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid WHATSOVERHEAD_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}
	engine := nearest.NewEngine(store, table, workers, logger)
	logger.Info("query engine config", "workers", workers)

	cacheCfg := loadCacheConfig(logger)
	queryCache := cache.NewQueryCache(cacheCfg, engine, store, logger)

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(queryCache, store, streamCfg, logger)

	srv := api.NewServer(addr, queryCache, store, streamHandler, logger, authCfg, streamCfg.TrustProxy)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go queryCache.Start(ctx)

	if catalogCfg.EnableFetch {
		go refreshLoop(ctx, store, diskCache, catalogCfg, logger)
	}

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetCatalogAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "catalog_fetch_enabled", catalogCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// refreshLoop fetches the catalog immediately when the store is empty or
// stale, then on every refresh interval until ctx is cancelled.
func refreshLoop(ctx context.Context, store *omm.Store, diskCache *omm.Cache, cfg catalogConfig, logger *slog.Logger) {
	if age := store.AgeSeconds(); age < 0 || age > cfg.MaxAge.Seconds() {
		refreshOnce(ctx, store, diskCache, cfg, logger)
	}

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshOnce(ctx, store, diskCache, cfg, logger)
		}
	}
}

func refreshOnce(ctx context.Context, store *omm.Store, diskCache *omm.Cache, cfg catalogConfig, logger *slog.Logger) {
	store.Lock()
	defer store.Unlock()

	fetcher := omm.NewFetcher(cfg.SourceURL)
	data, err := fetcher.Fetch(ctx)
	if err != nil {
		logger.Warn("catalog fetch failed", "error", err, "source", fetcher.SourceURL())
		return
	}

	sats, rejected, err := omm.Decode(data)
	if err != nil {
		logger.Warn("catalog decode failed", "error", err)
		return
	}

	now := time.Now().UTC()
	if err := diskCache.Write(data, now); err != nil {
		logger.Warn("catalog cache write failed", "error", err)
	}

	cat := omm.NewCatalog(fetcher.SourceURL(), now, sats)
	cat.Rejected = rejected
	store.Set(cat)
	metrics.SetCatalogCount(len(sats))
	metrics.SetCatalogAge(0)
	logger.Info("catalog refreshed",
		"count", len(sats),
		"rejected", len(rejected),
		"source", fetcher.SourceURL(),
	)
}

type catalogConfig struct {
	EnableFetch     bool
	SourceURL       string
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration
	RefreshInterval time.Duration
}

func loadCatalogConfig(logger *slog.Logger) catalogConfig {
	cfg := catalogConfig{
		EnableFetch:     true,
		CacheDir:        "/tmp/whatsoverhead/omm",
		MaxFiles:        5,
		MaxAge:          24 * time.Hour,
		RefreshInterval: 2 * time.Hour,
	}

	if v := os.Getenv("WHATSOVERHEAD_ENABLE_CATALOG_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid WHATSOVERHEAD_ENABLE_CATALOG_FETCH value, defaulting to true", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("WHATSOVERHEAD_CATALOG_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("WHATSOVERHEAD_CATALOG_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("WHATSOVERHEAD_CATALOG_MAX_AGE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn("invalid WHATSOVERHEAD_CATALOG_MAX_AGE value, defaulting to 86400", "value", v)
		} else {
			cfg.MaxAge = time.Duration(seconds) * time.Second
		}
	}

	if v := os.Getenv("WHATSOVERHEAD_CATALOG_REFRESH_INTERVAL"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 60 {
			logger.Warn("invalid WHATSOVERHEAD_CATALOG_REFRESH_INTERVAL value, defaulting to 7200", "value", v)
		} else {
			cfg.RefreshInterval = time.Duration(seconds) * time.Second
		}
	}

	logger.Info("catalog config",
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
	)

	return cfg
}

func loadSatcat(logger *slog.Logger) *satcat.Table {
	path := os.Getenv("WHATSOVERHEAD_SATCAT_PATH")
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("cannot open satcat file, orbit descriptions disabled", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	table, err := satcat.Parse(f)
	if err != nil {
		logger.Warn("cannot parse satcat file, orbit descriptions disabled", "path", path, "error", err)
		return nil
	}
	logger.Info("satcat loaded", "path", path, "entries", table.Len())
	return table
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("WHATSOVERHEAD_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("WHATSOVERHEAD_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("WHATSOVERHEAD_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("WHATSOVERHEAD_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadCacheConfig(logger *slog.Logger) cache.Config {
	cfg := cache.Config{
		Step:       5 * time.Second,
		TTL:        60 * time.Second,
		MaxEntries: 1024,
	}

	if v := os.Getenv("WHATSOVERHEAD_CACHE_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid WHATSOVERHEAD_CACHE_STEP value, using default", "value", v, "default", 5)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("WHATSOVERHEAD_CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid WHATSOVERHEAD_CACHE_TTL value, using default", "value", v, "default", 60)
		} else {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("WHATSOVERHEAD_CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid WHATSOVERHEAD_CACHE_MAX_ENTRIES value, using default", "value", v, "default", 1024)
		} else {
			cfg.MaxEntries = n
		}
	}

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		UpdateInterval:     5 * time.Second,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("WHATSOVERHEAD_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid WHATSOVERHEAD_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("WHATSOVERHEAD_STREAM_UPDATE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid WHATSOVERHEAD_STREAM_UPDATE_INTERVAL value, using default", "value", v, "default", 5)
		} else {
			cfg.UpdateInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("WHATSOVERHEAD_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid WHATSOVERHEAD_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("WHATSOVERHEAD_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid WHATSOVERHEAD_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"update_interval_seconds", cfg.UpdateInterval.Seconds(),
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)

	return cfg
}
