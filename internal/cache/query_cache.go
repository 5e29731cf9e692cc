// Package cache provides an in-memory result cache for nearest-satellite
// queries.
//
// Query instants are rounded down to a step boundary so that repeated
// queries (dashboards, SSE streams polling the same observer) hit the same
// entry instead of re-propagating the whole catalog. Entries expire after a
// TTL, and the cache is purged when the catalog changes.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wiseman/whatsoverhead-in-space/internal/metrics"
	"github.com/wiseman/whatsoverhead-in-space/internal/nearest"
	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Step       time.Duration // query instant rounding (default: 5s)
	TTL        time.Duration // entry lifetime (default: 60s)
	MaxEntries int           // hard cap on cached results (default: 1024)
}

type entry struct {
	result  *nearest.Result
	savedAt time.Time
}

// QueryCache memoizes query results keyed by rounded instant and request
// parameters. Safe for concurrent use.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]entry

	config Config
	engine *nearest.Engine
	store  *omm.Store
	logger *slog.Logger

	// Catalog identity of the cached entries.
	currentFetchedAt time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewQueryCache creates a query cache in front of the engine.
func NewQueryCache(config Config, engine *nearest.Engine, store *omm.Store, logger *slog.Logger) *QueryCache {
	if config.Step <= 0 {
		config.Step = 5 * time.Second
	}
	if config.TTL <= 0 {
		config.TTL = 60 * time.Second
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 1024
	}
	logger.Info("query cache initialized",
		"step_seconds", config.Step.Seconds(),
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
	)
	return &QueryCache{
		entries: make(map[string]entry),
		config:  config,
		engine:  engine,
		store:   store,
		logger:  logger,
	}
}

// RoundToStep rounds a timestamp down to the nearest step boundary.
// Always converts to UTC first so cache lookups hit consistently.
func (c *QueryCache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

func key(req nearest.Request) string {
	return fmt.Sprintf("%d|%.4f|%.4f|%.3f|%s|%d|%t",
		req.At.Unix(),
		req.Observer.LatDeg, req.Observer.LonDeg, req.Observer.AltKm,
		req.Metric, req.Limit, req.GroupByClass)
}

// Query answers a request through the cache. The request instant is rounded
// to the cache step before lookup and evaluation.
func (c *QueryCache) Query(ctx context.Context, req nearest.Request) (*nearest.Result, error) {
	req.At = c.RoundToStep(req.At)

	c.purgeIfCatalogChanged()

	k := key(req)
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		metrics.RecordSnapshotCacheHit()
		return e.result, nil
	}

	c.misses.Add(1)
	metrics.RecordSnapshotCacheMiss()
	result, err := c.engine.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.entries) < c.config.MaxEntries {
		c.entries[k] = entry{result: result, savedAt: time.Now()}
	}
	c.mu.Unlock()
	return result, nil
}

// purgeIfCatalogChanged drops all entries when the catalog has been replaced.
func (c *QueryCache) purgeIfCatalogChanged() {
	cat := c.store.Get()
	if cat == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cat.FetchedAt.Equal(c.currentFetchedAt) {
		return
	}
	if len(c.entries) > 0 {
		c.logger.Info("catalog changed, purging query cache",
			"purged", len(c.entries),
			"new_catalog_fetched_at", cat.FetchedAt.UTC().Format(time.RFC3339),
		)
	}
	c.entries = make(map[string]entry)
	c.currentFetchedAt = cat.FetchedAt
}

// Start runs the TTL eviction loop until ctx is cancelled.
func (c *QueryCache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.TTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("query cache eviction stopped")
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *QueryCache) evictExpired() {
	cutoff := time.Now().Add(-c.config.TTL)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.savedAt.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}

// Stats returns lifetime hit and miss counts.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
