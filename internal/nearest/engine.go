// Package nearest answers the question "which satellite is closest to this
// observer right now": it propagates every catalog entry to the query
// instant, projects the results to geodetic coordinates, and ranks them by
// distance from the observer.
//
// The pipeline is pure: the query instant and observer are inputs, results
// are deterministic for identical inputs regardless of worker count, and
// per-satellite failures never abort a query.
package nearest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wiseman/whatsoverhead-in-space/internal/metrics"
	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
	"github.com/wiseman/whatsoverhead-in-space/internal/satcat"
	"github.com/wiseman/whatsoverhead-in-space/internal/sgp4"
	"github.com/wiseman/whatsoverhead-in-space/internal/transform"
)

// constCache holds SGP4 constants for a specific catalog, index-aligned
// with Catalog.Satellites. Entries that failed derivation hold the error
// instead. Immutable after construction; safe for concurrent reads.
type constCache struct {
	consts    []*sgp4.Constants
	errs      []error
	fetchedAt time.Time
}

// Engine runs nearest-satellite queries over a catalog store.
type Engine struct {
	store   *omm.Store
	satcat  *satcat.Table
	workers int
	logger  *slog.Logger
	cache   atomic.Pointer[constCache]
	cacheMu sync.Mutex // serializes cache rebuilds
}

// NewEngine creates a query engine. workers <= 0 selects runtime.NumCPU().
// The satcat table may be nil.
func NewEngine(store *omm.Store, table *satcat.Table, workers int, logger *slog.Logger) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{
		store:   store,
		satcat:  table,
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the configured degree of parallelism.
func (e *Engine) Workers() int { return e.workers }

// cachedConstants returns SGP4 constants for the given catalog, rebuilding
// the cache if the catalog has changed (double-checked locking).
func (e *Engine) cachedConstants(cat *omm.Catalog) *constCache {
	if c := e.cache.Load(); c != nil && c.fetchedAt.Equal(cat.FetchedAt) {
		return c
	}

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	if c := e.cache.Load(); c != nil && c.fetchedAt.Equal(cat.FetchedAt) {
		return c
	}

	cc := &constCache{
		consts:    make([]*sgp4.Constants, len(cat.Satellites)),
		errs:      make([]error, len(cat.Satellites)),
		fetchedAt: cat.FetchedAt,
	}
	var failed int
	for i, el := range cat.Satellites {
		consts, err := sgp4.FromElements(el)
		if err != nil {
			cc.errs[i] = err
			failed++
			continue
		}
		cc.consts[i] = consts
	}

	e.logger.Info("sgp4 constants cache rebuilt",
		"cached", len(cc.consts)-failed,
		"failed", failed,
		"catalog_fetched_at", cat.FetchedAt.UTC().Format(time.RFC3339),
	)
	e.cache.Store(cc)
	return cc
}

// Query ranks every satellite in the current catalog by distance from the
// observer at the requested instant. Invalid observer input is a top-level
// error; per-satellite failures are collected into the result.
func (e *Engine) Query(ctx context.Context, req Request) (*Result, error) {
	cat := e.store.Get()
	if cat == nil {
		return nil, fmt.Errorf("no catalog loaded")
	}
	return e.QueryCatalog(ctx, cat, req)
}

// QueryCatalog is Query against an explicit catalog.
func (e *Engine) QueryCatalog(ctx context.Context, cat *omm.Catalog, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	consts := e.cachedConstants(cat)
	obs := transform.NewObserverPosition(req.Observer.LatDeg, req.Observer.LonDeg, req.Observer.AltKm)

	// GMST is the same for every satellite at the query instant.
	gmst := transform.GMST(req.At)

	start := time.Now()
	ranking, failures := e.propagateAll(ctx, cat, consts, obs, gmst, req)
	duration := time.Since(start)

	// Decode-stage rejects are part of the failure report too.
	for _, rec := range cat.Rejected {
		failures = append(failures, Failure{
			Index:  rec.Index,
			Kind:   "malformed_record",
			Detail: rec.Detail,
		})
	}

	// Reimpose a deterministic total order: ascending by the selected
	// metric, ties broken by catalog id.
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].DistanceKm != ranking[j].DistanceKm {
			return ranking[i].DistanceKm < ranking[j].DistanceKm
		}
		return ranking[i].NoradID < ranking[j].NoradID
	})
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].NoradID != failures[j].NoradID {
			return failures[i].NoradID < failures[j].NoradID
		}
		return failures[i].Index < failures[j].Index
	})

	metrics.RecordQuery(string(req.Metric), duration, len(ranking), len(failures))

	res := &Result{
		At:       req.At.UTC(),
		Metric:   req.Metric,
		Failures: failures,
	}
	if req.GroupByClass {
		res.NearestByClass = nearestByClass(ranking)
	}
	if req.Limit > 0 && req.Limit < len(ranking) {
		ranking = ranking[:req.Limit]
	}
	res.Ranking = ranking
	return res, nil
}

// queryJob is a unit of work for the worker pool: one catalog index.
type queryJob struct {
	index int
}

// queryResult is the output of propagating and ranking one satellite.
type queryResult struct {
	entry   RankedSatellite
	failure *Failure
}

// propagateAll fans catalog entries over the worker pool and collects
// ranked entries and failures. Order of the returned slices is unspecified;
// the caller sorts.
func (e *Engine) propagateAll(ctx context.Context, cat *omm.Catalog, consts *constCache, obs transform.ObserverPosition, gmst float64, req Request) ([]RankedSatellite, []Failure) {
	if len(cat.Satellites) == 0 {
		return nil, nil
	}

	jobs := make(chan queryJob, e.workers*2)
	results := make(chan queryResult, e.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := e.rankOne(cat, consts, obs, gmst, req, job.index)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range cat.Satellites {
			select {
			case jobs <- queryJob{index: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ranking := make([]RankedSatellite, 0, len(cat.Satellites))
	var failures []Failure
	for result := range results {
		if result.failure != nil {
			failures = append(failures, *result.failure)
			continue
		}
		ranking = append(ranking, result.entry)
	}
	return ranking, failures
}

// rankOne propagates one satellite to the query instant and computes its
// distances from the observer.
func (e *Engine) rankOne(cat *omm.Catalog, consts *constCache, obs transform.ObserverPosition, gmst float64, req Request, i int) queryResult {
	el := cat.Satellites[i]

	if err := consts.errs[i]; err != nil {
		return queryResult{failure: &Failure{
			NoradID: el.NoradID,
			Kind:    string(sgp4.KindOf(err)),
			Detail:  err.Error(),
		}}
	}

	tsince := req.At.Sub(el.Epoch).Minutes()
	teme, err := consts.consts[i].Propagate(tsince)
	if err != nil {
		return queryResult{failure: &Failure{
			NoradID: el.NoradID,
			Kind:    string(sgp4.KindOf(err)),
			Detail:  err.Error(),
		}}
	}

	ecef := transform.TEMEToECEFWithGMST(teme, gmst)
	geo := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)

	latDeg := geo.LatDeg()
	lonDeg := geo.LonDeg()
	surface := Haversine(obs.LatDeg(), obs.LonDeg(), latDeg, lonDeg)
	dx := ecef.X - obs.ECEFx
	dy := ecef.Y - obs.ECEFy
	dz := ecef.Z - obs.ECEFz
	slant := math.Sqrt(dx*dx + dy*dy + dz*dz)

	entry := RankedSatellite{
		NoradID:    el.NoradID,
		Name:       el.Name,
		LatDeg:     latDeg,
		LonDeg:     lonDeg,
		AltKm:      geo.AltKm,
		SurfaceKm:  surface,
		SlantKm:    slant,
		BearingDeg: Bearing(obs.LatDeg(), obs.LonDeg(), latDeg, lonDeg),
		OrbitClass: OrbitClass(geo.AltKm),
		OrbitDesc:  e.satcat.Description(el.NoradID),
	}
	entry.Cardinal = CardinalDirection(entry.BearingDeg)
	if req.Metric == MetricSlant {
		entry.DistanceKm = slant
	} else {
		entry.DistanceKm = surface
	}
	return queryResult{entry: entry}
}

// nearestByClass picks the closest entry in each orbit class from an
// already collected (not necessarily sorted) ranking.
func nearestByClass(ranking []RankedSatellite) map[string]RankedSatellite {
	best := make(map[string]RankedSatellite)
	for _, entry := range ranking {
		cur, ok := best[entry.OrbitClass]
		if !ok || entry.DistanceKm < cur.DistanceKm ||
			(entry.DistanceKm == cur.DistanceKm && entry.NoradID < cur.NoradID) {
			best[entry.OrbitClass] = entry
		}
	}
	return best
}

// validateRequest rejects observer inputs that would poison every distance
// in the ranking.
func validateRequest(req Request) error {
	o := req.Observer
	if math.IsNaN(o.LatDeg) || math.IsInf(o.LatDeg, 0) || o.LatDeg < -90 || o.LatDeg > 90 {
		return fmt.Errorf("observer latitude %v out of [-90, 90]", o.LatDeg)
	}
	if math.IsNaN(o.LonDeg) || math.IsInf(o.LonDeg, 0) || o.LonDeg < -180 || o.LonDeg > 180 {
		return fmt.Errorf("observer longitude %v out of [-180, 180]", o.LonDeg)
	}
	if math.IsNaN(o.AltKm) || math.IsInf(o.AltKm, 0) {
		return fmt.Errorf("observer altitude is not finite")
	}
	if req.At.IsZero() {
		return fmt.Errorf("query instant is zero")
	}
	if !req.Metric.Valid() {
		return fmt.Errorf("unknown metric %q", req.Metric)
	}
	return nil
}
