// Command diag ranks a catalog file against one or more observer sites
// without starting the HTTP service. Useful for checking a downloaded
// catalog and for comparing metrics offline:
//
//	diag -c sites.toml
//	diag -catalog active.json -lat 35.05 -lng -118.15
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wiseman/whatsoverhead-in-space/internal/nearest"
	"github.com/wiseman/whatsoverhead-in-space/internal/omm"
	"github.com/wiseman/whatsoverhead-in-space/internal/satcat"
)

func main() {
	var (
		config  = flag.String("c", "", "TOML configuration file")
		catalog = flag.String("catalog", "", "OMM JSON catalog file")
		lat     = flag.Float64("lat", 0, "observer latitude (degrees)")
		lng     = flag.Float64("lng", 0, "observer longitude (degrees)")
		alt     = flag.Float64("alt", 0, "observer altitude (km)")
		metric  = flag.String("metric", "surface", "ranking metric: surface or slant")
		limit   = flag.Int("limit", 5, "entries to print per site")
	)
	flag.Parse()

	setting := Setting{
		Catalog: *catalog,
		Metric:  *metric,
		Limit:   *limit,
		Sites:   []Site{{Label: "observer", Lat: *lat, Lng: *lng, Alt: *alt}},
	}
	if *config != "" {
		var err error
		setting, err = Configure(*config)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if setting.Metric == "" {
			setting.Metric = *metric
		}
		if setting.Limit == 0 {
			setting.Limit = *limit
		}
	}
	if setting.Catalog == "" {
		fmt.Fprintln(os.Stderr, "no catalog file given")
		os.Exit(2)
	}

	if err := run(setting); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(s Setting) error {
	data, err := os.ReadFile(s.Catalog)
	if err != nil {
		return err
	}
	sats, rejected, err := omm.Decode(data)
	if err != nil {
		return err
	}

	var table *satcat.Table
	if s.Satcat != "" {
		f, err := os.Open(s.Satcat)
		if err != nil {
			return err
		}
		table, err = satcat.Parse(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	at := s.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	cat := omm.NewCatalog(s.Catalog, time.Now().UTC(), sats)
	cat.Rejected = rejected

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	engine := nearest.NewEngine(omm.NewStore(), table, 0, logger)

	fmt.Printf("catalog %s: %d satellites, %d rejected\n", s.Catalog, len(sats), len(rejected))

	for _, site := range s.Sites {
		req := nearest.Request{
			Observer: nearest.Observer{LatDeg: site.Lat, LonDeg: site.Lng, AltKm: site.Alt},
			At:       at,
			Metric:   nearest.Metric(s.Metric),
			Limit:    s.Limit,
		}
		result, err := engine.QueryCatalog(context.Background(), cat, req)
		if err != nil {
			return fmt.Errorf("site %s: %w", site.Label, err)
		}

		fmt.Printf("\n%s (%.4f, %.4f) at %s, metric %s:\n",
			site.Label, site.Lat, site.Lng, result.At.Format(time.RFC3339), result.Metric)
		for i, sat := range result.Ranking {
			fmt.Printf("%3d. %-24s #%-6d %9.1f km  %s  alt %.0f km  %s\n",
				i+1, sat.Name, sat.NoradID, sat.DistanceKm, sat.Cardinal, sat.AltKm, sat.OrbitClass)
		}
		fmt.Printf("ranked %d, failed %d\n", len(result.Ranking), len(result.Failures))
	}
	return nil
}
