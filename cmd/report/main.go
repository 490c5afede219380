// Command report renders the analysis charts, tabbed index page and summary
// workbook from a cleaned incident CSV.
//
// Usage:
//
//	go run ./cmd/report -in data/clean/incidents.csv -out reports
//	go run ./cmd/report -in data/clean/incidents.csv -geojson data/neighborhoods.geojson -out reports
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/geojson"
	"github.com/couchcryptid/sffd-incident-etl/internal/config"
	"github.com/couchcryptid/sffd-incident-etl/internal/observability"
	"github.com/couchcryptid/sffd-incident-etl/internal/report"
)

func main() {
	if err := run(); err != nil {
		slog.Error("report failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	in := flag.String("in", "", "cleaned incident CSV")
	out := flag.String("out", "reports", "output directory")
	boundaries := flag.String("geojson", "", "neighborhood boundaries for the maps (default NEIGHBORHOODS_GEOJSON)")
	nameProp := flag.String("name-property", geojson.DefaultNameProperty, "GeoJSON feature property holding the neighborhood name")
	defaults := report.DefaultOptions("")
	from := flag.Int("from", defaults.FromYear, "first year for the calendar and box plot")
	to := flag.Int("to", defaults.ToYear, "year after the last one for the calendar and box plot")
	bins := flag.Int("bins", defaults.Bins, "histogram bins")
	lines := flag.Int("lines", defaults.LineCategories, "neighborhoods shown on the line plot")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		return errors.New("missing required flag: -in")
	}
	if *from >= *to {
		return fmt.Errorf("-from %d must be before -to %d", *from, *to)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	incidents, err := csvfile.LoadIncidents(*in)
	if err != nil {
		return err
	}
	logger.Info("incidents loaded", "path", *in, "count", len(incidents))

	opts := report.DefaultOptions(*out)
	opts.FromYear, opts.ToYear = *from, *to
	opts.Bins = *bins
	opts.LineCategories = *lines

	path := *boundaries
	if path == "" {
		path = cfg.NeighborhoodsGeoJSON
	}
	if path != "" {
		b, err := geojson.Load(path, *nameProp)
		if err != nil {
			return err
		}
		opts.Boundaries = b
		logger.Info("neighborhood boundaries loaded", "path", path, "regions", len(b.Regions()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := report.Generate(ctx, incidents, opts, logger)
	if err != nil {
		return err
	}
	logger.Info("report complete",
		"run_id", m.RunID,
		"out", *out,
		"charts", len(m.Charts),
		"skipped", len(m.Skipped),
	)
	return nil
}
