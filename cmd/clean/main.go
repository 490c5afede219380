// Command clean turns a raw SFFD calls-for-service export into the cleaned
// incident CSV. With -watch it keeps running and cleans every export that
// lands in the directory; with -schedule it re-cleans -in on a cron spec.
//
// Usage:
//
//	go run ./cmd/clean -in data/raw/Fire_Department_Calls_for_Service.csv -out data/clean/incidents.csv
//	go run ./cmd/clean -watch data/raw -out-dir data/clean
//	go run ./cmd/clean -in data/raw/export.csv -out data/clean/incidents.csv -schedule "@every 24h"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/geojson"
	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/watch"
	"github.com/couchcryptid/sffd-incident-etl/internal/config"
	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
	"github.com/couchcryptid/sffd-incident-etl/internal/observability"
	"github.com/couchcryptid/sffd-incident-etl/internal/pipeline"
)

const cleanSuffix = "_clean.csv"

func main() {
	if err := run(); err != nil {
		slog.Error("clean failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	in := flag.String("in", "", "raw export CSV to clean")
	out := flag.String("out", "", "cleaned CSV output path")
	watchDir := flag.String("watch", "", "directory to watch for new raw exports")
	outDir := flag.String("out-dir", "", "output directory for watched exports")
	schedule := flag.String("schedule", "", "cron spec for re-cleaning -in (e.g. \"@every 24h\")")
	debounce := flag.Duration("debounce", 2*time.Second, "quiet period before a watched file is cleaned")
	flag.Parse()

	if *watchDir == "" && (*in == "" || *out == "") {
		flag.Usage()
		return errors.New("missing required flags: -in and -out, or -watch")
	}
	if *watchDir != "" && *outDir == "" {
		flag.Usage()
		return errors.New("-watch requires -out-dir")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	transformer, err := newTransformer(cfg, metrics, logger)
	if err != nil {
		return err
	}
	c := &cleaner{transformer: transformer, batchSize: cfg.BatchSize, metrics: metrics, logger: logger}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *watchDir != "":
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		w, err := watch.NewWatcher(*watchDir, *debounce, logger)
		if err != nil {
			return err
		}
		defer w.Close()
		logger.Info("watching for exports", "dir", *watchDir, "out_dir", *outDir)
		return w.Run(ctx, func(ctx context.Context, path string) {
			if strings.HasSuffix(path, cleanSuffix) {
				return
			}
			c.logRun(ctx, path, cleanedPath(*outDir, path))
		})
	case *schedule != "":
		c.logRun(ctx, *in, *out)
		return watch.Schedule(ctx, *schedule, func(ctx context.Context) {
			c.logRun(ctx, *in, *out)
		}, logger)
	default:
		stats, err := c.cleanFile(ctx, *in, *out)
		if err != nil {
			return err
		}
		logger.Info("clean complete", "in", *in, "out", *out, "stats", stats)
		return nil
	}
}

func newTransformer(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*pipeline.IncidentTransformer, error) {
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
	}
	var resolver domain.NeighborhoodResolver
	if cfg.NeighborhoodsGeoJSON != "" {
		b, err := geojson.Load(cfg.NeighborhoodsGeoJSON, geojson.DefaultNameProperty)
		if err != nil {
			return nil, err
		}
		resolver = geojson.NewCachedResolver(b, cfg.MapboxCacheSize, metrics)
	}
	return pipeline.NewTransformer(geocoder, resolver, cfg.Rules(), logger), nil
}

type cleaner struct {
	transformer pipeline.Transformer
	batchSize   int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

func (c *cleaner) logRun(ctx context.Context, in, out string) {
	stats, err := c.cleanFile(ctx, in, out)
	if err != nil {
		c.logger.Error("clean failed", "in", in, "error", err)
		return
	}
	c.logger.Info("clean complete", "in", in, "out", out, "stats", stats)
}

// cleanFile runs the pipeline from the raw CSV at in to a cleaned CSV at out.
// The output is written to a temporary file and renamed on success.
func (c *cleaner) cleanFile(ctx context.Context, in, out string) (pipeline.Stats, error) {
	reader, err := csvfile.Open(in)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer reader.Close()

	tmp := out + ".tmp"
	writer, err := csvfile.Create(tmp)
	if err != nil {
		return pipeline.Stats{}, err
	}

	p := pipeline.New(reader, c.transformer, writer, c.logger, c.metrics, c.batchSize)
	runErr := p.Run(ctx)
	closeErr := writer.Close()
	if err := errors.Join(runErr, closeErr, ctx.Err()); err != nil {
		_ = os.Remove(tmp)
		return p.Stats(), fmt.Errorf("clean %s: %w", in, err)
	}
	if err := os.Rename(tmp, out); err != nil {
		return p.Stats(), fmt.Errorf("clean %s: %w", in, err)
	}
	return p.Stats(), nil
}

// cleanedPath maps data/raw/export.csv to <outDir>/export_clean.csv.
func cleanedPath(outDir, in string) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return filepath.Join(outDir, base+cleanSuffix)
}
