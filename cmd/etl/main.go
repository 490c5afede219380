package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/geojson"
	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/sffd-incident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/sffd-incident-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/sffd-incident-etl/internal/config"
	"github.com/couchcryptid/sffd-incident-etl/internal/domain"
	"github.com/couchcryptid/sffd-incident-etl/internal/observability"
	"github.com/couchcryptid/sffd-incident-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var resolver domain.NeighborhoodResolver
	if cfg.NeighborhoodsGeoJSON != "" {
		boundaries, err := geojson.Load(cfg.NeighborhoodsGeoJSON, geojson.DefaultNameProperty)
		if err != nil {
			logger.Error("failed to load neighborhood boundaries", "path", cfg.NeighborhoodsGeoJSON, "error", err)
			os.Exit(1)
		}
		resolver = geojson.NewCachedResolver(boundaries, cfg.MapboxCacheSize, metrics)
		logger.Info("neighborhood boundaries loaded", "path", cfg.NeighborhoodsGeoJSON, "regions", len(boundaries.Regions()))
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(geocoder, resolver, cfg.Rules(), logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, func() any { return p.Stats() }, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "stats", p.Stats())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
