package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/riverwatch/station-engine/internal/adapter/coordcache"
	httpadapter "github.com/riverwatch/station-engine/internal/adapter/http"
	"github.com/riverwatch/station-engine/internal/adapter/hydro"
	kafkaadapter "github.com/riverwatch/station-engine/internal/adapter/kafka"
	"github.com/riverwatch/station-engine/internal/adapter/nominatim"
	"github.com/riverwatch/station-engine/internal/config"
	"github.com/riverwatch/station-engine/internal/domain"
	"github.com/riverwatch/station-engine/internal/observability"
	"github.com/riverwatch/station-engine/internal/pipeline"
	"github.com/riverwatch/station-engine/internal/resolver"
	"github.com/riverwatch/station-engine/internal/staticdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	thresholds, err := staticThresholds(cfg, logger)
	if err != nil {
		logger.Error("failed to load threshold table", "error", err)
		os.Exit(1)
	}
	coordinates, err := staticCoordinates(cfg, logger)
	if err != nil {
		logger.Error("failed to load coordinate table", "error", err)
		os.Exit(1)
	}

	cache, err := coordcache.Open(cfg.CoordCachePath)
	if err != nil {
		logger.Error("failed to open coordinate cache", "path", cfg.CoordCachePath, "error", err)
		os.Exit(1)
	}
	defer cache.Close() //nolint:errcheck

	// Geocoding is feature-flagged; without it the cascade ends at the
	// country-centroid default.
	var geocoder domain.Geocoder
	if cfg.GeocodeEnabled {
		client := nominatim.NewClient(cfg.GeocodeURL, cfg.GeocodeTimeout, logger)
		geocoder = nominatim.NewCachedGeocoder(client, cfg.GeocodeCacheSize)
		logger.Info("geocoding enabled",
			"url", cfg.GeocodeURL,
			"batch_size", cfg.GeocodeBatchSize,
			"batch_delay", cfg.GeocodeBatchDelay,
		)
	} else {
		logger.Info("geocoding disabled")
	}

	coords := resolver.New(coordinates, cache, geocoder, clockwork.NewRealClock(), logger, metrics, resolver.Options{
		Country:    cfg.GeocodeCountry,
		BatchSize:  cfg.GeocodeBatchSize,
		BatchDelay: cfg.GeocodeBatchDelay,
	})

	fetcher := hydro.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout, logger)

	var sink pipeline.SnapshotPublisher
	var sinkWriter *kafkaadapter.Writer
	if cfg.SinkEnabled() {
		sinkWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		sink = sinkWriter
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	engine := pipeline.New(fetcher, thresholds, coords, sink, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// First refresh at startup, then on the configured schedule.
	go func() {
		if err := engine.Refresh(ctx); err != nil {
			logger.Error("initial refresh failed", "error", err)
		}
	}()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RefreshSchedule, func() {
		if err := engine.Refresh(ctx); err != nil {
			logger.Error("scheduled refresh failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid refresh schedule", "schedule", cfg.RefreshSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	<-scheduler.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if sinkWriter != nil {
		if err := sinkWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func staticThresholds(cfg *config.Config, logger *slog.Logger) (*domain.ThresholdTable, error) {
	t, err := staticdata.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		return nil, err
	}
	logger.Info("threshold table loaded", "records", t.Len(), "path", pathOrEmbedded(cfg.ThresholdsPath))
	return t, nil
}

func staticCoordinates(cfg *config.Config, logger *slog.Logger) (resolver.StaticTable, error) {
	t, err := staticdata.LoadCoordinates(cfg.CoordinatesPath)
	if err != nil {
		return nil, err
	}
	logger.Info("coordinate table loaded", "entries", t.Len(), "path", pathOrEmbedded(cfg.CoordinatesPath))
	return t, nil
}

func pathOrEmbedded(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
