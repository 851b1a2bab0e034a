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

	httpadapter "github.com/couchcryptid/cityops-feeds-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/cityops-feeds-service/internal/adapter/kafka"
	"github.com/couchcryptid/cityops-feeds-service/internal/adapter/mapbox"
	"github.com/couchcryptid/cityops-feeds-service/internal/aggregator"
	"github.com/couchcryptid/cityops-feeds-service/internal/config"
	"github.com/couchcryptid/cityops-feeds-service/internal/fetcher"
	"github.com/couchcryptid/cityops-feeds-service/internal/observability"
	"github.com/couchcryptid/cityops-feeds-service/internal/parser"
)

const userAgent = "cityops-feeds-service/1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	opts := aggregator.Options{
		FeedTimeout:     cfg.FeedTimeout,
		Retries:         cfg.FeedRetries,
		MinInterval:     cfg.ReloadMinInterval,
		SettleDelay:     cfg.ReloadSettleDelay,
		RefreshInterval: cfg.RefreshInterval,
		Locale:          cfg.DefaultLocale,
		Clock:           clock,
	}

	// Geocoding enrichment is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		opts.Enricher = aggregator.NewGeocodingEnricher(geocoder, cfg.MapboxRegion, logger)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var publisher *kafkaadapter.SnapshotPublisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewSnapshotPublisher(cfg, logger)
		opts.Publisher = publisher
		logger.Info("kafka snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSnapshotTopic)
	}

	coord, err := aggregator.New(cfg.Feeds, fetcher.New(userAgent, logger), parser.New(cfg.ImageBaseURL), logger, metrics, opts)
	if err != nil {
		logger.Error("failed to build coordinator", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, coord, clock, cfg.Location, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	coord.FetchIfNeeded()
	go func() {
		if err := coord.Start(ctx); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	coord.Close()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
