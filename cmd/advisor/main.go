package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/crop-advisor-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/crop-advisor-service/internal/adapter/kafka"
	"github.com/couchcryptid/crop-advisor-service/internal/adapter/mapbox"
	mqttadapter "github.com/couchcryptid/crop-advisor-service/internal/adapter/mqtt"
	"github.com/couchcryptid/crop-advisor-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/crop-advisor-service/internal/config"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/lru"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
	"github.com/couchcryptid/crop-advisor-service/internal/pipeline"
	"github.com/couchcryptid/crop-advisor-service/internal/storage"
)

// publisher is a pipeline.Publisher that holds a broker connection.
type publisher interface {
	pipeline.Publisher
	io.Closer
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.FromConfig(cfg), logger)
	if err != nil {
		logger.Error("failed to open crop store", "store", cfg.CropStore, "error", err)
		os.Exit(1)
	}

	seeded, err := storage.SeedPlaces(ctx, store.Places, cfg.Places)
	if err != nil {
		logger.Error("failed to seed places", "error", err)
		os.Exit(1)
	}
	logger.Info("places seeded", "configured", len(cfg.Places), "created", seeded)

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

	source := openmeteo.NewSource(openmeteo.Config{
		ForecastURL:  cfg.WeatherForecastURL,
		ArchiveURL:   cfg.WeatherArchiveURL,
		Timeout:      cfg.WeatherTimeout,
		ForecastDays: cfg.WeatherForecastDays,
		Scale:        cfg.Scale,
	}, geocoder, metrics, logger)
	weather := openmeteo.NewCachedSource(source, cfg.WeatherCacheSize, metrics, lru.WithTTL(cfg.WeatherCacheTTL))

	sink, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect recommendation sink", "sink", cfg.Sink, "error", err)
		os.Exit(1)
	}

	recommender := domain.NewRecommender(
		domain.WithBoundaryPolicy(cfg.BoundaryPolicy()),
		domain.WithForecastMidpoint(cfg.ForecastMidpoint),
		domain.WithWorkers(cfg.Workers),
	)

	p := pipeline.New(store.Places, store.Crops, weather, sink, recommender, logger, metrics, pipeline.Options{
		Interval:   cfg.Interval,
		Confidence: cfg.Confidence,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store.Crops, store.Places, p.Advisor(), metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start advisory pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := sink.Close(); err != nil {
		logger.Error("recommendation sink close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("crop store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (publisher, error) {
	switch cfg.Sink {
	case config.SinkKafka:
		logger.Info("recommendation sink: kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return kafkaadapter.NewWriter(cfg, logger), nil
	case config.SinkMQTT:
		pub := mqttadapter.NewPublisher(cfg, logger)
		if err := pub.Connect(ctx); err != nil {
			return nil, err
		}
		return pub, nil
	default:
		logger.Info("recommendation sink: log only")
		return nopCloser{pipeline.NewLogPublisher(logger)}, nil
	}
}

type nopCloser struct {
	*pipeline.LogPublisher
}

func (nopCloser) Close() error { return nil }
