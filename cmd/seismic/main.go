// Command seismic runs the ingestion pipeline, the analysis engine and the
// HTTP API in one process.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/Bhupin123/Sismicity/internal/adapter/http"
	kafkaadapter "github.com/Bhupin123/Sismicity/internal/adapter/kafka"
	"github.com/Bhupin123/Sismicity/internal/adapter/mapbox"
	"github.com/Bhupin123/Sismicity/internal/adapter/postgres"
	redisadapter "github.com/Bhupin123/Sismicity/internal/adapter/redis"
	"github.com/Bhupin123/Sismicity/internal/config"
	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/forecast"
	"github.com/Bhupin123/Sismicity/internal/observability"
	"github.com/Bhupin123/Sismicity/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	// The live feed is optional: without Redis, ingestion and analysis still run.
	var live *redisadapter.LiveChannel
	if redisClient, err := redisadapter.Connect(ctx, cfg.RedisURL); err != nil {
		logger.Warn("redis unavailable, live feed disabled", "error", err)
	} else {
		defer redisClient.Close()
		live = redisadapter.NewLiveChannel(redisClient, cfg.RedisLiveChannel, logger)
		logger.Info("redis connected", "channel", cfg.RedisLiveChannel)
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	notifier := kafkaadapter.NewNotificationWriter(cfg, logger)
	transformer := pipeline.NewTransformer(geocoder, logger)

	// A nil *LiveChannel must not become a non-nil interface.
	var livePub pipeline.LivePublisher
	var liveSub httpadapter.LiveSubscriber
	if live != nil {
		livePub, liveSub = live, live
	}
	ingestor := pipeline.NewIngestor(db, notifier, livePub, logger, metrics)
	p := pipeline.New(reader, transformer, ingestor, logger, metrics, cfg.BatchSize)

	engine := forecast.NewEngine(db, nil, clockwork.NewRealClock(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr,
		httpadapter.AllReady(db, engine, p),
		httpadapter.Backends{Analyzer: engine, Catalog: db, Latest: db, Live: liveSub},
		logger, metrics)

	var wg sync.WaitGroup

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start ingestion pipeline.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	// Start periodic engine retraining.
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := engine.Run(ctx, forecast.Schedule{
			LookbackDays: cfg.LookbackDays,
			Interval:     cfg.RetrainInterval,
			LoadTimeout:  cfg.LoadTimeout,
		})
		if err != nil {
			logger.Error("engine error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := notifier.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
