// Command collector polls the USGS FDSN event service and publishes raw
// GeoJSON features to the source topic consumed by the seismic service.
//
// Usage:
//
//	go run ./cmd/collector               # poll every USGS_POLL_INTERVAL
//	go run ./cmd/collector -once         # single poll, then exit
//	go run ./cmd/collector -file q.json  # backfill a saved FeatureCollection
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	kafkaadapter "github.com/Bhupin123/Sismicity/internal/adapter/kafka"
	"github.com/Bhupin123/Sismicity/internal/adapter/usgs"
	"github.com/Bhupin123/Sismicity/internal/config"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

const fetchTimeout = 60 * time.Second

func main() {
	file := flag.String("file", "", "backfill from a saved GeoJSON FeatureCollection and exit")
	once := flag.Bool("once", false, "poll once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	producer := kafkaadapter.NewFeatureProducer(cfg)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Error("kafka producer close error", "error", err)
		}
	}()

	c := &collector{
		fetcher:      usgs.NewClient(cfg.USGSBaseURL, fetchTimeout, logger, metrics),
		producer:     producer,
		clock:        clockwork.NewRealClock(),
		logger:       logger,
		metrics:      metrics,
		interval:     cfg.USGSPollInterval,
		daysBack:     cfg.USGSDaysBack,
		minMagnitude: cfg.USGSMinMagnitude,
	}

	switch {
	case *file != "":
		f, err := os.Open(*file)
		if err != nil {
			logger.Error("open backfill file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		n, err := c.backfill(ctx, f)
		if err != nil {
			logger.Error("backfill failed", "error", err, "file", *file)
			os.Exit(1)
		}
		logger.Info("backfill complete", "features", n, "file", *file)
	case *once:
		if err := c.pollOnce(ctx); err != nil {
			logger.Error("poll failed", "error", err)
			os.Exit(1)
		}
	default:
		if err := c.run(ctx); err != nil {
			logger.Error("collector error", "error", err)
		}
	}
}
