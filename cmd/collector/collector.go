package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Bhupin123/Sismicity/internal/adapter/usgs"
	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

const (
	// produceChunk bounds a single WriteMessages call during backfills.
	produceChunk = 500

	// maxQuerySpan bounds one FDSN query. The service answers 400 once a query
	// matches more than 20000 events, which a multi-day window at low minimum
	// magnitude can exceed.
	maxQuerySpan = 24 * time.Hour
)

type fetcher interface {
	Fetch(ctx context.Context, start, end time.Time, minMagnitude float64) ([]domain.RawFeature, error)
}

type producer interface {
	Produce(ctx context.Context, features []domain.RawFeature) error
}

// collector polls the FDSN service and forwards every returned feature to the
// source topic. Re-sent features are harmless: the store deduplicates on the
// natural key.
type collector struct {
	fetcher      fetcher
	producer     producer
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
	interval     time.Duration
	daysBack     int
	minMagnitude float64

	// lastEnd is the end of the last successful poll window.
	lastEnd time.Time
}

// window returns the next query range. The first poll covers daysBack days;
// later polls start two intervals before the previous end, so events that
// USGS publishes late are still picked up.
func (c *collector) window(now time.Time) (time.Time, time.Time) {
	start := now.AddDate(0, 0, -c.daysBack)
	if !c.lastEnd.IsZero() {
		if resume := c.lastEnd.Add(-2 * c.interval); resume.After(start) {
			start = resume
		}
	}
	return start, now
}

// pollOnce covers the next window in slices of at most maxQuerySpan. Each
// forwarded slice advances lastEnd, so a failure part way through resumes from
// the last good slice on the next tick.
func (c *collector) pollOnce(ctx context.Context) error {
	start, end := c.window(c.clock.Now().UTC())

	total := 0
	for sliceStart := start; sliceStart.Before(end); {
		sliceEnd := sliceStart.Add(maxQuerySpan)
		if sliceEnd.After(end) {
			sliceEnd = end
		}

		features, err := c.fetcher.Fetch(ctx, sliceStart, sliceEnd, c.minMagnitude)
		if err != nil {
			return fmt.Errorf("fetch %s..%s: %w", sliceStart.Format(time.RFC3339), sliceEnd.Format(time.RFC3339), err)
		}
		if err := c.produce(ctx, features); err != nil {
			return err
		}

		c.lastEnd = sliceEnd
		total += len(features)
		sliceStart = sliceEnd
	}

	c.logger.Info("poll complete", "features", total, "start", start, "end", end)
	return nil
}

func (c *collector) produce(ctx context.Context, features []domain.RawFeature) error {
	for i := 0; i < len(features); i += produceChunk {
		chunk := features[i:min(i+produceChunk, len(features))]
		if err := c.producer.Produce(ctx, chunk); err != nil {
			return err
		}
		c.metrics.FeaturesProduced.Add(float64(len(chunk)))
	}
	return nil
}

// run polls immediately and then every interval until ctx is cancelled.
// A failed poll is logged and the same window is retried on the next tick.
func (c *collector) run(ctx context.Context) error {
	c.logger.Info("collector started",
		"interval", c.interval, "days_back", c.daysBack, "min_magnitude", c.minMagnitude)

	if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
		c.logger.Error("poll failed", "error", err)
	}

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			if err := c.pollOnce(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("poll failed", "error", err)
			}
		}
	}
}

// backfill forwards every feature of a saved FeatureCollection.
func (c *collector) backfill(ctx context.Context, r io.Reader) (int, error) {
	features, err := usgs.DecodeFeatureCollection(r)
	if err != nil {
		return 0, err
	}
	if err := c.produce(ctx, features); err != nil {
		return 0, err
	}
	return len(features), nil
}
