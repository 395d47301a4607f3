package forecast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Bhupin123/Sismicity/internal/cluster"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

// snapshot is an immutable trained state; readers hold it without the lock.
type snapshot struct {
	window    Window
	rates     RateTable
	summary   Summary
	trainedAt time.Time
}

// Schedule configures periodic retraining.
type Schedule struct {
	LookbackDays int
	Interval     time.Duration
	LoadTimeout  time.Duration
}

// Engine owns a trained window and serves forecasts, hotspots, summaries and
// proximity checks. Train replaces the snapshot under a write lock while
// queries read the current one, so a slow reload never blocks readers.
type Engine struct {
	loader   *Loader
	detector *Detector
	alerter  *Alerter
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu   sync.RWMutex
	snap *snapshot
}

// NewEngine wires the loader, detector and alerter over one source. A nil
// clusterer selects the default DBSCAN.
func NewEngine(source EventSource, clusterer cluster.Clusterer, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	loader := NewLoader(source, clock)
	return &Engine{
		loader:   loader,
		detector: NewDetector(clusterer, clock),
		alerter:  NewAlerter(loader, clock, logger, metrics),
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Train loads the last lookbackDays days and re-estimates rates. On failure the
// previous snapshot, if any, stays in service.
func (e *Engine) Train(ctx context.Context, lookbackDays int) error {
	start := e.clock.Now()
	w, err := e.loader.Load(ctx, lookbackDays)
	if err != nil {
		e.metrics.TrainFailures.Inc()
		e.metrics.DataUnavailable.WithLabelValues("engine").Inc()
		return err
	}

	next := &snapshot{
		window:    w,
		rates:     EstimateRates(w),
		summary:   Summarize(w),
		trainedAt: w.LoadedAt,
	}

	e.mu.Lock()
	e.snap = next
	e.mu.Unlock()

	e.metrics.WindowEvents.Set(float64(w.Len()))
	e.metrics.TrainDuration.Observe(e.clock.Since(start).Seconds())
	e.logger.Info("engine trained",
		"lookback_days", lookbackDays,
		"events", w.Len(),
		"bands", len(next.rates),
	)
	return nil
}

func (e *Engine) current() (*snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snap == nil {
		return nil, ErrNotTrained
	}
	return e.snap, nil
}

// Forecast projects the trained rates over horizonDays.
func (e *Engine) Forecast(horizonDays int) ([]ForecastEntry, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	return Forecast(s.rates, horizonDays)
}

// Rates returns a copy of the trained rate table.
func (e *Engine) Rates() (RateTable, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	out := make(RateTable, len(s.rates))
	for b, r := range s.rates {
		out[b] = r
	}
	return out, nil
}

// Hotspots clusters the trained window.
func (e *Engine) Hotspots(epsKm float64, minSamples int) ([]Hotspot, error) {
	s, err := e.current()
	if err != nil {
		return nil, err
	}
	hotspots, err := e.detector.Detect(s.window, epsKm, minSamples)
	if err != nil {
		return nil, err
	}
	e.metrics.HotspotsDetected.Observe(float64(len(hotspots)))
	return hotspots, nil
}

// Summary returns statistics of the trained window.
func (e *Engine) Summary() (Summary, error) {
	s, err := e.current()
	if err != nil {
		return Summary{}, err
	}
	return s.summary, nil
}

// Proximity runs a proximity check against a fresh load. It does not need a
// trained snapshot.
func (e *Engine) Proximity(ctx context.Context, lat, lon, radiusKm float64, hoursBack int) ([]ProximityAlert, error) {
	return e.alerter.Check(ctx, lat, lon, radiusKm, hoursBack)
}

// TrainedAt reports when the current snapshot was loaded.
func (e *Engine) TrainedAt() (time.Time, bool) {
	s, err := e.current()
	if err != nil {
		return time.Time{}, false
	}
	return s.trainedAt, true
}

// CheckReadiness returns nil once a snapshot is in service.
func (e *Engine) CheckReadiness(_ context.Context) error {
	_, err := e.current()
	return err
}

// Run trains immediately and then every s.Interval until ctx is cancelled.
// Failed cycles are logged and retried on the next tick.
func (e *Engine) Run(ctx context.Context, s Schedule) error {
	e.logger.Info("engine retrain loop started",
		"lookback_days", s.LookbackDays, "interval", s.Interval)

	e.trainOnce(ctx, s)

	ticker := e.clock.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine retrain loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			e.trainOnce(ctx, s)
		}
	}
}

func (e *Engine) trainOnce(ctx context.Context, s Schedule) {
	if s.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.LoadTimeout)
		defer cancel()
	}
	if err := e.Train(ctx, s.LookbackDays); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		_, trained := e.TrainedAt()
		e.logger.Error("engine training failed", "error", err, "serving_previous", trained)
	}
}
