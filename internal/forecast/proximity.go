package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/geo"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

// ProximityAlert is one recent event near the queried point.
type ProximityAlert struct {
	OccurredAt time.Time       `json:"datetime"`
	Magnitude  float64         `json:"magnitude"`
	DepthKm    float64         `json:"depth"`
	Place      string          `json:"location"`
	DistanceKm float64         `json:"distance_km"`
	HoursAgo   float64         `json:"hours_ago"`
	Severity   domain.Severity `json:"severity"`
	Latitude   float64         `json:"lat"`
	Longitude  float64         `json:"lon"`
}

// Alerter answers proximity queries against a fresh time-bounded load.
type Alerter struct {
	loader  *Loader
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAlerter creates an Alerter reading recent events through loader.
func NewAlerter(loader *Loader, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Alerter {
	return &Alerter{loader: loader, clock: clock, logger: logger, metrics: metrics}
}

// Check returns events from the last hoursBack hours within radiusKm of
// (lat, lon), strongest first. When the source is offline it logs the failure
// and returns an empty list together with an error wrapping ErrDataUnavailable,
// so callers can degrade instead of failing the request.
func (a *Alerter) Check(ctx context.Context, lat, lon, radiusKm float64, hoursBack int) ([]ProximityAlert, error) {
	origin := geo.Point{Lat: lat, Lon: lon}
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if !(radiusKm > 0) || math.IsInf(radiusKm, 1) {
		return nil, fmt.Errorf("%w: radius_km must be positive, got %v", ErrInvalidParameter, radiusKm)
	}
	if hoursBack <= 0 {
		return nil, fmt.Errorf("%w: hours_back must be positive, got %d", ErrInvalidParameter, hoursBack)
	}

	a.metrics.ProximityChecks.Inc()
	w, err := a.loader.LoadHours(ctx, hoursBack)
	if err != nil {
		a.metrics.DataUnavailable.WithLabelValues("proximity").Inc()
		a.logger.Warn("proximity check degraded, event source unavailable",
			"lat", lat, "lon", lon, "radius_km", radiusKm, "error", err)
		return []ProximityAlert{}, err
	}
	return Evaluate(w.Events, origin, radiusKm, a.clock.Now()), nil
}

// Evaluate filters events to those within radiusKm of origin and classifies
// them. Inclusion and ordering use unrounded values.
func Evaluate(events []domain.Event, origin geo.Point, radiusKm float64, now time.Time) []ProximityAlert {
	type hit struct {
		alert ProximityAlert
		mag   float64
	}
	hits := make([]hit, 0)
	for _, e := range events {
		d, ok := geo.Within(origin, geo.Point{Lat: e.Latitude, Lon: e.Longitude}, radiusKm)
		if !ok {
			continue
		}
		hoursAgo := math.Max(0, now.Sub(e.OccurredAt).Hours())
		hits = append(hits, hit{
			mag: e.Magnitude,
			alert: ProximityAlert{
				OccurredAt: e.OccurredAt.UTC(),
				Magnitude:  round(e.Magnitude, 1),
				DepthKm:    round(e.DepthKm, 1),
				Place:      e.Place,
				DistanceKm: round(d, 1),
				HoursAgo:   round(hoursAgo, 1),
				Severity:   domain.SeverityFor(e.Magnitude),
				Latitude:   round(e.Latitude, 4),
				Longitude:  round(e.Longitude, 4),
			},
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].mag > hits[j].mag })

	alerts := make([]ProximityAlert, len(hits))
	for i, h := range hits {
		alerts[i] = h.alert
	}
	return alerts
}
