package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/geo"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

// degreesFor converts a distance along a meridian to degrees of latitude.
func degreesFor(km float64) float64 {
	return km / (geo.EarthRadiusKm * math.Pi / 180)
}

func newTestAlerter(src EventSource) *Alerter {
	clock := clockwork.NewFakeClockAt(testNow)
	return NewAlerter(NewLoader(src, clock), clock, discardLogger(), observability.NewMetricsForTesting())
}

func TestEvaluate_BoundaryInclusion(t *testing.T) {
	origin := geo.Point{Lat: 10, Lon: 20}
	onEdge := quake(testNow.Add(-time.Hour), 6.2, 10+degreesFor(100), 20, "edge")
	outside := quake(testNow.Add(-time.Hour), 7.0, 10+degreesFor(100.001), 20, "outside")

	alerts := Evaluate([]domain.Event{onEdge, outside}, origin, 100, testNow)

	require.Len(t, alerts, 1)
	assert.Equal(t, "edge", alerts[0].Place)
	assert.Equal(t, 100.0, alerts[0].DistanceKm)
	assert.Equal(t, domain.SeveritySevere, alerts[0].Severity)
	assert.Equal(t, 1.0, alerts[0].HoursAgo)
}

func TestEvaluate_SortedByMagnitude(t *testing.T) {
	origin := geo.Point{Lat: 0, Lon: 0}
	events := []domain.Event{
		quake(testNow.Add(-3*time.Hour), 3.1, 0.1, 0, "small"),
		quake(testNow.Add(-2*time.Hour), 5.76, 0.2, 0, "big"),
		quake(testNow.Add(-1*time.Hour), 5.74, 0.3, 0, "second"),
		quake(testNow.Add(-4*time.Hour), 7.3, 5, 0, "far"),
	}

	alerts := Evaluate(events, origin, 50, testNow)

	require.Len(t, alerts, 3)
	assert.Equal(t, []string{"big", "second", "small"}, []string{alerts[0].Place, alerts[1].Place, alerts[2].Place})
	// Rounded to the same value, ordered by the unrounded one.
	assert.Equal(t, 5.8, alerts[0].Magnitude)
	assert.Equal(t, 5.7, alerts[1].Magnitude)
	assert.Equal(t, domain.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, domain.SeverityLow, alerts[2].Severity)
}

func TestEvaluate_Rounding(t *testing.T) {
	e := quake(testNow.Add(-90*time.Minute), 4.26, 12.345678, -98.765432, "p")
	e.DepthKm = 33.33

	alerts := Evaluate([]domain.Event{e}, geo.Point{Lat: 12.3, Lon: -98.7}, 100, testNow)

	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, 4.3, a.Magnitude)
	assert.Equal(t, 33.3, a.DepthKm)
	assert.Equal(t, 1.5, a.HoursAgo)
	assert.Equal(t, 12.3457, a.Latitude)
	assert.Equal(t, -98.7654, a.Longitude)
	assert.Equal(t, domain.SeverityModerate, a.Severity)
}

func TestAlerter_Check(t *testing.T) {
	src := &fakeSource{events: []domain.Event{
		quake(testNow.Add(-2*time.Hour), 4.5, 27.7, 85.3, "Kathmandu"),
		quake(testNow.Add(-30*time.Hour), 6.5, 27.7, 85.3, "too old"),
	}}

	alerts, err := newTestAlerter(src).Check(context.Background(), 27.7, 85.3, 100, 24)

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Kathmandu", alerts[0].Place)
	assert.Equal(t, testNow.Add(-24*time.Hour), src.since)
}

func TestAlerter_Check_SourceOffline(t *testing.T) {
	src := &fakeSource{err: errors.New("dial tcp: connection refused")}

	alerts, err := newTestAlerter(src).Check(context.Background(), 0, 0, 100, 24)

	require.ErrorIs(t, err, ErrDataUnavailable)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestAlerter_Check_InvalidParameters(t *testing.T) {
	a := newTestAlerter(&fakeSource{})
	tests := []struct {
		name     string
		lat, lon float64
		radius   float64
		hours    int
	}{
		{"zero radius", 0, 0, 0, 24},
		{"negative radius", 0, 0, -5, 24},
		{"nan radius", 0, 0, math.NaN(), 24},
		{"zero hours", 0, 0, 100, 0},
		{"bad latitude", 91, 0, 100, 24},
		{"bad longitude", 0, -181, 100, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Check(context.Background(), tt.lat, tt.lon, tt.radius, tt.hours)
			require.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}
