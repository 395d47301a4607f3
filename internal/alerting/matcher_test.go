package alerting

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/geo"
)

func TestMatch(t *testing.T) {
	at := time.Date(2025, 3, 28, 6, 20, 0, 0, time.UTC)
	kathmandu := domain.Subscription{
		ID: uuid.New(), Email: "ktm@example.com",
		Latitude: 27.7172, Longitude: 85.3240, RadiusKm: 200, MinMagnitude: 4.0, Active: true,
	}
	tokyo := domain.Subscription{
		ID: uuid.New(), Email: "tyo@example.com",
		Latitude: 35.6762, Longitude: 139.6503, RadiusKm: 500, MinMagnitude: 3.0, Active: true,
	}
	inactive := kathmandu
	inactive.ID = uuid.New()
	inactive.Active = false

	events := []domain.Event{
		{ID: "near-strong", OccurredAt: at, Magnitude: 5.6, DepthKm: 12, Latitude: 28.2, Longitude: 84.7, Place: "Gorkha, Nepal"},
		{ID: "near-weak", OccurredAt: at, Magnitude: 3.2, Latitude: 27.8, Longitude: 85.4, Place: "Kathmandu"},
		{ID: "far", OccurredAt: at, Magnitude: 7.1, Latitude: -33.4, Longitude: -70.6, Place: "Santiago"},
	}

	got := Match(events, []domain.Subscription{kathmandu, tokyo, inactive})

	require.Len(t, got, 1)
	n := got[0]
	assert.Equal(t, kathmandu.ID, n.SubscriptionID)
	assert.Equal(t, "ktm@example.com", n.Email)
	assert.Equal(t, "near-strong", n.EventID)
	assert.Equal(t, "Gorkha, Nepal", n.Place)
	assert.Equal(t, 12.0, n.DepthKm)
	assert.Equal(t, at, n.OccurredAt)
	assert.Equal(t, domain.SeverityHigh, n.Severity)
	assert.InDelta(t, 82, n.DistanceKm, 2)
}

func TestMatch_RadiusIsInclusive(t *testing.T) {
	sub := domain.Subscription{ID: uuid.New(), Latitude: 0, Longitude: 0, MinMagnitude: 2, Active: true}
	event := domain.Event{ID: "e", Magnitude: 2, Latitude: 0, Longitude: 1}
	sub.RadiusKm = geo.Distance(geo.Point{}, geo.Point{Lat: 0, Lon: 1})

	assert.Len(t, Match([]domain.Event{event}, []domain.Subscription{sub}), 1)

	sub.RadiusKm = 111.19
	assert.Empty(t, Match([]domain.Event{event}, []domain.Subscription{sub}))
}

func TestMatch_EventOnRadiusEdge(t *testing.T) {
	origin := geo.Point{Lat: 27.7172, Lon: 85.324}
	kmPerDegree := geo.EarthRadiusKm * math.Pi / 180

	var dropped []int
	for r := 1; r <= 500; r++ {
		sub := domain.Subscription{
			ID: uuid.New(), Latitude: origin.Lat, Longitude: origin.Lon,
			RadiusKm: float64(r), MinMagnitude: 2, Active: true,
		}
		edge := domain.Event{ID: "edge", Magnitude: 4, Latitude: origin.Lat + float64(r)/kmPerDegree, Longitude: origin.Lon}
		beyond := domain.Event{ID: "beyond", Magnitude: 4, Latitude: origin.Lat + (float64(r)+0.001)/kmPerDegree, Longitude: origin.Lon}

		got := Match([]domain.Event{edge, beyond}, []domain.Subscription{sub})
		if len(got) != 1 || got[0].EventID != "edge" {
			dropped = append(dropped, r)
		}
	}
	assert.Empty(t, dropped, "radii where the edge event was not matched alone")
}

func TestMatch_NoSubscriptions(t *testing.T) {
	assert.Empty(t, Match([]domain.Event{{ID: "e", Magnitude: 9}}, nil))
}
