// Package alerting matches newly ingested events against watched locations and
// builds the notification payloads handed to the delivery service.
package alerting

import (
	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/geo"
)

// Match returns one notification per (event, active subscription) pair where the
// event reaches the subscription's minimum magnitude and lies within its radius.
// Output follows event order, then subscription order.
func Match(events []domain.Event, subs []domain.Subscription) []domain.Notification {
	var out []domain.Notification
	for _, e := range events {
		at := geo.Point{Lat: e.Latitude, Lon: e.Longitude}
		for _, s := range subs {
			if !s.Active || e.Magnitude < s.MinMagnitude {
				continue
			}
			d, ok := geo.Within(geo.Point{Lat: s.Latitude, Lon: s.Longitude}, at, s.RadiusKm)
			if !ok {
				continue
			}
			out = append(out, domain.Notification{
				SubscriptionID: s.ID,
				Email:          s.Email,
				EventID:        e.ID,
				Magnitude:      e.Magnitude,
				Place:          e.Place,
				DepthKm:        e.DepthKm,
				OccurredAt:     e.OccurredAt,
				DistanceKm:     d,
				Severity:       domain.SeverityFor(e.Magnitude),
			})
		}
	}
	return out
}
