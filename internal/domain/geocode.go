package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding fills the place label of events that arrived without one.
// If geocoder is nil or geocoding fails, the event keeps its "Unknown" label and
// GeoSource records what happened (graceful degradation).
func EnrichWithGeocoding(ctx context.Context, event Event, geocoder Geocoder, logger *slog.Logger) Event {
	if geocoder == nil {
		return event
	}
	if event.Place != "" && event.Place != UnknownPlace {
		event.GeoSource = "original"
		return event
	}

	result, err := geocoder.ReverseGeocode(ctx, event.Latitude, event.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", event.ID,
			"lat", event.Latitude,
			"lon", event.Longitude,
			"error", err,
		)
		event.GeoSource = "failed"
		return event
	}
	switch {
	case result.FormattedAddress != "":
		event.Place = result.FormattedAddress
	case result.PlaceName != "":
		event.Place = result.PlaceName
	default:
		event.GeoSource = "original"
		return event
	}
	event.GeoSource = "reverse"
	return event
}
