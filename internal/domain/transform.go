package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceUSGS labels events parsed from USGS GeoJSON features.
const SourceUSGS = "USGS"

// UnknownPlace is the label stored when a feature has no place text.
const UnknownPlace = "Unknown"

// feature mirrors the subset of a USGS GeoJSON feature the service reads.
type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag   *float64 `json:"mag"`
		Place *string  `json:"place"`
		Time  *int64   `json:"time"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// ParseFeature deserializes a RawEvent's value as a USGS GeoJSON feature.
func ParseFeature(raw RawEvent) (Event, error) {
	return ParseFeatureBytes(raw.Value)
}

// ParseFeatureBytes decodes and validates one GeoJSON feature.
func ParseFeatureBytes(data []byte) (Event, error) {
	var f feature
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, fmt.Errorf("parse feature: %w", err)
	}
	if f.Properties.Mag == nil {
		return Event{}, fmt.Errorf("feature %q: %w", f.ID, ErrMissingMagnitude)
	}
	if f.Properties.Time == nil {
		return Event{}, fmt.Errorf("%w: feature %q has no time", ErrInvalidEvent, f.ID)
	}
	coords := f.Geometry.Coordinates
	if len(coords) < 2 {
		return Event{}, fmt.Errorf("%w: feature %q has %d coordinates", ErrInvalidEvent, f.ID, len(coords))
	}

	depth := 0.0
	if len(coords) > 2 && coords[2] > 0 {
		depth = coords[2]
	}
	place := UnknownPlace
	if f.Properties.Place != nil && strings.TrimSpace(*f.Properties.Place) != "" {
		place = strings.TrimSpace(*f.Properties.Place)
	}

	event := Event{
		ID:         f.ID,
		OccurredAt: time.UnixMilli(*f.Properties.Time).UTC(),
		Magnitude:  *f.Properties.Mag,
		DepthKm:    depth,
		Latitude:   coords[1],
		Longitude:  coords[0],
		Place:      place,
		Source:     SourceUSGS,
	}
	if event.ID == "" {
		event.ID = generateID(event.OccurredAt, event.Latitude, event.Longitude, event.Magnitude)
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// generateID produces a deterministic ID from the natural key so replays of a
// feature without a USGS id map to the same row.
func generateID(at time.Time, lat, lon, magnitude float64) string {
	input := fmt.Sprintf("%s|%.4f|%.4f|%g", at.UTC().Format(time.RFC3339Nano), lat, lon, magnitude)
	hash := sha256.Sum256([]byte(input))
	return "eq-" + hex.EncodeToString(hash[:8])
}

// StampIngested records when the ingestion path accepted the event.
func StampIngested(event Event) Event {
	event.IngestedAt = Now()
	return event
}
