package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// MajorMagnitude is the threshold at and above which an event is flagged major.
const MajorMagnitude = 5.5

var (
	// ErrMissingMagnitude marks a source record with a null magnitude.
	ErrMissingMagnitude = errors.New("event has no magnitude")
	// ErrInvalidEvent marks a record whose fields are out of range.
	ErrInvalidEvent = errors.New("invalid event")
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RawFeature is one USGS GeoJSON feature as fetched, before parsing.
type RawFeature struct {
	ID      string
	Payload []byte
}

// Event is a single earthquake record. Events are read-only once recorded.
type Event struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Magnitude  float64   `json:"magnitude"`
	DepthKm    float64   `json:"depth_km"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Place      string    `json:"place"`
	Source     string    `json:"source,omitempty"`

	// Set by the ingestion path.
	GeoSource  string    `json:"geo_source,omitempty"` // "original", "reverse", "failed"
	IngestedAt time.Time `json:"ingested_at,omitzero"`
}

// IsMajor reports whether the event's magnitude is at least MajorMagnitude.
func (e Event) IsMajor() bool {
	return e.Magnitude >= MajorMagnitude
}

// Band returns the magnitude band that claims this event.
func (e Event) Band() Band {
	return BandFor(e.Magnitude)
}

// MarshalJSON adds the derived is_major flag to the wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		IsMajor bool `json:"is_major"`
	}{plain(e), e.IsMajor()})
}

// Validate checks the ranges every stored event must satisfy.
func (e Event) Validate() error {
	switch {
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	case math.IsNaN(e.Magnitude) || math.IsInf(e.Magnitude, 0):
		return fmt.Errorf("%w: magnitude %v", ErrInvalidEvent, e.Magnitude)
	case !(e.Latitude >= -90 && e.Latitude <= 90):
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidEvent, e.Latitude)
	case !(e.Longitude >= -180 && e.Longitude <= 180):
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidEvent, e.Longitude)
	case !(e.DepthKm >= 0):
		return fmt.Errorf("%w: depth %v", ErrInvalidEvent, e.DepthKm)
	}
	return nil
}

// Band is one of the three fixed magnitude classes used for rate estimation.
type Band string

const (
	BandMinor    Band = "minor"
	BandModerate Band = "moderate"
	BandMajor    Band = "major"
)

// Bands lists every band in forecast output order.
var Bands = []Band{BandMinor, BandModerate, BandMajor}

// BandFor maps a magnitude to its band. Lower bounds are inclusive; minor also
// claims the (rare) negative magnitudes so the bands cover the whole scale.
func BandFor(magnitude float64) Band {
	switch {
	case magnitude < 4.0:
		return BandMinor
	case magnitude < MajorMagnitude:
		return BandModerate
	default:
		return BandMajor
	}
}

// Label is the capitalized display form, e.g. "Minor".
func (b Band) Label() string {
	switch b {
	case BandMinor:
		return "Minor"
	case BandModerate:
		return "Moderate"
	case BandMajor:
		return "Major"
	default:
		return string(b)
	}
}

// Severity is the six-level alert ordinal derived from magnitude.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeveritySevere   Severity = "SEVERE"
	SeverityHigh     Severity = "HIGH"
	SeverityModerate Severity = "MODERATE"
	SeverityLow      Severity = "LOW"
	SeverityMinimal  Severity = "MINIMAL"
)

// SeverityFor classifies a magnitude, first matching threshold wins.
func SeverityFor(magnitude float64) Severity {
	switch {
	case magnitude >= 7.0:
		return SeverityCritical
	case magnitude >= 6.0:
		return SeveritySevere
	case magnitude >= 5.5:
		return SeverityHigh
	case magnitude >= 4.0:
		return SeverityModerate
	case magnitude >= 3.0:
		return SeverityLow
	default:
		return SeverityMinimal
	}
}

// Subscription is a watched location: notify when an event of at least
// MinMagnitude occurs within RadiusKm.
type Subscription struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusKm     float64   `json:"radius_km"`
	MinMagnitude float64   `json:"min_magnitude"`
	Active       bool      `json:"active"`
}

// Notification is the payload handed to the delivery service. Formatting and
// sending happen downstream.
type Notification struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	Email          string    `json:"email"`
	EventID        string    `json:"event_id"`
	Magnitude      float64   `json:"magnitude"`
	Place          string    `json:"place"`
	DepthKm        float64   `json:"depth_km"`
	OccurredAt     time.Time `json:"occurred_at"`
	DistanceKm     float64   `json:"distance_km"`
	Severity       Severity  `json:"severity"`
}
