// Package domain models earthquake event records and the derived values the
// analysis engine and ingestion path share.
//
// # Data Source
//
// Events originate from the USGS FDSN event web service
// (https://earthquake.usgs.gov/fdsnws/event/1/). The collector command polls the
// GeoJSON endpoint and publishes each feature, unmodified, as one message on the
// Kafka source topic. The ingestion pipeline parses those features with
// [ParseFeature].
//
// # USGS GeoJSON Conventions
//
// Coordinates:
//
//	geometry.coordinates = [longitude, latitude, depth_km]
//	Longitude comes first. Depth may be missing (treated as 0) and may be slightly
//	negative for shallow events referenced above sea level; negative depths are
//	clamped to 0.
//
// Time:
//
//	properties.time is milliseconds since the Unix epoch, always UTC.
//
// Magnitude:
//
//	properties.mag is nullable. Features with a null magnitude are rejected with
//	[ErrMissingMagnitude] before they reach the store, so every stored row carries
//	a magnitude.
//
// Place:
//
//	properties.place is a free-text label such as "12 km NE of Kathmandu, Nepal".
//	A null or empty label becomes "Unknown" and may later be filled by reverse
//	geocoding.
//
// # Classification
//
// Magnitude bands partition the scale for rate estimation:
//
//	minor    < 4.0
//	moderate [4.0, 5.5)
//	major    >= 5.5   (also the is_major flag)
//
// Alert severity is a finer six-level ordinal evaluated top-down:
//
//	>= 7.0 CRITICAL | >= 6.0 SEVERE | >= 5.5 HIGH | >= 4.0 MODERATE | >= 3.0 LOW | else MINIMAL
//
// # Natural Key
//
// The store deduplicates on (occurred_at, latitude, longitude, magnitude). When a
// feature carries no USGS id, [ParseFeature] derives a deterministic ID from the
// same fields so replays produce the same identifier.
package domain
