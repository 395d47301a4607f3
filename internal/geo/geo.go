// Package geo provides great-circle distance on a spherical Earth.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the mean Earth radius used by Haversine.
	EarthRadiusKm = 6371.0

	// KmPerDegree approximates one degree of latitude. It is only a coarse bound
	// for scaling search windows; distances always come from Haversine.
	KmPerDegree = 111.0

	// BoundaryToleranceKm absorbs floating-point noise so a point placed
	// exactly on a radius counts as inside it.
	BoundaryToleranceKm = 1e-6
)

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Validate reports whether p lies within the valid coordinate ranges.
func (p Point) Validate() error {
	if !(p.Lat >= -90 && p.Lat <= 90) {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if !(p.Lon >= -180 && p.Lon <= 180) {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Lon)
	}
	return nil
}

// Haversine returns the great-circle distance in kilometers between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// Rounding can push a fraction past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Distance is Haversine over Points.
func Distance(a, b Point) float64 {
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Within reports whether b lies within radiusKm of a, boundary included, and
// returns the distance.
func Within(a, b Point, radiusKm float64) (float64, bool) {
	d := Distance(a, b)
	return d, d <= radiusKm+BoundaryToleranceKm
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
