package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Bhupin123/Sismicity/internal/cluster"
	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/geo"
)

// Hotspot parameter bounds.
const (
	MinEpsKm      = 10.0
	MaxEpsKm      = 200.0
	MinMinSamples = 2
	MaxMinSamples = 20

	recentWindow = 30 * 24 * time.Hour
)

// Hotspot is one density cluster of events with its derived statistics.
type Hotspot struct {
	ClusterID           int     `json:"cluster_id"`
	CenterLat           float64 `json:"center_lat"`
	CenterLon           float64 `json:"center_lon"`
	EventCount          int     `json:"event_count"`
	AvgMagnitude        float64 `json:"avg_magnitude"`
	MaxMagnitude        float64 `json:"max_magnitude"`
	AvgDepthKm          float64 `json:"avg_depth"`
	RecentActivityCount int     `json:"recent_activity"`
	RadiusKm            float64 `json:"radius_km"`
	RiskScore           float64 `json:"risk_score"`
	RepresentativePlace string  `json:"location"`
}

// Detector finds hotspots in a window by clustering on great-circle distance.
type Detector struct {
	clusterer cluster.Clusterer
	clock     clockwork.Clock
}

// NewDetector creates a Detector. A nil clusterer selects DBSCAN with
// latitude-band pruning.
func NewDetector(c cluster.Clusterer, clock clockwork.Clock) *Detector {
	if c == nil {
		c = cluster.DBSCAN{KmPerDegree: geo.KmPerDegree}
	}
	return &Detector{clusterer: c, clock: clock}
}

// Detect clusters w with eps in kilometers and returns hotspots ordered by
// descending risk. Noise events are dropped.
func (d *Detector) Detect(w Window, epsKm float64, minSamples int) ([]Hotspot, error) {
	if !(epsKm >= MinEpsKm && epsKm <= MaxEpsKm) {
		return nil, fmt.Errorf("%w: eps_km must be in [%g, %g], got %v", ErrInvalidParameter, MinEpsKm, MaxEpsKm, epsKm)
	}
	if minSamples < MinMinSamples || minSamples > MaxMinSamples {
		return nil, fmt.Errorf("%w: min_samples must be in [%d, %d], got %d", ErrInvalidParameter, MinMinSamples, MaxMinSamples, minSamples)
	}
	if w.Len() < minSamples {
		return []Hotspot{}, nil
	}

	points := make([]geo.Point, len(w.Events))
	for i, e := range w.Events {
		points[i] = geo.Point{Lat: e.Latitude, Lon: e.Longitude}
	}
	labels := d.clusterer.Cluster(points, epsKm, minSamples, geo.Distance)

	// Group members by label, keeping first-seen cluster order.
	var order []int
	members := make(map[int][]domain.Event)
	for i, l := range labels {
		if l == cluster.Noise {
			continue
		}
		if _, ok := members[l]; !ok {
			order = append(order, l)
		}
		members[l] = append(members[l], w.Events[i])
	}

	now := d.clock.Now()
	type scored struct {
		h    Hotspot
		risk float64
	}
	out := make([]scored, 0, len(order))
	for _, id := range order {
		h, risk := summarizeCluster(id, members[id], now)
		out = append(out, scored{h, risk})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].risk > out[j].risk })

	hotspots := make([]Hotspot, len(out))
	for i, s := range out {
		hotspots[i] = s.h
	}
	return hotspots, nil
}

func summarizeCluster(id int, events []domain.Event, now time.Time) (Hotspot, float64) {
	n := len(events)
	lats := make([]float64, n)
	lons := make([]float64, n)
	mags := make([]float64, n)
	depths := make([]float64, n)
	recent := 0
	cutoff := now.Add(-recentWindow)
	for i, e := range events {
		lats[i], lons[i], mags[i], depths[i] = e.Latitude, e.Longitude, e.Magnitude, e.DepthKm
		if !e.OccurredAt.Before(cutoff) {
			recent++
		}
	}

	center := geo.Point{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}
	radius := 0.0
	for i := range events {
		radius = math.Max(radius, geo.Distance(center, geo.Point{Lat: lats[i], Lon: lons[i]}))
	}

	avgMag := stat.Mean(mags, nil)
	risk := RiskScore(n, avgMag, recent)

	return Hotspot{
		ClusterID:           id,
		CenterLat:           round(center.Lat, 4),
		CenterLon:           round(center.Lon, 4),
		EventCount:          n,
		AvgMagnitude:        round(avgMag, 2),
		MaxMagnitude:        round(floats.Max(mags), 1),
		AvgDepthKm:          round(stat.Mean(depths, nil), 1),
		RecentActivityCount: recent,
		RadiusKm:            round(radius, 1),
		RiskScore:           round(risk, 1),
		RepresentativePlace: modePlace(events),
	}, risk
}

// RiskScore weighs activity (30), average magnitude (40) and the recent share
// of events (30), capped to [0, 100].
func RiskScore(eventCount int, avgMagnitude float64, recentCount int) float64 {
	score := float64(eventCount)/10*30 +
		avgMagnitude/7*40 +
		float64(recentCount)/float64(max(eventCount, 1))*30
	return math.Max(0, math.Min(100, score))
}

// modePlace returns the most frequent place; ties go to the first seen.
func modePlace(events []domain.Event) string {
	counts := make(map[string]int, len(events))
	for _, e := range events {
		counts[e.Place]++
	}
	best, bestCount := domain.UnknownPlace, 0
	for _, e := range events {
		if c := counts[e.Place]; c > bestCount {
			best, bestCount = e.Place, c
		}
	}
	return best
}
