package forecast

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

// Summary holds descriptive statistics over a window.
type Summary struct {
	TotalEvents  int                 `json:"total_events"`
	AvgMagnitude float64             `json:"avg_magnitude"`
	MaxMagnitude float64             `json:"max_magnitude"`
	MinMagnitude float64             `json:"min_magnitude"`
	AvgDepthKm   float64             `json:"avg_depth"`
	MajorCount   int                 `json:"major_earthquakes"`
	BandCounts   map[domain.Band]int `json:"band_counts"`
	Earliest     time.Time           `json:"earliest,omitzero"`
	Latest       time.Time           `json:"latest,omitzero"`
}

// Summarize computes window statistics. An empty window yields a zero Summary
// with every band present at count 0.
func Summarize(w Window) Summary {
	s := Summary{BandCounts: make(map[domain.Band]int, len(domain.Bands))}
	for _, b := range domain.Bands {
		s.BandCounts[b] = 0
	}
	if w.Len() == 0 {
		return s
	}

	mags := make([]float64, w.Len())
	depths := make([]float64, w.Len())
	s.Earliest, s.Latest = w.Events[0].OccurredAt, w.Events[0].OccurredAt
	for i, e := range w.Events {
		mags[i], depths[i] = e.Magnitude, e.DepthKm
		s.BandCounts[e.Band()]++
		if e.IsMajor() {
			s.MajorCount++
		}
		if e.OccurredAt.Before(s.Earliest) {
			s.Earliest = e.OccurredAt
		}
		if e.OccurredAt.After(s.Latest) {
			s.Latest = e.OccurredAt
		}
	}

	s.TotalEvents = w.Len()
	s.AvgMagnitude = round(stat.Mean(mags, nil), 2)
	s.MaxMagnitude = round(floats.Max(mags), 1)
	s.MinMagnitude = round(floats.Min(mags), 1)
	s.AvgDepthKm = round(stat.Mean(depths, nil), 1)
	return s
}
