package forecast

import (
	"fmt"
	"math"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

// RateTable maps each magnitude band to its empirical events-per-day rate.
// An empty table means no forecast is available.
type RateTable map[domain.Band]float64

// ForecastEntry is the Poisson forecast for one band over a horizon.
type ForecastEntry struct {
	Band          domain.Band `json:"band"`
	Category      string      `json:"category"`
	ExpectedCount float64     `json:"expected_count"`
	Probability   float64     `json:"probability"`
	HorizonDays   int         `json:"days_ahead"`
	RatePerDay    float64     `json:"rate_per_day"`
}

// EstimateRates counts events per band and divides by the observed span in
// whole days, floored at 1.
func EstimateRates(w Window) RateTable {
	rates := RateTable{}
	if w.Len() == 0 {
		return rates
	}

	earliest, latest := w.Events[0].OccurredAt, w.Events[0].OccurredAt
	counts := make(map[domain.Band]int, len(domain.Bands))
	for _, e := range w.Events {
		if e.OccurredAt.Before(earliest) {
			earliest = e.OccurredAt
		}
		if e.OccurredAt.After(latest) {
			latest = e.OccurredAt
		}
		counts[e.Band()]++
	}

	days := math.Max(1, math.Floor(latest.Sub(earliest).Hours()/24))
	for _, b := range domain.Bands {
		rates[b] = float64(counts[b]) / days
	}
	return rates
}

// Forecast projects rates over horizonDays. Entries follow domain.Bands order;
// bands absent from rates are skipped.
func Forecast(rates RateTable, horizonDays int) ([]ForecastEntry, error) {
	if horizonDays < 1 {
		return nil, fmt.Errorf("%w: horizon_days must be at least 1, got %d", ErrInvalidParameter, horizonDays)
	}

	out := make([]ForecastEntry, 0, len(rates))
	for _, b := range domain.Bands {
		rate, ok := rates[b]
		if !ok {
			continue
		}
		lambda := rate * float64(horizonDays)
		out = append(out, ForecastEntry{
			Band:          b,
			Category:      b.Label(),
			ExpectedCount: round(lambda, 2),
			Probability:   round(-math.Expm1(-lambda)*100, 1),
			HorizonDays:   horizonDays,
			RatePerDay:    round(rate, 2),
		})
	}
	return out, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
