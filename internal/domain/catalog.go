package domain

import (
	"fmt"
	"time"
)

// EventFilter narrows a catalog listing. Nil pointers and a zero Since leave
// that dimension unbounded.
type EventFilter struct {
	MinMagnitude *float64
	MaxMagnitude *float64
	Since        time.Time
	Major        *bool
	Limit        int
	Offset       int
}

// Period is the bucket width of a timeline.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod accepts day, month or year.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodDay, PeriodMonth, PeriodYear:
		return p, nil
	default:
		return "", fmt.Errorf("group_by must be day, month or year, got %q", s)
	}
}

// TimelineBucket aggregates the events of one period. Period is the bucket
// start as YYYY-MM-DD.
type TimelineBucket struct {
	Period       string  `json:"period"`
	Count        int     `json:"count"`
	AvgMagnitude float64 `json:"avg_mag"`
	MaxMagnitude float64 `json:"max_mag"`
}

// PlaceActivity aggregates the events recorded under one place label.
type PlaceActivity struct {
	Place        string  `json:"place"`
	Count        int     `json:"count"`
	AvgMagnitude float64 `json:"avg_mag"`
	MaxMagnitude float64 `json:"max_mag"`
}
