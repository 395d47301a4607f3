package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

const (
	defaultListLimit   = 500
	maxListLimit       = 5000
	defaultRecentHours = 24
	maxRecentHours     = 168
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	defaultPlaceLimit  = 15
	maxPlaceLimit      = 50
)

// Catalog serves read-only queries over the stored events. *postgres.DB
// implements it.
type Catalog interface {
	ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.Event, int, error)
	RecentEvents(ctx context.Context, since time.Time, limit int) ([]domain.Event, error)
	Timeline(ctx context.Context, period domain.Period, since time.Time) ([]domain.TimelineBucket, error)
	PlaceActivity(ctx context.Context, limit int) ([]domain.PlaceActivity, error)
}

type eventsResponse struct {
	Count   int            `json:"count"`
	Results []domain.Event `json:"results"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var (
		f   domain.EventFilter
		err error
	)
	if f.Limit, err = boundedInt(r, "limit", defaultListLimit, 1, maxListLimit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Offset, err = boundedInt(r, "offset", 0, 0, -1); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.MinMagnitude, err = optionalFloat(r, "min_mag"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.MaxMagnitude, err = optionalFloat(r, "max_mag"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Major, err = optionalBool(r, "is_major"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Since, err = daysBack(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, total, err := s.backends.Catalog.ListEvents(r.Context(), f)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Count: total, Results: nonNil(events)})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	hours, err := boundedInt(r, "hours", defaultRecentHours, 1, maxRecentHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := boundedInt(r, "limit", defaultRecentLimit, 1, maxRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	since := domain.Now().Add(-time.Duration(hours) * time.Hour)
	events, err := s.backends.Catalog.RecentEvents(r.Context(), since, limit)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	groupBy := r.URL.Query().Get("group_by")
	if groupBy == "" {
		groupBy = string(domain.PeriodDay)
	}
	period, err := domain.ParsePeriod(groupBy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := daysBack(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	buckets, err := s.backends.Catalog.Timeline(r.Context(), period, since)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(buckets))
}

func (s *Server) handleByLocation(w http.ResponseWriter, r *http.Request) {
	limit, err := boundedInt(r, "limit", defaultPlaceLimit, 1, maxPlaceLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	places, err := s.backends.Catalog.PlaceActivity(r.Context(), limit)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(places))
}

func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("catalog query failed", "error", err, "path", r.URL.Path)
	writeError(w, http.StatusServiceUnavailable, "event store unavailable")
}

// boundedInt reads an integer in [lo, hi]; a negative hi means no upper bound.
func boundedInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	n, err := queryInt(r, key, def)
	if err != nil {
		return 0, err
	}
	if n < lo || (hi >= 0 && n > hi) {
		if hi < 0 {
			return 0, fmt.Errorf("%s must be at least %d", key, lo)
		}
		return 0, fmt.Errorf("%s must be between %d and %d", key, lo, hi)
	}
	return n, nil
}

func optionalFloat(r *http.Request, key string) (*float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &f, nil
}

func optionalBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", key)
	}
	return &b, nil
}

// daysBack turns an optional positive days_back into a start time; absent
// means unbounded.
func daysBack(r *http.Request) (time.Time, error) {
	if r.URL.Query().Get("days_back") == "" {
		return time.Time{}, nil
	}
	days, err := boundedInt(r, "days_back", 0, 1, -1)
	if err != nil {
		return time.Time{}, err
	}
	return domain.Now().AddDate(0, 0, -days), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
