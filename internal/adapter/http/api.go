package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Bhupin123/Sismicity/internal/forecast"
)

const (
	requestTimeout = 30 * time.Second

	defaultDaysAhead  = 7
	maxDaysAhead      = 30
	defaultEpsKm      = 50.0
	defaultMinSamples = 5
	defaultRadiusKm   = 100.0
	defaultHoursBack  = 24
)

type forecastResponse struct {
	DaysAhead int                      `json:"days_ahead"`
	Forecasts []forecast.ForecastEntry `json:"forecasts"`
}

type hotspotsResponse struct {
	Hotspots []forecast.Hotspot `json:"hotspots"`
	Count    int                `json:"count"`
}

type proximityRequest struct {
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	RadiusKm  *float64 `json:"radius_km"`
	HoursBack *int     `json:"hours_back"`
}

type proximityResponse struct {
	Alerts   []forecast.ProximityAlert `json:"alerts"`
	Count    int                       `json:"count"`
	Degraded bool                      `json:"degraded,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days_ahead", defaultDaysAhead)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if days < 1 || days > maxDaysAhead {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("days_ahead must be between 1 and %d", maxDaysAhead))
		return
	}

	entries, err := s.backends.Analyzer.Forecast(days)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecastResponse{DaysAhead: days, Forecasts: entries})
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	eps, err := queryFloat(r, "eps_km", defaultEpsKm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minSamples, err := queryInt(r, "min_samples", defaultMinSamples)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hotspots, err := s.backends.Analyzer.Hotspots(eps, minSamples)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hotspotsResponse{Hotspots: hotspots, Count: len(hotspots)})
}

func (s *Server) handleProximity(w http.ResponseWriter, r *http.Request) {
	var req proximityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	radius := defaultRadiusKm
	if req.RadiusKm != nil {
		radius = *req.RadiusKm
	}
	hours := defaultHoursBack
	if req.HoursBack != nil {
		hours = *req.HoursBack
	}

	alerts, err := s.backends.Analyzer.Proximity(r.Context(), *req.Lat, *req.Lon, radius, hours)
	switch {
	case errors.Is(err, forecast.ErrDataUnavailable):
		// The caller gets an honest empty answer flagged as degraded.
		writeJSON(w, http.StatusOK, proximityResponse{Alerts: []forecast.ProximityAlert{}, Degraded: true})
		return
	case err != nil:
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proximityResponse{Alerts: alerts, Count: len(alerts)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.backends.Analyzer.Summary()
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// writeAnalysisError maps analysis sentinels onto status codes.
func (s *Server) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, forecast.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, forecast.ErrNotTrained), errors.Is(err, forecast.ErrDataUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("analysis request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return f, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
