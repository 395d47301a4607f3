package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/Bhupin123/Sismicity/internal/adapter/http"
	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/forecast"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type proximityCall struct {
	lat, lon, radius float64
	hours            int
}

type mockAnalyzer struct {
	mu sync.Mutex
	err error

	forecastDays int
	eps          float64
	minSamples   int
	proximity    proximityCall

	entries  []forecast.ForecastEntry
	hotspots []forecast.Hotspot
	alerts   []forecast.ProximityAlert
	summary  forecast.Summary
}

func (m *mockAnalyzer) Forecast(days int) ([]forecast.ForecastEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forecastDays = days
	return m.entries, m.err
}

func (m *mockAnalyzer) Hotspots(eps float64, minSamples int) ([]forecast.Hotspot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eps, m.minSamples = eps, minSamples
	return m.hotspots, m.err
}

func (m *mockAnalyzer) Summary() (forecast.Summary, error) {
	return m.summary, m.err
}

func (m *mockAnalyzer) Proximity(_ context.Context, lat, lon, radius float64, hours int) ([]forecast.ProximityAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proximity = proximityCall{lat: lat, lon: lon, radius: radius, hours: hours}
	if m.err != nil {
		return []forecast.ProximityAlert{}, m.err
	}
	return m.alerts, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error, b httpadapter.Backends) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, b, discardLogger(), observability.NewMetricsForTesting())
}

func do(t *testing.T, srv http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: &mockAnalyzer{}}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		readyErr error
		want     int
	}{
		{name: "ready", want: http.StatusOK},
		{name: "not ready", readyErr: fmt.Errorf("engine has not been trained"), want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(tt.readyErr, httpadapter.Backends{Analyzer: &mockAnalyzer{}}), http.MethodGet, "/readyz", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: &mockAnalyzer{}}), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAllReady(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, httpadapter.AllReady(&mockReadiness{}, &mockReadiness{}).CheckReadiness(ctx))

	err := httpadapter.AllReady(
		&mockReadiness{},
		&mockReadiness{err: errors.New("engine has not been trained")},
		&mockReadiness{err: errors.New("pipeline has not loaded any events yet")},
	).CheckReadiness(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine has not been trained")
	assert.Contains(t, err.Error(), "pipeline has not loaded any events yet")
}

func TestForecastEndpoint(t *testing.T) {
	entries := []forecast.ForecastEntry{
		{Band: domain.BandMinor, Category: "Minor", ExpectedCount: 14, Probability: 100, HorizonDays: 7, RatePerDay: 2},
	}

	tests := []struct {
		name     string
		query    string
		err      error
		wantCode int
		wantDays int
	}{
		{name: "default horizon", query: "", wantCode: http.StatusOK, wantDays: 7},
		{name: "explicit horizon", query: "?days_ahead=30", wantCode: http.StatusOK, wantDays: 30},
		{name: "zero horizon", query: "?days_ahead=0", wantCode: http.StatusBadRequest},
		{name: "horizon too long", query: "?days_ahead=31", wantCode: http.StatusBadRequest},
		{name: "not a number", query: "?days_ahead=week", wantCode: http.StatusBadRequest},
		{name: "not trained", query: "", err: forecast.ErrNotTrained, wantCode: http.StatusServiceUnavailable, wantDays: 7},
		{name: "unexpected failure", query: "", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantDays: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &mockAnalyzer{entries: entries, err: tt.err}
			rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: analyzer}), http.MethodGet, "/api/forecast"+tt.query, "")

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantDays, analyzer.forecastDays)
			if tt.wantCode != http.StatusOK {
				body := decode[map[string]string](t, rec)
				assert.NotEmpty(t, body["error"])
				return
			}
			body := decode[map[string]any](t, rec)
			assert.Equal(t, float64(tt.wantDays), body["days_ahead"])
			require.Len(t, body["forecasts"], 1)
		})
	}
}

func TestHotspotsEndpoint(t *testing.T) {
	t.Run("passes parameters through", func(t *testing.T) {
		analyzer := &mockAnalyzer{hotspots: []forecast.Hotspot{{ClusterID: 0, EventCount: 12}}}
		rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: analyzer}), http.MethodGet, "/api/forecast/hotspots?eps_km=75.5&min_samples=3", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 75.5, analyzer.eps)
		assert.Equal(t, 3, analyzer.minSamples)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("defaults", func(t *testing.T) {
		analyzer := &mockAnalyzer{hotspots: []forecast.Hotspot{}}
		rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: analyzer}), http.MethodGet, "/api/forecast/hotspots", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 50.0, analyzer.eps)
		assert.Equal(t, 5, analyzer.minSamples)
		assert.JSONEq(t, `{"hotspots":[],"count":0}`, rec.Body.String())
	})

	t.Run("out of range maps to 400", func(t *testing.T) {
		analyzer := &mockAnalyzer{err: fmt.Errorf("%w: eps_km 500 outside [10, 200]", forecast.ErrInvalidParameter)}
		rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: analyzer}), http.MethodGet, "/api/forecast/hotspots?eps_km=500", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed eps", func(t *testing.T) {
		rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: &mockAnalyzer{}}), http.MethodGet, "/api/forecast/hotspots?eps_km=wide", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProximityEndpoint(t *testing.T) {
	alert := forecast.ProximityAlert{Magnitude: 5.2, DistanceKm: 41.3, Severity: domain.SeverityModerate}

	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantCall proximityCall
		wantBody string
	}{
		{
			name:     "defaults applied",
			body:     `{"lat": 27.7, "lon": 85.3}`,
			wantCode: http.StatusOK,
			wantCall: proximityCall{lat: 27.7, lon: 85.3, radius: 100, hours: 24},
		},
		{
			name:     "explicit radius and window",
			body:     `{"lat": -33.45, "lon": -70.66, "radius_km": 250, "hours_back": 72}`,
			wantCode: http.StatusOK,
			wantCall: proximityCall{lat: -33.45, lon: -70.66, radius: 250, hours: 72},
		},
		{
			name:     "missing coordinates",
			body:     `{"lat": 27.7}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid json",
			body:     `{"lat": `,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid parameter from engine",
			body:     `{"lat": 95, "lon": 0}`,
			err:      forecast.ErrInvalidParameter,
			wantCode: http.StatusBadRequest,
			wantCall: proximityCall{lat: 95, lon: 0, radius: 100, hours: 24},
		},
		{
			name:     "source offline is degraded, not an error",
			body:     `{"lat": 27.7, "lon": 85.3}`,
			err:      fmt.Errorf("%w: connection refused", forecast.ErrDataUnavailable),
			wantCode: http.StatusOK,
			wantCall: proximityCall{lat: 27.7, lon: 85.3, radius: 100, hours: 24},
			wantBody: `{"alerts":[],"count":0,"degraded":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &mockAnalyzer{alerts: []forecast.ProximityAlert{alert}, err: tt.err}
			rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: analyzer}), http.MethodPost, "/api/forecast/proximity", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCall, analyzer.proximity)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
				return
			}
			if tt.wantCode == http.StatusOK {
				body := decode[map[string]any](t, rec)
				assert.Equal(t, float64(1), body["count"])
				assert.NotContains(t, body, "degraded")
			}
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Run("trained", func(t *testing.T) {
		analyzer := &mockAnalyzer{summary: forecast.Summary{TotalEvents: 3, MaxMagnitude: 6.1}}
		rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: analyzer}), http.MethodGet, "/api/stats", "")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, float64(3), body["total_events"])
		assert.Equal(t, 6.1, body["max_magnitude"])
	})

	t.Run("not trained", func(t *testing.T) {
		analyzer := &mockAnalyzer{err: forecast.ErrNotTrained}
		rec := do(t, newTestServer(nil, httpadapter.Backends{Analyzer: analyzer}), http.MethodGet, "/api/stats", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(nil, httpadapter.Backends{Analyzer: &mockAnalyzer{}})

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/earthquakes", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodGet, "/api/forecast/proximity", "").Code)
}

// --- live feed ---

type mockLatest struct {
	event domain.Event
	ok    bool
}

func (m *mockLatest) LatestEvent(context.Context) (domain.Event, bool, error) {
	return m.event, m.ok, nil
}

type mockLive struct {
	ch  chan []byte
	err error
}

func (m *mockLive) Subscribe(context.Context) (<-chan []byte, error) {
	return m.ch, m.err
}

type liveMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialLive(t *testing.T, b httpadapter.Backends) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(newTestServer(nil, b))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = resp.Body.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestLiveFeed(t *testing.T) {
	latest := domain.Event{
		ID:         "us6000pi9w",
		OccurredAt: time.Date(2025, 1, 7, 1, 5, 0, 0, time.UTC),
		Magnitude:  7.1,
		Latitude:   28.64,
		Longitude:  87.36,
		Place:      "Tingri, Tibet",
	}
	live := &mockLive{ch: make(chan []byte, 1)}
	conn := dialLive(t, httpadapter.Backends{
		Analyzer: &mockAnalyzer{},
		Latest:   &mockLatest{event: latest, ok: true},
		Live:     live,
	})

	var first liveMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "latest_event", first.Type)
	var got domain.Event
	require.NoError(t, json.Unmarshal(first.Data, &got))
	assert.Equal(t, "us6000pi9w", got.ID)

	payload := []byte(`{"id":"us7000abcd","magnitude":4.4}`)
	live.ch <- payload

	var second liveMessage
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "event", second.Type)
	assert.JSONEq(t, string(payload), string(second.Data))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var third liveMessage
	require.NoError(t, conn.ReadJSON(&third))
	assert.Equal(t, "pong", third.Type)
}

func TestLiveFeed_NoLatestEvent(t *testing.T) {
	live := &mockLive{ch: make(chan []byte, 1)}
	conn := dialLive(t, httpadapter.Backends{
		Analyzer: &mockAnalyzer{},
		Latest:   &mockLatest{},
		Live:     live,
	})

	live.ch <- []byte(`{"id":"first"}`)

	var msg liveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	assert.True(t, bytes.Contains(msg.Data, []byte("first")))
}

func TestLiveFeed_SubscribeFailureClosesConnection(t *testing.T) {
	conn := dialLive(t, httpadapter.Backends{
		Analyzer: &mockAnalyzer{},
		Live:     &mockLive{err: errors.New("redis down")},
	})

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
}

func TestLiveFeed_ShutdownSendsGoingAway(t *testing.T) {
	srv := newTestServer(nil, httpadapter.Backends{
		Analyzer: &mockAnalyzer{},
		Latest:   &mockLatest{event: domain.Event{ID: "us6000pi9w"}, ok: true},
		Live:     &mockLive{ch: make(chan []byte)},
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = resp.Body.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// The handler is in its loop once the latest event arrives.
	var first liveMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "latest_event", first.Type)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- srv.Shutdown(ctx) }()

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.NoError(t, <-shutdownErr, "shutdown waits for the live handler to exit")

	// New live clients are turned away once shutdown has begun.
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
