package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bhupin123/Sismicity/internal/domain"
	"github.com/Bhupin123/Sismicity/internal/forecast"
	"github.com/Bhupin123/Sismicity/internal/observability"
)

// ReadinessChecker reports whether a component is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// Analyzer answers the analysis queries. *forecast.Engine implements it.
type Analyzer interface {
	Forecast(horizonDays int) ([]forecast.ForecastEntry, error)
	Hotspots(epsKm float64, minSamples int) ([]forecast.Hotspot, error)
	Summary() (forecast.Summary, error)
	Proximity(ctx context.Context, lat, lon, radiusKm float64, hoursBack int) ([]forecast.ProximityAlert, error)
}

// LatestEventSource returns the most recent stored event for new live clients.
type LatestEventSource interface {
	LatestEvent(ctx context.Context) (domain.Event, bool, error)
}

// LiveSubscriber streams newly ingested events as JSON payloads.
type LiveSubscriber interface {
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// Backends groups what the API routes read from. Catalog, Latest and Live are
// optional; without a Catalog the /api/earthquakes routes are not mounted.
type Backends struct {
	Analyzer Analyzer
	Catalog  Catalog
	Latest   LatestEventSource
	Live     LiveSubscriber
}

// Server exposes health, readiness, metrics, the analysis API and the live feed.
type Server struct {
	httpServer *http.Server
	backends   Backends
	logger     *slog.Logger
	metrics    *observability.Metrics

	// Hijacked websocket connections are invisible to http.Server.Shutdown;
	// these track them so shutdown can close and wait for them.
	liveMu       sync.Mutex
	liveClosing  bool
	liveShutdown chan struct{}
	liveConns    sync.WaitGroup
}

// NewServer creates an HTTP server with all routes mounted.
func NewServer(addr string, ready ReadinessChecker, b Backends, logger *slog.Logger, metrics *observability.Metrics) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     r,
			ReadTimeout: 10 * time.Second,
			// No WriteTimeout: it would cut websocket streams. API handlers are
			// bounded by requestTimeout instead.
			IdleTimeout: 60 * time.Second,
		},
		backends:     b,
		logger:       logger,
		metrics:      metrics,
		liveShutdown: make(chan struct{}),
	}
	s.httpServer.RegisterOnShutdown(s.closeLive)

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/forecast", s.handleForecast)
		r.Get("/forecast/hotspots", s.handleHotspots)
		r.Post("/forecast/proximity", s.handleProximity)
		r.Get("/stats", s.handleStats)
		if b.Catalog != nil {
			r.Get("/earthquakes", s.handleListEvents)
			r.Get("/earthquakes/recent", s.handleRecentEvents)
			r.Get("/earthquakes/timeline", s.handleTimeline)
			r.Get("/earthquakes/by-location", s.handleByLocation)
		}
	})
	r.Get("/ws/live", s.handleLive)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
// Live feed clients receive a going-away close frame.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	// RegisterOnShutdown hooks run asynchronously.
	s.closeLive()

	done := make(chan struct{})
	go func() {
		s.liveConns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}

func (s *Server) closeLive() {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	if !s.liveClosing {
		s.liveClosing = true
		close(s.liveShutdown)
	}
}

// trackLive registers a live connection; it reports false once shutdown began.
func (s *Server) trackLive() bool {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	if s.liveClosing {
		return false
	}
	s.liveConns.Add(1)
	return true
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// AllReady combines checkers; the result is ready only when every checker is.
func AllReady(checkers ...ReadinessChecker) ReadinessChecker {
	return readinessSet(checkers)
}

type readinessSet []ReadinessChecker

func (rs readinessSet) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range rs {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
