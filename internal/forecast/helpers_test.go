package forecast

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
	calls  int
	since  time.Time
}

func (f *fakeSource) EventsSince(_ context.Context, since time.Time) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Event, 0, len(f.events))
	for _, e := range f.events {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeSource) set(events []domain.Event, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events, f.err = events, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quake(at time.Time, mag, lat, lon float64, place string) domain.Event {
	return domain.Event{
		ID:         at.Format(time.RFC3339Nano),
		OccurredAt: at,
		Magnitude:  mag,
		DepthKm:    10,
		Latitude:   lat,
		Longitude:  lon,
		Place:      place,
	}
}

// circle places n events evenly on a ring of radiusKm around (lat, lon).
func circle(n int, lat, lon, radiusKm float64, mag float64, at time.Time, place string) []domain.Event {
	const kmPerDeg = 6371 * math.Pi / 180
	out := make([]domain.Event, n)
	for k := range out {
		th := 2 * math.Pi * float64(k) / float64(n)
		dLat := radiusKm * math.Cos(th) / kmPerDeg
		dLon := radiusKm * math.Sin(th) / (kmPerDeg * math.Cos(lat*math.Pi/180))
		e := quake(at.Add(time.Duration(k)*time.Minute), mag, lat+dLat, lon+dLon, place)
		out[k] = e
	}
	return out
}

func windowOf(events []domain.Event) Window {
	return Window{Events: events, Since: testNow.AddDate(-1, 0, 0), LoadedAt: testNow}
}
