// Package forecast turns a window of historical earthquake events into rate
// forecasts, hotspot clusters, proximity alerts, and summary statistics.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

var (
	// ErrDataUnavailable means the event source could not be reached or
	// returned rows that fail validation.
	ErrDataUnavailable = errors.New("event data unavailable")
	// ErrInvalidParameter marks a request rejected before any computation.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNotTrained is returned by Engine queries before the first successful Train.
	ErrNotTrained = errors.New("engine has not been trained")
)

// EventSource returns every stored event that occurred at or after since.
// Rows with a null magnitude must already be excluded.
type EventSource interface {
	EventsSince(ctx context.Context, since time.Time) ([]domain.Event, error)
}

// Window is a snapshot of events bounded below by Since. It is never mutated
// after Load returns it.
type Window struct {
	Events   []domain.Event
	Since    time.Time
	LoadedAt time.Time
}

// Len is the number of events in the window.
func (w Window) Len() int { return len(w.Events) }

// Loader pulls historical windows from an EventSource.
type Loader struct {
	source EventSource
	clock  clockwork.Clock
}

// NewLoader creates a Loader reading from source with clock as "now".
func NewLoader(source EventSource, clock clockwork.Clock) *Loader {
	return &Loader{source: source, clock: clock}
}

// Load returns the events of the last lookbackDays days.
func (l *Loader) Load(ctx context.Context, lookbackDays int) (Window, error) {
	if lookbackDays <= 0 {
		return Window{}, fmt.Errorf("%w: lookback_days must be positive, got %d", ErrInvalidParameter, lookbackDays)
	}
	return l.load(ctx, time.Duration(lookbackDays)*24*time.Hour)
}

// LoadHours returns the events of the last hoursBack hours.
func (l *Loader) LoadHours(ctx context.Context, hoursBack int) (Window, error) {
	if hoursBack <= 0 {
		return Window{}, fmt.Errorf("%w: hours_back must be positive, got %d", ErrInvalidParameter, hoursBack)
	}
	return l.load(ctx, time.Duration(hoursBack)*time.Hour)
}

func (l *Loader) load(ctx context.Context, lookback time.Duration) (Window, error) {
	now := l.clock.Now().UTC()
	since := now.Add(-lookback)

	rows, err := l.source.EventsSince(ctx, since)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}

	events := make([]domain.Event, 0, len(rows))
	for _, e := range rows {
		e.OccurredAt = e.OccurredAt.UTC()
		if err := e.Validate(); err != nil {
			return Window{}, fmt.Errorf("%w: row %q: %w", ErrDataUnavailable, e.ID, err)
		}
		if e.OccurredAt.Before(since) {
			continue
		}
		events = append(events, e)
	}
	return Window{Events: events, Since: since, LoadedAt: now}, nil
}
