package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

const eventColumns = `id, occurred_at, magnitude, depth_km, latitude, longitude, place, source, geo_source, ingested_at`

// ON CONFLICT without a target covers both the id and the natural key.
const insertEventSQL = `
INSERT INTO seismic_events (id, occurred_at, magnitude, depth_km, latitude, longitude, place, source, geo_source, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
ON CONFLICT DO NOTHING
RETURNING id`

// EventsSince implements forecast.EventSource.
func (db *DB) EventsSince(ctx context.Context, since time.Time) ([]domain.Event, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+eventColumns+` FROM seismic_events
		 WHERE occurred_at >= $1
		 ORDER BY occurred_at`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query events since %s: %w", since.Format(time.RFC3339), err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

// LatestEvent returns the most recent stored event. ok is false when the
// table is empty.
func (db *DB) LatestEvent(ctx context.Context) (event domain.Event, ok bool, err error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+eventColumns+` FROM seismic_events ORDER BY occurred_at DESC LIMIT 1`)
	if err != nil {
		return domain.Event{}, false, fmt.Errorf("query latest event: %w", err)
	}
	event, err = pgx.CollectOneRow(rows, scanEvent)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, false, nil
	}
	if err != nil {
		return domain.Event{}, false, fmt.Errorf("scan latest event: %w", err)
	}
	return event, true, nil
}

// InsertEvents stores the batch in one round trip and returns the events that
// were new. Rows that collide on the natural key, within the batch or with
// earlier batches, are skipped.
func (db *DB) InsertEvents(ctx context.Context, events []domain.Event) ([]domain.Event, error) {
	if len(events) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(insertEventSQL,
			e.ID, e.OccurredAt.UTC(), e.Magnitude, e.DepthKm, e.Latitude, e.Longitude,
			e.Place, e.Source, e.GeoSource, nullableTime(e.IngestedAt))
	}

	results := db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := make([]domain.Event, 0, len(events))
	for _, e := range events {
		var id string
		err := results.QueryRow().Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert event %s: %w", e.ID, err)
		}
		inserted = append(inserted, e)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close insert batch: %w", err)
	}
	return inserted, nil
}

// ActiveSubscriptions lists every watched location that should be notified.
func (db *DB) ActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, email, latitude, longitude, radius_km, min_magnitude, active
		 FROM subscriptions WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Subscription, error) {
		var s domain.Subscription
		err := row.Scan(&s.ID, &s.Email, &s.Latitude, &s.Longitude, &s.RadiusKm, &s.MinMagnitude, &s.Active)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan subscriptions: %w", err)
	}
	return subs, nil
}

func scanEvent(row pgx.CollectableRow) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.OccurredAt, &e.Magnitude, &e.DepthKm, &e.Latitude, &e.Longitude,
		&e.Place, &e.Source, &e.GeoSource, &e.IngestedAt)
	e.OccurredAt = e.OccurredAt.UTC()
	e.IngestedAt = e.IngestedAt.UTC()
	return e, err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
