package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Bhupin123/Sismicity/internal/domain"
)

// ListEvents returns one page of events matching f, newest first, and the
// number of matching events across all pages.
func (db *DB) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.Event, int, error) {
	where, args := filterClause(f)

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM seismic_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM seismic_events%s ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`,
		eventColumns, where, n+1, n+2)
	rows, err := db.Pool.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, 0, fmt.Errorf("scan events: %w", err)
	}
	return events, total, nil
}

// RecentEvents returns up to limit events since the given time, newest first.
func (db *DB) RecentEvents(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+eventColumns+` FROM seismic_events
		 WHERE occurred_at >= $1
		 ORDER BY occurred_at DESC
		 LIMIT $2`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan recent events: %w", err)
	}
	return events, nil
}

// Timeline buckets events by UTC period. A zero since covers the whole table.
func (db *DB) Timeline(ctx context.Context, period domain.Period, since time.Time) ([]domain.TimelineBucket, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, occurred_at AT TIME ZONE 'UTC') AS period,
		        count(*),
		        round(avg(magnitude)::numeric, 2)::float8,
		        round(max(magnitude)::numeric, 2)::float8
		 FROM seismic_events
		 WHERE $2::timestamptz IS NULL OR occurred_at >= $2
		 GROUP BY period
		 ORDER BY period`, string(period), nullableTime(since))
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	buckets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TimelineBucket, error) {
		var (
			b     domain.TimelineBucket
			start time.Time
		)
		err := row.Scan(&start, &b.Count, &b.AvgMagnitude, &b.MaxMagnitude)
		b.Period = start.Format(time.DateOnly)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan timeline: %w", err)
	}
	return buckets, nil
}

// PlaceActivity ranks place labels by event count, ties by name.
func (db *DB) PlaceActivity(ctx context.Context, limit int) ([]domain.PlaceActivity, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT place,
		        count(*) AS n,
		        round(avg(magnitude)::numeric, 2)::float8,
		        max(magnitude)
		 FROM seismic_events
		 GROUP BY place
		 ORDER BY n DESC, place
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query place activity: %w", err)
	}
	places, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PlaceActivity, error) {
		var p domain.PlaceActivity
		err := row.Scan(&p.Place, &p.Count, &p.AvgMagnitude, &p.MaxMagnitude)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan place activity: %w", err)
	}
	return places, nil
}

// filterClause renders f as a WHERE clause with numbered placeholders.
func filterClause(f domain.EventFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.MinMagnitude != nil {
		add("magnitude >= $%d", *f.MinMagnitude)
	}
	if f.MaxMagnitude != nil {
		add("magnitude <= $%d", *f.MaxMagnitude)
	}
	if !f.Since.IsZero() {
		add("occurred_at >= $%d", f.Since.UTC())
	}
	if f.Major != nil {
		add("is_major = $%d", *f.Major)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
