package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"eventmanager/internal/domain"
)

// seriesSources maps a metric to the table and timestamp it counts.
var seriesSources = map[string]string{
	domain.MetricEvents:        `SELECT DATE_TRUNC($1, created_at) AS bucket, COUNT(*) FROM events WHERE created_at >= $2 GROUP BY bucket ORDER BY bucket`,
	domain.MetricRegistrations: `SELECT DATE_TRUNC($1, created_at) AS bucket, COUNT(*) FROM participants WHERE created_at >= $2 GROUP BY bucket ORDER BY bucket`,
}

type analyticsRepository struct {
	DB *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) domain.AnalyticsRepository {
	return &analyticsRepository{DB: db}
}

func (r *analyticsRepository) EventFillStats(ctx context.Context) ([]domain.EventFillStat, error) {
	query := `
		SELECT e.id, e.title, e.category, e.seats,
			COUNT(p.id) AS participants,
			COUNT(p.id) FILTER (WHERE p.checked_in) AS checked_in
		FROM events e
		LEFT JOIN participants p ON p.event_id = e.id
		GROUP BY e.id, e.title, e.category, e.seats
		ORDER BY e.id ASC
	`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EventFillStat, 0)
	for rows.Next() {
		var s domain.EventFillStat
		if err := rows.Scan(&s.EventID, &s.Title, &s.Category, &s.Seats, &s.Participants, &s.CheckedIn); err != nil {
			return nil, err
		}
		if s.Seats > 0 {
			s.FillRate = float64(s.Participants) / float64(s.Seats) * 100
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *analyticsRepository) CountSeries(ctx context.Context, metric, interval string, since time.Time) ([]domain.TimePoint, error) {
	query, ok := seriesSources[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q: %w", metric, domain.ErrInvalidInput)
	}
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, interval, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TimePoint, 0)
	for rows.Next() {
		var p domain.TimePoint
		if err := rows.Scan(&p.Bucket, &p.Count); err != nil {
			return nil, err
		}
		p.Bucket = p.Bucket.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *analyticsRepository) CategoryBaskets(ctx context.Context) ([][]string, error) {
	query := `
		SELECT lower(p.email), array_agg(DISTINCT COALESCE(NULLIF(e.category, ''), 'Other'))
		FROM participants p
		JOIN events e ON e.id = p.event_id
		GROUP BY lower(p.email)
	`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([][]string, 0)
	for rows.Next() {
		var email string
		var categories pq.StringArray
		if err := rows.Scan(&email, &categories); err != nil {
			return nil, err
		}
		out = append(out, []string(categories))
	}
	return out, rows.Err()
}
