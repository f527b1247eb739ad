package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"eventmanager/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// eventSearchRepository is the ILIKE fallback used when Elasticsearch is unavailable.
type eventSearchRepository struct {
	DB *sql.DB
}

func NewEventSearchRepository(db *sql.DB) domain.EventSearcher {
	return &eventSearchRepository{DB: db}
}

func (r *eventSearchRepository) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	start := time.Now()
	page, size := normalizePage(q.Page, q.PageSize)

	var where []string
	var args []any
	if text := strings.TrimSpace(q.Text); text != "" {
		args = append(args, "%"+likeEscaper.Replace(text)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q.Location != "" {
		args = append(args, "%"+likeEscaper.Replace(q.Location)+"%")
		where = append(where, fmt.Sprintf("location ILIKE $%d", len(args)))
	}
	if q.DateFrom != nil {
		args = append(args, *q.DateFrom)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if q.DateTo != nil {
		args = append(args, *q.DateTo)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	db := conn(ctx, r.DB)
	result := &domain.SearchResult{
		Page:         page,
		PageSize:     size,
		Hits:         make([]domain.SearchHit, 0),
		Aggregations: map[string]map[string]int64{},
		Backend:      "postgres",
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+clause, args...).Scan(&result.Total); err != nil {
		return nil, fmt.Errorf("count search results: %w", err)
	}

	pageArgs := append(append([]any{}, args...), size, (page-1)*size)
	query := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY date ASC, id ASC LIMIT $%d OFFSET $%d`,
		eventColumns, clause, len(pageArgs)-1, len(pageArgs))
	rows, err := db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result.Hits = append(result.Hits, domain.SearchHit{Event: *e, Score: 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for name, column := range map[string]string{"categories": "category", "locations": "location"} {
		buckets, err := r.facet(ctx, column, clause, args)
		if err != nil {
			return nil, err
		}
		result.Aggregations[name] = buckets
	}
	result.TookMs = time.Since(start).Milliseconds()
	return result, nil
}

func (r *eventSearchRepository) facet(ctx context.Context, column, clause string, args []any) (map[string]int64, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM events%s GROUP BY %s ORDER BY COUNT(*) DESC LIMIT 10`, column, clause, column)
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("facet %s: %w", column, err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (r *eventSearchRepository) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	if size <= 0 {
		size = 5
	}
	rows, err := conn(ctx, r.DB).QueryContext(ctx,
		`SELECT DISTINCT title FROM events WHERE title ILIKE $1 ORDER BY title ASC LIMIT $2`,
		likeEscaper.Replace(prefix)+"%", size,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		out = append(out, title)
	}
	return out, rows.Err()
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
