package postgres

import (
	"context"
	"database/sql"

	"eventmanager/internal/domain"
)

type waitlistRepository struct {
	DB *sql.DB
}

func NewWaitlistRepository(db *sql.DB) domain.WaitlistRepository {
	return &waitlistRepository{DB: db}
}

func (r *waitlistRepository) Add(ctx context.Context, w *domain.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (event_id, name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, w.EventID, w.Name, w.Email, w.Phone, w.CreatedAt).Scan(&w.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// ListByEvent returns entries in queue order with 1-based positions.
func (r *waitlistRepository) ListByEvent(ctx context.Context, eventID int64) ([]*domain.WaitlistEntry, error) {
	query := `
		SELECT id, event_id, name, email, phone, created_at
		FROM waitlist_entries
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.WaitlistEntry, 0)
	for rows.Next() {
		w := &domain.WaitlistEntry{}
		if err := rows.Scan(&w.ID, &w.EventID, &w.Name, &w.Email, &w.Phone, &w.CreatedAt); err != nil {
			return nil, err
		}
		w.Position = len(out) + 1
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *waitlistRepository) Head(ctx context.Context, eventID int64) (*domain.WaitlistEntry, error) {
	query := `
		SELECT id, event_id, name, email, phone, created_at
		FROM waitlist_entries
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE
	`
	w := &domain.WaitlistEntry{Position: 1}
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, eventID).
		Scan(&w.ID, &w.EventID, &w.Name, &w.Email, &w.Phone, &w.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func (r *waitlistRepository) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	var n int
	err := conn(ctx, r.DB).QueryRowContext(ctx, `SELECT COUNT(*) FROM waitlist_entries WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

func (r *waitlistRepository) EmailExists(ctx context.Context, eventID int64, email string) (bool, error) {
	var exists bool
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM waitlist_entries WHERE event_id = $1 AND lower(email) = lower($2))`,
		eventID, email,
	).Scan(&exists)
	return exists, err
}

func (r *waitlistRepository) Remove(ctx context.Context, eventID, id int64) error {
	result, err := conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1 AND event_id = $2`, id, eventID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *waitlistRepository) DeleteByEvent(ctx context.Context, eventID int64) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM waitlist_entries WHERE event_id = $1`, eventID)
	return err
}
