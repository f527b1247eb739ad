package postgres

import (
	"context"
	"database/sql"

	"eventmanager/internal/domain"
)

type participantRepository struct {
	DB *sql.DB
}

func NewParticipantRepository(db *sql.DB) domain.ParticipantRepository {
	return &participantRepository{DB: db}
}

func (r *participantRepository) Create(ctx context.Context, p *domain.Participant) error {
	query := `
		INSERT INTO participants (event_id, name, email, phone, checked_in, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, p.EventID, p.Name, p.Email, p.Phone, p.CheckedIn, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, eventID, id int64) (*domain.Participant, error) {
	query := `
		SELECT id, event_id, name, email, phone, checked_in, created_at
		FROM participants
		WHERE id = $1 AND event_id = $2
	`
	p := &domain.Participant{}
	err := conn(ctx, r.DB).QueryRowContext(ctx, query, id, eventID).
		Scan(&p.ID, &p.EventID, &p.Name, &p.Email, &p.Phone, &p.CheckedIn, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *participantRepository) ListByEvent(ctx context.Context, eventID int64) ([]*domain.Participant, error) {
	query := `
		SELECT id, event_id, name, email, phone, checked_in, created_at
		FROM participants
		WHERE event_id = $1
		ORDER BY id ASC
	`
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Participant, 0)
	for rows.Next() {
		p := &domain.Participant{}
		if err := rows.Scan(&p.ID, &p.EventID, &p.Name, &p.Email, &p.Phone, &p.CheckedIn, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *participantRepository) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	var n int
	err := conn(ctx, r.DB).QueryRowContext(ctx, `SELECT COUNT(*) FROM participants WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

func (r *participantRepository) EmailExists(ctx context.Context, eventID int64, email string) (bool, error) {
	var exists bool
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE event_id = $1 AND lower(email) = lower($2))`,
		eventID, email,
	).Scan(&exists)
	return exists, err
}

func (r *participantRepository) SetCheckedIn(ctx context.Context, eventID, id int64, checkedIn bool) error {
	result, err := conn(ctx, r.DB).ExecContext(ctx,
		`UPDATE participants SET checked_in = $1 WHERE id = $2 AND event_id = $3`,
		checkedIn, id, eventID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *participantRepository) Delete(ctx context.Context, eventID, id int64) error {
	result, err := conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM participants WHERE id = $1 AND event_id = $2`, id, eventID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

func (r *participantRepository) DeleteByEvent(ctx context.Context, eventID int64) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx, `DELETE FROM participants WHERE event_id = $1`, eventID)
	return err
}
