package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"eventmanager/internal/domain"
)

// auditLockID serialises chain appends across replicas.
const auditLockID int64 = 727001002

const auditColumns = `id, action, category, resource_type, resource_id, user_id, username, ip_address, user_agent,
	old_value, new_value, details, timestamp, hash, previous_hash`

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type auditRepository struct {
	DB *sql.DB
}

func NewAuditRepository(db *sql.DB) domain.AuditRepository {
	return &auditRepository{DB: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry, hashFn func(previousHash string) string) (*domain.AuditLog, error) {
	var out *domain.AuditLog
	err := withTx(ctx, r.DB, func(ctx context.Context) error {
		q := conn(ctx, r.DB)
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, auditLockID); err != nil {
			return fmt.Errorf("lock audit chain: %w", err)
		}

		var previous string
		err := q.QueryRowContext(ctx, `SELECT hash FROM audit_logs ORDER BY id DESC LIMIT 1`).Scan(&previous)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read last audit hash: %w", err)
		}
		previous = strings.TrimSpace(previous)
		hash := hashFn(previous)

		query := `
			INSERT INTO audit_logs (action, category, resource_type, resource_id, user_id, username, ip_address,
				user_agent, old_value, new_value, details, timestamp, hash, previous_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id
		`
		rec := &domain.AuditLog{AuditEntry: *entry, Hash: hash, PreviousHash: previous}
		if err := q.QueryRowContext(ctx, query,
			string(entry.Action), string(entry.Category), entry.ResourceType, entry.ResourceID,
			entry.UserID, entry.Username, entry.IPAddress, entry.UserAgent,
			rawToNull(entry.OldValue), rawToNull(entry.NewValue), entry.Details, entry.Timestamp,
			hash, previous,
		).Scan(&rec.ID); err != nil {
			return fmt.Errorf("insert audit log: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *auditRepository) ListRange(ctx context.Context, startID, endID *int64) ([]*domain.AuditLog, error) {
	var where []string
	var args []any
	if startID != nil {
		args = append(args, *startID)
		where = append(where, fmt.Sprintf("id >= $%d", len(args)))
	}
	if endID != nil {
		args = append(args, *endID)
		where = append(where, fmt.Sprintf("id <= $%d", len(args)))
	}
	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id ASC`
	return r.list(ctx, query, args...)
}

func (r *auditRepository) Query(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditLog, error) {
	var where []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.ResourceType != "" {
		add("resource_type = $%d", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("resource_id = $%d", f.ResourceID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp <= $%d", *f.To)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY timestamp DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return r.list(ctx, query, args...)
}

func (r *auditRepository) list(ctx context.Context, query string, args ...any) ([]*domain.AuditLog, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.AuditLog, 0)
	for rows.Next() {
		l := &domain.AuditLog{}
		var action, category string
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&l.ID, &action, &category, &l.ResourceType, &l.ResourceID, &l.UserID, &l.Username,
			&l.IPAddress, &l.UserAgent, &oldValue, &newValue, &l.Details, &l.Timestamp, &l.Hash, &l.PreviousHash); err != nil {
			return nil, err
		}
		l.Action = domain.AuditAction(action)
		l.Category = domain.AuditCategory(category)
		l.Hash = strings.TrimSpace(l.Hash)
		if oldValue.Valid {
			l.OldValue = json.RawMessage(oldValue.String)
		}
		if newValue.Valid {
			l.NewValue = json.RawMessage(newValue.String)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func rawToNull(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
