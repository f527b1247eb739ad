package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/domain"
)

var auditRowColumns = []string{"id", "action", "category", "resource_type", "resource_id", "user_id", "username",
	"ip_address", "user_agent", "old_value", "new_value", "details", "timestamp", "hash", "previous_hash"}

func TestAuditRepository_Append(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	entry := &domain.AuditEntry{
		Action: domain.AuditCreate, Category: domain.AuditCategoryEvent,
		ResourceType: "event", ResourceID: "1", UserID: "2", Username: "alice",
		NewValue: json.RawMessage(`{"title":"A"}`), Timestamp: ts,
	}

	tests := []struct {
		name         string
		lastHash     func(mock sqlmock.Sqlmock)
		wantPrevious string
	}{
		{
			name: "first entry has empty previous hash",
			lastHash: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT hash FROM audit_logs ORDER BY id DESC LIMIT 1`).WillReturnError(sql.ErrNoRows)
			},
			wantPrevious: "",
		},
		{
			name: "links to last hash",
			lastHash: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT hash FROM audit_logs ORDER BY id DESC LIMIT 1`).
					WillReturnRows(sqlmock.NewRows([]string{"hash"}).AddRow("abc"))
			},
			wantPrevious: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
				WithArgs(auditLockID).
				WillReturnResult(sqlmock.NewResult(0, 0))
			tt.lastHash(mock)
			mock.ExpectQuery(`INSERT INTO audit_logs`).
				WithArgs("CREATE", "EVENT", "event", "1", "2", "alice", "", "",
					sql.NullString{}, sql.NullString{String: `{"title":"A"}`, Valid: true}, "", ts,
					"h("+tt.wantPrevious+")", tt.wantPrevious).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
			mock.ExpectCommit()

			var seen string
			rec, err := NewAuditRepository(db).Append(ctx, entry, func(prev string) string {
				seen = prev
				return "h(" + prev + ")"
			})
			require.NoError(t, err)
			require.Equal(t, tt.wantPrevious, seen)
			require.Equal(t, int64(42), rec.ID)
			require.Equal(t, tt.wantPrevious, rec.PreviousHash)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAuditRepository_ListRange(t *testing.T) {
	ts := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start, end := int64(2), int64(5)
	mock.ExpectQuery(`FROM audit_logs WHERE id >= \$1 AND id <= \$2 ORDER BY id ASC`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows(auditRowColumns).
			AddRow(int64(2), "UPDATE", "EVENT", "event", "1", "2", "alice", "", "", `{"a":1}`, nil, "", ts, "hash2   ", "hash1"))

	logs, err := NewAuditRepository(db).ListRange(context.Background(), &start, &end)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.AuditUpdate, logs[0].Action)
	require.Equal(t, "hash2", logs[0].Hash)
	require.JSONEq(t, `{"a":1}`, string(logs[0].OldValue))
	require.Nil(t, logs[0].NewValue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`WHERE resource_type = \$1 AND action = \$2 ORDER BY timestamp DESC, id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("event", "DELETE", maxAuditLimit, 0).
		WillReturnRows(sqlmock.NewRows(auditRowColumns))

	logs, err := NewAuditRepository(db).Query(context.Background(), domain.AuditFilter{
		ResourceType: "event", Action: domain.AuditDelete, Limit: 5000, Offset: -1,
	})
	require.NoError(t, err)
	require.Empty(t, logs)
	require.NoError(t, mock.ExpectationsWereMet())
}
