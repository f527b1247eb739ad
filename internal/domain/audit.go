package domain

import (
	"context"
	"encoding/json"
	"time"
)

// AuditAction is what happened.
type AuditAction string

const (
	AuditCreate           AuditAction = "CREATE"
	AuditRead             AuditAction = "READ"
	AuditUpdate           AuditAction = "UPDATE"
	AuditDelete           AuditAction = "DELETE"
	AuditLogin            AuditAction = "LOGIN"
	AuditLogout           AuditAction = "LOGOUT"
	AuditPermissionChange AuditAction = "PERMISSION_CHANGE"
	AuditExport           AuditAction = "EXPORT"
	AuditFailedLogin      AuditAction = "FAILED_LOGIN"
)

// AuditCategory groups actions by subject area.
type AuditCategory string

const (
	AuditCategoryUser        AuditCategory = "USER"
	AuditCategoryEvent       AuditCategory = "EVENT"
	AuditCategoryParticipant AuditCategory = "PARTICIPANT"
	AuditCategorySystem      AuditCategory = "SYSTEM"
	AuditCategorySecurity    AuditCategory = "SECURITY"
	AuditCategoryData        AuditCategory = "DATA"
)

// AuditEntry is the hashed content of one audit record.
type AuditEntry struct {
	Action       AuditAction     `json:"action"`
	Category     AuditCategory   `json:"category"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	UserID       string          `json:"user_id"`
	Username     string          `json:"username"`
	IPAddress    string          `json:"ip_address"`
	UserAgent    string          `json:"user_agent"`
	OldValue     json.RawMessage `json:"old_value,omitempty"`
	NewValue     json.RawMessage `json:"new_value,omitempty"`
	Details      string          `json:"details"`
	Timestamp    time.Time       `json:"timestamp"`
}

// AuditLog is a persisted audit entry with its chain links.
// swagger:model AuditLog
type AuditLog struct {
	ID int64 `json:"id"`
	AuditEntry
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash"`
}

// AuditFilter narrows an audit query. Zero values are ignored.
type AuditFilter struct {
	UserID       string
	ResourceType string
	ResourceID   string
	Action       AuditAction
	Category     AuditCategory
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// Chain issue kinds reported by verification.
const (
	IssueChainBreak   = "chain_break"
	IssueHashMismatch = "hash_mismatch"
)

// ChainIssue describes one integrity problem.
type ChainIssue struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ChainVerification is the result of walking a range of the audit chain.
// swagger:model ChainVerification
type ChainVerification struct {
	Valid   bool         `json:"valid"`
	Checked int          `json:"checked"`
	Issues  []ChainIssue `json:"issues"`
}

// AuditRepository stores the append-only audit chain.
type AuditRepository interface {
	// Append serialises writers, reads the last hash, and stores entry with hashFn(previousHash).
	Append(ctx context.Context, entry *AuditEntry, hashFn func(previousHash string) string) (*AuditLog, error)
	ListRange(ctx context.Context, startID, endID *int64) ([]*AuditLog, error)
	Query(ctx context.Context, filter AuditFilter) ([]*AuditLog, error)
}

// AuditService records and verifies the audit trail.
type AuditService interface {
	Log(ctx context.Context, entry AuditEntry) (*AuditLog, error)
	Verify(ctx context.Context, startID, endID *int64) (*ChainVerification, error)
	Query(ctx context.Context, filter AuditFilter) ([]*AuditLog, error)
}
