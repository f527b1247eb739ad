package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"eventmanager/internal/clock"
	"eventmanager/internal/domain"
)

// hashDisplayLength is how much of a hash Query returns.
const hashDisplayLength = 16

type auditService struct {
	repo           domain.AuditRepository
	clock          clock.Clock
	contextTimeout time.Duration
}

// NewAuditService returns an AuditService that appends to a sha256 hash chain.
func NewAuditService(repo domain.AuditRepository, clk clock.Clock, timeout time.Duration) domain.AuditService {
	return &auditService{repo: repo, clock: clk, contextTimeout: timeout}
}

func (s *auditService) Log(ctx context.Context, entry domain.AuditEntry) (*domain.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.clock.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Microsecond)
	entry.OldValue = compactJSON(entry.OldValue)
	entry.NewValue = compactJSON(entry.NewValue)

	rec, err := s.repo.Append(ctx, &entry, func(previousHash string) string {
		return ComputeAuditHash(entry, previousHash)
	})
	if err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}
	return rec, nil
}

func (s *auditService) Verify(ctx context.Context, startID, endID *int64) (*domain.ChainVerification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	logs, err := s.repo.ListRange(ctx, startID, endID)
	if err != nil {
		return nil, fmt.Errorf("list audit range: %w", err)
	}
	return VerifyChain(logs), nil
}

func (s *auditService) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	logs, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		l.Hash = truncateHash(l.Hash)
		l.PreviousHash = truncateHash(l.PreviousHash)
	}
	return logs, nil
}

// VerifyChain walks logs in order. The first log is trusted as the anchor of the range.
func VerifyChain(logs []*domain.AuditLog) *domain.ChainVerification {
	out := &domain.ChainVerification{Valid: true, Issues: []domain.ChainIssue{}}
	for i, l := range logs {
		out.Checked++
		if i > 0 && l.PreviousHash != logs[i-1].Hash {
			out.Issues = append(out.Issues, domain.ChainIssue{
				ID: l.ID, Type: domain.IssueChainBreak, Expected: logs[i-1].Hash, Actual: l.PreviousHash,
			})
		}
		if want := ComputeAuditHash(l.AuditEntry, l.PreviousHash); want != l.Hash {
			out.Issues = append(out.Issues, domain.ChainIssue{
				ID: l.ID, Type: domain.IssueHashMismatch, Expected: want, Actual: l.Hash,
			})
		}
	}
	out.Valid = len(out.Issues) == 0
	return out
}

// canonicalAuditEntry fixes the field order that is hashed.
type canonicalAuditEntry struct {
	Action       string          `json:"action"`
	Category     string          `json:"category"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	UserID       string          `json:"user_id"`
	Username     string          `json:"username"`
	IPAddress    string          `json:"ip_address"`
	UserAgent    string          `json:"user_agent"`
	OldValue     json.RawMessage `json:"old_value"`
	NewValue     json.RawMessage `json:"new_value"`
	Details      string          `json:"details"`
	Timestamp    string          `json:"timestamp"`
}

// ComputeAuditHash returns hex(sha256(canonical JSON of entry + previousHash)).
func ComputeAuditHash(entry domain.AuditEntry, previousHash string) string {
	c := canonicalAuditEntry{
		Action:       string(entry.Action),
		Category:     string(entry.Category),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		UserID:       entry.UserID,
		Username:     entry.Username,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		OldValue:     compactJSON(entry.OldValue),
		NewValue:     compactJSON(entry.NewValue),
		Details:      entry.Details,
		Timestamp:    entry.Timestamp.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
	}
	raw, err := json.Marshal(c)
	if err != nil {
		// Only reachable with invalid raw JSON values, which compactJSON already dropped.
		raw = []byte(fmt.Sprintf("%+v", c))
	}
	sum := sha256.Sum256(append(raw, previousHash...))
	return hex.EncodeToString(sum[:])
}

// compactJSON returns raw without insignificant whitespace, or nil when raw is empty or invalid.
func compactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil
	}
	if buf.String() == "null" {
		return nil
	}
	return buf.Bytes()
}

func truncateHash(h string) string {
	if len(h) <= hashDisplayLength {
		return h
	}
	return h[:hashDisplayLength] + "..."
}

// auditValue marshals v for an audit old/new value. Marshal failures yield nil.
func auditValue(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func newAuditEntry(actor domain.Actor, action domain.AuditAction, category domain.AuditCategory,
	resourceType, resourceID string, oldValue, newValue any, details string) domain.AuditEntry {
	entry := domain.AuditEntry{
		Action:       action,
		Category:     category,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Username:     actor.Username,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		OldValue:     auditValue(oldValue),
		NewValue:     auditValue(newValue),
		Details:      details,
	}
	if actor.UserID != 0 {
		entry.UserID = fmt.Sprint(actor.UserID)
	}
	return entry
}
