package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventmanager/internal/adapters/cache"
	"eventmanager/internal/clock"
	"eventmanager/internal/domain"
)

// Deps are the collaborators shared by the event and participant services.
// Publisher, Indexer, Audit, Email and Cache may be nil.
type Deps struct {
	Events       domain.EventRepository
	Participants domain.ParticipantRepository
	Waitlist     domain.WaitlistRepository
	Tx           domain.Transactor
	Cache        *cache.ReadThrough
	Publisher    domain.EventPublisher
	Indexer      domain.EventIndexer
	Audit        domain.AuditService
	Email        domain.EmailService
	CheckIns     domain.WriteBehindQueue
	Clock        clock.Clock
	Logger       *slog.Logger
	Timeout      time.Duration
}

// core holds the side effects that follow a committed mutation. None of them fail the request.
type core struct {
	Deps
}

func newCore(d Deps) core {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	return core{Deps: d}
}

func (c *core) publish(ctx context.Context, topic, key string, payload any) {
	if c.Publisher == nil {
		return
	}
	if err := c.Publisher.Publish(ctx, topic, key, payload); err != nil {
		c.Logger.ErrorContext(ctx, "publish failed", "topic", topic, "key", key, "err", err)
	}
}

func (c *core) audit(ctx context.Context, entry domain.AuditEntry) {
	if c.Audit == nil {
		return
	}
	if _, err := c.Audit.Log(ctx, entry); err != nil {
		c.Logger.ErrorContext(ctx, "audit log failed", "action", entry.Action, "resource", entry.ResourceType,
			"resource_id", entry.ResourceID, "err", err)
	}
}

// invalidateEvent drops the event detail, its sub-resources, every list page and the analytics summary.
func (c *core) invalidateEvent(ctx context.Context, id int64) {
	c.Cache.Invalidate(ctx,
		[]string{cache.EventKey(id), cache.AnalyticsSummaryKey},
		cache.EventListPattern, cache.EventSubresourcePattern(id))
}

func (c *core) index(ctx context.Context, e *domain.Event) {
	if c.Indexer == nil {
		return
	}
	if err := c.Indexer.Index(ctx, e); err != nil {
		c.Logger.WarnContext(ctx, "search index failed", "event_id", e.ID, "err", err)
	}
}

func (c *core) unindex(ctx context.Context, id int64) {
	if c.Indexer == nil {
		return
	}
	if err := c.Indexer.Delete(ctx, id); err != nil {
		c.Logger.WarnContext(ctx, "search unindex failed", "event_id", id, "err", err)
	}
}

// promote moves waitlist heads into participants while e has free seats.
// It must run inside a transaction that holds the event row lock.
func (c *core) promote(ctx context.Context, e *domain.Event) ([]*domain.Participant, error) {
	count, err := c.Participants.CountByEvent(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}

	var promoted []*domain.Participant
	for count < e.Seats {
		head, err := c.Waitlist.Head(ctx, e.ID)
		if errors.Is(err, domain.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("waitlist head: %w", err)
		}
		if err := c.Waitlist.Remove(ctx, e.ID, head.ID); err != nil {
			return nil, fmt.Errorf("remove waitlist entry %d: %w", head.ID, err)
		}
		p := head.ToParticipant(c.Clock.Now())
		if err := c.Participants.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("promote waitlist entry %d: %w", head.ID, err)
		}
		promoted = append(promoted, p)
		count++
	}
	return promoted, nil
}

// notifyPromoted runs after the promoting transaction commits.
func (c *core) notifyPromoted(ctx context.Context, e *domain.Event, promoted []*domain.Participant, actor domain.Actor) {
	for _, p := range promoted {
		c.Logger.InfoContext(ctx, "waitlist entry promoted", "event_id", e.ID, "participant_id", p.ID)
		c.audit(ctx, newAuditEntry(actor, domain.AuditCreate, domain.AuditCategoryParticipant,
			"participant", fmt.Sprint(p.ID), nil, p, "promoted from waitlist"))
		c.publish(ctx, domain.TopicParticipantPromoted, fmt.Sprint(e.ID), domain.NewParticipantMessage(p, c.Clock.Now()))
		c.sendEmail(ctx, e, p, true)
	}
}

func (c *core) sendEmail(ctx context.Context, e *domain.Event, p *domain.Participant, promoted bool) {
	if c.Email == nil {
		return
	}
	data := &domain.RegistrationEmailData{
		Email:      p.Email,
		Name:       p.Name,
		EventTitle: e.Title,
		EventDate:  e.Date.Format("Monday, January 2, 2006 15:04 MST"),
		Location:   e.Location,
	}
	send := c.Email.SendRegistrationConfirmed
	if promoted {
		send = c.Email.SendWaitlistPromoted
	}
	if err := send(ctx, data); err != nil {
		c.Logger.WarnContext(ctx, "email failed", "event_id", e.ID, "to", p.Email, "err", err)
	}
}
