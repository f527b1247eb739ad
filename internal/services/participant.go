package services

import (
	"context"
	"fmt"

	"eventmanager/internal/adapters/cache"
	"eventmanager/internal/domain"
)

type participantService struct {
	core
}

// NewParticipantService returns the ParticipantService. CheckIns may be nil, in which case check-ins are written directly.
func NewParticipantService(deps Deps) domain.ParticipantService {
	return &participantService{core: newCore(deps)}
}

func (s *participantService) ListParticipants(ctx context.Context, eventID int64) ([]*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	return cache.GetOrLoad(ctx, s.Cache, cache.ParticipantsKey(eventID), func(ctx context.Context) ([]*domain.Participant, error) {
		if _, err := s.Events.GetByID(ctx, eventID); err != nil {
			return nil, err
		}
		return s.Participants.ListByEvent(ctx, eventID)
	})
}

func (s *participantService) Register(ctx context.Context, eventID int64, input domain.ParticipantInput, actor domain.Actor) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := validateParticipant(input); err != nil {
		return nil, err
	}
	input = normalizeParticipant(input)

	var (
		event *domain.Event
		p     *domain.Participant
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		count, err := s.Participants.CountByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("count participants: %w", err)
		}
		if count >= e.Seats {
			return domain.ErrEventFull
		}
		exists, err := s.Participants.EmailExists(ctx, eventID, input.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return domain.ErrDuplicateEmail
		}

		p = &domain.Participant{
			EventID:   eventID,
			Name:      input.Name,
			Email:     input.Email,
			Phone:     input.Phone,
			CreatedAt: s.Clock.Now(),
		}
		if err := s.Participants.Create(ctx, p); err != nil {
			return err
		}
		event = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "participant registered", "event_id", eventID, "participant_id", p.ID)

	s.audit(ctx, newAuditEntry(actor, domain.AuditCreate, domain.AuditCategoryParticipant, "participant", fmt.Sprint(p.ID), nil, p, ""))
	s.publish(ctx, domain.TopicParticipantRegistered, fmt.Sprint(eventID), domain.NewParticipantMessage(p, s.Clock.Now()))
	s.sendEmail(ctx, event, p, false)
	s.invalidateEvent(ctx, eventID)
	return p, nil
}

func (s *participantService) Remove(ctx context.Context, eventID, participantID int64, actor domain.Actor) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		event    *domain.Event
		removed  *domain.Participant
		promoted []*domain.Participant
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		p, err := s.Participants.GetByID(ctx, eventID, participantID)
		if err != nil {
			return err
		}
		if err := s.Participants.Delete(ctx, eventID, participantID); err != nil {
			return err
		}
		if promoted, err = s.promote(ctx, e); err != nil {
			return err
		}
		event, removed = e, p
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.InfoContext(ctx, "participant removed", "event_id", eventID, "participant_id", participantID, "promoted", len(promoted))

	s.audit(ctx, newAuditEntry(actor, domain.AuditDelete, domain.AuditCategoryParticipant, "participant", fmt.Sprint(participantID), removed, nil, ""))
	s.publish(ctx, domain.TopicParticipantRemoved, fmt.Sprint(eventID), domain.NewParticipantMessage(removed, s.Clock.Now()))
	s.notifyPromoted(ctx, event, promoted, actor)
	s.invalidateEvent(ctx, eventID)
	return nil
}

// CheckIn marks the participant as checked in. With a write-behind queue the write is deferred.
func (s *participantService) CheckIn(ctx context.Context, eventID, participantID int64, actor domain.Actor) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	p, err := s.Participants.GetByID(ctx, eventID, participantID)
	if err != nil {
		return err
	}
	if p.CheckedIn {
		return nil
	}

	if s.CheckIns != nil {
		op := domain.WriteOp{
			Kind:       domain.WriteOpCheckIn,
			EventID:    eventID,
			EntityID:   participantID,
			Value:      true,
			EnqueuedAt: s.Clock.Now(),
		}
		err := s.CheckIns.Enqueue(ctx, op)
		if err == nil {
			s.afterCheckIn(ctx, p, actor, "queued")
			return nil
		}
		s.Logger.WarnContext(ctx, "check-in enqueue failed, writing directly", "participant_id", participantID, "err", err)
	}

	if err := s.Participants.SetCheckedIn(ctx, eventID, participantID, true); err != nil {
		return err
	}
	s.afterCheckIn(ctx, p, actor, "")
	return nil
}

func (s *participantService) afterCheckIn(ctx context.Context, p *domain.Participant, actor domain.Actor, details string) {
	s.Logger.InfoContext(ctx, "participant checked in", "event_id", p.EventID, "participant_id", p.ID)
	s.audit(ctx, newAuditEntry(actor, domain.AuditUpdate, domain.AuditCategoryParticipant, "participant", fmt.Sprint(p.ID),
		map[string]bool{"checked_in": false}, map[string]bool{"checked_in": true}, details))
	s.Cache.Invalidate(ctx, []string{cache.ParticipantsKey(p.EventID), cache.AnalyticsSummaryKey})
}

func (s *participantService) JoinWaitlist(ctx context.Context, eventID int64, input domain.ParticipantInput, actor domain.Actor) (*domain.WaitlistEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := validateParticipant(input); err != nil {
		return nil, err
	}
	input = normalizeParticipant(input)

	var entry *domain.WaitlistEntry
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		count, err := s.Participants.CountByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("count participants: %w", err)
		}
		if count < e.Seats {
			return domain.ErrSeatsAvailable
		}
		registered, err := s.Participants.EmailExists(ctx, eventID, input.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		waiting, err := s.Waitlist.EmailExists(ctx, eventID, input.Email)
		if err != nil {
			return fmt.Errorf("check waitlist email: %w", err)
		}
		if registered || waiting {
			return domain.ErrDuplicateEmail
		}

		entry = &domain.WaitlistEntry{
			EventID:   eventID,
			Name:      input.Name,
			Email:     input.Email,
			Phone:     input.Phone,
			CreatedAt: s.Clock.Now(),
		}
		if err := s.Waitlist.Add(ctx, entry); err != nil {
			return err
		}
		pending, err := s.Waitlist.CountByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("count waitlist: %w", err)
		}
		entry.Position = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "waitlist joined", "event_id", eventID, "entry_id", entry.ID, "position", entry.Position)

	s.audit(ctx, newAuditEntry(actor, domain.AuditCreate, domain.AuditCategoryParticipant, "waitlist_entry", fmt.Sprint(entry.ID), nil, entry, ""))
	s.invalidateEvent(ctx, eventID)
	return entry, nil
}

func (s *participantService) ListWaitlist(ctx context.Context, eventID int64) ([]*domain.WaitlistEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if _, err := s.Events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.Waitlist.ListByEvent(ctx, eventID)
}

func (s *participantService) LeaveWaitlist(ctx context.Context, eventID, entryID int64, actor domain.Actor) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if _, err := s.Events.GetByID(ctx, eventID); err != nil {
		return err
	}
	if err := s.Waitlist.Remove(ctx, eventID, entryID); err != nil {
		return err
	}
	s.Logger.InfoContext(ctx, "waitlist left", "event_id", eventID, "entry_id", entryID)

	s.audit(ctx, newAuditEntry(actor, domain.AuditDelete, domain.AuditCategoryParticipant, "waitlist_entry", fmt.Sprint(entryID), nil, nil, ""))
	s.invalidateEvent(ctx, eventID)
	return nil
}
