package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventmanager/internal/adapters/cache"
	"eventmanager/internal/domain"
)

type eventService struct {
	core
}

// NewEventService returns the EventService. Events, Participants, Waitlist and Tx are required.
func NewEventService(deps Deps) domain.EventService {
	return &eventService{core: newCore(deps)}
}

type eventPage struct {
	Events []*domain.Event `json:"events"`
	Total  int             `json:"total"`
}

func (s *eventService) ListEvents(ctx context.Context, params domain.PaginationParams) ([]*domain.Event, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	page, err := cache.GetOrLoad(ctx, s.Cache, cache.EventListKey(params.Page, params.PageSize),
		func(ctx context.Context) (eventPage, error) {
			events, total, err := s.Events.List(ctx, params)
			if err != nil {
				return eventPage{}, err
			}
			return eventPage{Events: events, Total: total}, nil
		})
	if err != nil {
		return nil, 0, err
	}
	return page.Events, page.Total, nil
}

func (s *eventService) GetEvent(ctx context.Context, id int64) (*domain.EventDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	return cache.GetOrLoad(ctx, s.Cache, cache.EventKey(id), func(ctx context.Context) (*domain.EventDetails, error) {
		e, err := s.Events.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		participants, err := s.Participants.CountByEvent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("count participants: %w", err)
		}
		waiting, err := s.Waitlist.CountByEvent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("count waitlist: %w", err)
		}
		return domain.NewEventDetails(e, participants, waiting), nil
	})
}

func (s *eventService) CreateEvent(ctx context.Context, input domain.EventInput, actor domain.Actor) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	date, err := validateEvent(ctx, s.Logger, input)
	if err != nil {
		return nil, err
	}

	e := domain.NewEvent(strings.TrimSpace(input.Title), input.Description, strings.TrimSpace(input.Location),
		input.Category, date, input.Seats, s.Clock.Now())
	if err := s.Events.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.Logger.InfoContext(ctx, "event created", "event_id", e.ID, "user", actor.Username)

	s.audit(ctx, newAuditEntry(actor, domain.AuditCreate, domain.AuditCategoryEvent, "event", fmt.Sprint(e.ID), nil, e, ""))
	s.publish(ctx, domain.TopicEventCreated, fmt.Sprint(e.ID), domain.NewEventMessage(e))
	s.index(ctx, e)
	s.invalidateEvent(ctx, e.ID)
	return e, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, id int64, update domain.EventUpdate, actor domain.Actor) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if update.Empty() {
		return nil, domain.NewValidationError([]string{"no fields to update"})
	}

	var (
		before, after *domain.Event
		promoted      []*domain.Participant
	)
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.Events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		old := *current
		before = &old

		input := mergeEventUpdate(current, update)
		date, err := validateEvent(ctx, s.Logger, input)
		if err != nil {
			return err
		}

		count, err := s.Participants.CountByEvent(ctx, id)
		if err != nil {
			return fmt.Errorf("count participants: %w", err)
		}
		if input.Seats < count {
			return domain.NewValidationError([]string{
				fmt.Sprintf("seats cannot be less than the %d registered participants", count),
			})
		}

		current.Title = strings.TrimSpace(input.Title)
		current.Description = input.Description
		current.Location = strings.TrimSpace(input.Location)
		current.Category = input.Category
		current.Date = date
		current.Seats = input.Seats
		current.UpdatedAt = s.Clock.Now()
		if err := s.Events.Update(ctx, current); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		after = current

		if current.Seats > before.Seats {
			promoted, err = s.promote(ctx, current)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.InfoContext(ctx, "event updated", "event_id", id, "user", actor.Username, "promoted", len(promoted))

	s.audit(ctx, newAuditEntry(actor, domain.AuditUpdate, domain.AuditCategoryEvent, "event", fmt.Sprint(id), before, after, ""))
	s.publish(ctx, domain.TopicEventUpdated, fmt.Sprint(id), domain.NewEventMessage(after))
	s.notifyPromoted(ctx, after, promoted, actor)
	s.index(ctx, after)
	s.invalidateEvent(ctx, id)
	return after, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, id int64, actor domain.Actor) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var deleted *domain.Event
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.Events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.Participants.DeleteByEvent(ctx, id); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		if err := s.Waitlist.DeleteByEvent(ctx, id); err != nil {
			return fmt.Errorf("delete waitlist: %w", err)
		}
		if err := s.Events.Delete(ctx, id); err != nil {
			return err
		}
		deleted = e
		return nil
	})
	if err != nil {
		return err
	}
	s.Logger.InfoContext(ctx, "event deleted", "event_id", id, "user", actor.Username)

	s.audit(ctx, newAuditEntry(actor, domain.AuditDelete, domain.AuditCategoryEvent, "event", fmt.Sprint(id), deleted, nil, ""))
	s.publish(ctx, domain.TopicEventDeleted, fmt.Sprint(id), domain.NewEventMessage(deleted))
	s.unindex(ctx, id)
	s.invalidateEvent(ctx, id)
	return nil
}

// Reindex pushes every event to the search index and returns how many were indexed.
func (s *eventService) Reindex(ctx context.Context) (int, error) {
	if s.Indexer == nil {
		return 0, nil
	}
	events, err := s.Events.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	n, err := s.Indexer.BulkIndex(ctx, events)
	if err != nil {
		return n, fmt.Errorf("bulk index: %w", err)
	}
	s.Logger.InfoContext(ctx, "search reindexed", "events", len(events), "indexed", n)
	return n, nil
}

func mergeEventUpdate(e *domain.Event, u domain.EventUpdate) domain.EventInput {
	in := domain.EventInput{
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Category:    e.Category,
		Date:        e.Date.Format(time.RFC3339),
		Seats:       e.Seats,
	}
	if u.Title != nil {
		in.Title = *u.Title
	}
	if u.Description != nil {
		in.Description = *u.Description
	}
	if u.Location != nil {
		in.Location = *u.Location
	}
	if u.Category != nil {
		in.Category = *u.Category
	}
	if u.Date != nil {
		in.Date = *u.Date
	}
	if u.Seats != nil {
		in.Seats = *u.Seats
	}
	return in
}
