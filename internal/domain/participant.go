package domain

import (
	"context"
	"time"
)

// Participant is a registrant attached to an event.
// swagger:model Participant
type Participant struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CheckedIn bool      `json:"checked_in"`
	CreatedAt time.Time `json:"created_at"`
}

// ParticipantInput is the registration payload shared by participants and waitlist entries.
type ParticipantInput struct {
	Name  string
	Email string
	Phone string
}

// WaitlistEntry is a queued registration for a full event. Position is 1-based.
// swagger:model WaitlistEntry
type WaitlistEntry struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// ToParticipant converts a waitlist entry into a participant for promotion.
func (w *WaitlistEntry) ToParticipant(now time.Time) *Participant {
	return &Participant{
		EventID:   w.EventID,
		Name:      w.Name,
		Email:     w.Email,
		Phone:     w.Phone,
		CreatedAt: now,
	}
}

// ParticipantRepository defines storage operations for participants.
type ParticipantRepository interface {
	Create(ctx context.Context, p *Participant) error
	GetByID(ctx context.Context, eventID, id int64) (*Participant, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*Participant, error)
	CountByEvent(ctx context.Context, eventID int64) (int, error)
	EmailExists(ctx context.Context, eventID int64, email string) (bool, error)
	SetCheckedIn(ctx context.Context, eventID, id int64, checkedIn bool) error
	Delete(ctx context.Context, eventID, id int64) error
	DeleteByEvent(ctx context.Context, eventID int64) error
}

// WaitlistRepository defines storage operations for the per-event FIFO waitlist.
type WaitlistRepository interface {
	Add(ctx context.Context, entry *WaitlistEntry) error
	ListByEvent(ctx context.Context, eventID int64) ([]*WaitlistEntry, error)
	// Head returns the oldest entry, locked, or ErrNotFound when the waitlist is empty.
	Head(ctx context.Context, eventID int64) (*WaitlistEntry, error)
	CountByEvent(ctx context.Context, eventID int64) (int, error)
	EmailExists(ctx context.Context, eventID int64, email string) (bool, error)
	Remove(ctx context.Context, eventID, id int64) error
	DeleteByEvent(ctx context.Context, eventID int64) error
}

// ParticipantService defines registration, removal, check-in and waitlist operations.
type ParticipantService interface {
	ListParticipants(ctx context.Context, eventID int64) ([]*Participant, error)
	Register(ctx context.Context, eventID int64, input ParticipantInput, actor Actor) (*Participant, error)
	Remove(ctx context.Context, eventID, participantID int64, actor Actor) error
	CheckIn(ctx context.Context, eventID, participantID int64, actor Actor) error
	JoinWaitlist(ctx context.Context, eventID int64, input ParticipantInput, actor Actor) (*WaitlistEntry, error)
	ListWaitlist(ctx context.Context, eventID int64) ([]*WaitlistEntry, error)
	LeaveWaitlist(ctx context.Context, eventID, entryID int64, actor Actor) error
}
