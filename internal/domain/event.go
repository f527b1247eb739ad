package domain

import (
	"context"
	"time"
)

// Event is a schedulable activity with a fixed seat capacity.
// swagger:model Event
type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Seats       int       `json:"seats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is set by the repository on create.
func NewEvent(title, description, location, category string, date time.Time, seats int, now time.Time) *Event {
	return &Event{
		Title:       title,
		Description: description,
		Location:    location,
		Category:    category,
		Date:        date,
		Seats:       seats,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// EventDetails is an event plus its current occupancy.
// swagger:model EventDetails
type EventDetails struct {
	Event
	ParticipantCount int `json:"participant_count"`
	WaitlistCount    int `json:"waitlist_count"`
	AvailableSeats   int `json:"available_seats"`
}

// NewEventDetails derives AvailableSeats, never below zero.
func NewEventDetails(e *Event, participants, waitlist int) *EventDetails {
	available := e.Seats - participants
	if available < 0 {
		available = 0
	}
	return &EventDetails{Event: *e, ParticipantCount: participants, WaitlistCount: waitlist, AvailableSeats: available}
}

// EventInput is the raw data for creating an event. Date is kept as text until validated.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Category    string
	Date        string
	Seats       int
}

// EventUpdate holds optional fields for a partial update; nil means unchanged.
type EventUpdate struct {
	Title       *string
	Description *string
	Location    *string
	Category    *string
	Date        *string
	Seats       *int
}

// Empty reports whether no field is set.
func (u EventUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Location == nil &&
		u.Category == nil && u.Date == nil && u.Seats == nil
}

// Actor identifies who triggered a mutation, for audit records.
type Actor struct {
	UserID    int64
	Username  string
	Role      string
	IPAddress string
	UserAgent string
}

// Transactor runs fn inside a database transaction carried by the context.
// Repository calls made with that context join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id int64) (*Event, error)
	// GetForUpdate locks the event row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Event, error)
	List(ctx context.Context, params PaginationParams) ([]*Event, int, error)
	ListAll(ctx context.Context) ([]*Event, error)
	Update(ctx context.Context, event *Event) error
	Delete(ctx context.Context, id int64) error
}

// EventService defines the business logic for events.
type EventService interface {
	ListEvents(ctx context.Context, params PaginationParams) ([]*Event, int, error)
	GetEvent(ctx context.Context, id int64) (*EventDetails, error)
	CreateEvent(ctx context.Context, input EventInput, actor Actor) (*Event, error)
	UpdateEvent(ctx context.Context, id int64, update EventUpdate, actor Actor) (*Event, error)
	DeleteEvent(ctx context.Context, id int64, actor Actor) error
	Reindex(ctx context.Context) (int, error)
}
