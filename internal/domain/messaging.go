package domain

import (
	"context"
	"time"
)

// Topics published by the event service.
const (
	TopicEventCreated          = "event.created"
	TopicEventUpdated          = "event.updated"
	TopicEventDeleted          = "event.deleted"
	TopicParticipantRegistered = "participant.registered"
	TopicParticipantRemoved    = "participant.removed"
	TopicParticipantPromoted   = "participant.promoted"
)

// AllTopics lists every domain topic, in publish order of a typical event lifecycle.
var AllTopics = []string{
	TopicEventCreated,
	TopicEventUpdated,
	TopicEventDeleted,
	TopicParticipantRegistered,
	TopicParticipantRemoved,
	TopicParticipantPromoted,
}

// EventMessage is the payload of event.* topics.
type EventMessage struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location"`
	Category    string    `json:"category,omitempty"`
	Date        time.Time `json:"date"`
	Seats       int       `json:"seats"`
}

// NewEventMessage builds the wire payload for an event.
func NewEventMessage(e *Event) EventMessage {
	return EventMessage{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Category:    e.Category,
		Date:        e.Date,
		Seats:       e.Seats,
	}
}

// ParticipantMessage is the payload of participant.* topics.
type ParticipantMessage struct {
	EventID       int64     `json:"event_id"`
	ParticipantID int64     `json:"participant_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewParticipantMessage builds the wire payload for a participant change.
func NewParticipantMessage(p *Participant, at time.Time) ParticipantMessage {
	return ParticipantMessage{
		EventID:       p.EventID,
		ParticipantID: p.ID,
		Name:          p.Name,
		Email:         p.Email,
		OccurredAt:    at,
	}
}

// EventPublisher sends domain messages to the broker. key groups messages on one partition.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}
