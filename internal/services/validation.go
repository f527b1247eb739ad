package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"eventmanager/internal/domain"
	"eventmanager/internal/quality"
)

const dateOnly = "2006-01-02"

var (
	eventValidator       = quality.EventValidator()
	participantValidator = quality.ParticipantValidator()
	userValidator        = quality.UserValidator()
)

// parseEventDate accepts RFC3339 or YYYY-MM-DD, returned in UTC.
func parseEventDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// validateEvent checks input and returns its parsed date. Warnings are logged.
func validateEvent(ctx context.Context, logger *slog.Logger, in domain.EventInput) (time.Time, error) {
	rep := eventValidator.Validate(quality.Record{
		"title":       strings.TrimSpace(in.Title),
		"description": in.Description,
		"location":    strings.TrimSpace(in.Location),
		"category":    in.Category,
		"date":        strings.TrimSpace(in.Date),
		"seats":       in.Seats,
	})
	problems := rep.Problems()

	var date time.Time
	if strings.TrimSpace(in.Date) != "" {
		var ok bool
		if date, ok = parseEventDate(in.Date); !ok {
			problems = append(problems, "date must be RFC3339 or YYYY-MM-DD")
		}
	}
	if w := rep.Warnings(); len(w) > 0 {
		logger.WarnContext(ctx, "event validation warnings", "warnings", w)
	}
	return date, domain.NewValidationError(problems)
}

func validateParticipant(in domain.ParticipantInput) error {
	rep := participantValidator.Validate(quality.Record{
		"name":  strings.TrimSpace(in.Name),
		"email": strings.TrimSpace(in.Email),
		"phone": in.Phone,
	})
	return domain.NewValidationError(rep.Problems())
}

func validateUser(username, email, password string) error {
	rep := userValidator.Validate(quality.Record{
		"username": strings.TrimSpace(username),
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	return domain.NewValidationError(rep.Problems())
}

func normalizeParticipant(in domain.ParticipantInput) domain.ParticipantInput {
	return domain.ParticipantInput{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Phone: strings.TrimSpace(in.Phone),
	}
}
