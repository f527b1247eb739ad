package services

import (
	"context"
	"fmt"
	"log/slog"

	"eventmanager/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// SendRegistrationConfirmed sends the "registration_confirmed" template.
func (s *emailService) SendRegistrationConfirmed(ctx context.Context, data *domain.RegistrationEmailData) error {
	return s.send(ctx, "registration_confirmed", data)
}

// SendWaitlistPromoted sends the "waitlist_promoted" template.
func (s *emailService) SendWaitlistPromoted(ctx context.Context, data *domain.RegistrationEmailData) error {
	return s.send(ctx, "waitlist_promoted", data)
}

func (s *emailService) send(ctx context.Context, template string, data *domain.RegistrationEmailData) error {
	if data == nil {
		return fmt.Errorf("%s email data is nil", template)
	}
	msg, err := s.renderer.Render(template, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", template, err)
	}
	msg.To = data.Email
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", template, err)
	}
	s.logger.InfoContext(ctx, "email sent", "template", template, "to", data.Email)
	return nil
}
