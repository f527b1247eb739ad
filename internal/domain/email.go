package domain

import "context"

// EmailMessage is a rendered email ready to hand to a Mailer.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailTemplateRenderer renders a named template into a message without a recipient.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (EmailMessage, error)
}

// RegistrationEmailData holds data for registration and promotion emails.
type RegistrationEmailData struct {
	Email      string
	Name       string
	EventTitle string
	EventDate  string
	Location   string
}

// EmailService sends the registration lifecycle emails.
type EmailService interface {
	SendRegistrationConfirmed(ctx context.Context, data *RegistrationEmailData) error
	SendWaitlistPromoted(ctx context.Context, data *RegistrationEmailData) error
}
