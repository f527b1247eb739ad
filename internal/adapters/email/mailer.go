package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"eventmanager/internal/domain"
)

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	InsecureSkipVerify bool
}

// MailerConfig selects and configures the delivery provider.
type MailerConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	SES         SESConfig
	Logger      *slog.Logger
}

// NewMailer returns an SES mailer for provider "ses". Any other provider logs
// messages instead of sending them.
func NewMailer(cfg MailerConfig) (domain.Mailer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mailer")

	switch cfg.Provider {
	case "ses":
		return newSESMailer(cfg, logger)
	case "noop", "":
	default:
		logger.Warn("unknown email provider, using noop", "provider", cfg.Provider)
	}
	return &noopMailer{logger: logger}, nil
}

type sesMailer struct {
	client *ses.Client
	source string
	logger *slog.Logger
}

func newSESMailer(cfg MailerConfig, logger *slog.Logger) (*sesMailer, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("ses mailer: from address is required")
	}
	if cfg.SES.Region == "" {
		return nil, fmt.Errorf("ses mailer: region is required")
	}
	if cfg.SES.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled for SES, use only in development")
	}

	awsCfg := aws.Config{
		Region: cfg.SES.Region,
		HTTPClient: &http.Client{Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.SES.InsecureSkipVerify,
				MinVersion:         tls.VersionTLS12,
			},
		}},
	}
	if cfg.SES.AccessKeyID != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.SES.AccessKeyID, cfg.SES.SecretAccessKey, ""))
	}

	source := cfg.FromAddress
	if cfg.FromName != "" {
		source = (&mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}).String()
	}
	return &sesMailer{client: ses.NewFromConfig(awsCfg), source: source, logger: logger}, nil
}

func utf8Content(s string) *types.Content {
	if s == "" {
		return nil
	}
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func (s *sesMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.source),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: utf8Content(msg.Subject),
			Body:    &types.Body{Html: utf8Content(msg.HTML), Text: utf8Content(msg.Text)},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send to %s: %w", msg.To, err)
	}
	s.logger.InfoContext(ctx, "email sent via SES", "message_id", aws.ToString(out.MessageId))
	return nil
}

type noopMailer struct {
	logger *slog.Logger
}

func (n *noopMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	n.logger.InfoContext(ctx, "email not sent (noop provider)", "to", msg.To, "subject", msg.Subject)
	return nil
}
