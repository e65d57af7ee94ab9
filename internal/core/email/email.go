package email

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Message is one outbound email
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Provider defines the interface for email providers
type Provider interface {
	// Send delivers msg and returns the provider's message id
	Send(ctx context.Context, msg Message) (string, error)
	Name() string
}

// Config selects and configures a provider
type Config struct {
	Provider  string // resend | brevo | smtp
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPSSL      bool
}

// NewProvider creates the provider named by cfg.Provider
func NewProvider(cfg Config) (Provider, error) {
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("sender email is required")
	}

	switch cfg.Provider {
	case "resend":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required")
		}
		return NewResendProvider(cfg.APIKey, cfg.FromEmail, cfg.FromName, cfg.BaseURL), nil
	case "brevo":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("BREVO_API_KEY is required")
		}
		return NewBrevoProvider(cfg.APIKey, cfg.FromEmail, cfg.FromName, cfg.BaseURL), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("SMTP_HOST is required")
		}
		return NewSMTPProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
}

// Service wraps the email provider
type Service struct {
	provider Provider
}

// NewService creates a new email service with the specified provider
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
	}
}

// Send delivers one email and returns the provider message id
func (s *Service) Send(ctx context.Context, to, subject, html, text string) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("no email provider configured")
	}

	id, err := s.provider.Send(ctx, Message{To: to, Subject: subject, HTML: html, Text: text})
	if err != nil {
		log.Error().Err(err).Str("provider", s.provider.Name()).Str("to", to).Msg("❌ Email send failed")
		return "", err
	}
	log.Info().Str("provider", s.provider.Name()).Str("to", to).Str("message_id", id).Msg("📧 Email sent")
	return id, nil
}

// ProviderName returns the name of the current provider
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func formatFrom(email, name string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
