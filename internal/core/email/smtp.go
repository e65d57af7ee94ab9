package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTPProvider sends through a plain SMTP relay
type SMTPProvider struct {
	dialer    *gomail.Dialer
	host      string
	fromEmail string
	fromName  string
}

// NewSMTPProvider creates a new SMTP provider. SMTPSSL selects implicit TLS
// (port 465); otherwise STARTTLS is used when the server offers it.
func NewSMTPProvider(cfg Config) *SMTPProvider {
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	d := gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUsername, cfg.SMTPPassword)
	if cfg.SMTPSSL {
		d.SSL = true
	} else {
		d.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}
	}

	return &SMTPProvider{
		dialer:    d,
		host:      cfg.SMTPHost,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send dials, sends and returns the Message-ID we assigned
func (p *SMTPProvider) Send(ctx context.Context, msg Message) (string, error) {
	m, id := p.buildMessage(msg)

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.dialer.DialAndSend(m)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return "", fmt.Errorf("smtp send to %s failed: %w", msg.To, err)
		}
		return id, nil
	case <-ctx.Done():
		return "", fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

func (p *SMTPProvider) buildMessage(msg Message) (*gomail.Message, string) {
	domain := p.host
	if i := strings.LastIndex(p.fromEmail, "@"); i >= 0 {
		domain = p.fromEmail[i+1:]
	}
	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)

	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.fromEmail, p.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m, id
}

// Name returns the provider name
func (p *SMTPProvider) Name() string {
	return "smtp"
}
