// internal/core/whatsapp/service.go
package whatsapp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Service adalah wrapper untuk WhatsApp provider
// Ini adalah layer yang digunakan oleh aplikasi
type Service struct {
	provider Provider
}

// NewService creates the provider named by cfg
func NewService(cfg ProviderConfig) (*Service, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	log.Info().Str("provider", provider.Name()).Msg("✅ Using WhatsApp provider")
	return &Service{provider: provider}, nil
}

// NewServiceWithProvider membuat service dengan provider spesifik (untuk testing)
func NewServiceWithProvider(provider Provider) *Service {
	return &Service{provider: provider}
}

// Send delivers text and returns the provider message id
func (s *Service) Send(ctx context.Context, phone, text string) (string, error) {
	if phone == "" {
		return "", fmt.Errorf("phone is required")
	}

	start := time.Now()
	id, err := s.provider.Send(ctx, phone, text)
	if err != nil {
		log.Error().Err(err).Str("provider", s.provider.Name()).Str("phone", phone).Msg("❌ WhatsApp send failed")
		return "", err
	}

	log.Info().
		Str("provider", s.provider.Name()).
		Str("phone", phone).
		Str("message_id", id).
		Dur("took", time.Since(start)).
		Msg("📤 WhatsApp message sent")
	return id, nil
}

// Connect opens the session of providers that hold one (whatsmeow)
func (s *Service) Connect(ctx context.Context) error {
	if c, ok := s.provider.(interface{ Connect(context.Context) error }); ok {
		return c.Connect(ctx)
	}
	return nil
}

// Disconnect closes the session, if any
func (s *Service) Disconnect() {
	if d, ok := s.provider.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
}

// CanListen reports whether the provider delivers inbound messages itself
// rather than through the webhook
func (s *Service) CanListen() bool {
	_, ok := s.provider.(Listener)
	return ok
}

// Listen blocks delivering inbound messages until ctx is done
func (s *Service) Listen(ctx context.Context, handler InboundHandler) error {
	l, ok := s.provider.(Listener)
	if !ok {
		return fmt.Errorf("provider %s does not support listening", s.provider.Name())
	}
	return l.Listen(ctx, handler)
}

// ProviderName return nama provider yang digunakan
func (s *Service) ProviderName() string {
	return s.provider.Name()
}
