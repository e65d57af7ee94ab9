// internal/core/whatsapp/provider.go
package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider sends WhatsApp text messages
type Provider interface {
	// Send delivers text to phone (canonical +<digits>) and returns the
	// provider's message id
	Send(ctx context.Context, phone, text string) (string, error)

	// Name returns the provider name for logging
	Name() string
}

// Inbound is a message a customer sent us
type Inbound struct {
	Phone     string
	Body      string
	MessageID string
	At        time.Time
}

// InboundHandler receives inbound messages from a listening provider
type InboundHandler func(ctx context.Context, msg Inbound)

// Listener is implemented by providers that receive messages over a
// connection or by polling rather than through a webhook
type Listener interface {
	Listen(ctx context.Context, handler InboundHandler) error
}

// ProviderType untuk factory
type ProviderType string

const (
	ProviderTwilio    ProviderType = "twilio"
	ProviderCloudAPI  ProviderType = "cloud_api"
	ProviderGreenAPI  ProviderType = "greenapi"
	ProviderWhatsmeow ProviderType = "whatsmeow"
)

// ProviderConfig konfigurasi untuk provider
type ProviderConfig struct {
	Type ProviderType

	// Twilio
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioBaseURL    string

	// Cloud API
	CloudPhoneID     string
	CloudAccessToken string
	CloudAPIVersion  string
	CloudBaseURL     string

	// Green API
	GreenAPIInstanceID string
	GreenAPIToken      string
	GreenAPIURL        string

	// Whatsmeow session store; empty means a local sqlite file
	StoreURL string
}

// NewProvider creates the provider named by cfg.Type
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case ProviderTwilio:
		return NewTwilioProvider(TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
			BaseURL:    cfg.TwilioBaseURL,
		})

	case ProviderCloudAPI:
		return NewCloudAPIProvider(CloudAPIConfig{
			PhoneID:     cfg.CloudPhoneID,
			AccessToken: cfg.CloudAccessToken,
			APIVersion:  cfg.CloudAPIVersion,
			BaseURL:     cfg.CloudBaseURL,
		})

	case ProviderGreenAPI:
		if cfg.GreenAPIInstanceID == "" || cfg.GreenAPIToken == "" {
			return nil, fmt.Errorf("GREEN_API_INSTANCE_ID and GREEN_API_TOKEN are required")
		}
		return NewGreenAPIProvider(cfg.GreenAPIInstanceID, cfg.GreenAPIToken, cfg.GreenAPIURL), nil

	case ProviderWhatsmeow:
		return NewWhatsmeowProvider(cfg.StoreURL), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// digitsOnly strips the leading + of a canonical phone
func digitsOnly(phone string) string {
	if len(phone) > 0 && phone[0] == '+' {
		return phone[1:]
	}
	return phone
}
