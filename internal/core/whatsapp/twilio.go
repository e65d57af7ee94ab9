// internal/core/whatsapp/twilio.go
package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// TwilioProvider sends WhatsApp messages through the Twilio Messages API
// Documentation: https://www.twilio.com/docs/whatsapp/api
type TwilioProvider struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// TwilioConfig holds configuration for Twilio
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // sender number, with or without the whatsapp: prefix
	BaseURL    string // default https://api.twilio.com
}

// NewTwilioProvider creates a new Twilio provider
func NewTwilioProvider(config TwilioConfig) (*TwilioProvider, error) {
	if config.AccountSID == "" || config.AuthToken == "" {
		return nil, fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
	}
	if config.From == "" {
		return nil, fmt.Errorf("TWILIO_WHATSAPP_FROM is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.twilio.com"
	}

	return &TwilioProvider{
		accountSID: config.AccountSID,
		authToken:  config.AuthToken,
		from:       withWhatsAppPrefix(config.From),
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		client:     newHTTPClient(),
	}, nil
}

func (p *TwilioProvider) Name() string {
	return "Twilio"
}

// Send posts one message and returns the Twilio message SID
func (p *TwilioProvider) Send(ctx context.Context, phone, text string) (string, error) {
	form := url.Values{}
	form.Set("From", p.from)
	form.Set("To", withWhatsAppPrefix(phone))
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var result struct {
		SID     string `json:"sid"`
		Status  string `json:"status"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if result.Message != "" {
			return "", fmt.Errorf("twilio error %d (status %d): %s", result.Code, resp.StatusCode, result.Message)
		}
		return "", fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, string(body))
	}
	if result.SID == "" {
		return "", fmt.Errorf("twilio response without sid: %s", string(body))
	}
	return result.SID, nil
}

func withWhatsAppPrefix(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

// StripWhatsAppPrefix turns a Twilio address ("whatsapp:+51...") into a phone
func StripWhatsAppPrefix(addr string) string {
	return strings.TrimPrefix(addr, "whatsapp:")
}

// ValidateTwilioSignature checks the X-Twilio-Signature header of a webhook
// request: base64(HMAC-SHA1(authToken, url + sorted key/value pairs)).
func ValidateTwilioSignature(authToken, fullURL string, params map[string]string, signature string) bool {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
