// internal/core/whatsapp/cloud_api.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// CloudAPIProvider implements WhatsApp Cloud API (Official Business API)
// Documentation: https://developers.facebook.com/docs/whatsapp/cloud-api
type CloudAPIProvider struct {
	baseURL     string
	phoneID     string // WhatsApp Business Phone Number ID
	accessToken string // Meta Business Access Token
	client      *http.Client
}

// CloudAPIConfig holds configuration for WhatsApp Cloud API
type CloudAPIConfig struct {
	PhoneID     string `json:"phone_id"`     // Your WhatsApp Business Phone Number ID
	AccessToken string `json:"access_token"` // Meta Business Access Token
	APIVersion  string `json:"api_version"`  // API version (default: v18.0)
	BaseURL     string `json:"base_url"`     // default https://graph.facebook.com
}

// NewCloudAPIProvider creates a new WhatsApp Cloud API provider
func NewCloudAPIProvider(config CloudAPIConfig) (*CloudAPIProvider, error) {
	if config.PhoneID == "" {
		return nil, fmt.Errorf("phone_id is required")
	}
	if config.AccessToken == "" {
		return nil, fmt.Errorf("access_token is required")
	}

	// Default API version
	if config.APIVersion == "" {
		config.APIVersion = "v18.0"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://graph.facebook.com"
	}

	return &CloudAPIProvider{
		baseURL:     fmt.Sprintf("%s/%s/%s", strings.TrimRight(config.BaseURL, "/"), config.APIVersion, config.PhoneID),
		phoneID:     config.PhoneID,
		accessToken: config.AccessToken,
		client:      newHTTPClient(),
	}, nil
}

func (p *CloudAPIProvider) Name() string {
	return "WhatsApp Cloud API (Official)"
}

// Send sends a text message via Cloud API and returns the wamid
func (p *CloudAPIProvider) Send(ctx context.Context, phone, text string) (string, error) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                digitsOnly(phone),
		"type":              "text",
		"text": map[string]interface{}{
			"preview_url": false,
			"body":        text,
		},
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := p.sendRequest(ctx, http.MethodPost, "/messages", payload, &result); err != nil {
		return "", err
	}
	if len(result.Messages) == 0 || result.Messages[0].ID == "" {
		return "", fmt.Errorf("cloud API response without message id")
	}
	return result.Messages[0].ID, nil
}

// sendRequest is a helper to make API requests
func (p *CloudAPIProvider) sendRequest(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
