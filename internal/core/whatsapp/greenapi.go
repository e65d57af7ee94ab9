// internal/core/whatsapp/greenapi.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// GreenAPIProvider sends through a Green API instance and polls it for
// inbound messages
type GreenAPIProvider struct {
	instanceID   string
	token        string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

func NewGreenAPIProvider(instanceID, token, baseURL string) *GreenAPIProvider {
	if baseURL == "" {
		baseURL = "https://api.green-api.com"
	}
	return &GreenAPIProvider{
		instanceID:   instanceID,
		token:        token,
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       newHTTPClient(),
		pollInterval: 2 * time.Second,
	}
}

func (g *GreenAPIProvider) Name() string {
	return "GreenAPI"
}

func (g *GreenAPIProvider) endpoint(method string, extra ...string) string {
	url := fmt.Sprintf("%s/waInstance%s/%s/%s", g.baseURL, g.instanceID, method, g.token)
	for _, e := range extra {
		url += "/" + e
	}
	return url
}

// Authorized checks the instance state
func (g *GreenAPIProvider) Authorized(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("getStateInstance"), nil)
	if err != nil {
		return false, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect to Green API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("Green API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		StateInstance string `json:"stateInstance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.StateInstance == "authorized", nil
}

// Send posts to sendMessage and returns idMessage
func (g *GreenAPIProvider) Send(ctx context.Context, phone, text string) (string, error) {
	// Format nomor: 51987654321@c.us
	payload := map[string]interface{}{
		"chatId":  digitsOnly(phone) + "@c.us",
		"message": text,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("sendMessage"), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Green API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		IDMessage string `json:"idMessage"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.IDMessage, nil
}

// Listen polls receiveNotification until ctx is done
func (g *GreenAPIProvider) Listen(ctx context.Context, handler InboundHandler) error {
	if ok, err := g.Authorized(ctx); err != nil {
		return err
	} else if !ok {
		log.Warn().Str("instance", g.instanceID).Msg("⚠️ Green API instance not authorized, scan the QR in the Green API console")
	}

	log.Info().Msg("👂 Starting Green API message polling...")
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("🛑 Stopped Green API polling")
			return nil
		case <-ticker.C:
			if err := g.poll(ctx, handler); err != nil {
				log.Warn().Err(err).Msg("⚠️ Failed to poll messages")
			}
		}
	}
}

type greenAPINotification struct {
	ReceiptID int `json:"receiptId"`
	Body      struct {
		TypeWebhook string `json:"typeWebhook"`
		Timestamp   int64  `json:"timestamp"`
		IDMessage   string `json:"idMessage"`
		SenderData  struct {
			ChatID string `json:"chatId"`
			Sender string `json:"sender"`
		} `json:"senderData"`
		MessageData struct {
			TypeMessage     string `json:"typeMessage"`
			TextMessageData struct {
				TextMessage string `json:"textMessage"`
			} `json:"textMessageData"`
		} `json:"messageData"`
	} `json:"body"`
}

// poll handles at most one queued notification
func (g *GreenAPIProvider) poll(ctx context.Context, handler InboundHandler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("receiveNotification"), nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Green API returned status %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil
	}

	var n greenAPINotification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("failed to decode notification: %w", err)
	}

	// Hanya process incoming text messages
	if n.Body.TypeWebhook == "incomingMessageReceived" && n.Body.MessageData.TypeMessage == "textMessage" {
		handler(ctx, Inbound{
			Phone:     "+" + strings.TrimSuffix(n.Body.SenderData.Sender, "@c.us"),
			Body:      n.Body.MessageData.TextMessageData.TextMessage,
			MessageID: n.Body.IDMessage,
			At:        time.Unix(n.Body.Timestamp, 0).UTC(),
		})
	}

	// every notification is deleted, handled or not, so the queue moves on
	del, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.endpoint("deleteNotification", fmt.Sprint(n.ReceiptID)), nil)
	if err != nil {
		return err
	}
	delResp, err := g.client.Do(del)
	if err != nil {
		return fmt.Errorf("failed to delete notification %d: %w", n.ReceiptID, err)
	}
	delResp.Body.Close()
	return nil
}
