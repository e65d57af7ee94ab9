package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/whatsapp"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/services"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type TwilioWebhookHandler struct {
	service    *services.AutomationService
	authToken  string
	webhookURL string
}

// NewTwilioWebhookHandler creates the inbound webhook. An empty authToken
// skips signature validation; webhookURL is the public URL Twilio signs and
// defaults to the request URL.
func NewTwilioWebhookHandler(service *services.AutomationService, authToken, webhookURL string) *TwilioWebhookHandler {
	return &TwilioWebhookHandler{service: service, authToken: authToken, webhookURL: webhookURL}
}

// ReceiveMessage godoc
// @Summary Twilio inbound WhatsApp webhook
// @Description Records a customer reply so only_if_no_reply sends are skipped
// @Tags Webhook
// @Accept x-www-form-urlencoded
// @Produce xml
// @Param X-Twilio-Signature header string false "Request signature"
// @Success 200 {string} string "TwiML"
// @Failure 403 {object} map[string]interface{}
// @Router /webhooks/twilio [post]
func (h *TwilioWebhookHandler) ReceiveMessage(c *fiber.Ctx) error {
	params := map[string]string{}
	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		params[string(k)] = string(v)
	})

	if h.authToken != "" {
		url := h.webhookURL
		if url == "" {
			url = c.BaseURL() + c.OriginalURL()
		}
		if !whatsapp.ValidateTwilioSignature(h.authToken, url, params, c.Get("X-Twilio-Signature")) {
			log.Warn().Str("url", url).Msg("⚠️ Rejected Twilio webhook with bad signature")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid signature"})
		}
	}

	from := whatsapp.StripWhatsAppPrefix(params["From"])
	log.Info().Str("from", from).Str("sid", params["MessageSid"]).Msg("📨 Twilio webhook received")

	if from != "" {
		if err := h.service.RecordInbound(c.UserContext(), from, params["Body"], params["MessageSid"], time.Now()); err != nil {
			// Twilio retries non-2xx responses; a message we cannot record is logged and acknowledged
			log.Error().Err(err).Str("from", from).Msg("❌ Failed to record inbound message")
		}
	}

	c.Set(fiber.HeaderContentType, "text/xml")
	return c.SendString(emptyTwiML)
}
