package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrUnsupportedChannel is returned for a template channel with no gateway
var ErrUnsupportedChannel = errors.New("unsupported channel")

// Message is a rendered template ready for delivery
type Message struct {
	Channel      Channel
	Phone        string
	Email        string
	Subject      string
	HTML         string
	Text         string
	TemplateID   string
	AutomationID *uuid.UUID
	ExecutionID  *uuid.UUID
	CustomerID   uuid.UUID

	// SentEvent and ErrorEvent name the audit records; defaults are the
	// automation template events
	SentEvent  string
	ErrorEvent string
}

// ChannelDispatcher routes rendered messages to the gateway of their channel
// and writes an audit record for every attempt
type ChannelDispatcher struct {
	whatsapp MessagingGateway
	email    EmailGateway
	audit    AuditSink
	messages MessageLog
	clock    Clock
}

// NewChannelDispatcher creates a dispatcher. messages may be nil.
func NewChannelDispatcher(whatsapp MessagingGateway, email EmailGateway, audit AuditSink, messages MessageLog) *ChannelDispatcher {
	return &ChannelDispatcher{
		whatsapp: whatsapp,
		email:    email,
		audit:    audit,
		messages: messages,
		clock:    systemClock,
	}
}

// Dispatch sends msg and returns the provider message id
func (d *ChannelDispatcher) Dispatch(ctx context.Context, msg Message) (string, error) {
	providerID, err := d.send(ctx, msg)

	// the send already happened; its records outlive a cancelled caller
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		d.record(ctx, msg, "", err)
		return "", err
	}

	d.record(ctx, msg, providerID, nil)
	if msg.Channel == ChannelWhatsApp && d.messages != nil {
		out := OutboundMessage{
			CustomerID:        msg.CustomerID,
			TemplateID:        msg.TemplateID,
			Phone:             msg.Phone,
			Body:              msg.Text,
			ProviderMessageID: providerID,
			SentAt:            d.clock(),
		}
		if err := d.messages.RecordOutbound(ctx, out); err != nil {
			log.Warn().Err(err).Str("provider_message_id", providerID).Msg("⚠️ Failed to record outbound message")
		}
	}
	return providerID, nil
}

func (d *ChannelDispatcher) send(ctx context.Context, msg Message) (string, error) {
	switch msg.Channel {
	case ChannelWhatsApp:
		if d.whatsapp == nil {
			return "", fmt.Errorf("%w: whatsapp gateway not configured", ErrUnsupportedChannel)
		}
		return d.whatsapp.Send(ctx, msg.Phone, msg.Text)

	case ChannelEmail:
		if d.email == nil {
			return "", fmt.Errorf("%w: email gateway not configured", ErrUnsupportedChannel)
		}
		body := msg.HTML
		if body == "" {
			body = TextToHTML(msg.Text)
		}
		return d.email.Send(ctx, msg.Email, msg.Subject, body, msg.Text)

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, msg.Channel)
	}
}

func (d *ChannelDispatcher) record(ctx context.Context, msg Message, providerID string, sendErr error) {
	if d.audit == nil {
		return
	}

	destination := msg.Phone
	if msg.Channel == ChannelEmail {
		destination = msg.Email
	}
	customerID := msg.CustomerID

	record := AuditRecord{
		AutomationID:      msg.AutomationID,
		ExecutionID:       msg.ExecutionID,
		CustomerID:        &customerID,
		TemplateID:        msg.TemplateID,
		Channel:           msg.Channel,
		ProviderMessageID: providerID,
		Payload: map[string]interface{}{
			"destination": destination,
		},
	}

	if sendErr != nil {
		record.EventType = firstNonEmpty(msg.ErrorEvent, EventTemplateError)
		record.Result = ResultError
		record.ErrorMessage = sendErr.Error()
	} else {
		record.EventType = firstNonEmpty(msg.SentEvent, EventTemplateSent)
		record.Result = ResultSuccess
	}

	d.audit.Append(ctx, record)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
