package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CampaignState is the lifecycle state of a scheduled campaign
type CampaignState string

const (
	CampaignScheduled CampaignState = "SCHEDULED"
	CampaignRunning   CampaignState = "RUNNING"
	CampaignCompleted CampaignState = "COMPLETED"
	CampaignCancelled CampaignState = "CANCELLED"
)

// CampaignThrottle spaces campaign sends
const CampaignThrottle = 100 * time.Millisecond

// Campaign is a one-off broadcast of one template to a fixed audience
type Campaign struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	TemplateID  string        `json:"template_id"`
	CustomerIDs []uuid.UUID   `json:"customer_ids"`
	State       CampaignState `json:"state"`
	StartsAt    time.Time     `json:"starts_at"`
	TotalSent   int           `json:"total_sent"`
	TotalFailed int           `json:"total_failed"`
}

// CampaignStore claims due campaigns and records their totals
type CampaignStore interface {
	// ClaimDue moves up to limit SCHEDULED campaigns starting at or before now
	// to RUNNING and returns the ones this caller won
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Campaign, error)
	// Finish closes a RUNNING campaign with its totals
	Finish(ctx context.Context, id uuid.UUID, state CampaignState, sent, failed int) error
	// Release puts a claimed campaign that sent nothing back to SCHEDULED
	Release(ctx context.Context, id uuid.UUID) error
	// CancelStalled cancels RUNNING campaigns started before the given time
	// and returns them
	CancelStalled(ctx context.Context, startedBefore time.Time) ([]Campaign, error)
}

// CampaignResult summarizes one campaign run
type CampaignResult struct {
	CampaignID uuid.UUID     `json:"campaign_id"`
	State      CampaignState `json:"state"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
}

// CampaignRunner sends due scheduled campaigns
type CampaignRunner struct {
	campaigns  CampaignStore
	customers  CustomerStore
	templates  TemplateStore
	dispatcher *ChannelDispatcher
	audit      AuditSink
	clock      Clock
	throttle   time.Duration
}

// NewCampaignRunner creates a new campaign runner
func NewCampaignRunner(campaigns CampaignStore, customers CustomerStore, templates TemplateStore, dispatcher *ChannelDispatcher, audit AuditSink) *CampaignRunner {
	return &CampaignRunner{
		campaigns:  campaigns,
		customers:  customers,
		templates:  templates,
		dispatcher: dispatcher,
		audit:      audit,
		clock:      systemClock,
		throttle:   CampaignThrottle,
	}
}

// SetThrottle changes the pause between two sends
func (r *CampaignRunner) SetThrottle(d time.Duration) {
	r.throttle = d
}

// RunDue sends every due campaign this caller manages to claim. Campaigns
// claimed after ctx is done are released untouched for the next sweep.
func (r *CampaignRunner) RunDue(ctx context.Context, limit int) ([]CampaignResult, error) {
	claimed, err := r.campaigns.ClaimDue(ctx, r.clock(), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due campaigns: %w", err)
	}

	// closing a campaign records sends that already happened
	store := context.WithoutCancel(ctx)

	var errs []error
	results := make([]CampaignResult, 0, len(claimed))
	for _, campaign := range claimed {
		res := CampaignResult{CampaignID: campaign.ID, State: CampaignScheduled}
		if ctx.Err() == nil {
			res = r.run(ctx, campaign)
		}

		if res.State == CampaignScheduled {
			if err := r.campaigns.Release(store, campaign.ID); err != nil {
				log.Error().Err(err).Str("campaign_id", campaign.ID.String()).Msg("❌ Failed to release campaign")
				errs = append(errs, fmt.Errorf("release campaign %s: %w", campaign.ID, err))
				res.State = CampaignRunning
			}
		} else if err := r.campaigns.Finish(store, campaign.ID, res.State, res.Sent, res.Failed); err != nil {
			log.Error().Err(err).Str("campaign_id", campaign.ID.String()).Msg("❌ Failed to close campaign")
			errs = append(errs, fmt.Errorf("close campaign %s: %w", campaign.ID, err))
			res.State = CampaignRunning
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// CancelStalled cancels campaigns left RUNNING for longer than olderThan,
// e.g. because the process died mid-send. They are not resent: part of the
// audience may already have the message.
func (r *CampaignRunner) CancelStalled(ctx context.Context, olderThan time.Duration) ([]Campaign, error) {
	stalled, err := r.campaigns.CancelStalled(ctx, r.clock().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("cancel stalled campaigns: %w", err)
	}
	for _, campaign := range stalled {
		log.Warn().Str("campaign_id", campaign.ID.String()).Msg("🚫 Stalled campaign cancelled")
		r.appendCancelled(ctx, campaign, "campaign stalled while running")
	}
	return stalled, nil
}

func (r *CampaignRunner) run(ctx context.Context, campaign Campaign) CampaignResult {
	res := CampaignResult{CampaignID: campaign.ID, State: CampaignCompleted}

	tpl, err := r.templates.Get(ctx, campaign.TemplateID)
	if err != nil && ctx.Err() != nil {
		res.State = CampaignScheduled
		return res
	}
	if err != nil {
		reason := fmt.Sprintf("load template %s: %v", campaign.TemplateID, err)
		if errors.Is(err, ErrNotFound) {
			reason = fmt.Sprintf("template not found: %s", campaign.TemplateID)
		}
		log.Warn().Str("campaign_id", campaign.ID.String()).Str("reason", reason).Msg("🚫 Campaign cancelled")
		r.appendCancelled(ctx, campaign, reason)
		res.State = CampaignCancelled
		return res
	}

	log.Info().
		Str("campaign_id", campaign.ID.String()).
		Str("name", campaign.Name).
		Int("audience", len(campaign.CustomerIDs)).
		Msg("📣 Sending campaign")

	attempted := 0
	for _, id := range campaign.CustomerIDs {
		if ctx.Err() != nil {
			res.Failed += len(campaign.CustomerIDs) - res.Sent - res.Failed - res.Skipped
			return res
		}
		msg, ok := r.buildMessage(ctx, campaign, tpl, id)
		if !ok {
			res.Skipped++
			continue
		}

		if attempted > 0 && r.throttle > 0 {
			select {
			case <-time.After(r.throttle):
			case <-ctx.Done():
				res.Failed += len(campaign.CustomerIDs) - res.Sent - res.Failed - res.Skipped
				return res
			}
		}
		attempted++

		if _, err := r.dispatcher.Dispatch(ctx, msg); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res
}

// buildMessage renders the campaign template for one audience member. It
// reports false for customers that must not or cannot be reached.
func (r *CampaignRunner) buildMessage(ctx context.Context, campaign Campaign, tpl *Template, id uuid.UUID) (Message, bool) {
	customer, err := r.customers.Get(ctx, id)
	if err != nil || customer.OptOut {
		return Message{}, false
	}

	c := Context{CustomerID: customer.ID, Name: customer.Name, Phone: NormalizePhone(customer.Phone), OwnerID: customer.OwnerID}
	body := Render(tpl.BodyText, c)
	msg := Message{
		Channel:    tpl.Channel,
		Phone:      c.Phone,
		Text:       body,
		TemplateID: tpl.ID.String(),
		CustomerID: customer.ID,
		SentEvent:  EventCampaignSent,
		ErrorEvent: EventCampaignError,
	}

	switch tpl.Channel {
	case ChannelEmail:
		email := strings.TrimSpace(customer.Email)
		if email == "" || checkmail.ValidateFormat(email) != nil {
			return Message{}, false
		}
		msg.Email = email
		msg.Subject = firstNonEmpty(Render(tpl.Subject, c), tpl.Name)
		msg.HTML = Render(tpl.BodyHTML, c)
	default:
		if c.Phone == "" {
			return Message{}, false
		}
	}
	return msg, true
}

func (r *CampaignRunner) appendCancelled(ctx context.Context, campaign Campaign, reason string) {
	if r.audit == nil {
		return
	}
	r.audit.Append(context.WithoutCancel(ctx), AuditRecord{
		EventType:    EventCampaignCancelled,
		TemplateID:   campaign.TemplateID,
		Result:       ResultWarning,
		ErrorMessage: reason,
		Payload: map[string]interface{}{
			"campaign_id": campaign.ID.String(),
			"name":        campaign.Name,
		},
	})
}
