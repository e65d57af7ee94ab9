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

// StepInput is everything a handler needs to run one step
type StepInput struct {
	Execution *Execution
	Index     int
	Action    Action
	Context   Context
	// Waited is true when this step already served its delay
	Waited bool
}

// ActionExecutor runs a single action and reports its outcome
type ActionExecutor struct {
	customers     CustomerStore
	templates     TemplateStore
	conversations ConversationHistory
	dispatcher    *ChannelDispatcher
}

// NewActionExecutor creates a new action executor
func NewActionExecutor(customers CustomerStore, templates TemplateStore, conversations ConversationHistory, dispatcher *ChannelDispatcher) *ActionExecutor {
	return &ActionExecutor{
		customers:     customers,
		templates:     templates,
		conversations: conversations,
		dispatcher:    dispatcher,
	}
}

// Execute runs in.Action and returns its StepResult. Handler failures are
// reported through the outcome, never as a Go error.
func (e *ActionExecutor) Execute(ctx context.Context, in StepInput) StepResult {
	log.Debug().
		Str("action_type", string(in.Action.Type())).
		Int("step", in.Index).
		Msg("🔧 Executing action")

	var res StepResult
	switch action := in.Action.(type) {
	case SendTemplate:
		res = e.sendTemplate(ctx, action, in)
	case AssignOwner:
		res = e.assignOwner(ctx, action, in.Context)
	case UpdateStage:
		res = e.updateStage(ctx, action, in.Context)
	case Wait:
		res = StepResult{Outcome: OutcomeDeferred, Detail: fmt.Sprintf("%d minutes", action.DelayMinutes)}
	default:
		res = StepResult{Outcome: OutcomeError, Detail: fmt.Sprintf("unsupported action %T", in.Action)}
	}

	res.Step = in.Index
	res.ActionType = in.Action.Type()
	return res
}

// DelayOf returns how long a deferring action parks the execution
func DelayOf(action Action) time.Duration {
	switch a := action.(type) {
	case SendTemplate:
		return time.Duration(a.DelayMinutes) * time.Minute
	case Wait:
		return time.Duration(a.DelayMinutes) * time.Minute
	default:
		return 0
	}
}

func (e *ActionExecutor) sendTemplate(ctx context.Context, action SendTemplate, in StepInput) StepResult {
	if action.DelayMinutes > 0 && !in.Waited {
		return StepResult{
			Outcome: OutcomeDeferred,
			Detail:  fmt.Sprintf("delay %d min, send resumes on the next sweep", action.DelayMinutes),
		}
	}

	c := in.Context
	customer, err := e.customers.Get(ctx, c.CustomerID)
	switch {
	case errors.Is(err, ErrNotFound):
		return StepResult{Outcome: OutcomeSkip, Detail: "customer not found"}
	case err != nil:
		return StepResult{Outcome: OutcomeError, Detail: fmt.Sprintf("load customer: %v", err)}
	case customer.OptOut:
		return StepResult{Outcome: OutcomeSkip, Detail: "customer opted out"}
	}

	if action.OnlyIfNoReply {
		replied, err := e.conversations.HasInbound(ctx, c.Phone)
		if err != nil {
			return StepResult{Outcome: OutcomeError, Detail: fmt.Sprintf("check conversation history: %v", err)}
		}
		if replied {
			return StepResult{Outcome: OutcomeSkip, Detail: "customer already replied"}
		}
	}

	if strings.TrimSpace(action.TemplateID) == "" {
		return StepResult{Outcome: OutcomeError, Detail: "send_template has no template_id"}
	}
	tpl, err := e.templates.Get(ctx, action.TemplateID)
	if errors.Is(err, ErrNotFound) {
		return StepResult{Outcome: OutcomeError, Detail: fmt.Sprintf("template not found: %s", action.TemplateID)}
	}
	if err != nil {
		return StepResult{Outcome: OutcomeError, Detail: fmt.Sprintf("load template %s: %v", action.TemplateID, err)}
	}

	body := Render(tpl.BodyText, c)
	automationID, executionID := in.Execution.AutomationID, in.Execution.ID
	msg := Message{
		Channel:      tpl.Channel,
		Phone:        c.Phone,
		Text:         body,
		TemplateID:   tpl.ID.String(),
		AutomationID: &automationID,
		ExecutionID:  &executionID,
		CustomerID:   c.CustomerID,
	}

	if tpl.Channel == ChannelEmail {
		email := strings.TrimSpace(customer.Email)
		if email == "" {
			return StepResult{Outcome: OutcomeSkip, Detail: "no email on file"}
		}
		if err := checkmail.ValidateFormat(email); err != nil {
			return StepResult{Outcome: OutcomeSkip, Detail: fmt.Sprintf("invalid email on file: %s", email)}
		}
		msg.Email = email
		msg.Subject = firstNonEmpty(Render(tpl.Subject, c), tpl.Name)
		msg.HTML = Render(tpl.BodyHTML, c)
	}

	providerID, err := e.dispatcher.Dispatch(ctx, msg)
	if err != nil {
		return StepResult{Outcome: OutcomeError, Detail: err.Error()}
	}

	detail := string(tpl.Channel)
	if msg.Email != "" {
		detail = "email:" + msg.Email
	}
	return StepResult{Outcome: OutcomeOK, Detail: detail, ProviderMessageID: providerID}
}

func (e *ActionExecutor) assignOwner(ctx context.Context, action AssignOwner, c Context) StepResult {
	owner := strings.TrimSpace(action.OwnerID)
	if owner == "" {
		return StepResult{Outcome: OutcomeSkip, Detail: "assign_owner has no owner_id"}
	}
	if err := e.updateCustomer(ctx, c.CustomerID, CustomerUpdate{OwnerID: &owner}); err != nil {
		return StepResult{Outcome: OutcomeError, Detail: err.Error()}
	}
	return StepResult{Outcome: OutcomeOK, Detail: owner}
}

func (e *ActionExecutor) updateStage(ctx context.Context, action UpdateStage, c Context) StepResult {
	stage := strings.TrimSpace(action.NewStage)
	if stage == "" {
		return StepResult{Outcome: OutcomeSkip, Detail: "update_stage has no new_stage"}
	}
	if err := e.updateCustomer(ctx, c.CustomerID, CustomerUpdate{Stage: &stage}); err != nil {
		return StepResult{Outcome: OutcomeError, Detail: err.Error()}
	}
	return StepResult{Outcome: OutcomeOK, Detail: stage}
}

func (e *ActionExecutor) updateCustomer(ctx context.Context, id uuid.UUID, fields CustomerUpdate) error {
	if err := e.customers.Update(ctx, id, fields); err != nil {
		return fmt.Errorf("update customer %s: %w", id, err)
	}
	return nil
}
