package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TriggerEvent is a named business occurrence that activates automations
type TriggerEvent string

const (
	TriggerLeadCreated       TriggerEvent = "lead.created"
	TriggerVisitScheduled    TriggerEvent = "visit.scheduled"
	TriggerVisitCompleted    TriggerEvent = "visit.completed"
	TriggerPropertyAvailable TriggerEvent = "property.available"
)

// IsValid checks if the trigger event is one the engine knows about
func (t TriggerEvent) IsValid() bool {
	switch t {
	case TriggerLeadCreated, TriggerVisitScheduled, TriggerVisitCompleted, TriggerPropertyAvailable:
		return true
	default:
		return false
	}
}

// ExecutionState is the lifecycle state of an execution
type ExecutionState string

const (
	StateRunning   ExecutionState = "RUNNING"
	StateCompleted ExecutionState = "COMPLETED"
	StateFailed    ExecutionState = "FAILED"
)

// IsTerminal reports whether no further step may run
func (s ExecutionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Outcome is the result kind of one executed step
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeSkip     Outcome = "skip"
	OutcomeError    Outcome = "error"
	OutcomeDeferred Outcome = "deferred"
)

// Channel is the delivery channel declared by a template
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// ActionType tags the persisted form of an action
type ActionType string

const (
	ActionSendTemplate ActionType = "send_template"
	ActionAssignOwner  ActionType = "assign_owner"
	ActionUpdateStage  ActionType = "update_stage"
	ActionWait         ActionType = "wait"
)

// Action is one step of an automation. The set of variants is closed:
// SendTemplate, AssignOwner, UpdateStage and Wait.
type Action interface {
	Type() ActionType
	sealed()
}

// SendTemplate renders a template and sends it on the template's channel
type SendTemplate struct {
	TemplateID    string `json:"template_id"`
	DelayMinutes  int    `json:"delay_minutes"`
	OnlyIfNoReply bool   `json:"only_if_no_reply"`
}

// AssignOwner writes the owner field on the customer record
type AssignOwner struct {
	OwnerID string `json:"owner_id"`
}

// UpdateStage writes the lifecycle stage on the customer record
type UpdateStage struct {
	NewStage string `json:"new_stage"`
}

// Wait parks the execution between two otherwise immediate actions
type Wait struct {
	DelayMinutes int `json:"delay_minutes"`
}

func (SendTemplate) Type() ActionType { return ActionSendTemplate }
func (AssignOwner) Type() ActionType  { return ActionAssignOwner }
func (UpdateStage) Type() ActionType  { return ActionUpdateStage }
func (Wait) Type() ActionType         { return ActionWait }

func (SendTemplate) sealed() {}
func (AssignOwner) sealed()  {}
func (UpdateStage) sealed()  {}
func (Wait) sealed()         {}

// Actions is the ordered action list of an automation. It is stored as a JSON
// array of objects tagged by "type".
type Actions []Action

type actionEnvelope struct {
	Type          ActionType `json:"type"`
	TemplateID    string     `json:"template_id,omitempty"`
	DelayMinutes  int        `json:"delay_minutes,omitempty"`
	OnlyIfNoReply bool       `json:"only_if_no_reply,omitempty"`
	OwnerID       string     `json:"owner_id,omitempty"`
	NewStage      string     `json:"new_stage,omitempty"`
}

// MarshalJSON encodes the list with a "type" tag on every element
func (a Actions) MarshalJSON() ([]byte, error) {
	out := make([]actionEnvelope, 0, len(a))
	for i, action := range a {
		switch v := action.(type) {
		case SendTemplate:
			out = append(out, actionEnvelope{Type: ActionSendTemplate, TemplateID: v.TemplateID, DelayMinutes: v.DelayMinutes, OnlyIfNoReply: v.OnlyIfNoReply})
		case AssignOwner:
			out = append(out, actionEnvelope{Type: ActionAssignOwner, OwnerID: v.OwnerID})
		case UpdateStage:
			out = append(out, actionEnvelope{Type: ActionUpdateStage, NewStage: v.NewStage})
		case Wait:
			out = append(out, actionEnvelope{Type: ActionWait, DelayMinutes: v.DelayMinutes})
		default:
			return nil, fmt.Errorf("action %d: unsupported action %T", i, action)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a tagged list. An unknown tag is an error.
func (a *Actions) UnmarshalJSON(data []byte) error {
	var raw []actionEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Actions, 0, len(raw))
	for i, env := range raw {
		switch env.Type {
		case ActionSendTemplate:
			out = append(out, SendTemplate{TemplateID: env.TemplateID, DelayMinutes: env.DelayMinutes, OnlyIfNoReply: env.OnlyIfNoReply})
		case ActionAssignOwner:
			out = append(out, AssignOwner{OwnerID: env.OwnerID})
		case ActionUpdateStage:
			out = append(out, UpdateStage{NewStage: env.NewStage})
		case ActionWait:
			out = append(out, Wait{DelayMinutes: env.DelayMinutes})
		default:
			return fmt.Errorf("action %d: unknown action type %q", i, env.Type)
		}
	}
	*a = out
	return nil
}

// Condition is an optional entry condition of an automation, evaluated
// against the trigger context before an execution is created
type Condition struct {
	Field    string      `json:"field"`           // e.g. "property_kind", "sale_price"
	Operator string      `json:"operator"`        // equals, contains, greater_than, ...
	Value    interface{} `json:"value"`           // Value to compare against
	Logic    string      `json:"logic,omitempty"` // "AND" or "OR" (default: "AND")
}

// Automation is an active-or-inactive definition bound to one trigger event
type Automation struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	TriggerEvent   TriggerEvent `json:"trigger_event"`
	Active         bool         `json:"active"`
	Conditions     []Condition  `json:"conditions,omitempty"`
	Actions        Actions      `json:"actions"`
	TotalRuns      int64        `json:"total_runs"`
	TotalCompleted int64        `json:"total_completed"`
}

// StepResult is one append-only entry of an execution's steps log
type StepResult struct {
	Step              int        `json:"step"`
	ActionType        ActionType `json:"action_type"`
	Outcome           Outcome    `json:"outcome"`
	Detail            string     `json:"detail,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	At                time.Time  `json:"at"`
}

// Execution is one run of one automation against one customer
type Execution struct {
	ID           uuid.UUID      `json:"id"`
	AutomationID uuid.UUID      `json:"automation_id"`
	CustomerID   uuid.UUID      `json:"customer_id"`
	TriggerEvent TriggerEvent   `json:"trigger_event"`
	State        ExecutionState `json:"state"`
	CurrentStep  int            `json:"current_step"`
	StepsLog     []StepResult   `json:"steps_log"`
	Context      Context        `json:"context"`
	NextActionAt *time.Time     `json:"next_action_at,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Version      int64          `json:"version"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsParked reports whether the execution is waiting for a future resume
func (e *Execution) IsParked() bool {
	return e.State == StateRunning && e.NextActionAt != nil
}

// IsDue reports whether a parked execution may resume at now
func (e *Execution) IsDue(now time.Time) bool {
	return e.IsParked() && !e.NextActionAt.After(now)
}

// lastStep returns the most recent steps log entry, if any
func (e *Execution) lastStep() *StepResult {
	if len(e.StepsLog) == 0 {
		return nil
	}
	return &e.StepsLog[len(e.StepsLog)-1]
}

// Property describes the listing attached to a property.available trigger
type Property struct {
	ID        string  `json:"id" validate:"required"`
	Kind      string  `json:"kind"`
	SalePrice float64 `json:"sale_price" validate:"gte=0"` // zero means unknown
	ProjectID string  `json:"project_id,omitempty"`
}

// Template is the read-only message template used by send_template
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Channel   Channel   `json:"channel"`
	BodyText  string    `json:"body_text"`
	Subject   string    `json:"subject,omitempty"`
	BodyHTML  string    `json:"body_html,omitempty"`
	Variables []string  `json:"variables,omitempty"`
}

// Customer is the narrow view of a CRM customer record the engine needs
type Customer struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Email    string    `json:"email"`
	OwnerID  string    `json:"owner_id"`
	OptOut   bool      `json:"opt_out"`
	Stage    string    `json:"stage"`
	Interest string    `json:"interest"`
	Capacity float64   `json:"capacity"`
}

// CustomerUpdate carries the only two fields the engine ever writes
type CustomerUpdate struct {
	OwnerID *string
	Stage   *string
}

// MatchCriteria selects fan-out recipients for an available property
type MatchCriteria struct {
	PropertyKind string
	MinCapacity  float64 // zero disables the capacity filter
	ExcludeStage string
	Limit        int
}

// AuditRecord is one fire-and-forget event log entry
type AuditRecord struct {
	EventType         string
	AutomationID      *uuid.UUID
	ExecutionID       *uuid.UUID
	CustomerID        *uuid.UUID
	TemplateID        string
	Channel           Channel
	ProviderMessageID string
	Result            string // SUCCESS, ERROR, WARNING
	ErrorMessage      string
	Payload           map[string]interface{}
}

// Audit event types and results written by the engine
const (
	EventTemplateSent      = "automation.template_sent"
	EventTemplateError     = "automation.template_error"
	EventExecutionFailed   = "automation.execution_failed"
	EventExecutionDone     = "automation.execution_completed"
	EventCampaignSent      = "campaign.template_sent"
	EventCampaignError     = "campaign.template_error"
	EventCampaignCancelled = "campaign.cancelled"

	ResultSuccess = "SUCCESS"
	ResultError   = "ERROR"
	ResultWarning = "WARNING"
)

// OutboundMessage is a sent WhatsApp message recorded in conversation history
type OutboundMessage struct {
	CustomerID        uuid.UUID
	TemplateID        string
	Phone             string
	Body              string
	ProviderMessageID string
	SentAt            time.Time
}
