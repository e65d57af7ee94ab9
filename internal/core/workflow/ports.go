package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by stores when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrNoContactChannel means no phone could be resolved for the customer
	ErrNoContactChannel = errors.New("no contact channel")

	// ErrConflict is returned by ExecutionStore.Save when another writer
	// advanced the execution first
	ErrConflict = errors.New("execution was modified concurrently")
)

// CustomerStore is the narrow view of the CRM customer records
type CustomerStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Customer, error)
	Update(ctx context.Context, id uuid.UUID, fields CustomerUpdate) error
	FindMatches(ctx context.Context, criteria MatchCriteria) ([]Customer, error)
}

// AutomationStore reads automation definitions and bumps their counters
type AutomationStore interface {
	ListActive(ctx context.Context, event TriggerEvent) ([]Automation, error)
	Get(ctx context.Context, id uuid.UUID) (*Automation, error)
	IncrementCounters(ctx context.Context, id uuid.UUID, completed bool) error
}

// ExecutionStore persists executions and hands out exclusive claims
type ExecutionStore interface {
	// CreateIfAbsent inserts exec unless a non-terminal execution already
	// exists for the same (automation, customer) pair. The bool reports
	// whether exec was inserted; otherwise the existing execution is returned.
	CreateIfAbsent(ctx context.Context, exec *Execution) (*Execution, bool, error)
	Load(ctx context.Context, id uuid.UUID) (*Execution, error)
	// Save writes exec if its Version still matches the stored one and bumps
	// the version. A mismatch returns ErrConflict.
	Save(ctx context.Context, exec *Execution) error
	// Claim takes a parked, due execution for the caller. Losing the race
	// returns false with a nil error.
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (*Execution, bool, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Execution, error)
	// ClaimStalled takes RUNNING, unparked executions not touched since before
	ClaimStalled(ctx context.Context, before time.Time, limit int) ([]*Execution, error)
}

// TemplateStore loads message templates
type TemplateStore interface {
	Get(ctx context.Context, id string) (*Template, error)
}

// ConversationHistory answers whether a phone has ever written to us
type ConversationHistory interface {
	HasInbound(ctx context.Context, phone string) (bool, error)
}

// MessagingGateway sends a WhatsApp text and returns the provider message id
type MessagingGateway interface {
	Send(ctx context.Context, phone, text string) (string, error)
}

// EmailGateway sends an email and returns the provider message id
type EmailGateway interface {
	Send(ctx context.Context, to, subject, html, text string) (string, error)
}

// AuditSink receives event log records. Implementations must not block the
// caller on failure.
type AuditSink interface {
	Append(ctx context.Context, record AuditRecord)
}

// MessageLog records outbound messages in conversation history
type MessageLog interface {
	RecordOutbound(ctx context.Context, msg OutboundMessage) error
}

// Clock returns the current time. Tests replace it to move time forward.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
