package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventLog is one marketing event log entry: a dispatch, a failed
// execution, a cancelled campaign
type EventLog struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`

	// What happened
	EventType string `json:"event_type" gorm:"type:varchar(100);not null;index"` // automation.template_sent, ...
	Result    string `json:"result" gorm:"type:varchar(20);not null;index"`      // SUCCESS, ERROR, WARNING

	// Who it concerns
	AutomationID *uuid.UUID `json:"automation_id,omitempty" gorm:"type:uuid;index"`
	ExecutionID  *uuid.UUID `json:"execution_id,omitempty" gorm:"type:uuid;index"`
	CustomerID   *uuid.UUID `json:"customer_id,omitempty" gorm:"type:uuid;index"`
	TemplateID   string     `json:"template_id,omitempty" gorm:"type:varchar(64)"`

	// Delivery
	Channel           string `json:"channel,omitempty" gorm:"type:varchar(20)"`
	ProviderMessageID string `json:"provider_message_id,omitempty" gorm:"type:varchar(255);index"`
	ErrorMessage      string `json:"error_message,omitempty" gorm:"type:text"`

	Payload datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName specifies the table name
func (EventLog) TableName() string {
	return "marketing_event_logs"
}

// BeforeCreate sets UUID before creating
func (e *EventLog) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Filter represents filters for querying the event log
type Filter struct {
	EventType    string
	Result       string
	AutomationID *uuid.UUID
	ExecutionID  *uuid.UUID
	CustomerID   *uuid.UUID
	StartDate    *time.Time
	EndDate      *time.Time
	Page         int
	PageSize     int
}

// EventLogResponse represents a paginated event log page
type EventLogResponse struct {
	Logs       []EventLog `json:"logs"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}
