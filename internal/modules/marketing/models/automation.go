package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Automation is a marketing rule bound to one trigger event
type Automation struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name           string         `json:"name" gorm:"type:varchar(255);not null"`
	Description    string         `json:"description" gorm:"type:text"`
	TriggerEvent   string         `json:"trigger_event" gorm:"type:varchar(50);not null;index"` // lead.created, visit.scheduled, ...
	Conditions     datatypes.JSON `json:"conditions" gorm:"type:jsonb;default:'[]'"`
	Actions        datatypes.JSON `json:"actions" gorm:"type:jsonb;not null;default:'[]'"`
	IsActive       bool           `json:"is_active" gorm:"not null;index"`
	TotalRuns      int64          `json:"total_runs" gorm:"not null;default:0"`
	TotalCompleted int64          `json:"total_completed" gorm:"not null;default:0"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime;index:,sort:desc"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Automation
func (Automation) TableName() string {
	return "marketing_automations"
}

// BeforeCreate sets UUID before creating
func (a *Automation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Execution is one run of an automation against one customer. At most one
// RUNNING row may exist per (automation, customer).
type Execution struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AutomationID uuid.UUID      `json:"automation_id" gorm:"type:uuid;not null;uniqueIndex:ux_marketing_executions_active,where:state = 'RUNNING'"`
	CustomerID   uuid.UUID      `json:"customer_id" gorm:"type:uuid;not null;uniqueIndex:ux_marketing_executions_active"`
	TriggerEvent string         `json:"trigger_event" gorm:"type:varchar(50);not null"`
	State        string         `json:"state" gorm:"type:varchar(20);not null;default:'RUNNING';index:idx_marketing_executions_due,priority:1"` // RUNNING, COMPLETED, FAILED
	CurrentStep  int            `json:"current_step" gorm:"not null;default:0"`
	StepsLog     datatypes.JSON `json:"steps_log" gorm:"type:jsonb;not null;default:'[]'"`
	Context      datatypes.JSON `json:"context" gorm:"type:jsonb"`
	NextActionAt *time.Time     `json:"next_action_at,omitempty" gorm:"index:idx_marketing_executions_due,priority:2"`
	StartedAt    time.Time      `json:"started_at" gorm:"not null;index:,sort:desc"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty" gorm:"type:text"`
	Version      int64          `json:"version" gorm:"not null;default:1"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime:false;not null"`
}

// TableName specifies the table name for Execution
func (Execution) TableName() string {
	return "marketing_automation_executions"
}

// BeforeCreate sets UUID before creating
func (e *Execution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
