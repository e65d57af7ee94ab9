package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Campaign is a scheduled one-off broadcast of a template
type Campaign struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(255);not null"`
	TemplateID  string         `json:"template_id" gorm:"type:varchar(64);not null"`
	CustomerIDs pq.StringArray `json:"customer_ids" gorm:"type:text[]"`
	State       string         `json:"state" gorm:"type:varchar(20);not null;default:'SCHEDULED';index"` // SCHEDULED, RUNNING, COMPLETED, CANCELLED
	StartsAt    time.Time      `json:"starts_at" gorm:"not null;index"`
	TotalSent   int            `json:"total_sent" gorm:"not null;default:0"`
	TotalFailed int            `json:"total_failed" gorm:"not null;default:0"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Campaign
func (Campaign) TableName() string {
	return "marketing_campaigns"
}

// BeforeCreate sets UUID before creating
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// All returns every marketing model, in dependency order, for AutoMigrate
func All() []interface{} {
	return []interface{}{
		&Customer{},
		&Template{},
		&Automation{},
		&Execution{},
		&Conversation{},
		&Message{},
		&Campaign{},
	}
}
