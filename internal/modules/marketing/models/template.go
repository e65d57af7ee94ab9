package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Template is an operator-authored message template
type Template struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null"`
	Channel   string         `json:"channel" gorm:"type:varchar(20);not null;default:'whatsapp'"` // whatsapp, email
	BodyText  string         `json:"body_text" gorm:"type:text;not null"`
	Subject   string         `json:"subject,omitempty" gorm:"type:varchar(255)"`
	BodyHTML  string         `json:"body_html,omitempty" gorm:"type:text"`
	Variables pq.StringArray `json:"variables" gorm:"type:text[]"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Template
func (Template) TableName() string {
	return "marketing_templates"
}

// BeforeCreate sets UUID before creating
func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
