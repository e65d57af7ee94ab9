package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation tracks the WhatsApp thread with one phone number
type Conversation struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Phone         string     `json:"phone" gorm:"type:varchar(30);not null;uniqueIndex"`
	CustomerID    *uuid.UUID `json:"customer_id,omitempty" gorm:"type:uuid;index"`
	TotalInbound  int        `json:"total_inbound" gorm:"not null;default:0"`
	TotalOutbound int        `json:"total_outbound" gorm:"not null;default:0"`
	LastInboundAt *time.Time `json:"last_inbound_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Conversation
func (Conversation) TableName() string {
	return "marketing_conversations"
}

// BeforeCreate sets UUID before creating
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Message directions
const (
	DirectionInbound  = "IN"
	DirectionOutbound = "OUT"
)

// Message is one WhatsApp message in a conversation
type Message struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID    uuid.UUID  `json:"conversation_id" gorm:"type:uuid;not null;index"`
	CustomerID        *uuid.UUID `json:"customer_id,omitempty" gorm:"type:uuid;index"`
	Direction         string     `json:"direction" gorm:"type:varchar(3);not null"` // IN, OUT
	Body              string     `json:"body" gorm:"type:text"`
	ProviderMessageID string     `json:"provider_message_id,omitempty" gorm:"type:varchar(255);index"`
	TemplateID        string     `json:"template_id,omitempty" gorm:"type:varchar(64)"`
	Status            string     `json:"status" gorm:"type:varchar(20)"` // sent, received
	CreatedAt         time.Time  `json:"created_at" gorm:"index"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "marketing_messages"
}

// BeforeCreate sets UUID before creating
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
