package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is the CRM customer record. The CRM owns the table; the engine
// only reads it and writes owner_username and stage.
type Customer struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name             string    `json:"name" gorm:"type:varchar(255)"`
	Phone            string    `json:"phone" gorm:"type:varchar(30)"`
	WhatsappPhone    string    `json:"whatsapp_phone" gorm:"type:varchar(30)"`
	Email            string    `json:"email" gorm:"type:varchar(255)"`
	OwnerUsername    string    `json:"owner_username" gorm:"type:varchar(100);index"`
	WhatsappOptOut   bool      `json:"whatsapp_opt_out" gorm:"not null"`
	Stage            string    `json:"stage" gorm:"type:varchar(50);index"`
	PrimaryInterest  string    `json:"primary_interest" gorm:"type:varchar(100)"`
	PurchaseCapacity float64   `json:"purchase_capacity"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Customer
func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate sets UUID before creating
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
