package repositories

import (
	"context"
	"time"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InboundMessage is a WhatsApp message received from a customer
type InboundMessage struct {
	Phone             string
	Body              string
	ProviderMessageID string
	CustomerID        *uuid.UUID
	ReceivedAt        time.Time
}

// ConversationRepo interface for conversation database operations
type ConversationRepo interface {
	workflow.ConversationHistory
	workflow.MessageLog
	// RecordInbound stores msg once per provider message id. The bool
	// reports whether a new row was written.
	RecordInbound(ctx context.Context, msg InboundMessage) (bool, error)
	FindByPhone(ctx context.Context, phone string) (*models.Conversation, error)
}

type conversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new conversation repository
func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) HasInbound(ctx context.Context, phone string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("phone = ? AND total_inbound > 0", phone).
		Count(&count).Error
	return count > 0, err
}

func (r *conversationRepo) FindByPhone(ctx context.Context, phone string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&conv).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (r *conversationRepo) RecordInbound(ctx context.Context, msg InboundMessage) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if msg.ProviderMessageID != "" {
			var seen int64
			if err := tx.Model(&models.Message{}).
				Where("provider_message_id = ? AND direction = ?", msg.ProviderMessageID, models.DirectionInbound).
				Count(&seen).Error; err != nil {
				return err
			}
			if seen > 0 {
				return nil
			}
		}

		conv, err := conversationFor(tx, msg.Phone, msg.CustomerID)
		if err != nil {
			return err
		}

		at := msg.ReceivedAt.UTC()
		if err := tx.Create(&models.Message{
			ConversationID:    conv.ID,
			CustomerID:        msg.CustomerID,
			Direction:         models.DirectionInbound,
			Body:              msg.Body,
			ProviderMessageID: msg.ProviderMessageID,
			Status:            "received",
			CreatedAt:         at,
		}).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"total_inbound":   gorm.Expr("total_inbound + 1"),
			"last_inbound_at": at,
		}
		if conv.CustomerID == nil && msg.CustomerID != nil {
			updates["customer_id"] = *msg.CustomerID
		}
		if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *conversationRepo) RecordOutbound(ctx context.Context, msg workflow.OutboundMessage) error {
	customerID := &msg.CustomerID
	if msg.CustomerID == uuid.Nil {
		customerID = nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := conversationFor(tx, msg.Phone, customerID)
		if err != nil {
			return err
		}
		if err := tx.Create(&models.Message{
			ConversationID:    conv.ID,
			CustomerID:        customerID,
			Direction:         models.DirectionOutbound,
			Body:              msg.Body,
			ProviderMessageID: msg.ProviderMessageID,
			TemplateID:        msg.TemplateID,
			Status:            "sent",
			CreatedAt:         msg.SentAt.UTC(),
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
			Update("total_outbound", gorm.Expr("total_outbound + 1")).Error
	})
}

func conversationFor(tx *gorm.DB, phone string, customerID *uuid.UUID) (*models.Conversation, error) {
	conv := models.Conversation{Phone: phone, CustomerID: customerID}
	if err := tx.Where("phone = ?", phone).FirstOrCreate(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}
