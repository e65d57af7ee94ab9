package repositories

import (
	"context"
	"fmt"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AutomationRepo interface for automation database operations
type AutomationRepo interface {
	workflow.AutomationStore
	Create(ctx context.Context, a *workflow.Automation) error
}

type automationRepo struct {
	db *gorm.DB
}

// NewAutomationRepo creates a new automation repository
func NewAutomationRepo(db *gorm.DB) AutomationRepo {
	return &automationRepo{db: db}
}

func (r *automationRepo) Create(ctx context.Context, a *workflow.Automation) error {
	m, err := automationFromDomain(*a)
	if err != nil {
		return fmt.Errorf("encode automation: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	a.ID = m.ID
	return nil
}

// ListActive returns the active automations for event, oldest first. A row
// whose actions cannot be decoded is logged and left out.
func (r *automationRepo) ListActive(ctx context.Context, event workflow.TriggerEvent) ([]workflow.Automation, error) {
	var rows []models.Automation
	err := r.db.WithContext(ctx).
		Where("trigger_event = ? AND is_active = ?", string(event), true).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	automations := make([]workflow.Automation, 0, len(rows))
	for i := range rows {
		a, err := automationToDomain(&rows[i])
		if err != nil {
			log.Warn().Err(err).Str("automation_id", rows[i].ID.String()).Msg("⚠️ Skipping automation with invalid definition")
			continue
		}
		automations = append(automations, a)
	}
	return automations, nil
}

func (r *automationRepo) Get(ctx context.Context, id uuid.UUID) (*workflow.Automation, error) {
	var row models.Automation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	a, err := automationToDomain(&row)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// IncrementCounters bumps total_runs, and total_completed when completed is
// set, in one atomic statement
func (r *automationRepo) IncrementCounters(ctx context.Context, id uuid.UUID, completed bool) error {
	updates := map[string]interface{}{
		"total_runs": gorm.Expr("total_runs + 1"),
	}
	if completed {
		updates["total_completed"] = gorm.Expr("total_completed + 1")
	}
	res := r.db.WithContext(ctx).Model(&models.Automation{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workflow.ErrNotFound
	}
	return nil
}
