package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExecutionFilter narrows ListExecutions
type ExecutionFilter struct {
	AutomationID *uuid.UUID
	CustomerID   *uuid.UUID
	State        string
	Limit        int
}

// ExecutionRepo interface for execution database operations
type ExecutionRepo interface {
	workflow.ExecutionStore
	List(ctx context.Context, filter ExecutionFilter) ([]workflow.Execution, error)
}

type executionRepo struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewExecutionRepo creates a new execution repository
func NewExecutionRepo(db *gorm.DB) ExecutionRepo {
	return &executionRepo{
		db:    db,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// CreateIfAbsent inserts exec unless the pair already has a RUNNING
// execution. The partial unique index on (automation_id, customer_id) backs
// the check when two triggers race.
func (r *executionRepo) CreateIfAbsent(ctx context.Context, exec *workflow.Execution) (*workflow.Execution, bool, error) {
	m, err := executionFromDomain(exec)
	if err != nil {
		return nil, false, fmt.Errorf("encode execution: %w", err)
	}
	m.Version = 1

	var existing *models.Execution
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found models.Execution
		err := tx.Where("automation_id = ? AND customer_id = ? AND state = ?",
			exec.AutomationID, exec.CustomerID, string(workflow.StateRunning)).
			First(&found).Error
		if err == nil {
			existing = &found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(m).Error
	})
	if err != nil {
		// lost the insert race: hand back the winner
		if found, ferr := r.findActive(ctx, exec.AutomationID, exec.CustomerID); ferr == nil {
			return found, false, nil
		}
		return nil, false, err
	}

	if existing != nil {
		e, err := executionToDomain(existing)
		return e, false, err
	}
	e, err := executionToDomain(m)
	return e, true, err
}

func (r *executionRepo) findActive(ctx context.Context, automationID, customerID uuid.UUID) (*workflow.Execution, error) {
	var found models.Execution
	err := r.db.WithContext(ctx).
		Where("automation_id = ? AND customer_id = ? AND state = ?", automationID, customerID, string(workflow.StateRunning)).
		First(&found).Error
	if err != nil {
		return nil, notFound(err)
	}
	return executionToDomain(&found)
}

func (r *executionRepo) Load(ctx context.Context, id uuid.UUID) (*workflow.Execution, error) {
	var row models.Execution
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return executionToDomain(&row)
}

// Save writes exec when its version still matches and the stored row is not
// terminal, then advances exec.Version
func (r *executionRepo) Save(ctx context.Context, exec *workflow.Execution) error {
	m, err := executionFromDomain(exec)
	if err != nil {
		return fmt.Errorf("encode execution: %w", err)
	}
	now := r.clock()

	res := r.db.WithContext(ctx).Model(&models.Execution{}).
		Where("id = ? AND version = ? AND state = ?", exec.ID, exec.Version, string(workflow.StateRunning)).
		Updates(map[string]interface{}{
			"state":          m.State,
			"current_step":   m.CurrentStep,
			"steps_log":      m.StepsLog,
			"context":        m.Context,
			"next_action_at": m.NextActionAt,
			"completed_at":   m.CompletedAt,
			"error_message":  m.ErrorMessage,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Load(ctx, exec.ID); err != nil {
			return err
		}
		return workflow.ErrConflict
	}

	exec.Version++
	exec.UpdatedAt = now
	return nil
}

// Claim clears next_action_at of a due, parked execution. Only one caller
// can win: the others see zero affected rows.
func (r *executionRepo) Claim(ctx context.Context, id uuid.UUID, now time.Time) (*workflow.Execution, bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Execution{}).
		Where("id = ? AND state = ? AND next_action_at IS NOT NULL AND next_action_at <= ?",
			id, string(workflow.StateRunning), now).
		Updates(map[string]interface{}{
			"next_action_at": nil,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     r.clock(),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Load(ctx, id); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	exec, err := r.Load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return exec, true, nil
}

func (r *executionRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*workflow.Execution, error) {
	var ids []uuid.UUID
	query := r.db.WithContext(ctx).Model(&models.Execution{}).
		Where("state = ? AND next_action_at IS NOT NULL AND next_action_at <= ?", string(workflow.StateRunning), now).
		Order("next_action_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	claimed := make([]*workflow.Execution, 0, len(ids))
	for _, id := range ids {
		exec, ok, err := r.Claim(ctx, id, now)
		if err != nil {
			return claimed, fmt.Errorf("claim %s: %w", id, err)
		}
		if ok {
			claimed = append(claimed, exec)
		}
	}
	return claimed, nil
}

// ClaimStalled takes RUNNING executions that are neither parked nor touched
// since before. The version check makes the claim exclusive.
func (r *executionRepo) ClaimStalled(ctx context.Context, before time.Time, limit int) ([]*workflow.Execution, error) {
	var rows []models.Execution
	query := r.db.WithContext(ctx).
		Select("id", "version").
		Where("state = ? AND next_action_at IS NULL AND updated_at < ?", string(workflow.StateRunning), before).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	claimed := make([]*workflow.Execution, 0, len(rows))
	for _, row := range rows {
		res := r.db.WithContext(ctx).Model(&models.Execution{}).
			Where("id = ? AND version = ? AND state = ? AND next_action_at IS NULL",
				row.ID, row.Version, string(workflow.StateRunning)).
			Updates(map[string]interface{}{
				"version":    gorm.Expr("version + 1"),
				"updated_at": r.clock(),
			})
		if res.Error != nil {
			return claimed, fmt.Errorf("claim stalled %s: %w", row.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		exec, err := r.Load(ctx, row.ID)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, exec)
	}
	return claimed, nil
}

func (r *executionRepo) List(ctx context.Context, filter ExecutionFilter) ([]workflow.Execution, error) {
	query := r.db.WithContext(ctx).Model(&models.Execution{})
	if filter.AutomationID != nil {
		query = query.Where("automation_id = ?", *filter.AutomationID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	var rows []models.Execution
	if err := query.Order("started_at DESC").Limit(filter.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	executions := make([]workflow.Execution, 0, len(rows))
	for i := range rows {
		e, err := executionToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return executions, nil
}
