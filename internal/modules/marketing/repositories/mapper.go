package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// notFound maps gorm's missing-row error onto the engine's sentinel
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.ErrNotFound
	}
	return err
}

func automationToDomain(m *models.Automation) (workflow.Automation, error) {
	a := workflow.Automation{
		ID:             m.ID,
		Name:           m.Name,
		TriggerEvent:   workflow.TriggerEvent(m.TriggerEvent),
		Active:         m.IsActive,
		TotalRuns:      m.TotalRuns,
		TotalCompleted: m.TotalCompleted,
	}
	if len(m.Actions) > 0 {
		if err := json.Unmarshal(m.Actions, &a.Actions); err != nil {
			return a, fmt.Errorf("automation %s actions: %w", m.ID, err)
		}
	}
	if len(m.Conditions) > 0 {
		if err := json.Unmarshal(m.Conditions, &a.Conditions); err != nil {
			return a, fmt.Errorf("automation %s conditions: %w", m.ID, err)
		}
	}
	return a, nil
}

func automationFromDomain(a workflow.Automation) (*models.Automation, error) {
	actions, err := json.Marshal(a.Actions)
	if err != nil {
		return nil, err
	}
	conditions := []workflow.Condition{}
	if a.Conditions != nil {
		conditions = a.Conditions
	}
	conds, err := json.Marshal(conditions)
	if err != nil {
		return nil, err
	}
	return &models.Automation{
		ID:             a.ID,
		Name:           a.Name,
		TriggerEvent:   string(a.TriggerEvent),
		IsActive:       a.Active,
		Actions:        datatypes.JSON(actions),
		Conditions:     datatypes.JSON(conds),
		TotalRuns:      a.TotalRuns,
		TotalCompleted: a.TotalCompleted,
	}, nil
}

func executionToDomain(m *models.Execution) (*workflow.Execution, error) {
	e := &workflow.Execution{
		ID:           m.ID,
		AutomationID: m.AutomationID,
		CustomerID:   m.CustomerID,
		TriggerEvent: workflow.TriggerEvent(m.TriggerEvent),
		State:        workflow.ExecutionState(m.State),
		CurrentStep:  m.CurrentStep,
		StepsLog:     []workflow.StepResult{},
		NextActionAt: utcPtr(m.NextActionAt),
		StartedAt:    m.StartedAt.UTC(),
		CompletedAt:  utcPtr(m.CompletedAt),
		ErrorMessage: m.ErrorMessage,
		Version:      m.Version,
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if len(m.StepsLog) > 0 {
		if err := json.Unmarshal(m.StepsLog, &e.StepsLog); err != nil {
			return nil, fmt.Errorf("execution %s steps log: %w", m.ID, err)
		}
	}
	if len(m.Context) > 0 {
		if err := json.Unmarshal(m.Context, &e.Context); err != nil {
			return nil, fmt.Errorf("execution %s context: %w", m.ID, err)
		}
	}
	return e, nil
}

func executionFromDomain(e *workflow.Execution) (*models.Execution, error) {
	steps := e.StepsLog
	if steps == nil {
		steps = []workflow.StepResult{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, err
	}
	ctxJSON, err := json.Marshal(e.Context)
	if err != nil {
		return nil, err
	}
	return &models.Execution{
		ID:           e.ID,
		AutomationID: e.AutomationID,
		CustomerID:   e.CustomerID,
		TriggerEvent: string(e.TriggerEvent),
		State:        string(e.State),
		CurrentStep:  e.CurrentStep,
		StepsLog:     datatypes.JSON(stepsJSON),
		Context:      datatypes.JSON(ctxJSON),
		NextActionAt: e.NextActionAt,
		StartedAt:    e.StartedAt,
		CompletedAt:  e.CompletedAt,
		ErrorMessage: e.ErrorMessage,
		Version:      e.Version,
		UpdatedAt:    e.UpdatedAt,
	}, nil
}

func templateToDomain(m *models.Template) *workflow.Template {
	return &workflow.Template{
		ID:        m.ID,
		Name:      m.Name,
		Channel:   workflow.Channel(m.Channel),
		BodyText:  m.BodyText,
		Subject:   m.Subject,
		BodyHTML:  m.BodyHTML,
		Variables: []string(m.Variables),
	}
}

func customerToDomain(m *models.Customer) workflow.Customer {
	phone := m.WhatsappPhone
	if phone == "" {
		phone = m.Phone
	}
	return workflow.Customer{
		ID:       m.ID,
		Name:     m.Name,
		Phone:    phone,
		Email:    m.Email,
		OwnerID:  m.OwnerUsername,
		OptOut:   m.WhatsappOptOut,
		Stage:    m.Stage,
		Interest: m.PrimaryInterest,
		Capacity: m.PurchaseCapacity,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
