package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

func TestAutomationListActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewAutomationRepo(db)
	ctx := context.Background()

	welcome := &workflow.Automation{
		Name:         "welcome",
		TriggerEvent: workflow.TriggerLeadCreated,
		Active:       true,
		Conditions:   []workflow.Condition{{Field: "name", Operator: "is_not_empty"}},
		Actions: workflow.Actions{
			workflow.SendTemplate{TemplateID: uuid.NewString(), OnlyIfNoReply: true},
			workflow.Wait{DelayMinutes: 60},
			workflow.UpdateStage{NewStage: "contacted"},
		},
	}
	disabled := &workflow.Automation{Name: "disabled", TriggerEvent: workflow.TriggerLeadCreated, Actions: workflow.Actions{}}
	other := &workflow.Automation{Name: "visit", TriggerEvent: workflow.TriggerVisitScheduled, Active: true, Actions: workflow.Actions{}}
	for _, a := range []*workflow.Automation{welcome, disabled, other} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create %s: %v", a.Name, err)
		}
	}

	// written by hand so it never passed through the encoder
	broken := models.Automation{
		Name:         "broken",
		TriggerEvent: string(workflow.TriggerLeadCreated),
		IsActive:     true,
		Actions:      datatypes.JSON(`[{"type":"send_sms"}]`),
	}
	if err := db.Create(&broken).Error; err != nil {
		t.Fatalf("create broken: %v", err)
	}

	got, err := repo.ListActive(ctx, workflow.TriggerLeadCreated)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(got) != 1 || got[0].ID != welcome.ID {
		t.Fatalf("active = %+v", got)
	}
	if len(got[0].Actions) != 3 || got[0].Actions[1] != (workflow.Wait{DelayMinutes: 60}) {
		t.Errorf("actions = %#v", got[0].Actions)
	}
	if len(got[0].Conditions) != 1 || got[0].Conditions[0].Operator != "is_not_empty" {
		t.Errorf("conditions = %+v", got[0].Conditions)
	}

	if _, err := repo.Get(ctx, broken.ID); err == nil {
		t.Error("Get must report an undecodable definition")
	}
	if _, err := repo.Get(ctx, uuid.New()); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("Get missing err = %v", err)
	}
}

func TestAutomationIncrementCounters(t *testing.T) {
	repo := NewAutomationRepo(newTestDB(t))
	ctx := context.Background()

	a := &workflow.Automation{Name: "welcome", TriggerEvent: workflow.TriggerLeadCreated, Active: true, Actions: workflow.Actions{}}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, completed := range []bool{true, false, true} {
		if err := repo.IncrementCounters(ctx, a.ID, completed); err != nil {
			t.Fatalf("IncrementCounters: %v", err)
		}
	}

	got, err := repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TotalRuns != 3 || got.TotalCompleted != 2 {
		t.Errorf("counters = %d/%d, want 3/2", got.TotalRuns, got.TotalCompleted)
	}

	if err := repo.IncrementCounters(ctx, uuid.New(), true); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("missing automation err = %v", err)
	}
}
