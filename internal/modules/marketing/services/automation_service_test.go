package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/audit"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/repositories"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeWhatsApp struct {
	mu     sync.Mutex
	sent   []string
	onSend func()
}

func (f *fakeWhatsApp) Send(ctx context.Context, phone, text string) (string, error) {
	if f.onSend != nil {
		f.onSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, phone+"|"+text)
	return fmt.Sprintf("SM%04d", len(f.sent)), nil
}

type fixture struct {
	db       *gorm.DB
	svc      *AutomationService
	whatsapp *fakeWhatsApp
	events   *audit.Service
	customer models.Customer
	template models.Template
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "svc.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := database.OpenSQLite(dsn, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(append(models.All(), &audit.EventLog{})...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	f := &fixture{db: db, whatsapp: &fakeWhatsApp{}, events: audit.NewService(db, false)}
	f.customer = models.Customer{Name: "Ana Torres", Phone: "987654321", Stage: "lead"}
	f.template = models.Template{Name: "bienvenida", Channel: "whatsapp", BodyText: "Hola {{nombre}}, gracias por escribirnos"}
	if err := db.Create(&f.customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if err := db.Create(&f.template).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}

	f.svc = NewAutomationService(db, f.whatsapp, nil, f.events, nil, DefaultOptions())
	f.svc.SetThrottles(0, 0)
	return f
}

func (f *fixture) automation(t *testing.T, event workflow.TriggerEvent, actions ...workflow.Action) *workflow.Automation {
	t.Helper()
	a := &workflow.Automation{Name: string(event), TriggerEvent: event, Active: true, Actions: actions}
	if err := repositories.NewAutomationRepo(f.db).Create(context.Background(), a); err != nil {
		t.Fatalf("create automation: %v", err)
	}
	return a
}

func (f *fixture) countEvents(t *testing.T, eventType string) int64 {
	t.Helper()
	page, err := f.events.GetLogs(context.Background(), audit.Filter{EventType: eventType})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	return page.TotalCount
}

func TestLeadCreatedWaitThenSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.automation(t, workflow.TriggerLeadCreated,
		workflow.SendTemplate{TemplateID: f.template.ID.String()},
		workflow.Wait{DelayMinutes: 60},
		workflow.UpdateStage{NewStage: "contacted"},
	)

	res, err := f.svc.HandleEvent(ctx, workflow.TriggerLeadCreated, workflow.PartialContext{CustomerID: f.customer.ID})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(res.Executions) != 1 {
		t.Fatalf("executions = %d, want 1", len(res.Executions))
	}
	exec := res.Executions[0]
	if !exec.IsParked() || exec.CurrentStep != 1 {
		t.Fatalf("execution not parked at the wait: %+v", exec)
	}
	if len(f.whatsapp.sent) != 1 || f.whatsapp.sent[0] != "+51987654321|Hola Ana Torres, gracias por escribirnos" {
		t.Errorf("sent = %v", f.whatsapp.sent)
	}

	// nothing is due yet
	report, err := f.svc.Sweep(ctx)
	if err != nil || report.Resumed.Claimed != 0 {
		t.Fatalf("early sweep = %+v, %v", report, err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	if err := f.db.Model(&models.Execution{}).Where("id = ?", exec.ID).Update("next_action_at", past).Error; err != nil {
		t.Fatalf("move next_action_at: %v", err)
	}

	report, err = f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Resumed.Claimed != 1 || report.Resumed.Completed != 1 {
		t.Errorf("resumed = %+v", report.Resumed)
	}

	done, err := f.svc.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if done.State != workflow.StateCompleted || len(done.StepsLog) != 3 || done.StepsLog[2].Step != 2 {
		t.Errorf("execution = %+v", done)
	}

	var customer models.Customer
	f.db.First(&customer, "id = ?", f.customer.ID)
	if customer.Stage != "contacted" {
		t.Errorf("stage = %q", customer.Stage)
	}

	var stored models.Automation
	f.db.First(&stored, "id = ?", a.ID)
	if stored.TotalRuns != 1 || stored.TotalCompleted != 1 {
		t.Errorf("counters = %d/%d", stored.TotalRuns, stored.TotalCompleted)
	}

	if f.countEvents(t, workflow.EventTemplateSent) != 1 || f.countEvents(t, workflow.EventExecutionDone) != 1 {
		t.Error("event log incomplete")
	}

	var outbound int64
	f.db.Model(&models.Message{}).Where("direction = ?", models.DirectionOutbound).Count(&outbound)
	if outbound != 1 {
		t.Errorf("outbound messages = %d", outbound)
	}
}

func TestInboundReplySkipsFollowUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.automation(t, workflow.TriggerVisitCompleted,
		workflow.SendTemplate{TemplateID: f.template.ID.String(), OnlyIfNoReply: true},
	)

	if err := f.svc.RecordInbound(ctx, "whatsapp:+51987654321", "hola", "SMin1", time.Now()); err != nil {
		t.Fatalf("RecordInbound: %v", err)
	}

	res, err := f.svc.HandleEvent(ctx, workflow.TriggerVisitCompleted, workflow.PartialContext{CustomerID: f.customer.ID})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	exec := res.Executions[0]
	if exec.State != workflow.StateCompleted || exec.StepsLog[0].Outcome != workflow.OutcomeSkip {
		t.Errorf("execution = %+v", exec)
	}
	if len(f.whatsapp.sent) != 0 {
		t.Errorf("sent = %v", f.whatsapp.sent)
	}

	conv, err := repositories.NewConversationRepo(f.db).FindByPhone(ctx, "+51987654321")
	if err != nil {
		t.Fatalf("FindByPhone: %v", err)
	}
	if conv.CustomerID == nil || *conv.CustomerID != f.customer.ID {
		t.Errorf("inbound not linked to the customer: %+v", conv)
	}

	if err := f.svc.RecordInbound(ctx, "", "hola", "SMin2", time.Now()); err == nil {
		t.Error("expected an error for an inbound message without phone")
	}
}

func TestHandleEventRejectsInvalidEvents(t *testing.T) {
	f := newFixture(t)
	for _, event := range []workflow.TriggerEvent{"lead.deleted", workflow.TriggerPropertyAvailable} {
		t.Run(string(event), func(t *testing.T) {
			_, err := f.svc.HandleEvent(context.Background(), event, workflow.PartialContext{CustomerID: uuid.New()})
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestPropertyAvailableFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.automation(t, workflow.TriggerPropertyAvailable, workflow.SendTemplate{TemplateID: f.template.ID.String()})

	f.db.Model(&models.Customer{}).Where("id = ?", f.customer.ID).
		Updates(map[string]interface{}{"primary_interest": "departamento", "purchase_capacity": 400000})
	other := models.Customer{Name: "Luis", Phone: "912345678", PrimaryInterest: "casa", PurchaseCapacity: 900000}
	f.db.Create(&other)

	res, err := f.svc.PropertyAvailable(ctx, workflow.Property{ID: "P-1", Kind: "departamento", SalePrice: 450000})
	if err != nil {
		t.Fatalf("PropertyAvailable: %v", err)
	}
	if res.Matched != 1 || res.Dispatched != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestSweepRunsCampaigns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	campaign := models.Campaign{
		Name:        "lanzamiento",
		TemplateID:  f.template.ID.String(),
		CustomerIDs: []string{f.customer.ID.String()},
		State:       string(workflow.CampaignScheduled),
		StartsAt:    time.Now().UTC().Add(-time.Minute),
	}
	if err := f.db.Create(&campaign).Error; err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	report, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.Campaigns) != 1 || report.Campaigns[0].Sent != 1 {
		t.Errorf("campaigns = %+v", report.Campaigns)
	}
	if f.countEvents(t, workflow.EventCampaignSent) != 1 {
		t.Error("campaign send not logged")
	}
}

func TestSweepClosesCampaignWhenDeadlinePassesMidSend(t *testing.T) {
	f := newFixture(t)
	campaign := models.Campaign{
		Name:        "lanzamiento",
		TemplateID:  f.template.ID.String(),
		CustomerIDs: []string{f.customer.ID.String()},
		State:       string(workflow.CampaignScheduled),
		StartsAt:    time.Now().UTC().Add(-time.Minute),
	}
	if err := f.db.Create(&campaign).Error; err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.whatsapp.onSend = cancel

	report, err := f.svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.Campaigns) != 1 || report.Campaigns[0].State != workflow.CampaignCompleted || report.Campaigns[0].Sent != 1 {
		t.Errorf("campaigns = %+v", report.Campaigns)
	}

	var stored models.Campaign
	if err := f.db.Where("id = ?", campaign.ID).First(&stored).Error; err != nil {
		t.Fatalf("load campaign: %v", err)
	}
	if stored.State != string(workflow.CampaignCompleted) || stored.TotalSent != 1 {
		t.Errorf("stored campaign = %s sent=%d, want COMPLETED sent=1", stored.State, stored.TotalSent)
	}
	if f.countEvents(t, workflow.EventCampaignSent) != 1 {
		t.Error("campaign send not logged")
	}
}

func TestSweepCancelsStalledCampaigns(t *testing.T) {
	f := newFixture(t)
	startedAt := time.Now().UTC().Add(-time.Hour)
	campaign := models.Campaign{
		Name:        "interrumpida",
		TemplateID:  f.template.ID.String(),
		CustomerIDs: []string{f.customer.ID.String()},
		State:       string(workflow.CampaignRunning),
		StartsAt:    startedAt,
		StartedAt:   &startedAt,
	}
	if err := f.db.Create(&campaign).Error; err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	report, err := f.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Stalled != 1 || len(report.Campaigns) != 0 {
		t.Errorf("report = %+v", report)
	}

	var stored models.Campaign
	if err := f.db.Where("id = ?", campaign.ID).First(&stored).Error; err != nil {
		t.Fatalf("load campaign: %v", err)
	}
	if stored.State != string(workflow.CampaignCancelled) {
		t.Errorf("state = %s, want CANCELLED", stored.State)
	}
	if len(f.whatsapp.sent) != 0 {
		t.Errorf("stalled campaign was resent: %v", f.whatsapp.sent)
	}
	if f.countEvents(t, workflow.EventCampaignCancelled) != 1 {
		t.Error("cancellation not logged")
	}
}

func TestListExecutions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.automation(t, workflow.TriggerLeadCreated, workflow.AssignOwner{OwnerID: "vendedor1"})

	if _, err := f.svc.HandleEvent(ctx, workflow.TriggerLeadCreated, workflow.PartialContext{CustomerID: f.customer.ID}); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	list, err := f.svc.ListExecutions(ctx, repositories.ExecutionFilter{AutomationID: &a.ID})
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
	if list[0].Context.Name != "Ana Torres" {
		t.Errorf("context snapshot = %+v", list[0].Context)
	}
}
