package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&EventLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestAppendAndFilter(t *testing.T) {
	svc := NewService(newTestDB(t), false)
	ctx := context.Background()
	execID := uuid.New()

	svc.Append(ctx, workflow.AuditRecord{
		EventType:         workflow.EventTemplateSent,
		ExecutionID:       &execID,
		Channel:           workflow.ChannelWhatsApp,
		ProviderMessageID: "SM0001",
		Result:            workflow.ResultSuccess,
		Payload:           map[string]interface{}{"destination": "+51987654321"},
	})
	svc.Append(ctx, workflow.AuditRecord{
		EventType:    workflow.EventTemplateError,
		ExecutionID:  &execID,
		Result:       workflow.ResultError,
		ErrorMessage: "gateway down",
	})
	svc.Append(ctx, workflow.AuditRecord{EventType: workflow.EventExecutionDone, Result: workflow.ResultSuccess})

	tests := []struct {
		name   string
		filter Filter
		want   int64
	}{
		{"all", Filter{}, 3},
		{"by event", Filter{EventType: workflow.EventTemplateSent}, 1},
		{"by result", Filter{Result: workflow.ResultError}, 1},
		{"by execution", Filter{ExecutionID: &execID}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.GetLogs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("GetLogs: %v", err)
			}
			if page.TotalCount != tt.want || int64(len(page.Logs)) != tt.want {
				t.Errorf("count = %d (%d rows), want %d", page.TotalCount, len(page.Logs), tt.want)
			}
		})
	}

	page, _ := svc.GetLogs(ctx, Filter{EventType: workflow.EventTemplateSent})
	if got := string(page.Logs[0].Payload); got != `{"destination":"+51987654321"}` {
		t.Errorf("payload = %s", got)
	}
}

func TestGetLogsPagination(t *testing.T) {
	svc := NewService(newTestDB(t), false)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		svc.Append(ctx, workflow.AuditRecord{EventType: workflow.EventCampaignSent, Result: workflow.ResultSuccess})
	}

	page, err := svc.GetLogs(ctx, Filter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if page.TotalPages != 3 || len(page.Logs) != 2 || page.Page != 2 {
		t.Errorf("page = %+v", page)
	}
}

func TestAppendSwallowsStoreErrors(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrator().DropTable(&EventLog{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	svc := NewService(db, false)

	// must not panic or block
	svc.Append(context.Background(), workflow.AuditRecord{EventType: workflow.EventTemplateSent, Result: workflow.ResultSuccess})
}
