package repositories

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/database"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "marketing.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := database.OpenSQLite(dsn, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var epoch = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }
