package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// DB wraps both GORM and the underlying sql.DB
type DB struct {
	*sql.DB
	GORM *gorm.DB
}

// NewDB opens the database named by connStr. Postgres URLs go through the
// pgx-backed gorm driver; "file:" and "sqlite:" URLs open a local sqlite
// database for development.
func NewDB(connStr string, env string) (*DB, error) {
	if connStr == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	level := logger.Warn
	if env == "development" {
		level = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var (
		gormDB *gorm.DB
		err    error
	)
	if isSQLite(connStr) {
		gormDB, err = OpenSQLite(strings.TrimPrefix(connStr, "sqlite:"), cfg)
	} else {
		gormDB, err = gorm.Open(postgres.Open(connStr), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("✅ Database connected (GORM)!")
	return &DB{DB: sqlDB, GORM: gormDB}, nil
}

// OpenSQLite opens dsn with the pure-Go sqlite driver
func OpenSQLite(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}
	return gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, cfg)
}

func (db *DB) Close() error {
	log.Info().Msg("🔌 Closing database connection...")
	return db.DB.Close()
}

func isSQLite(connStr string) bool {
	return strings.HasPrefix(connStr, "file:") || strings.HasPrefix(connStr, "sqlite:")
}
