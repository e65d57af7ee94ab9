package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db       *gorm.DB
	provider string
}

func NewHealthHandler(db *gorm.DB, provider string) *HealthHandler {
	return &HealthHandler{db: db, provider: provider}
}

// GetHealth godoc
// @Summary Service health check
// @Description Check if API and database are alive
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	database := "ok"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		database = "unreachable"
	}

	code, status := fiber.StatusOK, "ok"
	if database != "ok" {
		code, status = fiber.StatusServiceUnavailable, "degraded"
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"service":  "marketing-automation",
		"database": database,
		"provider": h.provider,
	})
}
