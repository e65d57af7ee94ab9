package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/audit"
)

type EventHandler struct {
	audit *audit.Service
}

func NewEventHandler(auditService *audit.Service) *EventHandler {
	return &EventHandler{audit: auditService}
}

// GetEvents godoc
// @Summary Marketing event log
// @Description Lists dispatches, failures and campaign events, newest first
// @Tags Events
// @Produce json
// @Param event_type query string false "e.g. automation.template_sent"
// @Param result query string false "SUCCESS, ERROR or WARNING"
// @Param automation_id query string false "Automation ID"
// @Param execution_id query string false "Execution ID"
// @Param customer_id query string false "Customer ID"
// @Param start_date query string false "RFC3339"
// @Param end_date query string false "RFC3339"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 50)"
// @Success 200 {object} audit.EventLogResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/events [get]
func (h *EventHandler) GetEvents(c *fiber.Ctx) error {
	filter := audit.Filter{
		EventType: c.Query("event_type"),
		Result:    c.Query("result"),
		Page:      c.QueryInt("page", 1),
		PageSize:  c.QueryInt("page_size", 50),
	}

	ids := map[string]**uuid.UUID{
		"automation_id": &filter.AutomationID,
		"execution_id":  &filter.ExecutionID,
		"customer_id":   &filter.CustomerID,
	}
	for key, dst := range ids {
		v := c.Query(key)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + key})
		}
		*dst = &id
	}

	dates := map[string]**time.Time{
		"start_date": &filter.StartDate,
		"end_date":   &filter.EndDate,
	}
	for key, dst := range dates {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + key + ", expected RFC3339"})
		}
		t = t.UTC()
		*dst = &t
	}

	logs, err := h.audit.GetLogs(c.UserContext(), filter)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to read event log")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read event log"})
	}
	return c.JSON(logs)
}
