package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/repositories"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/services"
)

type ExecutionHandler struct {
	service *services.AutomationService
}

func NewExecutionHandler(service *services.AutomationService) *ExecutionHandler {
	return &ExecutionHandler{service: service}
}

// GetExecution godoc
// @Summary Get execution
// @Description Returns one execution with its steps log
// @Tags Executions
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} workflow.Execution
// @Failure 404 {object} map[string]interface{}
// @Router /api/executions/{id} [get]
func (h *ExecutionHandler) GetExecution(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid execution id"})
	}

	exec, err := h.service.GetExecution(c.UserContext(), id)
	if err != nil {
		return executionError(c, err)
	}
	return c.JSON(exec)
}

// ListExecutions godoc
// @Summary List executions
// @Description Lists executions, newest first
// @Tags Executions
// @Produce json
// @Param automation_id query string false "Automation ID"
// @Param customer_id query string false "Customer ID"
// @Param state query string false "RUNNING, COMPLETED or FAILED"
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {object} map[string]interface{}
// @Router /api/executions [get]
func (h *ExecutionHandler) ListExecutions(c *fiber.Ctx) error {
	filter := repositories.ExecutionFilter{
		State: c.Query("state"),
		Limit: c.QueryInt("limit", 50),
	}

	if v := c.Query("automation_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid automation_id"})
		}
		filter.AutomationID = &id
	}
	if v := c.Query("customer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid customer_id"})
		}
		filter.CustomerID = &id
	}
	switch workflow.ExecutionState(filter.State) {
	case "", workflow.StateRunning, workflow.StateCompleted, workflow.StateFailed:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid state"})
	}

	executions, err := h.service.ListExecutions(c.UserContext(), filter)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to list executions")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list executions"})
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"count":      len(executions),
	})
}

// ResumeExecution godoc
// @Summary Resume execution
// @Description Continues a parked execution whose wait has elapsed. Other executions are returned unchanged.
// @Tags Executions
// @Produce json
// @Param id path string true "Execution ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/executions/{id}/resume [post]
func (h *ExecutionHandler) ResumeExecution(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid execution id"})
	}

	exec, err := h.service.Resume(c.UserContext(), id)
	if err != nil {
		return executionError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Execution resumed",
		"data":    exec,
	})
}

func executionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "execution not found"})
	case errors.Is(err, workflow.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("❌ Execution request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
