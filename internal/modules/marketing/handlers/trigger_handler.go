package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/broker"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/services"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/utils"
)

// TriggerPublisher queues triggers for the worker
type TriggerPublisher interface {
	Publish(ctx context.Context, msg *broker.TriggerMessage) error
}

type TriggerHandler struct {
	service   *services.AutomationService
	publisher TriggerPublisher
}

// NewTriggerHandler creates the trigger endpoints. publisher may be nil, in
// which case async requests are refused.
func NewTriggerHandler(service *services.AutomationService, publisher TriggerPublisher) *TriggerHandler {
	return &TriggerHandler{service: service, publisher: publisher}
}

// TriggerRequest is the body of a customer-scoped trigger
type TriggerRequest struct {
	CustomerID string             `json:"customer_id" validate:"required,uuid"`
	Name       string             `json:"name,omitempty"`
	Phone      string             `json:"phone,omitempty"`
	OwnerID    string             `json:"owner_id,omitempty"`
	VisitDate  *time.Time         `json:"visit_date,omitempty"`
	Property   *workflow.Property `json:"property,omitempty"`
}

func (r TriggerRequest) partial() workflow.PartialContext {
	return workflow.PartialContext{
		CustomerID: uuid.MustParse(r.CustomerID),
		Name:       r.Name,
		Phone:      r.Phone,
		OwnerID:    r.OwnerID,
		VisitDate:  r.VisitDate,
		Property:   r.Property,
	}
}

// FireTrigger godoc
// @Summary Fire a customer trigger
// @Description Runs every active automation bound to the event (lead.created, visit.scheduled, visit.completed). With async=true the trigger is queued instead.
// @Tags Triggers
// @Accept json
// @Produce json
// @Param event path string true "Trigger event"
// @Param async query bool false "Queue instead of running inline"
// @Param trigger body TriggerRequest true "Trigger context"
// @Success 200 {object} map[string]interface{}
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/triggers/{event} [post]
func (h *TriggerHandler) FireTrigger(c *fiber.Ctx) error {
	event := workflow.TriggerEvent(c.Params("event"))
	if !event.IsValid() || event == workflow.TriggerPropertyAvailable {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown trigger event: " + string(event)})
	}

	var req TriggerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	partial := req.partial()

	if c.QueryBool("async") {
		return h.enqueue(c, &broker.TriggerMessage{Event: event, Context: &partial})
	}

	result, err := h.service.HandleEvent(c.UserContext(), event, partial)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEvent) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error().Err(err).Str("event", string(event)).Msg("❌ Trigger failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Trigger processed",
		"data":    result,
	})
}

// PropertyAvailable godoc
// @Summary Property available
// @Description Fans a newly available property out to every matching customer
// @Tags Triggers
// @Accept json
// @Produce json
// @Param async query bool false "Queue instead of running inline"
// @Param property body workflow.Property true "Property"
// @Success 200 {object} map[string]interface{}
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/triggers/property-available [post]
func (h *TriggerHandler) PropertyAvailable(c *fiber.Ctx) error {
	var property workflow.Property
	if err := c.BodyParser(&property); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := utils.ValidateStruct(property); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if c.QueryBool("async") {
		return h.enqueue(c, &broker.TriggerMessage{Event: workflow.TriggerPropertyAvailable, Property: &property})
	}

	result, err := h.service.PropertyAvailable(c.UserContext(), property)
	if err != nil {
		log.Error().Err(err).Str("property_id", property.ID).Msg("❌ Property fan-out failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Property fan-out processed",
		"data":    result,
	})
}

func (h *TriggerHandler) enqueue(c *fiber.Ctx, msg *broker.TriggerMessage) error {
	if h.publisher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "trigger queue not configured"})
	}
	if err := h.publisher.Publish(c.UserContext(), msg); err != nil {
		log.Error().Err(err).Str("event", string(msg.Event)).Msg("❌ Failed to queue trigger")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to queue trigger"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":  "success",
		"message": "Trigger queued",
	})
}
