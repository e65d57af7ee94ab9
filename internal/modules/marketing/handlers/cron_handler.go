package handlers

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/services"
)

type CronHandler struct {
	service *services.AutomationService
	secret  string
}

// NewCronHandler creates the sweep endpoint. An empty secret disables auth.
func NewCronHandler(service *services.AutomationService, secret string) *CronHandler {
	return &CronHandler{service: service, secret: secret}
}

// RunSweep godoc
// @Summary Run the marketing sweep
// @Description Resumes due executions, recovers stalled ones and starts due campaigns
// @Tags Cron
// @Produce json
// @Param Authorization header string false "Bearer CRON_SECRET"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/cron/marketing [post]
func (h *CronHandler) RunSweep(c *fiber.Ctx) error {
	if h.secret != "" {
		token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
	}

	report, err := h.service.Sweep(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("❌ Marketing sweep finished with errors")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"data":  report,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Sweep completed",
		"data":    report,
	})
}
