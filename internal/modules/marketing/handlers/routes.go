package handlers

import "github.com/gofiber/fiber/v2"

// Handlers groups every marketing endpoint
type Handlers struct {
	Health    *HealthHandler
	Triggers  *TriggerHandler
	Cron      *CronHandler
	Execution *ExecutionHandler
	Events    *EventHandler
	Twilio    *TwilioWebhookHandler
}

// Register mounts the marketing routes on app
func (h Handlers) Register(app *fiber.App) {
	app.Get("/health", h.Health.GetHealth)

	api := app.Group("/api")

	// Trigger routes
	api.Post("/triggers/property-available", h.Triggers.PropertyAvailable)
	api.Post("/triggers/:event", h.Triggers.FireTrigger)

	// Cron route
	api.Post("/cron/marketing", h.Cron.RunSweep)

	// Execution routes
	api.Get("/executions", h.Execution.ListExecutions)
	api.Get("/executions/:id", h.Execution.GetExecution)
	api.Post("/executions/:id/resume", h.Execution.ResumeExecution)

	// Event log
	api.Get("/events", h.Events.GetEvents)

	// Inbound webhooks
	app.Post("/webhooks/twilio", h.Twilio.ReceiveMessage)
}
