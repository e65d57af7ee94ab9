package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/audit"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/broker"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/email"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/lock"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/whatsapp"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/handlers"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/services"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/config"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/database"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/utils"

	_ "github.com/MuhamadAgungGumelar/marketing-automation-engine/cmd/api/docs"
)

// @title Marketing Automation API
// @version 1.0
// @description Trigger-driven marketing automations for the real-estate CRM: WhatsApp and email follow-ups, waits, campaigns and the event log.
// @contact.name API Support
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	// Load config
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env)
	sentryEnabled := utils.InitSentry(cfg.SentryDSN, cfg.Env)
	defer utils.FlushSentry()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("🚀 Starting marketing API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init database
	db, err := database.NewDB(cfg.DatabaseURL, cfg.Env)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to database")
	}
	defer db.Close()

	// Init WhatsApp gateway
	waService, err := whatsapp.NewService(cfg.WhatsApp())
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to init WhatsApp provider")
	}
	if err := waService.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect WhatsApp")
	}
	defer waService.Disconnect()

	// Init email gateway (optional)
	var emailGateway workflow.EmailGateway
	if emailCfg, ok := cfg.Email(); ok {
		provider, err := email.NewProvider(emailCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to init email provider")
		}
		emailGateway = email.NewService(provider)
		log.Info().Str("provider", provider.Name()).Msg("📧 Email provider enabled")
	} else {
		log.Warn().Msg("⚠️  Email service not configured, email templates will fail")
	}

	// Init sweep lock (optional)
	var locker workflow.Locker
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to init Redis lock")
		}
		defer redisLocker.Close()
		locker = redisLocker
	}

	// Init trigger queue (optional)
	var publisher handlers.TriggerPublisher
	if cfg.RabbitMQURL != "" {
		queue, err := broker.NewRabbitMQ(cfg.RabbitMQURL, cfg.TriggerQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to connect to RabbitMQ")
		}
		defer queue.Close()
		publisher = queue
	}

	// Init services
	auditService := audit.NewService(db.GORM, sentryEnabled)
	automationService := services.NewAutomationService(db.GORM, waService, emailGateway, auditService, locker, services.Options{
		ResumeSchedule:    cfg.ResumeSchedule,
		ResumeBatchSize:   cfg.ResumeBatchSize,
		StallTimeout:      cfg.StallTimeout,
		CampaignBatchSize: cfg.CampaignBatchSize,
		SweepTimeout:      5 * time.Minute,
	})

	// Providers without a webhook deliver replies over their own connection
	if waService.CanListen() {
		go func() {
			err := waService.Listen(ctx, func(ctx context.Context, msg whatsapp.Inbound) {
				if err := automationService.RecordInbound(ctx, msg.Phone, msg.Body, msg.MessageID, msg.At); err != nil {
					log.Error().Err(err).Str("phone", msg.Phone).Msg("❌ Failed to record inbound message")
				}
			})
			if err != nil {
				log.Error().Err(err).Msg("❌ WhatsApp listener stopped")
			}
		}()
	}

	// Init Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Marketing Automation API",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())

	// Swagger
	app.Get("/swagger/*", swagger.HandlerDefault)

	handlers.Handlers{
		Health:    handlers.NewHealthHandler(db.GORM, waService.ProviderName()),
		Triggers:  handlers.NewTriggerHandler(automationService, publisher),
		Cron:      handlers.NewCronHandler(automationService, cfg.CronSecret),
		Execution: handlers.NewExecutionHandler(automationService),
		Events:    handlers.NewEventHandler(auditService),
		Twilio:    handlers.NewTwilioWebhookHandler(automationService, cfg.TwilioAuthToken, cfg.TwilioWebhookURL),
	}.Register(app)

	go func() {
		<-ctx.Done()
		log.Info().Msg("🛑 Shutting down API...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("❌ Shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("🌐 API listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("❌ Server stopped")
	}
}
