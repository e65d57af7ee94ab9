package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/audit"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/broker"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/email"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/lock"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/whatsapp"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/services"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/config"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/database"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/utils"
)

const consumerPrefetch = 4

func main() {
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.Env)
	sentryEnabled := utils.InitSentry(cfg.SentryDSN, cfg.Env)
	defer utils.FlushSentry()

	log.Info().Str("env", cfg.Env).Msg("🚀 Starting marketing worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.DatabaseURL, cfg.Env)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to database")
	}
	defer db.Close()

	waService, err := whatsapp.NewService(cfg.WhatsApp())
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to init WhatsApp provider")
	}
	if err := waService.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect WhatsApp")
	}
	defer waService.Disconnect()

	var emailGateway workflow.EmailGateway
	if emailCfg, ok := cfg.Email(); ok {
		provider, err := email.NewProvider(emailCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to init email provider")
		}
		emailGateway = email.NewService(provider)
	}

	var locker workflow.Locker
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to init Redis lock")
		}
		defer redisLocker.Close()
		locker = redisLocker
	} else {
		log.Warn().Msg("⚠️  REDIS_URL not set, run a single worker replica")
	}

	auditService := audit.NewService(db.GORM, sentryEnabled)
	automationService := services.NewAutomationService(db.GORM, waService, emailGateway, auditService, locker, services.Options{
		ResumeSchedule:    cfg.ResumeSchedule,
		ResumeBatchSize:   cfg.ResumeBatchSize,
		StallTimeout:      cfg.StallTimeout,
		CampaignBatchSize: cfg.CampaignBatchSize,
		SweepTimeout:      5 * time.Minute,
	})

	// Periodic resume/stall/campaign sweep
	if err := automationService.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start sweep scheduler")
	}
	defer automationService.Shutdown()

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

	if cfg.RabbitMQURL == "" {
		log.Warn().Msg("⚠️  RABBITMQ_URL not set, running the sweep only")
		<-ctx.Done()
		log.Info().Msg("🛑 Shutting down worker...")
		return
	}

	queue, err := broker.NewRabbitMQ(cfg.RabbitMQURL, cfg.TriggerQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to RabbitMQ")
	}
	defer queue.Close()

	if err := queue.Consume(ctx, consumerPrefetch, triggerHandler(automationService)); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("❌ Consumer stopped")
	}
	log.Info().Msg("🛑 Shutting down worker...")
}

// triggerHandler runs a queued trigger. Events the service refuses are
// rejected so the broker does not redeliver them.
func triggerHandler(svc *services.AutomationService) broker.Handler {
	return func(ctx context.Context, msg *broker.TriggerMessage) error {
		if msg.Event == workflow.TriggerPropertyAvailable {
			res, err := svc.PropertyAvailable(ctx, *msg.Property)
			if err != nil {
				return err
			}
			log.Info().Int("matched", res.Matched).Msg("🏠 Property fan-out done")
			return nil
		}

		res, err := svc.HandleEvent(ctx, msg.Event, *msg.Context)
		if errors.Is(err, services.ErrInvalidEvent) {
			return broker.ErrRejected
		}
		if err != nil {
			return err
		}
		log.Info().Str("event", string(msg.Event)).Int("executions", len(res.Executions)).Msg("✅ Trigger processed")
		return nil
	}
}
