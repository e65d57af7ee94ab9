package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/repositories"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/shared/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrInvalidEvent is returned for trigger events the engine does not handle
// through the customer-scoped path
var ErrInvalidEvent = errors.New("invalid trigger event")

const sweepJobName = "marketing-sweep"

// Options tunes the sweep
type Options struct {
	ResumeSchedule    string        // cron expression with seconds
	ResumeBatchSize   int           // parked executions resumed per sweep
	StallTimeout      time.Duration // RUNNING executions untouched this long are re-run
	CampaignBatchSize int           // campaigns started per sweep
	SweepTimeout      time.Duration
}

// DefaultOptions returns the production sweep settings
func DefaultOptions() Options {
	return Options{
		ResumeSchedule:    "0 * * * * *",
		ResumeBatchSize:   50,
		StallTimeout:      15 * time.Minute,
		CampaignBatchSize: 5,
		SweepTimeout:      5 * time.Minute,
	}
}

// SweepReport is the outcome of one cron sweep
type SweepReport struct {
	Resumed   workflow.SweepResult      `json:"resumed"`
	Recovered workflow.SweepResult      `json:"recovered"`
	Campaigns []workflow.CampaignResult `json:"campaigns"`
	Stalled   int                       `json:"stalled_campaigns"`
}

// AutomationService wires the marketing engine to its stores and gateways
type AutomationService struct {
	executions    repositories.ExecutionRepo
	customers     repositories.CustomerRepo
	conversations repositories.ConversationRepo
	engine        *workflow.Engine
	pipeline      *workflow.Pipeline
	fanout        *workflow.FanOut
	campaigns     *workflow.CampaignRunner
	scheduler     *workflow.Scheduler
	opts          Options
}

// NewAutomationService creates a new automation service. email may be nil
// when no email provider is configured; locker may be nil for a single
// replica.
func NewAutomationService(
	db *gorm.DB,
	whatsapp workflow.MessagingGateway,
	email workflow.EmailGateway,
	audit workflow.AuditSink,
	locker workflow.Locker,
	opts Options,
) *AutomationService {
	automationRepo := repositories.NewAutomationRepo(db)
	executionRepo := repositories.NewExecutionRepo(db)
	customerRepo := repositories.NewCustomerRepo(db)
	templateRepo := repositories.NewTemplateRepo(db)
	conversationRepo := repositories.NewConversationRepo(db)
	campaignRepo := repositories.NewCampaignRepo(db)

	dispatcher := workflow.NewChannelDispatcher(whatsapp, email, audit, conversationRepo)
	executor := workflow.NewActionExecutor(customerRepo, templateRepo, conversationRepo, dispatcher)
	engine := workflow.NewEngine(executionRepo, automationRepo, executor, audit)
	selector := workflow.NewSelector(automationRepo)
	pipeline := workflow.NewPipeline(workflow.NewResolver(customerRepo), selector, engine)

	return &AutomationService{
		executions:    executionRepo,
		customers:     customerRepo,
		conversations: conversationRepo,
		engine:        engine,
		pipeline:      pipeline,
		fanout:        workflow.NewFanOut(customerRepo, selector, pipeline),
		campaigns:     workflow.NewCampaignRunner(campaignRepo, customerRepo, templateRepo, dispatcher, audit),
		scheduler:     workflow.NewScheduler(locker, opts.SweepTimeout),
		opts:          opts,
	}
}

// Initialize schedules the periodic sweep and starts the scheduler
func (s *AutomationService) Initialize() error {
	log.Info().Msg("🔧 Initializing Automation Service...")

	err := s.scheduler.AddJob(sweepJobName, s.opts.ResumeSchedule, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.scheduler.Start()
	log.Info().Strs("jobs", s.scheduler.Jobs()).Msg("✅ Automation Service initialized successfully")
	return nil
}

// Shutdown stops the scheduler and waits for a running sweep
func (s *AutomationService) Shutdown() {
	log.Info().Msg("🛑 Shutting down Automation Service...")
	s.scheduler.Stop()
	log.Info().Msg("✅ Automation Service stopped")
}

// SetThrottles overrides the fan-out and campaign pauses
func (s *AutomationService) SetThrottles(fanout, campaign time.Duration) {
	s.fanout.SetThrottle(fanout)
	s.campaigns.SetThrottle(campaign)
}

// HandleEvent runs every automation bound to a customer-scoped event.
// property.available goes through PropertyAvailable instead.
func (s *AutomationService) HandleEvent(ctx context.Context, event workflow.TriggerEvent, partial workflow.PartialContext) (*workflow.TriggerResult, error) {
	if !event.IsValid() || event == workflow.TriggerPropertyAvailable {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, event)
	}
	return s.pipeline.Fire(ctx, event, partial)
}

// PropertyAvailable fans a newly available property out to matching customers
func (s *AutomationService) PropertyAvailable(ctx context.Context, p workflow.Property) (workflow.FanOutResult, error) {
	return s.fanout.PropertyAvailable(ctx, p)
}

// Sweep resumes due executions, recovers stalled ones and starts due
// campaigns. Each part runs even when an earlier one failed.
func (s *AutomationService) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{Campaigns: []workflow.CampaignResult{}}
	var errs []error

	resumed, err := s.engine.ResumeDue(ctx, s.opts.ResumeBatchSize)
	if err != nil {
		errs = append(errs, err)
	}
	report.Resumed = resumed

	recovered, err := s.engine.RecoverStalled(ctx, s.opts.StallTimeout, s.opts.ResumeBatchSize)
	if err != nil {
		errs = append(errs, err)
	}
	report.Recovered = recovered

	stalled, err := s.campaigns.CancelStalled(ctx, s.opts.StallTimeout)
	if err != nil {
		errs = append(errs, err)
	}
	report.Stalled = len(stalled)

	campaigns, err := s.campaigns.RunDue(ctx, s.opts.CampaignBatchSize)
	if err != nil {
		errs = append(errs, err)
	}
	if campaigns != nil {
		report.Campaigns = campaigns
	}

	if resumed.Claimed+recovered.Claimed+report.Stalled+len(report.Campaigns) > 0 {
		utils.LogInfo("🧹 Marketing sweep finished", map[string]interface{}{
			"resumed":           resumed.Claimed,
			"recovered":         recovered.Claimed,
			"stalled_campaigns": report.Stalled,
			"campaigns":         len(report.Campaigns),
		})
	}
	return report, errors.Join(errs...)
}

// Resume continues one execution if it is parked and due
func (s *AutomationService) Resume(ctx context.Context, id uuid.UUID) (*workflow.Execution, error) {
	return s.engine.Resume(ctx, id)
}

// GetExecution loads one execution with its steps log
func (s *AutomationService) GetExecution(ctx context.Context, id uuid.UUID) (*workflow.Execution, error) {
	return s.executions.Load(ctx, id)
}

// ListExecutions lists executions, newest first
func (s *AutomationService) ListExecutions(ctx context.Context, filter repositories.ExecutionFilter) ([]workflow.Execution, error) {
	return s.executions.List(ctx, filter)
}

// RecordInbound stores a message a customer sent us, so only_if_no_reply
// sends see it
func (s *AutomationService) RecordInbound(ctx context.Context, phone, body, providerMessageID string, at time.Time) error {
	canonical := workflow.NormalizePhone(phone)
	if canonical == "" {
		return fmt.Errorf("inbound message without a usable phone: %q", phone)
	}

	msg := repositories.InboundMessage{
		Phone:             canonical,
		Body:              body,
		ProviderMessageID: providerMessageID,
		ReceivedAt:        at,
	}
	if customer, err := s.customers.FindByPhone(ctx, canonical); err == nil {
		msg.CustomerID = &customer.ID
	} else if !errors.Is(err, workflow.ErrNotFound) {
		return err
	}

	created, err := s.conversations.RecordInbound(ctx, msg)
	if err != nil {
		return fmt.Errorf("record inbound: %w", err)
	}
	if created {
		log.Info().Str("phone", canonical).Msg("📩 Inbound message recorded")
	}
	return nil
}
