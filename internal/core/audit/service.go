package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service writes and reads the marketing event log. It implements
// workflow.AuditSink.
type Service struct {
	db     *gorm.DB
	sentry bool
}

// NewService creates a new audit service. With reportErrors set, ERROR
// records are also sent to Sentry.
func NewService(db *gorm.DB, reportErrors bool) *Service {
	return &Service{db: db, sentry: reportErrors}
}

// Append stores record. Failures are logged and swallowed: losing an event
// row never blocks the side effect it describes.
func (s *Service) Append(ctx context.Context, record workflow.AuditRecord) {
	entry := &EventLog{
		EventType:         record.EventType,
		Result:            record.Result,
		AutomationID:      record.AutomationID,
		ExecutionID:       record.ExecutionID,
		CustomerID:        record.CustomerID,
		TemplateID:        record.TemplateID,
		Channel:           string(record.Channel),
		ProviderMessageID: record.ProviderMessageID,
		ErrorMessage:      record.ErrorMessage,
	}

	if len(record.Payload) > 0 {
		payload, err := toJSON(record.Payload)
		if err != nil {
			log.Warn().Err(err).Str("event_type", record.EventType).Msg("⚠️ Failed to serialize event payload")
		}
		entry.Payload = payload
	}

	if err := s.Log(ctx, entry); err != nil {
		log.Warn().Err(err).Str("event_type", record.EventType).Msg("⚠️ Event log append failed")
	}

	if s.sentry && record.Result == workflow.ResultError {
		s.report(record)
	}
}

// Log creates a new event log entry
func (s *Service) Log(ctx context.Context, entry *EventLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create event log: %w", err)
	}
	return nil
}

func (s *Service) report(record workflow.AuditRecord) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("event_type", record.EventType)
		if record.Channel != "" {
			scope.SetTag("channel", string(record.Channel))
		}
		if record.AutomationID != nil {
			scope.SetTag("automation_id", record.AutomationID.String())
		}
		if record.ExecutionID != nil {
			scope.SetTag("execution_id", record.ExecutionID.String())
		}
		scope.SetLevel(sentry.LevelError)
		sentry.CaptureMessage(fmt.Sprintf("%s: %s", record.EventType, record.ErrorMessage))
	})
}

// GetLogs retrieves event logs with filtering
func (s *Service) GetLogs(ctx context.Context, filter Filter) (*EventLogResponse, error) {
	query := s.db.WithContext(ctx).Model(&EventLog{})

	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Result != "" {
		query = query.Where("result = ?", filter.Result)
	}
	if filter.AutomationID != nil {
		query = query.Where("automation_id = ?", *filter.AutomationID)
	}
	if filter.ExecutionID != nil {
		query = query.Where("execution_id = ?", *filter.ExecutionID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count event logs: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	offset := (filter.Page - 1) * filter.PageSize

	var logs []EventLog
	if err := query.
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get event logs: %w", err)
	}

	totalPages := int(totalCount) / filter.PageSize
	if int(totalCount)%filter.PageSize > 0 {
		totalPages++
	}

	return &EventLogResponse{
		Logs:       logs,
		TotalCount: totalCount,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
