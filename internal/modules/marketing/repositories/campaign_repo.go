package repositories

import (
	"context"
	"time"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CampaignRepo interface for campaign database operations
type CampaignRepo interface {
	workflow.CampaignStore
	Create(ctx context.Context, c *models.Campaign) error
}

type campaignRepo struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewCampaignRepo creates a new campaign repository
func NewCampaignRepo(db *gorm.DB) CampaignRepo {
	return &campaignRepo{
		db:    db,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (r *campaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ClaimDue moves due SCHEDULED campaigns to RUNNING one by one. A campaign
// another worker moved first is left out.
func (r *campaignRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]workflow.Campaign, error) {
	var rows []models.Campaign
	query := r.db.WithContext(ctx).
		Where("state = ? AND starts_at <= ?", string(workflow.CampaignScheduled), now).
		Order("starts_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	claimed := make([]workflow.Campaign, 0, len(rows))
	for i := range rows {
		res := r.db.WithContext(ctx).Model(&models.Campaign{}).
			Where("id = ? AND state = ?", rows[i].ID, string(workflow.CampaignScheduled)).
			Updates(map[string]interface{}{
				"state":      string(workflow.CampaignRunning),
				"started_at": r.clock(),
			})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		claimed = append(claimed, campaignToDomain(&rows[i]))
	}
	return claimed, nil
}

// Finish closes a RUNNING campaign. ErrConflict means it is missing or was
// already closed, e.g. cancelled as stalled.
func (r *campaignRepo) Finish(ctx context.Context, id uuid.UUID, state workflow.CampaignState, sent, failed int) error {
	res := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND state = ?", id, string(workflow.CampaignRunning)).
		Updates(map[string]interface{}{
			"state":        string(state),
			"total_sent":   sent,
			"total_failed": failed,
			"completed_at": r.clock(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workflow.ErrConflict
	}
	return nil
}

func (r *campaignRepo) Release(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND state = ?", id, string(workflow.CampaignRunning)).
		Updates(map[string]interface{}{
			"state":      string(workflow.CampaignScheduled),
			"started_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workflow.ErrConflict
	}
	return nil
}

// CancelStalled cancels RUNNING campaigns started before startedBefore, one
// conditional update each so a campaign finishing meanwhile is left alone
func (r *campaignRepo) CancelStalled(ctx context.Context, startedBefore time.Time) ([]workflow.Campaign, error) {
	var rows []models.Campaign
	err := r.db.WithContext(ctx).
		Where("state = ? AND started_at < ?", string(workflow.CampaignRunning), startedBefore).
		Order("started_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	cancelled := make([]workflow.Campaign, 0, len(rows))
	for i := range rows {
		res := r.db.WithContext(ctx).Model(&models.Campaign{}).
			Where("id = ? AND state = ?", rows[i].ID, string(workflow.CampaignRunning)).
			Updates(map[string]interface{}{
				"state":        string(workflow.CampaignCancelled),
				"completed_at": r.clock(),
			})
		if res.Error != nil {
			return cancelled, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		c := campaignToDomain(&rows[i])
		c.State = workflow.CampaignCancelled
		cancelled = append(cancelled, c)
	}
	return cancelled, nil
}

func campaignToDomain(m *models.Campaign) workflow.Campaign {
	c := workflow.Campaign{
		ID:          m.ID,
		Name:        m.Name,
		TemplateID:  m.TemplateID,
		State:       workflow.CampaignRunning,
		StartsAt:    m.StartsAt.UTC(),
		TotalSent:   m.TotalSent,
		TotalFailed: m.TotalFailed,
	}
	for _, raw := range m.CustomerIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			log.Warn().Str("campaign_id", m.ID.String()).Str("customer_id", raw).Msg("⚠️ Ignoring invalid audience entry")
			continue
		}
		c.CustomerIDs = append(c.CustomerIDs, id)
	}
	return c
}
