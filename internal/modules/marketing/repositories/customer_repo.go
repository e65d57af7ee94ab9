package repositories

import (
	"context"
	"strings"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerRepo interface for customer database operations
type CustomerRepo interface {
	workflow.CustomerStore
	FindByPhone(ctx context.Context, phone string) (*workflow.Customer, error)
}

type customerRepo struct {
	db *gorm.DB
}

// NewCustomerRepo creates a new customer repository
func NewCustomerRepo(db *gorm.DB) CustomerRepo {
	return &customerRepo{db: db}
}

func (r *customerRepo) Get(ctx context.Context, id uuid.UUID) (*workflow.Customer, error) {
	var row models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	c := customerToDomain(&row)
	return &c, nil
}

// FindByPhone matches a canonical phone against both phone columns. The CRM
// stores numbers as typed, so the bare and local forms are tried as well.
func (r *customerRepo) FindByPhone(ctx context.Context, phone string) (*workflow.Customer, error) {
	var rows []models.Customer
	candidates := phoneForms(phone)
	err := r.db.WithContext(ctx).
		Where("whatsapp_phone IN ? OR phone IN ?", candidates, candidates).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, workflow.ErrNotFound
	}
	c := customerToDomain(&rows[0])
	return &c, nil
}

func phoneForms(phone string) []string {
	digits := strings.TrimPrefix(phone, "+")
	forms := []string{phone, digits}
	if local := strings.TrimPrefix(digits, "51"); local != digits && len(local) == 9 {
		forms = append(forms, local)
	}
	return forms
}

// Update writes only the fields set in fields
func (r *customerRepo) Update(ctx context.Context, id uuid.UUID, fields workflow.CustomerUpdate) error {
	updates := map[string]interface{}{}
	if fields.OwnerID != nil {
		updates["owner_username"] = *fields.OwnerID
	}
	if fields.Stage != nil {
		updates["stage"] = *fields.Stage
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

// likeEscaper makes LIKE wildcards in user input match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindMatches returns opted-in customers whose primary interest mentions the
// property kind
func (r *customerRepo) FindMatches(ctx context.Context, criteria workflow.MatchCriteria) ([]workflow.Customer, error) {
	query := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("whatsapp_opt_out = ?", false)

	if criteria.PropertyKind != "" {
		query = query.Where(`LOWER(primary_interest) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToLower(criteria.PropertyKind))+"%")
	}
	if criteria.MinCapacity > 0 {
		query = query.Where("purchase_capacity >= ?", criteria.MinCapacity)
	}
	if criteria.ExcludeStage != "" {
		query = query.Where("stage IS NULL OR stage <> ?", criteria.ExcludeStage)
	}
	if criteria.Limit > 0 {
		query = query.Limit(criteria.Limit)
	}

	var rows []models.Customer
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	customers := make([]workflow.Customer, 0, len(rows))
	for i := range rows {
		customers = append(customers, customerToDomain(&rows[i]))
	}
	return customers, nil
}
