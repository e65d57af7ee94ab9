package repositories

import (
	"context"

	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/core/workflow"
	"github.com/MuhamadAgungGumelar/marketing-automation-engine/internal/modules/marketing/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateRepo interface for template database operations
type TemplateRepo interface {
	workflow.TemplateStore
	Create(ctx context.Context, tpl *models.Template) error
}

type templateRepo struct {
	db *gorm.DB
}

// NewTemplateRepo creates a new template repository
func NewTemplateRepo(db *gorm.DB) TemplateRepo {
	return &templateRepo{db: db}
}

func (r *templateRepo) Create(ctx context.Context, tpl *models.Template) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

// Get loads a template by id. An id that is not a UUID cannot exist.
func (r *templateRepo) Get(ctx context.Context, id string) (*workflow.Template, error) {
	templateID, err := uuid.Parse(id)
	if err != nil {
		return nil, workflow.ErrNotFound
	}

	var row models.Template
	if err := r.db.WithContext(ctx).Where("id = ?", templateID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return templateToDomain(&row), nil
}
