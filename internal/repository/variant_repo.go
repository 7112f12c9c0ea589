package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/models"
)

// VariantRepository defines persistence operations for variant configs.
type VariantRepository interface {
	GetByKey(ctx context.Context, assignmentID, studentID string) (models.VariantConfig, error)
	Create(ctx context.Context, config *models.VariantConfig) error
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.VariantConfig, error)
}

type variantRepository struct {
	db *gorm.DB
}

// NewVariantRepository instantiates a GORM-backed repository.
func NewVariantRepository(db *gorm.DB) VariantRepository {
	return &variantRepository{db: db}
}

func (r *variantRepository) GetByKey(ctx context.Context, assignmentID, studentID string) (models.VariantConfig, error) {
	var config models.VariantConfig
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&config).Error
	if err != nil {
		return models.VariantConfig{}, err
	}

	return config, nil
}

func (r *variantRepository) Create(ctx context.Context, config *models.VariantConfig) error {
	return r.db.WithContext(ctx).Create(config).Error
}

func (r *variantRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.VariantConfig, error) {
	var configs []models.VariantConfig
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("student_id ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}

	return configs, nil
}
