package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/models"
)

// SchemaRepository defines persistence operations for assignment schemas.
type SchemaRepository interface {
	List(ctx context.Context) ([]models.AssignmentSchema, error)
	GetByAssignmentID(ctx context.Context, assignmentID string) (models.AssignmentSchema, error)
	Create(ctx context.Context, schema *models.AssignmentSchema) error
	Publish(ctx context.Context, assignmentID string) error
}

type schemaRepository struct {
	db *gorm.DB
}

// NewSchemaRepository instantiates a GORM-backed repository.
func NewSchemaRepository(db *gorm.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

func (r *schemaRepository) List(ctx context.Context) ([]models.AssignmentSchema, error) {
	var schemas []models.AssignmentSchema
	if err := r.db.WithContext(ctx).Order("assignment_id ASC").Find(&schemas).Error; err != nil {
		return nil, err
	}

	return schemas, nil
}

func (r *schemaRepository) GetByAssignmentID(ctx context.Context, assignmentID string) (models.AssignmentSchema, error) {
	var schema models.AssignmentSchema
	if err := r.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&schema).Error; err != nil {
		return models.AssignmentSchema{}, err
	}

	return schema, nil
}

func (r *schemaRepository) Create(ctx context.Context, schema *models.AssignmentSchema) error {
	return r.db.WithContext(ctx).Create(schema).Error
}

func (r *schemaRepository) Publish(ctx context.Context, assignmentID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.AssignmentSchema{}).
		Where("assignment_id = ?", assignmentID).
		Update("published", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
