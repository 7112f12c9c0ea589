package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/models"
)

// GradeRepository defines persistence operations for grade records.
type GradeRepository interface {
	GetByKey(ctx context.Context, assignmentID, studentID string) (models.GradeRecord, error)
	Save(ctx context.Context, record *models.GradeRecord) error
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.GradeRecord, error)
	CreateOverrideHistory(ctx context.Context, history *models.GradeOverrideHistory) error
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates a GORM-backed repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) GetByKey(ctx context.Context, assignmentID, studentID string) (models.GradeRecord, error) {
	var record models.GradeRecord
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&record).Error
	if err != nil {
		return models.GradeRecord{}, err
	}

	return record, nil
}

func (r *gradeRepository) Save(ctx context.Context, record *models.GradeRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *gradeRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.GradeRecord, error) {
	var records []models.GradeRecord
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("student_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *gradeRepository) CreateOverrideHistory(ctx context.Context, history *models.GradeOverrideHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}
