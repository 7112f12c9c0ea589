package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/unza-cs/grading-api/internal/models"
)

// TestResultRepository defines persistence operations for normalized test results.
type TestResultRepository interface {
	// Upsert stores a result, replacing any earlier run for the same
	// (assignment, student, source): the latest successful run supersedes.
	Upsert(ctx context.Context, result *models.TestResult) error
	GetLatest(ctx context.Context, assignmentID, studentID string, source models.TestSource) (models.TestResult, error)
	ListByStudent(ctx context.Context, assignmentID, studentID string) ([]models.TestResult, error)
}

type testResultRepository struct {
	db *gorm.DB
}

// NewTestResultRepository instantiates a GORM-backed repository.
func NewTestResultRepository(db *gorm.DB) TestResultRepository {
	return &testResultRepository{db: db}
}

func (r *testResultRepository) Upsert(ctx context.Context, result *models.TestResult) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"format", "passed", "total", "detail", "ingested_at",
		}),
	}).Create(result).Error
}

func (r *testResultRepository) GetLatest(ctx context.Context, assignmentID, studentID string, source models.TestSource) (models.TestResult, error) {
	var result models.TestResult
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ? AND source = ?", assignmentID, studentID, source).
		First(&result).Error
	if err != nil {
		return models.TestResult{}, err
	}

	return result, nil
}

func (r *testResultRepository) ListByStudent(ctx context.Context, assignmentID, studentID string) ([]models.TestResult, error) {
	var results []models.TestResult
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Order("source ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	return results, nil
}
