package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/models"
)

// SimilarityRepository defines persistence operations for similarity pairs and
// the roster used to normalize tool identifiers.
type SimilarityRepository interface {
	GetPair(ctx context.Context, assignmentID, studentA, studentB string) (models.SimilarityPair, error)
	Save(ctx context.Context, pair *models.SimilarityPair) error
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.SimilarityPair, error)
	HighestForStudent(ctx context.Context, assignmentID, studentID string) (models.SimilarityPair, error)
	LookupRoster(ctx context.Context, toolIdentifier string) (models.RosterEntry, error)
	UpsertRoster(ctx context.Context, entries []models.RosterEntry) (int64, error)
}

type similarityRepository struct {
	db *gorm.DB
}

// NewSimilarityRepository instantiates a GORM-backed repository.
func NewSimilarityRepository(db *gorm.DB) SimilarityRepository {
	return &similarityRepository{db: db}
}

func (r *similarityRepository) GetPair(ctx context.Context, assignmentID, studentA, studentB string) (models.SimilarityPair, error) {
	a, b := models.OrderPair(studentA, studentB)

	var pair models.SimilarityPair
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_a = ? AND student_b = ?", assignmentID, a, b).
		First(&pair).Error
	if err != nil {
		return models.SimilarityPair{}, err
	}

	return pair, nil
}

func (r *similarityRepository) Save(ctx context.Context, pair *models.SimilarityPair) error {
	return r.db.WithContext(ctx).Save(pair).Error
}

func (r *similarityRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SimilarityPair, error) {
	var pairs []models.SimilarityPair
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("similarity DESC").
		Find(&pairs).Error
	if err != nil {
		return nil, err
	}

	return pairs, nil
}

func (r *similarityRepository) HighestForStudent(ctx context.Context, assignmentID, studentID string) (models.SimilarityPair, error) {
	var pair models.SimilarityPair
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND (student_a = ? OR student_b = ?)", assignmentID, studentID, studentID).
		Order("similarity DESC").
		First(&pair).Error
	if err != nil {
		return models.SimilarityPair{}, err
	}

	return pair, nil
}

func (r *similarityRepository) LookupRoster(ctx context.Context, toolIdentifier string) (models.RosterEntry, error) {
	var entry models.RosterEntry
	err := r.db.WithContext(ctx).
		Where("tool_identifier = ?", toolIdentifier).
		First(&entry).Error
	if err != nil {
		return models.RosterEntry{}, err
	}

	return entry, nil
}

func (r *similarityRepository) UpsertRoster(ctx context.Context, entries []models.RosterEntry) (int64, error) {
	var affected int64
	for i := range entries {
		entry := &entries[i]

		var existing models.RosterEntry
		err := r.db.WithContext(ctx).
			Where("tool_identifier = ?", entry.ToolIdentifier).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
				return affected, err
			}
			affected++
		case err != nil:
			return affected, err
		default:
			if existing.StudentID != entry.StudentID {
				existing.StudentID = entry.StudentID
				if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
					return affected, err
				}
				affected++
			}
		}
	}

	return affected, nil
}
