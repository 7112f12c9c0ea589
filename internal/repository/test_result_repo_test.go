package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/models"
)

func setupTestDB(t *testing.T, entities ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entities...))
	return db
}

func TestTestResultRepositoryLatestRunSupersedes(t *testing.T) {
	db := setupTestDB(t, &models.TestResult{})
	repo := NewTestResultRepository(db)
	ctx := context.Background()

	first := models.TestResult{
		AssignmentID: "lab4",
		StudentID:    "2021456789",
		Source:       models.TestSourceVisible,
		Format:       "pytest-json",
		Passed:       5,
		Total:        10,
		IngestedAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Upsert(ctx, &first))

	second := models.TestResult{
		AssignmentID: "lab4",
		StudentID:    "2021456789",
		Source:       models.TestSourceVisible,
		Format:       "pytest-json",
		Passed:       9,
		Total:        10,
		IngestedAt:   time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, &second))

	stored, err := repo.GetLatest(ctx, "lab4", "2021456789", models.TestSourceVisible)
	require.NoError(t, err)
	require.Equal(t, 9, stored.Passed)

	var count int64
	require.NoError(t, db.Model(&models.TestResult{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestTestResultRepositorySourcesAreIndependent(t *testing.T) {
	db := setupTestDB(t, &models.TestResult{})
	repo := NewTestResultRepository(db)
	ctx := context.Background()

	visible := models.TestResult{
		AssignmentID: "lab4", StudentID: "2021456789",
		Source: models.TestSourceVisible, Format: "pytest-json", Passed: 8, Total: 10,
	}
	hidden := models.TestResult{
		AssignmentID: "lab4", StudentID: "2021456789",
		Source: models.TestSourceHidden, Format: "pytest-json", Passed: 4, Total: 5,
	}
	require.NoError(t, repo.Upsert(ctx, &visible))
	require.NoError(t, repo.Upsert(ctx, &hidden))

	results, err := repo.ListByStudent(ctx, "lab4", "2021456789")
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestTestResultRepositoryGetLatestMissing(t *testing.T) {
	db := setupTestDB(t, &models.TestResult{})
	repo := NewTestResultRepository(db)

	_, err := repo.GetLatest(context.Background(), "lab4", "nobody", models.TestSourceHidden)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
