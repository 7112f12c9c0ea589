package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/models"
)

func TestSimilarityRepositoryGetPairIsOrderInsensitive(t *testing.T) {
	db := setupTestDB(t, &models.SimilarityPair{})
	repo := NewSimilarityRepository(db)
	ctx := context.Background()

	pair := models.SimilarityPair{
		AssignmentID: "lab4",
		StudentA:     "alice",
		StudentB:     "bob",
		Similarity:   0.62,
		Tools:        "jplag",
	}
	require.NoError(t, repo.Save(ctx, &pair))

	forward, err := repo.GetPair(ctx, "lab4", "alice", "bob")
	require.NoError(t, err)
	reversed, err := repo.GetPair(ctx, "lab4", "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, forward.ID, reversed.ID)
}

func TestSimilarityRepositoryHighestForStudent(t *testing.T) {
	db := setupTestDB(t, &models.SimilarityPair{})
	repo := NewSimilarityRepository(db)
	ctx := context.Background()

	low := models.SimilarityPair{AssignmentID: "lab4", StudentA: "alice", StudentB: "carol", Similarity: 0.20, Tools: "moss"}
	high := models.SimilarityPair{AssignmentID: "lab4", StudentA: "alice", StudentB: "bob", Similarity: 0.55, Tools: "jplag"}
	other := models.SimilarityPair{AssignmentID: "lab5", StudentA: "alice", StudentB: "dave", Similarity: 0.90, Tools: "jplag"}
	require.NoError(t, repo.Save(ctx, &low))
	require.NoError(t, repo.Save(ctx, &high))
	require.NoError(t, repo.Save(ctx, &other))

	highest, err := repo.HighestForStudent(ctx, "lab4", "alice")
	require.NoError(t, err)
	require.InDelta(t, 0.55, highest.Similarity, 1e-9)
	require.Equal(t, "bob", highest.Partner("alice"))

	_, err = repo.HighestForStudent(ctx, "lab4", "nobody")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSimilarityRepositoryUpsertRoster(t *testing.T) {
	db := setupTestDB(t, &models.RosterEntry{})
	repo := NewSimilarityRepository(db)
	ctx := context.Background()

	affected, err := repo.UpsertRoster(ctx, []models.RosterEntry{
		{ToolIdentifier: "lab4-alice-smith", StudentID: "2021000001"},
		{ToolIdentifier: "lab4-bob-jones", StudentID: "2021000002"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	// Same mapping again is a no-op; a changed mapping counts.
	affected, err = repo.UpsertRoster(ctx, []models.RosterEntry{
		{ToolIdentifier: "lab4-alice-smith", StudentID: "2021000001"},
		{ToolIdentifier: "lab4-bob-jones", StudentID: "2021999999"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	entry, err := repo.LookupRoster(ctx, "lab4-bob-jones")
	require.NoError(t, err)
	require.Equal(t, "2021999999", entry.StudentID)
}
