package dto

import (
	"time"

	"github.com/unza-cs/grading-api/internal/models"
)

// TestReportIngestRequest carries one raw external test-runner report.
type TestReportIngestRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
	Source       string `json:"source" validate:"required,oneof=visible hidden"`
	Format       string `json:"format" validate:"omitempty,oneof=pytest-json raco plunit"`
	Report       string `json:"report" validate:"required"`
}

// TestResultResponse is the canonical normalized test result.
type TestResultResponse struct {
	AssignmentID string            `json:"assignment_id"`
	StudentID    string            `json:"student_id"`
	Source       models.TestSource `json:"source"`
	Format       string            `json:"format"`
	Passed       int               `json:"passed"`
	Total        int               `json:"total"`
	Score        *float64          `json:"score"`
	IngestedAt   time.Time         `json:"ingested_at"`
}

// NewTestResultResponse maps the model onto the response shape. Score stays
// null when no tests executed, keeping "no data" distinct from a zero score.
func NewTestResultResponse(result models.TestResult) TestResultResponse {
	response := TestResultResponse{
		AssignmentID: result.AssignmentID,
		StudentID:    result.StudentID,
		Source:       result.Source,
		Format:       result.Format,
		Passed:       result.Passed,
		Total:        result.Total,
		IngestedAt:   result.IngestedAt,
	}

	if score, ok := result.Score(); ok {
		response.Score = &score
	}

	return response
}

// SimilarityIngestRequest carries one raw plagiarism-tool report.
type SimilarityIngestRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	Tool         string `json:"tool" validate:"required,oneof=jplag moss"`
	Report       string `json:"report" validate:"required"`
}

// SimilarityPairResponse is one normalized, deduplicated pair.
type SimilarityPairResponse struct {
	AssignmentID string                `json:"assignment_id"`
	StudentA     string                `json:"student_a"`
	StudentB     string                `json:"student_b"`
	Similarity   float64               `json:"similarity"`
	Tier         models.SimilarityTier `json:"tier"`
	Tools        []string              `json:"tools"`
}

// SimilarityIngestResponse summarizes one ingest batch.
type SimilarityIngestResponse struct {
	AssignmentID string                   `json:"assignment_id"`
	Ingested     int                      `json:"ingested"`
	Pairs        []SimilarityPairResponse `json:"pairs"`
}

// RosterEntryRequest maps one tool identifier to a student.
type RosterEntryRequest struct {
	ToolIdentifier string `json:"tool_identifier" validate:"required"`
	StudentID      string `json:"student_id" validate:"required"`
}

// RosterUploadRequest replaces or extends the identifier roster.
type RosterUploadRequest struct {
	Entries []RosterEntryRequest `json:"entries" validate:"required,min=1,dive"`
}
