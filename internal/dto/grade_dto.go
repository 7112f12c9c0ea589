package dto

import (
	"time"

	"github.com/unza-cs/grading-api/internal/models"
)

// AggregateRequest asks for one student's grade to be computed. Quality and
// participation default to full marks when omitted, matching the manual-deduct
// grading convention.
type AggregateRequest struct {
	AssignmentID       string   `json:"assignment_id" validate:"required"`
	StudentID          string   `json:"student_id" validate:"required"`
	QualityScore       *float64 `json:"quality_score" validate:"omitempty,gte=0,lte=1"`
	ParticipationScore *float64 `json:"participation_score" validate:"omitempty,gte=0,lte=1"`
}

// GradeRecordResponse is the API representation of a grade record.
type GradeRecordResponse struct {
	AssignmentID string `json:"assignment_id"`
	StudentID    string `json:"student_id"`

	VisibleScore       float64 `json:"visible_score"`
	HiddenScore        float64 `json:"hidden_score"`
	QualityScore       float64 `json:"quality_score"`
	ParticipationScore float64 `json:"participation_score"`

	PlagiarismSimilarity float64 `json:"plagiarism_similarity"`
	PlagiarismPartner    string  `json:"plagiarism_partner,omitempty"`
	PlagiarismPenalty    float64 `json:"plagiarism_penalty"`

	FinalScore  float64  `json:"final_score"`
	LetterGrade string   `json:"letter_grade"`
	Flags       []string `json:"flags,omitempty"`

	OverrideScore    *float64   `json:"override_score,omitempty"`
	OverrideFeedback string     `json:"override_feedback,omitempty"`
	OverriddenBy     string     `json:"overridden_by,omitempty"`
	OverriddenAt     *time.Time `json:"overridden_at,omitempty"`

	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	EffectiveScore float64   `json:"effective_score"`
	ExportReady    bool      `json:"export_ready"`
	ComputedAt     time.Time `json:"computed_at"`
}

// NewGradeRecordResponse maps the model onto the response shape.
func NewGradeRecordResponse(record models.GradeRecord) GradeRecordResponse {
	return GradeRecordResponse{
		AssignmentID:         record.AssignmentID,
		StudentID:            record.StudentID,
		VisibleScore:         record.VisibleScore,
		HiddenScore:          record.HiddenScore,
		QualityScore:         record.QualityScore,
		ParticipationScore:   record.ParticipationScore,
		PlagiarismSimilarity: record.PlagiarismSimilarity,
		PlagiarismPartner:    record.PlagiarismPartner,
		PlagiarismPenalty:    record.PlagiarismPenalty,
		FinalScore:           record.FinalScore,
		LetterGrade:          record.LetterGrade,
		Flags:                record.FlagsSlice(),
		OverrideScore:        record.OverrideScore,
		OverrideFeedback:     record.OverrideFeedback,
		OverriddenBy:         record.OverriddenBy,
		OverriddenAt:         record.OverriddenAt,
		ReviewedBy:           record.ReviewedBy,
		ReviewedAt:           record.ReviewedAt,
		EffectiveScore:       record.EffectiveScore(),
		ExportReady:          record.ExportReady(),
		ComputedAt:           record.ComputedAt,
	}
}

// GradeOverrideRequest records a manual adjustment beside the computed grade.
type GradeOverrideRequest struct {
	Score    float64 `json:"score" validate:"gte=0,lte=1"`
	Feedback string  `json:"feedback"`
}

// BatchRunRequest grades an enumerable set of students for one assignment.
type BatchRunRequest struct {
	AssignmentID string   `json:"assignment_id" validate:"required"`
	StudentIDs   []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// BatchStudentResult attributes success or failure to one student; a single
// malformed report never aborts the rest of the batch.
type BatchStudentResult struct {
	StudentID string               `json:"student_id"`
	Record    *GradeRecordResponse `json:"record,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// BatchRunResponse summarizes one batch grading run.
type BatchRunResponse struct {
	RunID        string               `json:"run_id"`
	AssignmentID string               `json:"assignment_id"`
	Total        int                  `json:"total"`
	Succeeded    int                  `json:"succeeded"`
	Failed       int                  `json:"failed"`
	Results      []BatchStudentResult `json:"results"`
}

// GradeSummaryResponse is the cached per-assignment distribution summary.
type GradeSummaryResponse struct {
	AssignmentID string         `json:"assignment_id"`
	Students     int            `json:"students"`
	Average      float64        `json:"average"`
	Highest      float64        `json:"highest"`
	Lowest       float64        `json:"lowest"`
	Distribution map[string]int `json:"distribution"`
	Flagged      int            `json:"flagged"`
}
