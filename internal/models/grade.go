package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Grade flags attached by the aggregator for manual review.
const (
	FlagSimilarityWarning = "similarity-warning"
	FlagSimilarityFlagged = "similarity-flagged"
	FlagNeedsReview       = "needs-review"
	FlagMissingVisible    = "missing-visible-report"
	FlagMissingHidden     = "missing-hidden-report"
	FlagNoTestsExecuted   = "no-tests-executed"
)

// GradeRecord is the canonical computed grade for one (assignment, student)
// pair. Computed fields are only ever written by the aggregator; manual
// adjustments live in the override fields so the computed value stays auditable.
type GradeRecord struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	AssignmentID string `gorm:"size:128;not null;uniqueIndex:idx_grade_key,priority:1" json:"assignment_id"`
	StudentID    string `gorm:"size:128;not null;uniqueIndex:idx_grade_key,priority:2" json:"student_id"`

	VisibleScore       float64 `gorm:"not null" json:"visible_score"`
	HiddenScore        float64 `gorm:"not null" json:"hidden_score"`
	QualityScore       float64 `gorm:"not null" json:"quality_score"`
	ParticipationScore float64 `gorm:"not null" json:"participation_score"`

	PlagiarismSimilarity float64 `gorm:"not null" json:"plagiarism_similarity"`
	PlagiarismPartner    string  `gorm:"size:128" json:"plagiarism_partner,omitempty"`
	PlagiarismPenalty    float64 `gorm:"not null" json:"plagiarism_penalty"`

	FinalScore  float64        `gorm:"not null" json:"final_score"`
	LetterGrade string         `gorm:"size:4;not null" json:"letter_grade"`
	Flags       datatypes.JSON `gorm:"type:json" json:"flags"`

	OverrideScore    *float64   `json:"override_score,omitempty"`
	OverrideFeedback string     `gorm:"type:text" json:"override_feedback,omitempty"`
	OverriddenBy     string     `gorm:"size:128" json:"overridden_by,omitempty"`
	OverriddenAt     *time.Time `json:"overridden_at,omitempty"`

	ReviewedBy string     `gorm:"size:128" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	ComputedAt time.Time `json:"computed_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FlagsSlice decodes the review flags.
func (g GradeRecord) FlagsSlice() []string {
	if len(g.Flags) == 0 {
		return nil
	}

	var flags []string
	if err := json.Unmarshal(g.Flags, &flags); err != nil {
		return nil
	}
	return flags
}

// SetFlags encodes the review flags.
func (g *GradeRecord) SetFlags(flags []string) error {
	if len(flags) == 0 {
		g.Flags = nil
		return nil
	}
	payload, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	g.Flags = datatypes.JSON(payload)
	return nil
}

// HasFlag reports whether the record carries the given flag.
func (g GradeRecord) HasFlag(flag string) bool {
	for _, f := range g.FlagsSlice() {
		if f == flag {
			return true
		}
	}
	return false
}

// EffectiveScore returns the override score when present, otherwise the
// computed final score.
func (g GradeRecord) EffectiveScore() float64 {
	if g.OverrideScore != nil {
		return *g.OverrideScore
	}
	return g.FinalScore
}

// ExportReady reports whether the record may be exported: records carrying
// flags require an instructor sign-off first.
func (g GradeRecord) ExportReady() bool {
	if len(g.FlagsSlice()) == 0 {
		return true
	}
	return g.ReviewedAt != nil
}

// GradeOverrideHistory keeps an audit trail of manual grade adjustments.
type GradeOverrideHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	GradeRecordID uint      `gorm:"not null;index" json:"grade_record_id"`
	Score         float64   `gorm:"not null" json:"score"`
	Feedback      string    `gorm:"type:text" json:"feedback"`
	OverriddenBy  string    `gorm:"size:128;not null" json:"overridden_by"`
	OverriddenAt  time.Time `json:"overridden_at"`
}
