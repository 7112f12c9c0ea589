package models

import (
	"time"

	"gorm.io/datatypes"
)

// TestSource distinguishes the two grading signal sources produced by test runs.
type TestSource string

const (
	TestSourceVisible TestSource = "visible"
	TestSourceHidden  TestSource = "hidden"
)

// TestResult is the canonical normalized record of one test run. Multiple runs
// for the same (student, assignment, source) are allowed; the latest successful
// ingest supersedes earlier ones.
type TestResult struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	AssignmentID string            `gorm:"size:128;not null;uniqueIndex:idx_test_result_key,priority:1" json:"assignment_id"`
	StudentID    string            `gorm:"size:128;not null;uniqueIndex:idx_test_result_key,priority:2" json:"student_id"`
	Source       TestSource        `gorm:"size:16;not null;uniqueIndex:idx_test_result_key,priority:3" json:"source"`
	Format       string            `gorm:"size:32;not null" json:"format"`
	Passed       int               `gorm:"not null" json:"passed"`
	Total        int               `gorm:"not null" json:"total"`
	Detail       datatypes.JSONMap `gorm:"type:json" json:"detail"`
	IngestedAt   time.Time         `json:"ingested_at"`
}

// Score returns passed/total in [0,1]. The second return is false when no
// tests executed (total zero), which is a distinct state from scoring zero
// out of a non-empty run.
func (r TestResult) Score() (float64, bool) {
	if r.Total == 0 {
		return 0, false
	}
	return float64(r.Passed) / float64(r.Total), true
}
