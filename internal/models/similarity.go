package models

import (
	"strings"
	"time"
)

// SimilarityTier buckets a pairwise similarity score.
type SimilarityTier string

const (
	TierNormal  SimilarityTier = "normal"
	TierWarning SimilarityTier = "warning"
	TierFlagged SimilarityTier = "flagged"
)

// SimilarityPair records the similarity between two submissions as reported by
// an external plagiarism tool. Pairs are unordered facts: StudentA always sorts
// lexicographically before StudentB so (a,b) and (b,a) collapse to one row.
type SimilarityPair struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID string    `gorm:"size:128;not null;uniqueIndex:idx_similarity_key,priority:1" json:"assignment_id"`
	StudentA     string    `gorm:"size:128;not null;uniqueIndex:idx_similarity_key,priority:2" json:"student_a"`
	StudentB     string    `gorm:"size:128;not null;uniqueIndex:idx_similarity_key,priority:3" json:"student_b"`
	Similarity   float64   `gorm:"not null" json:"similarity"`
	Tools        string    `gorm:"size:64;not null" json:"tools"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToolsSlice returns the reporting tool tags as a slice.
func (p SimilarityPair) ToolsSlice() []string {
	if p.Tools == "" {
		return nil
	}

	parts := strings.Split(p.Tools, ",")
	tools := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			tools = append(tools, trimmed)
		}
	}
	return tools
}

// MergeTool adds a tool tag if not already present.
func (p *SimilarityPair) MergeTool(tool string) {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return
	}
	for _, existing := range p.ToolsSlice() {
		if existing == tool {
			return
		}
	}
	if p.Tools == "" {
		p.Tools = tool
		return
	}
	p.Tools = p.Tools + "," + tool
}

// Involves reports whether the pair references the given student.
func (p SimilarityPair) Involves(studentID string) bool {
	return p.StudentA == studentID || p.StudentB == studentID
}

// Partner returns the other student of the pair, or empty when not involved.
func (p SimilarityPair) Partner(studentID string) string {
	switch studentID {
	case p.StudentA:
		return p.StudentB
	case p.StudentB:
		return p.StudentA
	default:
		return ""
	}
}

// OrderPair returns the two students in canonical lexicographic order.
func OrderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// RosterEntry maps an external tool identifier (typically a submission repo
// name) to a canonical student identifier.
type RosterEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ToolIdentifier string    `gorm:"size:255;not null;uniqueIndex" json:"tool_identifier"`
	StudentID      string    `gorm:"size:128;not null" json:"student_id"`
	CreatedAt      time.Time `json:"created_at"`
}
