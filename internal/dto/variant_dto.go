package dto

import (
	"time"

	"github.com/unza-cs/grading-api/internal/models"
)

// VariantRequest identifies the (assignment, student) pair to materialize.
type VariantRequest struct {
	AssignmentID string `json:"assignment_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
}

// VariantResponse is the serialized variant config consumed by the external
// assignment materializer.
type VariantResponse struct {
	AssignmentID string                  `json:"assignment_id"`
	StudentID    string                  `json:"student_id"`
	Seed         uint64                  `json:"seed"`
	Parameters   []models.ParameterValue `json:"parameters"`
	CreatedAt    time.Time               `json:"created_at"`
}

// NewVariantResponse maps the model onto the response shape.
func NewVariantResponse(config models.VariantConfig) (VariantResponse, error) {
	values, err := config.ParameterValues()
	if err != nil {
		return VariantResponse{}, err
	}

	return VariantResponse{
		AssignmentID: config.AssignmentID,
		StudentID:    config.StudentID,
		Seed:         config.Seed,
		Parameters:   values,
		CreatedAt:    config.CreatedAt,
	}, nil
}

// VariantVerifyResponse reports the outcome of a drift audit.
type VariantVerifyResponse struct {
	AssignmentID string `json:"assignment_id"`
	StudentID    string `json:"student_id"`
	Verified     bool   `json:"verified"`
}
