package dto

import (
	"time"

	"github.com/unza-cs/grading-api/internal/models"
)

// SchemaResponse is the API representation of an assignment schema.
type SchemaResponse struct {
	AssignmentID string                 `json:"assignment_id"`
	Title        string                 `json:"title,omitempty"`
	Parameters   []models.ParameterSpec `json:"parameters"`
	Published    bool                   `json:"published"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// NewSchemaResponse maps the model onto the response shape.
func NewSchemaResponse(schema models.AssignmentSchema) (SchemaResponse, error) {
	specs, err := schema.Specs()
	if err != nil {
		return SchemaResponse{}, err
	}

	return SchemaResponse{
		AssignmentID: schema.AssignmentID,
		Title:        schema.Title,
		Parameters:   specs,
		Published:    schema.Published,
		CreatedAt:    schema.CreatedAt,
		UpdatedAt:    schema.UpdatedAt,
	}, nil
}
