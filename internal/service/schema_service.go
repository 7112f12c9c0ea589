package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/models"
	"github.com/unza-cs/grading-api/internal/repository"
	"github.com/unza-cs/grading-api/internal/schema"
)

// ErrSchemaExists indicates a schema is already registered for the assignment.
var ErrSchemaExists = errors.New("assignment schema already exists")

// SchemaService manages authored assignment schemas. Schemas are written once
// per assignment; publishing freezes them so parameter order can never change
// under already-generated variants.
type SchemaService interface {
	Create(ctx context.Context, raw []byte) (dto.SchemaResponse, error)
	Publish(ctx context.Context, assignmentID string) (dto.SchemaResponse, error)
	Get(ctx context.Context, assignmentID string) (dto.SchemaResponse, error)
	List(ctx context.Context) ([]dto.SchemaResponse, error)
}

type schemaService struct {
	schemas repository.SchemaRepository
	logger  zerolog.Logger
}

// NewSchemaService constructs the schema management service.
func NewSchemaService(schemas repository.SchemaRepository, logger zerolog.Logger) SchemaService {
	return &schemaService{
		schemas: schemas,
		logger:  logger.With().Str("component", "schema_service").Logger(),
	}
}

func (s *schemaService) Create(ctx context.Context, raw []byte) (dto.SchemaResponse, error) {
	doc, err := schema.Validate(raw)
	if err != nil {
		return dto.SchemaResponse{}, err
	}

	if _, err := s.schemas.GetByAssignmentID(ctx, doc.AssignmentID); err == nil {
		return dto.SchemaResponse{}, ErrSchemaExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SchemaResponse{}, err
	}

	model := models.AssignmentSchema{
		AssignmentID: doc.AssignmentID,
		Title:        doc.Title,
	}
	if err := model.SetSpecs(doc.Parameters); err != nil {
		return dto.SchemaResponse{}, err
	}

	if err := s.schemas.Create(ctx, &model); err != nil {
		return dto.SchemaResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", doc.AssignmentID).
		Int("parameters", len(doc.Parameters)).
		Msg("assignment schema created")

	return dto.NewSchemaResponse(model)
}

func (s *schemaService) Publish(ctx context.Context, assignmentID string) (dto.SchemaResponse, error) {
	if err := s.schemas.Publish(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SchemaResponse{}, ErrSchemaNotFound
		}
		return dto.SchemaResponse{}, err
	}

	model, err := s.schemas.GetByAssignmentID(ctx, assignmentID)
	if err != nil {
		return dto.SchemaResponse{}, err
	}

	s.logger.Info().Str("assignment_id", assignmentID).Msg("assignment schema published")
	return dto.NewSchemaResponse(model)
}

func (s *schemaService) Get(ctx context.Context, assignmentID string) (dto.SchemaResponse, error) {
	model, err := s.schemas.GetByAssignmentID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SchemaResponse{}, ErrSchemaNotFound
		}
		return dto.SchemaResponse{}, err
	}

	return dto.NewSchemaResponse(model)
}

func (s *schemaService) List(ctx context.Context) ([]dto.SchemaResponse, error) {
	schemas, err := s.schemas.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SchemaResponse, 0, len(schemas))
	for _, model := range schemas {
		response, err := dto.NewSchemaResponse(model)
		if err != nil {
			return nil, err
		}
		responses = append(responses, response)
	}
	return responses, nil
}
