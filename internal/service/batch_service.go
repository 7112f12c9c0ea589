package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/observability"
)

// BatchService grades an enumerable roster concurrently. Each student's
// pipeline is independent: one malformed report or drifted variant is
// attributed to that student and never aborts the rest of the batch.
type BatchService interface {
	Run(ctx context.Context, payload dto.BatchRunRequest, policy GradingPolicy) (dto.BatchRunResponse, error)
}

type batchService struct {
	variants  VariantService
	grading   GradingService
	workers   int
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewBatchService constructs the batch grading runner.
func NewBatchService(variants VariantService, grading GradingService, workers int, validate *validator.Validate, logger zerolog.Logger) BatchService {
	if workers <= 0 {
		workers = 8
	}

	return &batchService{
		variants:  variants,
		grading:   grading,
		workers:   workers,
		validator: validate,
		logger:    logger.With().Str("component", "batch_service").Logger(),
	}
}

func (s *batchService) Run(ctx context.Context, payload dto.BatchRunRequest, policy GradingPolicy) (dto.BatchRunResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BatchRunResponse{}, err
	}
	if err := policy.Validate(); err != nil {
		return dto.BatchRunResponse{}, err
	}

	runID := uuid.NewString()
	results := make([]dto.BatchStudentResult, len(payload.StudentIDs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for i, studentID := range payload.StudentIDs {
		group.Go(func() error {
			results[i] = s.gradeStudent(groupCtx, payload.AssignmentID, studentID, policy)
			return nil
		})
	}

	// Workers report failures per student, so the group never errors.
	_ = group.Wait()

	response := dto.BatchRunResponse{
		RunID:        runID,
		AssignmentID: payload.AssignmentID,
		Total:        len(results),
		Results:      results,
	}
	for _, result := range results {
		if result.Error == "" {
			response.Succeeded++
		} else {
			response.Failed++
		}
	}

	observability.BatchRuns().Inc()
	s.logger.Info().
		Str("run_id", runID).
		Str("assignment_id", payload.AssignmentID).
		Int("total", response.Total).
		Int("failed", response.Failed).
		Msg("batch grading run finished")

	return response, nil
}

// gradeStudent runs one student's pipeline: variant audit, then aggregation.
// Failures discard partial results rather than merging them into a record.
func (s *batchService) gradeStudent(ctx context.Context, assignmentID, studentID string, policy GradingPolicy) dto.BatchStudentResult {
	result := dto.BatchStudentResult{StudentID: studentID}

	if _, err := s.variants.GetOrCreate(ctx, assignmentID, studentID); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := s.variants.Verify(ctx, assignmentID, studentID); err != nil {
		result.Error = err.Error()
		return result
	}

	record, err := s.grading.Aggregate(ctx, dto.AggregateRequest{
		AssignmentID: assignmentID,
		StudentID:    studentID,
	}, policy)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Record = &record
	return result
}
