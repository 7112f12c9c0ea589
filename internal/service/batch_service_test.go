package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/unza-cs/grading-api/internal/dto"
)

type stubVariantService struct {
	verifyErrs map[string]error
}

func (s *stubVariantService) GetOrCreate(ctx context.Context, assignmentID, studentID string) (dto.VariantResponse, error) {
	return dto.VariantResponse{AssignmentID: assignmentID, StudentID: studentID, Seed: 1}, nil
}

func (s *stubVariantService) Get(ctx context.Context, assignmentID, studentID string) (dto.VariantResponse, error) {
	return dto.VariantResponse{AssignmentID: assignmentID, StudentID: studentID, Seed: 1}, nil
}

func (s *stubVariantService) Verify(ctx context.Context, assignmentID, studentID string) error {
	return s.verifyErrs[studentID]
}

type stubGradingService struct {
	GradingService
	aggregateErrs map[string]error
}

func (s *stubGradingService) Aggregate(ctx context.Context, payload dto.AggregateRequest, policy GradingPolicy) (dto.GradeRecordResponse, error) {
	if err := s.aggregateErrs[payload.StudentID]; err != nil {
		return dto.GradeRecordResponse{}, err
	}
	return dto.GradeRecordResponse{
		AssignmentID: payload.AssignmentID,
		StudentID:    payload.StudentID,
		FinalScore:   0.75,
		LetterGrade:  "B+",
	}, nil
}

func newTestBatchService(variants VariantService, grading GradingService) BatchService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewBatchService(variants, grading, 4, validate, zerolog.Nop())
}

func TestBatchRunGradesAllStudents(t *testing.T) {
	svc := newTestBatchService(&stubVariantService{}, &stubGradingService{})

	response, err := svc.Run(context.Background(), dto.BatchRunRequest{
		AssignmentID: "lab4",
		StudentIDs:   []string{"alice", "bob", "carol"},
	}, testGradingPolicy(t))
	require.NoError(t, err)

	require.NotEmpty(t, response.RunID)
	require.Equal(t, 3, response.Total)
	require.Equal(t, 3, response.Succeeded)
	require.Zero(t, response.Failed)
	require.Len(t, response.Results, 3)

	// Results stay in roster order regardless of worker scheduling.
	require.Equal(t, "alice", response.Results[0].StudentID)
	require.Equal(t, "bob", response.Results[1].StudentID)
	require.Equal(t, "carol", response.Results[2].StudentID)
	require.NotNil(t, response.Results[0].Record)
}

func TestBatchRunAttributesFailuresPerStudent(t *testing.T) {
	variants := &stubVariantService{verifyErrs: map[string]error{"bob": ErrVariantDrift}}
	grading := &stubGradingService{aggregateErrs: map[string]error{"carol": ErrMalformedReport}}
	svc := newTestBatchService(variants, grading)

	response, err := svc.Run(context.Background(), dto.BatchRunRequest{
		AssignmentID: "lab4",
		StudentIDs:   []string{"alice", "bob", "carol"},
	}, testGradingPolicy(t))
	require.NoError(t, err)

	require.Equal(t, 1, response.Succeeded)
	require.Equal(t, 2, response.Failed)

	require.Empty(t, response.Results[0].Error)
	require.NotNil(t, response.Results[0].Record)

	require.Contains(t, response.Results[1].Error, "drift")
	require.Nil(t, response.Results[1].Record)

	require.Contains(t, response.Results[2].Error, "malformed")
	require.Nil(t, response.Results[2].Record)
}

func TestBatchRunValidatesPayloadAndPolicy(t *testing.T) {
	svc := newTestBatchService(&stubVariantService{}, &stubGradingService{})
	ctx := context.Background()

	_, err := svc.Run(ctx, dto.BatchRunRequest{AssignmentID: "lab4"}, testGradingPolicy(t))
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)

	policy := testGradingPolicy(t)
	policy.Weights.Visible = 0.90
	_, err = svc.Run(ctx, dto.BatchRunRequest{AssignmentID: "lab4", StudentIDs: []string{"alice"}}, policy)
	require.ErrorIs(t, err, ErrInvalidWeights)
}
