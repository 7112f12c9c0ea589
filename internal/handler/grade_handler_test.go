package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/unza-cs/grading-api/internal/config"
	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/handler"
	"github.com/unza-cs/grading-api/internal/service"
)

type mockGradingService struct {
	service.GradingService
	record dto.GradeRecordResponse
	err    error
}

func (m *mockGradingService) Aggregate(_ context.Context, payload dto.AggregateRequest, _ service.GradingPolicy) (dto.GradeRecordResponse, error) {
	if m.err != nil {
		return dto.GradeRecordResponse{}, m.err
	}
	return m.record, nil
}

func (m *mockGradingService) Get(_ context.Context, assignmentID, studentID string) (dto.GradeRecordResponse, error) {
	if m.err != nil {
		return dto.GradeRecordResponse{}, m.err
	}
	return m.record, nil
}

func (m *mockGradingService) Override(_ context.Context, assignmentID, studentID string, payload dto.GradeOverrideRequest, actor string) (dto.GradeRecordResponse, error) {
	if m.err != nil {
		return dto.GradeRecordResponse{}, m.err
	}
	return m.record, nil
}

type mockBatchService struct {
	response dto.BatchRunResponse
}

func (m *mockBatchService) Run(_ context.Context, payload dto.BatchRunRequest, _ service.GradingPolicy) (dto.BatchRunResponse, error) {
	return m.response, nil
}

func testPolicy(t *testing.T) service.GradingPolicy {
	t.Helper()
	cutoffs, err := config.ParseLetterCutoffs("0.90=A+,0.70=B,0=F")
	require.NoError(t, err)
	return service.GradingPolicy{
		Weights: config.Weights{Visible: 0.40, Hidden: 0.30, Quality: 0.20, Participation: 0.10},
		Penalty: config.PenaltyPolicy{WarnThreshold: 0.40, FlagThreshold: 0.50, MaxPenalty: 0.50},
		Cutoffs: cutoffs,
	}
}

func newGradeApp(t *testing.T, grading service.GradingService, batch service.BatchService) *fiber.App {
	t.Helper()
	app := fiber.New()
	validate := validator.New(validator.WithRequiredStructEnabled())
	handler.NewGradeHandler(grading, batch, testPolicy(t), validate, zerolog.New(io.Discard)).Register(app.Group("/api/v1/grades"))
	return app
}

func TestGradeHandlerAggregate(t *testing.T) {
	grading := &mockGradingService{record: dto.GradeRecordResponse{
		AssignmentID: "lab4", StudentID: "2021456789", FinalScore: 0.85, LetterGrade: "A",
	}}
	app := newGradeApp(t, grading, &mockBatchService{})

	body, err := json.Marshal(dto.AggregateRequest{AssignmentID: "lab4", StudentID: "2021456789"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/grades/aggregate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.GradeRecordResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "A", response.Data.LetterGrade)
}

func TestGradeHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"record missing", service.ErrGradeRecordNotFound, fiber.StatusNotFound},
		{"invalid weights", service.ErrInvalidWeights, fiber.StatusUnprocessableEntity},
		{"missing results", service.ErrTestResultNotFound, fiber.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newGradeApp(t, &mockGradingService{err: tc.err}, &mockBatchService{})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/grades/lab4/2021456789", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestGradeHandlerBatchRun(t *testing.T) {
	batch := &mockBatchService{response: dto.BatchRunResponse{
		RunID: "run-1", AssignmentID: "lab4", Total: 2, Succeeded: 2,
	}}
	app := newGradeApp(t, &mockGradingService{}, batch)

	body, err := json.Marshal(dto.BatchRunRequest{AssignmentID: "lab4", StudentIDs: []string{"alice", "bob"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/grades/batch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data dto.BatchRunResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, 2, response.Data.Succeeded)
}
