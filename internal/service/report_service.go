package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/models"
	"github.com/unza-cs/grading-api/internal/observability"
	"github.com/unza-cs/grading-api/internal/repository"
)

// ErrMalformedReport indicates an external report that could not be parsed.
// The failure is recorded and surfaced; it is never defaulted to a zero score,
// which must stay distinguishable from "no data".
var ErrMalformedReport = errors.New("malformed report")

// ErrTestResultNotFound indicates no ingested result exists for the key.
var ErrTestResultNotFound = errors.New("test result not found")

// ReportService normalizes heterogeneous test-runner reports into canonical
// per-student test results.
type ReportService interface {
	Ingest(ctx context.Context, payload dto.TestReportIngestRequest) (dto.TestResultResponse, error)
	Results(ctx context.Context, assignmentID, studentID string) ([]dto.TestResultResponse, error)
}

type reportService struct {
	results   repository.TestResultRepository
	validator *validator.Validate
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReportService constructs the test result ingestor.
func NewReportService(results repository.TestResultRepository, validate *validator.Validate, timeout time.Duration, logger zerolog.Logger) ReportService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &reportService{
		results:   results,
		validator: validate,
		timeout:   timeout,
		logger:    logger.With().Str("component", "report_service").Logger(),
		now:       time.Now,
	}
}

// Ingest parses one raw report under a bounded timeout and stores the
// canonical result, superseding any earlier run for the same source. A
// timeout surfaces as a malformed report attributed to the student, never as
// a silent zero.
func (s *reportService) Ingest(ctx context.Context, payload dto.TestReportIngestRequest) (dto.TestResultResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TestResultResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	format := payload.Format
	if format == "" {
		format = sniffFormat([]byte(payload.Report))
	}

	parsed, err := parseReport(format, []byte(payload.Report))
	if err != nil {
		observability.ReportIngests(format, "malformed").Inc()
		s.logger.Warn().
			Err(err).
			Str("assignment_id", payload.AssignmentID).
			Str("student_id", payload.StudentID).
			Str("source", payload.Source).
			Msg("report ingest failed")
		return dto.TestResultResponse{}, err
	}

	if err := ctx.Err(); err != nil {
		observability.ReportIngests(format, "timeout").Inc()
		return dto.TestResultResponse{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	result := models.TestResult{
		AssignmentID: payload.AssignmentID,
		StudentID:    payload.StudentID,
		Source:       models.TestSource(payload.Source),
		Format:       format,
		Passed:       parsed.Passed,
		Total:        parsed.Total,
		Detail:       parsed.Detail,
		IngestedAt:   s.now(),
	}

	if err := s.results.Upsert(ctx, &result); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			observability.ReportIngests(format, "timeout").Inc()
			return dto.TestResultResponse{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}
		return dto.TestResultResponse{}, err
	}

	observability.ReportIngests(format, "ok").Inc()
	return dto.NewTestResultResponse(result), nil
}

func (s *reportService) Results(ctx context.Context, assignmentID, studentID string) ([]dto.TestResultResponse, error) {
	results, err := s.results.ListByStudent(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestResultNotFound
		}
		return nil, err
	}

	responses := make([]dto.TestResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, dto.NewTestResultResponse(result))
	}
	return responses, nil
}

// sniffFormat guesses the parser for untagged payloads. Only JSON is
// unambiguous; text formats need an explicit tag.
func sniffFormat(raw []byte) string {
	if mimetype.Detect(raw).Is("application/json") {
		return FormatPytestJSON
	}
	return ""
}
