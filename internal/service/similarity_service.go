package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/config"
	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/models"
	"github.com/unza-cs/grading-api/internal/observability"
	"github.com/unza-cs/grading-api/internal/repository"
)

// SimilarityService normalizes plagiarism-tool output into a symmetric,
// deduplicated relation and classifies pairs into review tiers.
type SimilarityService interface {
	Ingest(ctx context.Context, payload dto.SimilarityIngestRequest) (dto.SimilarityIngestResponse, error)
	Classify(similarity float64) models.SimilarityTier
	HighestForStudent(ctx context.Context, assignmentID, studentID string) (*models.SimilarityPair, error)
	UploadRoster(ctx context.Context, payload dto.RosterUploadRequest) (int64, error)
}

type similarityService struct {
	pairs     repository.SimilarityRepository
	policy    config.PenaltyPolicy
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSimilarityService constructs the similarity ingestor.
func NewSimilarityService(pairs repository.SimilarityRepository, policy config.PenaltyPolicy, validate *validator.Validate, logger zerolog.Logger) SimilarityService {
	return &similarityService{
		pairs:     pairs,
		policy:    policy,
		validator: validate,
		logger:    logger.With().Str("component", "similarity_service").Logger(),
	}
}

// Ingest parses tool CSV output, maps submission names onto canonical student
// identifiers, and merges each unordered pair into the stored relation. When
// the same pair arrives from two tools the higher similarity wins and both
// tool tags are kept.
func (s *similarityService) Ingest(ctx context.Context, payload dto.SimilarityIngestRequest) (dto.SimilarityIngestResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SimilarityIngestResponse{}, err
	}

	rows, err := parseSimilarityCSV([]byte(payload.Report))
	if err != nil {
		observability.ReportIngests("similarity-"+payload.Tool, "malformed").Inc()
		s.logger.Warn().
			Err(err).
			Str("assignment_id", payload.AssignmentID).
			Str("tool", payload.Tool).
			Msg("similarity ingest failed")
		return dto.SimilarityIngestResponse{}, err
	}

	response := dto.SimilarityIngestResponse{AssignmentID: payload.AssignmentID}
	merged := make(map[string]*models.SimilarityPair)

	for _, row := range rows {
		studentA, err := s.canonicalStudentID(ctx, row.first)
		if err != nil {
			return dto.SimilarityIngestResponse{}, err
		}
		studentB, err := s.canonicalStudentID(ctx, row.second)
		if err != nil {
			return dto.SimilarityIngestResponse{}, err
		}
		if studentA == studentB {
			// Self-pairs can appear when tools compare a resubmission
			// against itself; they carry no signal.
			continue
		}

		a, b := models.OrderPair(studentA, studentB)
		key := a + "\x1f" + b

		pair, ok := merged[key]
		if !ok {
			loaded, err := s.loadOrNewPair(ctx, payload.AssignmentID, a, b)
			if err != nil {
				return dto.SimilarityIngestResponse{}, err
			}
			pair = loaded
			merged[key] = pair
		}

		if row.similarity > pair.Similarity {
			pair.Similarity = row.similarity
		}
		pair.MergeTool(payload.Tool)
	}

	for _, pair := range merged {
		if err := s.pairs.Save(ctx, pair); err != nil {
			return dto.SimilarityIngestResponse{}, err
		}

		response.Pairs = append(response.Pairs, dto.SimilarityPairResponse{
			AssignmentID: pair.AssignmentID,
			StudentA:     pair.StudentA,
			StudentB:     pair.StudentB,
			Similarity:   pair.Similarity,
			Tier:         s.Classify(pair.Similarity),
			Tools:        pair.ToolsSlice(),
		})
	}

	response.Ingested = len(response.Pairs)
	observability.ReportIngests("similarity-"+payload.Tool, "ok").Inc()
	return response, nil
}

func (s *similarityService) loadOrNewPair(ctx context.Context, assignmentID, a, b string) (*models.SimilarityPair, error) {
	existing, err := s.pairs.GetPair(ctx, assignmentID, a, b)
	switch {
	case err == nil:
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &models.SimilarityPair{AssignmentID: assignmentID, StudentA: a, StudentB: b}, nil
	default:
		return nil, err
	}
}

// Classify buckets a similarity score. Boundaries are inclusive on the lower
// bound: exactly the warn threshold is a warning, exactly the flag threshold
// is flagged.
func (s *similarityService) Classify(similarity float64) models.SimilarityTier {
	switch {
	case similarity >= s.policy.FlagThreshold:
		return models.TierFlagged
	case similarity >= s.policy.WarnThreshold:
		return models.TierWarning
	default:
		return models.TierNormal
	}
}

// HighestForStudent returns the student's highest-similarity pair, or nil when
// the student appears in no pair.
func (s *similarityService) HighestForStudent(ctx context.Context, assignmentID, studentID string) (*models.SimilarityPair, error) {
	pair, err := s.pairs.HighestForStudent(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pair, nil
}

// UploadRoster stores explicit tool-identifier mappings, taking precedence
// over the repo-name suffix rule.
func (s *similarityService) UploadRoster(ctx context.Context, payload dto.RosterUploadRequest) (int64, error) {
	if err := s.validator.Struct(payload); err != nil {
		return 0, err
	}

	entries := make([]models.RosterEntry, 0, len(payload.Entries))
	for _, entry := range payload.Entries {
		entries = append(entries, models.RosterEntry{
			ToolIdentifier: strings.TrimSpace(entry.ToolIdentifier),
			StudentID:      strings.TrimSpace(entry.StudentID),
		})
	}

	affected, err := s.pairs.UpsertRoster(ctx, entries)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int64("affected", affected).Msg("roster entries upserted")
	return affected, nil
}

// canonicalStudentID resolves a tool-reported submission name. An explicit
// roster entry wins; otherwise the suffix after the last '-' is used, which is
// how classroom repos embed the username.
func (s *similarityService) canonicalStudentID(ctx context.Context, toolIdentifier string) (string, error) {
	toolIdentifier = strings.TrimSpace(toolIdentifier)
	if toolIdentifier == "" {
		return "", fmt.Errorf("%w: empty submission identifier", ErrMalformedReport)
	}

	entry, err := s.pairs.LookupRoster(ctx, toolIdentifier)
	switch {
	case err == nil:
		return entry.StudentID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if idx := strings.LastIndex(toolIdentifier, "-"); idx >= 0 && idx < len(toolIdentifier)-1 {
			return toolIdentifier[idx+1:], nil
		}
		return toolIdentifier, nil
	default:
		return "", err
	}
}

type similarityRow struct {
	first      string
	second     string
	similarity float64
}

// parseSimilarityCSV reads the pairwise CSV emitted by JPlag and MOSS
// wrappers. Header names differ between tools, so columns are located by any
// of their known aliases. A percent-named column is normalized into [0,1];
// any value still out of range is rejected rather than rescaled.
func parseSimilarityCSV(raw []byte) ([]similarityRow, error) {
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: similarity report has no data rows", ErrMalformedReport)
	}

	firstCol := findColumn(records[0], "submission1", "student 1", "first")
	secondCol := findColumn(records[0], "submission2", "student 2", "second")
	simCol := findColumn(records[0], "similarity", "percent")
	if firstCol < 0 || secondCol < 0 || simCol < 0 {
		return nil, fmt.Errorf("%w: similarity report missing required columns", ErrMalformedReport)
	}
	percentScale := strings.EqualFold(strings.TrimSpace(records[0][simCol]), "percent")

	rows := make([]similarityRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) <= firstCol || len(record) <= secondCol || len(record) <= simCol {
			return nil, fmt.Errorf("%w: truncated similarity row", ErrMalformedReport)
		}

		similarity, err := strconv.ParseFloat(strings.TrimSpace(record[simCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid similarity value %q", ErrMalformedReport, record[simCol])
		}
		if percentScale {
			similarity /= 100
		}
		if similarity < 0 || similarity > 1 {
			return nil, fmt.Errorf("%w: similarity %v out of range", ErrMalformedReport, similarity)
		}

		rows = append(rows, similarityRow{
			first:      record[firstCol],
			second:     record[secondCol],
			similarity: similarity,
		})
	}

	return rows, nil
}

func findColumn(header []string, aliases ...string) int {
	for i, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		for _, alias := range aliases {
			if normalized == alias {
				return i
			}
		}
	}
	return -1
}
