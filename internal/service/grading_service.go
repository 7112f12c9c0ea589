package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/config"
	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/models"
	"github.com/unza-cs/grading-api/internal/observability"
	"github.com/unza-cs/grading-api/internal/repository"
)

// ErrInvalidWeights indicates grade weights that do not sum to 1.0.
var ErrInvalidWeights = errors.New("grade weights must sum to 1.0")

// ErrGradeRecordNotFound indicates no computed grade exists for the key.
var ErrGradeRecordNotFound = errors.New("grade record not found")

// reviewSubject carries flagged-grade events for instructor review tooling.
const reviewSubject = "grading.review"

// GradingPolicy is the explicit immutable configuration the aggregator runs
// under. It is passed per call; there is no process-wide grading state.
type GradingPolicy struct {
	Weights config.Weights
	Penalty config.PenaltyPolicy
	Cutoffs []config.LetterCutoff
}

// PolicyFromConfig builds the default policy from runtime configuration.
func PolicyFromConfig(cfg config.Config) GradingPolicy {
	return GradingPolicy{
		Weights: cfg.Weights,
		Penalty: cfg.Penalty,
		Cutoffs: cfg.LetterCutoffs,
	}
}

// GradingService combines test results and similarity pairs into canonical
// grade records.
type GradingService interface {
	Aggregate(ctx context.Context, payload dto.AggregateRequest, policy GradingPolicy) (dto.GradeRecordResponse, error)
	Get(ctx context.Context, assignmentID, studentID string) (dto.GradeRecordResponse, error)
	Override(ctx context.Context, assignmentID, studentID string, payload dto.GradeOverrideRequest, actor string) (dto.GradeRecordResponse, error)
	SignOff(ctx context.Context, assignmentID, studentID, actor string) (dto.GradeRecordResponse, error)
	Summary(ctx context.Context, assignmentID string) (dto.GradeSummaryResponse, error)
	ExportReady(ctx context.Context, assignmentID string) ([]dto.GradeRecordResponse, error)
}

type gradingService struct {
	grades     repository.GradeRepository
	results    repository.TestResultRepository
	similarity SimilarityService
	redis      *redis.Client
	nats       *nats.Conn
	cacheTTL   time.Duration
	sanitizer  *bluemonday.Policy
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewGradingService constructs the grade aggregator. Redis and NATS are
// optional; a nil client disables summary caching or review events.
func NewGradingService(grades repository.GradeRepository, results repository.TestResultRepository, similarity SimilarityService, redisClient *redis.Client, natsConn *nats.Conn, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) GradingService {
	return &gradingService{
		grades:     grades,
		results:    results,
		similarity: similarity,
		redis:      redisClient,
		nats:       natsConn,
		cacheTTL:   cacheTTL,
		sanitizer:  bluemonday.StrictPolicy(),
		validator:  validate,
		logger:     logger.With().Str("component", "grading_service").Logger(),
		now:        time.Now,
	}
}

// Validate checks a policy before any scores are combined.
func (p GradingPolicy) Validate() error {
	if math.Abs(p.Weights.Sum()-1.0) > 1e-9 {
		return ErrInvalidWeights
	}
	if len(p.Cutoffs) == 0 {
		return errors.New("letter cutoff table must not be empty")
	}
	return nil
}

// Letter resolves a final score against the descending cutoff table. Cutoffs
// are boundary-inclusive; penalty arithmetic can land a float a hair under the
// boundary, so the comparison carries a small tolerance.
func (p GradingPolicy) Letter(score float64) string {
	for _, cutoff := range p.Cutoffs {
		if score >= cutoff.Min-1e-9 {
			return cutoff.Letter
		}
	}
	return p.Cutoffs[len(p.Cutoffs)-1].Letter
}

// Tier buckets a similarity score under this policy's thresholds. Lower
// bounds are inclusive.
func (p GradingPolicy) Tier(similarity float64) models.SimilarityTier {
	switch {
	case similarity >= p.Penalty.FlagThreshold:
		return models.TierFlagged
	case similarity >= p.Penalty.WarnThreshold:
		return models.TierWarning
	default:
		return models.TierNormal
	}
}

// penaltyFor maps a similarity score onto a deduction. Warnings are flag-only;
// penalties start at the flag threshold and scale linearly to MaxPenalty at
// full similarity.
func (p GradingPolicy) penaltyFor(similarity float64) float64 {
	if similarity < p.Penalty.FlagThreshold {
		return 0
	}
	span := 1.0 - p.Penalty.FlagThreshold
	if span <= 0 {
		return p.Penalty.MaxPenalty
	}
	return (similarity - p.Penalty.FlagThreshold) / span * p.Penalty.MaxPenalty
}

func (s *gradingService) Aggregate(ctx context.Context, payload dto.AggregateRequest, policy GradingPolicy) (dto.GradeRecordResponse, error) {
	tracer := otel.Tracer("github.com/unza-cs/grading-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.aggregate")
	span.SetAttributes(
		attribute.String("grading.assignment_id", payload.AssignmentID),
		attribute.String("grading.student_id", payload.StudentID),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeRecordResponse{}, err
	}
	if err := policy.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid_policy")
		return dto.GradeRecordResponse{}, err
	}

	var flags []string

	visible, err := s.sourceScore(ctx, payload, models.TestSourceVisible, &flags, models.FlagMissingVisible)
	if err != nil {
		span.RecordError(err)
		return dto.GradeRecordResponse{}, err
	}
	hidden, err := s.sourceScore(ctx, payload, models.TestSourceHidden, &flags, models.FlagMissingHidden)
	if err != nil {
		span.RecordError(err)
		return dto.GradeRecordResponse{}, err
	}

	// Quality and participation default to full marks; instructors deduct
	// manually through the request payload.
	quality := 1.0
	if payload.QualityScore != nil {
		quality = *payload.QualityScore
	}
	participation := 1.0
	if payload.ParticipationScore != nil {
		participation = *payload.ParticipationScore
	}

	record := models.GradeRecord{
		AssignmentID:       payload.AssignmentID,
		StudentID:          payload.StudentID,
		VisibleScore:       visible,
		HiddenScore:        hidden,
		QualityScore:       quality,
		ParticipationScore: participation,
	}

	pair, err := s.similarity.HighestForStudent(ctx, payload.AssignmentID, payload.StudentID)
	if err != nil {
		span.RecordError(err)
		return dto.GradeRecordResponse{}, err
	}
	if pair != nil {
		record.PlagiarismSimilarity = pair.Similarity
		record.PlagiarismPartner = pair.Partner(payload.StudentID)

		switch policy.Tier(pair.Similarity) {
		case models.TierWarning:
			flags = append(flags, models.FlagSimilarityWarning)
		case models.TierFlagged:
			flags = append(flags, models.FlagSimilarityFlagged, models.FlagNeedsReview)
			record.PlagiarismPenalty = policy.penaltyFor(pair.Similarity)
		}
	}

	weighted := policy.Weights.Visible*visible +
		policy.Weights.Hidden*hidden +
		policy.Weights.Quality*quality +
		policy.Weights.Participation*participation

	record.FinalScore = clamp(weighted-record.PlagiarismPenalty, 0, 1)
	record.LetterGrade = policy.Letter(record.FinalScore)
	record.ComputedAt = s.now()
	flags = dedupeFlags(flags)
	if err := record.SetFlags(flags); err != nil {
		return dto.GradeRecordResponse{}, err
	}

	if err := s.persist(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_persist_failed")
		return dto.GradeRecordResponse{}, err
	}

	s.invalidateSummary(ctx, payload.AssignmentID)
	observability.GradesAggregated(record.LetterGrade).Inc()

	if record.HasFlag(models.FlagNeedsReview) {
		s.publishReviewEvent(record)
	}

	span.SetAttributes(
		attribute.Float64("grading.final_score", record.FinalScore),
		attribute.String("grading.letter", record.LetterGrade),
		attribute.Int("grading.flags", len(flags)),
	)

	return dto.NewGradeRecordResponse(record), nil
}

// sourceScore loads the latest run for a source. A missing report or an empty
// run contributes zero but is always flagged, so a flagged zero can never be
// mistaken for a graded zero and the record stays blocked from export.
func (s *gradingService) sourceScore(ctx context.Context, payload dto.AggregateRequest, source models.TestSource, flags *[]string, missingFlag string) (float64, error) {
	result, err := s.results.GetLatest(ctx, payload.AssignmentID, payload.StudentID, source)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			*flags = append(*flags, missingFlag, models.FlagNeedsReview)
			return 0, nil
		}
		return 0, err
	}

	score, ok := result.Score()
	if !ok {
		*flags = append(*flags, models.FlagNoTestsExecuted, models.FlagNeedsReview)
		return 0, nil
	}
	return score, nil
}

// persist writes computed fields while preserving any manual override and
// review sign-off already on the record.
func (s *gradingService) persist(ctx context.Context, record *models.GradeRecord) error {
	existing, err := s.grades.GetByKey(ctx, record.AssignmentID, record.StudentID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First computation for this key.
	case err != nil:
		return err
	default:
		record.ID = existing.ID
		record.OverrideScore = existing.OverrideScore
		record.OverrideFeedback = existing.OverrideFeedback
		record.OverriddenBy = existing.OverriddenBy
		record.OverriddenAt = existing.OverriddenAt
		record.ReviewedBy = existing.ReviewedBy
		record.ReviewedAt = existing.ReviewedAt
	}

	return s.grades.Save(ctx, record)
}

func (s *gradingService) Get(ctx context.Context, assignmentID, studentID string) (dto.GradeRecordResponse, error) {
	record, err := s.grades.GetByKey(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeRecordResponse{}, ErrGradeRecordNotFound
		}
		return dto.GradeRecordResponse{}, err
	}

	return dto.NewGradeRecordResponse(record), nil
}

// Override records a manual adjustment beside the computed fields. The
// computed value is never replaced, keeping the record auditable.
func (s *gradingService) Override(ctx context.Context, assignmentID, studentID string, payload dto.GradeOverrideRequest, actor string) (dto.GradeRecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeRecordResponse{}, err
	}

	record, err := s.grades.GetByKey(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeRecordResponse{}, ErrGradeRecordNotFound
		}
		return dto.GradeRecordResponse{}, err
	}

	feedback := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))

	if record.OverrideScore != nil &&
		math.Abs(*record.OverrideScore-payload.Score) < 1e-9 &&
		record.OverrideFeedback == feedback &&
		record.OverriddenBy == actor {
		return dto.NewGradeRecordResponse(record), nil
	}

	score := payload.Score
	overriddenAt := s.now()
	record.OverrideScore = &score
	record.OverrideFeedback = feedback
	record.OverriddenBy = actor
	record.OverriddenAt = &overriddenAt

	if err := s.grades.Save(ctx, &record); err != nil {
		return dto.GradeRecordResponse{}, err
	}

	history := models.GradeOverrideHistory{
		GradeRecordID: record.ID,
		Score:         payload.Score,
		Feedback:      feedback,
		OverriddenBy:  actor,
		OverriddenAt:  overriddenAt,
	}
	if err := s.grades.CreateOverrideHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).
			Str("assignment_id", assignmentID).
			Str("student_id", studentID).
			Msg("failed to persist override history")
	}

	s.invalidateSummary(ctx, assignmentID)
	return dto.NewGradeRecordResponse(record), nil
}

// SignOff records the human review that releases a flagged record for export.
func (s *gradingService) SignOff(ctx context.Context, assignmentID, studentID, actor string) (dto.GradeRecordResponse, error) {
	record, err := s.grades.GetByKey(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeRecordResponse{}, ErrGradeRecordNotFound
		}
		return dto.GradeRecordResponse{}, err
	}

	if record.ReviewedAt != nil {
		return dto.NewGradeRecordResponse(record), nil
	}

	reviewedAt := s.now()
	record.ReviewedBy = actor
	record.ReviewedAt = &reviewedAt

	if err := s.grades.Save(ctx, &record); err != nil {
		return dto.GradeRecordResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", assignmentID).
		Str("student_id", studentID).
		Str("actor", actor).
		Msg("grade record signed off")

	return dto.NewGradeRecordResponse(record), nil
}

// Summary computes the per-assignment grade distribution, cached in Redis.
func (s *gradingService) Summary(ctx context.Context, assignmentID string) (dto.GradeSummaryResponse, error) {
	cacheKey := summaryCacheKey(assignmentID)

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var summary dto.GradeSummaryResponse
			if err := json.Unmarshal([]byte(cached), &summary); err == nil {
				return summary, nil
			}
		}
	}

	records, err := s.grades.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return dto.GradeSummaryResponse{}, err
	}

	summary := dto.GradeSummaryResponse{
		AssignmentID: assignmentID,
		Students:     len(records),
		Distribution: make(map[string]int),
	}

	if len(records) > 0 {
		summary.Lowest = math.Inf(1)
		var sum float64
		for _, record := range records {
			score := record.EffectiveScore()
			sum += score
			summary.Highest = math.Max(summary.Highest, score)
			summary.Lowest = math.Min(summary.Lowest, score)
			summary.Distribution[record.LetterGrade]++
			if record.HasFlag(models.FlagSimilarityFlagged) || record.HasFlag(models.FlagSimilarityWarning) {
				summary.Flagged++
			}
		}
		summary.Average = sum / float64(len(records))
	} else {
		summary.Lowest = 0
	}

	if s.redis != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := s.redis.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache grade summary")
			}
		}
	}

	return summary, nil
}

// ExportReady lists the records cleared for LMS export: unflagged, or flagged
// with an instructor sign-off.
func (s *gradingService) ExportReady(ctx context.Context, assignmentID string) ([]dto.GradeRecordResponse, error) {
	records, err := s.grades.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	ready := make([]dto.GradeRecordResponse, 0, len(records))
	for _, record := range records {
		if record.ExportReady() {
			ready = append(ready, dto.NewGradeRecordResponse(record))
		}
	}
	return ready, nil
}

func (s *gradingService) publishReviewEvent(record models.GradeRecord) {
	if s.nats == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"assignment_id": record.AssignmentID,
		"student_id":    record.StudentID,
		"similarity":    record.PlagiarismSimilarity,
		"partner":       record.PlagiarismPartner,
		"flags":         record.FlagsSlice(),
	})
	if err != nil {
		return
	}

	if err := s.nats.Publish(reviewSubject, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish review event")
	}
}

func (s *gradingService) invalidateSummary(ctx context.Context, assignmentID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, summaryCacheKey(assignmentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate summary cache")
	}
}

func summaryCacheKey(assignmentID string) string {
	return "grading:summary:" + assignmentID
}

func dedupeFlags(flags []string) []string {
	if len(flags) < 2 {
		return flags
	}
	seen := make(map[string]struct{}, len(flags))
	out := flags[:0]
	for _, flag := range flags {
		if _, dup := seen[flag]; dup {
			continue
		}
		seen[flag] = struct{}{}
		out = append(out, flag)
	}
	return out
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
