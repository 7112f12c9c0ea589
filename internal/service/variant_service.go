package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/dto"
	"github.com/unza-cs/grading-api/internal/models"
	"github.com/unza-cs/grading-api/internal/observability"
	"github.com/unza-cs/grading-api/internal/repository"
	"github.com/unza-cs/grading-api/internal/variant"
)

// ErrSchemaNotFound indicates no schema exists for the assignment.
var ErrSchemaNotFound = errors.New("assignment schema not found")

// ErrSchemaUnpublished indicates the assignment schema has not been published yet.
var ErrSchemaUnpublished = errors.New("assignment schema not published")

// ErrVariantNotFound indicates the variant config was not located.
var ErrVariantNotFound = errors.New("variant config not found")

// ErrVariantDrift indicates a stored config no longer matches its recomputation.
// Drift means corruption or tampering and blocks grade export for the student.
var ErrVariantDrift = errors.New("variant config drift detected")

// VariantService is the canonical store for per-student variant configs.
type VariantService interface {
	GetOrCreate(ctx context.Context, assignmentID, studentID string) (dto.VariantResponse, error)
	Get(ctx context.Context, assignmentID, studentID string) (dto.VariantResponse, error)
	Verify(ctx context.Context, assignmentID, studentID string) error
}

type variantService struct {
	schemas  repository.SchemaRepository
	variants repository.VariantRepository
	salt     string
	keys     keyedMutex
	logger   zerolog.Logger
	now      func() time.Time
}

// NewVariantService constructs the variant store.
func NewVariantService(schemas repository.SchemaRepository, variants repository.VariantRepository, salt string, logger zerolog.Logger) VariantService {
	return &variantService{
		schemas:  schemas,
		variants: variants,
		salt:     salt,
		logger:   logger.With().Str("component", "variant_service").Logger(),
		now:      time.Now,
	}
}

// GetOrCreate returns the canonical config for the key, creating it on first
// request. Creation is serialized per key so concurrent first-time requests
// cannot race two different configs out of the same seed; the unique database
// index is the backstop across processes.
func (s *variantService) GetOrCreate(ctx context.Context, assignmentID, studentID string) (dto.VariantResponse, error) {
	tracer := otel.Tracer("github.com/unza-cs/grading-api/internal/service/variant")
	ctx, span := tracer.Start(ctx, "variant.get_or_create")
	span.SetAttributes(
		attribute.String("variant.assignment_id", assignmentID),
		attribute.String("variant.student_id", studentID),
	)
	defer span.End()

	unlock := s.keys.Lock(assignmentID + "\x1f" + studentID)
	defer unlock()

	config, err := s.variants.GetByKey(ctx, assignmentID, studentID)
	if err == nil {
		span.SetAttributes(attribute.Bool("variant.created", false))
		return dto.NewVariantResponse(config)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "variant_lookup_failed")
		return dto.VariantResponse{}, err
	}

	created, err := s.create(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another writer won the race; the stored config is canonical.
			config, err = s.variants.GetByKey(ctx, assignmentID, studentID)
			if err != nil {
				return dto.VariantResponse{}, err
			}
			return dto.NewVariantResponse(config)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "variant_create_failed")
		return dto.VariantResponse{}, err
	}

	observability.VariantsCreated().Inc()
	span.SetAttributes(attribute.Bool("variant.created", true))
	s.logger.Info().
		Str("assignment_id", assignmentID).
		Str("student_id", studentID).
		Uint64("seed", created.Seed).
		Msg("variant config created")

	return dto.NewVariantResponse(created)
}

func (s *variantService) create(ctx context.Context, assignmentID, studentID string) (models.VariantConfig, error) {
	seed, err := variant.DeriveSeed(assignmentID, studentID, s.salt)
	if err != nil {
		return models.VariantConfig{}, err
	}

	specs, err := s.publishedSpecs(ctx, assignmentID)
	if err != nil {
		return models.VariantConfig{}, err
	}

	values, err := variant.Sample(specs, seed)
	if err != nil {
		return models.VariantConfig{}, err
	}

	config := models.VariantConfig{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Seed:         seed,
		CreatedAt:    s.now(),
	}
	if err := config.SetParameterValues(values); err != nil {
		return models.VariantConfig{}, err
	}

	if err := s.variants.Create(ctx, &config); err != nil {
		return models.VariantConfig{}, err
	}

	return config, nil
}

func (s *variantService) Get(ctx context.Context, assignmentID, studentID string) (dto.VariantResponse, error) {
	config, err := s.variants.GetByKey(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.VariantResponse{}, ErrVariantNotFound
		}
		return dto.VariantResponse{}, err
	}

	return dto.NewVariantResponse(config)
}

// Verify recomputes the config from its inputs and structurally compares it to
// the stored row. This is the audit tool instructors run to detect tampering
// or to confirm a config can be regenerated after loss.
func (s *variantService) Verify(ctx context.Context, assignmentID, studentID string) error {
	stored, err := s.variants.GetByKey(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVariantNotFound
		}
		return err
	}

	seed, err := variant.DeriveSeed(assignmentID, studentID, s.salt)
	if err != nil {
		return err
	}

	if stored.Seed != seed {
		observability.VariantDrift().Inc()
		s.logger.Warn().
			Str("assignment_id", assignmentID).
			Str("student_id", studentID).
			Msg("variant seed drift detected")
		return ErrVariantDrift
	}

	specs, err := s.publishedSpecs(ctx, assignmentID)
	if err != nil {
		return err
	}

	values, err := variant.Sample(specs, seed)
	if err != nil {
		return err
	}

	recomputed := models.VariantConfig{}
	if err := recomputed.SetParameterValues(values); err != nil {
		return err
	}

	expected, err := recomputed.CanonicalParameters()
	if err != nil {
		return err
	}
	actual, err := stored.CanonicalParameters()
	if err != nil {
		// Undecodable stored parameters are drift, not a transient failure.
		observability.VariantDrift().Inc()
		return ErrVariantDrift
	}

	if !bytes.Equal(expected, actual) {
		observability.VariantDrift().Inc()
		s.logger.Warn().
			Str("assignment_id", assignmentID).
			Str("student_id", studentID).
			Msg("variant parameter drift detected")
		return ErrVariantDrift
	}

	return nil
}

func (s *variantService) publishedSpecs(ctx context.Context, assignmentID string) ([]models.ParameterSpec, error) {
	schema, err := s.schemas.GetByAssignmentID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchemaNotFound
		}
		return nil, err
	}
	if !schema.Published {
		return nil, ErrSchemaUnpublished
	}

	return schema.Specs()
}

// keyedMutex serializes critical sections per string key. The lock table is
// bounded by roster size, so entries are never evicted.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
