package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/unza-cs/grading-api/internal/models"
)

type memorySchemaRepo struct {
	mu      sync.Mutex
	schemas map[string]models.AssignmentSchema
	nextID  uint
}

func newMemorySchemaRepo() *memorySchemaRepo {
	return &memorySchemaRepo{schemas: make(map[string]models.AssignmentSchema), nextID: 1}
}

func (m *memorySchemaRepo) List(ctx context.Context) ([]models.AssignmentSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AssignmentSchema, 0, len(m.schemas))
	for _, schema := range m.schemas {
		out = append(out, schema)
	}
	return out, nil
}

func (m *memorySchemaRepo) GetByAssignmentID(ctx context.Context, assignmentID string) (models.AssignmentSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	schema, ok := m.schemas[assignmentID]
	if !ok {
		return models.AssignmentSchema{}, gorm.ErrRecordNotFound
	}
	return schema, nil
}

func (m *memorySchemaRepo) Create(ctx context.Context, schema *models.AssignmentSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.schemas[schema.AssignmentID]; exists {
		return gorm.ErrDuplicatedKey
	}
	schema.ID = m.nextID
	m.nextID++
	m.schemas[schema.AssignmentID] = *schema
	return nil
}

func (m *memorySchemaRepo) Publish(ctx context.Context, assignmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	schema, ok := m.schemas[assignmentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	schema.Published = true
	m.schemas[assignmentID] = schema
	return nil
}

type memoryVariantRepo struct {
	mu      sync.Mutex
	configs map[string]models.VariantConfig
	nextID  uint
}

func newMemoryVariantRepo() *memoryVariantRepo {
	return &memoryVariantRepo{configs: make(map[string]models.VariantConfig), nextID: 1}
}

func variantKey(assignmentID, studentID string) string {
	return assignmentID + "\x1f" + studentID
}

func (m *memoryVariantRepo) GetByKey(ctx context.Context, assignmentID, studentID string) (models.VariantConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	config, ok := m.configs[variantKey(assignmentID, studentID)]
	if !ok {
		return models.VariantConfig{}, gorm.ErrRecordNotFound
	}
	return config, nil
}

func (m *memoryVariantRepo) Create(ctx context.Context, config *models.VariantConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := variantKey(config.AssignmentID, config.StudentID)
	if _, exists := m.configs[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	config.ID = m.nextID
	m.nextID++
	m.configs[key] = *config
	return nil
}

func (m *memoryVariantRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]models.VariantConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.VariantConfig, 0, len(m.configs))
	for _, config := range m.configs {
		if config.AssignmentID == assignmentID {
			out = append(out, config)
		}
	}
	return out, nil
}

func (m *memoryVariantRepo) put(config models.VariantConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[variantKey(config.AssignmentID, config.StudentID)] = config
}

func publishedSchema(t *testing.T, assignmentID string) models.AssignmentSchema {
	t.Helper()
	schema := models.AssignmentSchema{AssignmentID: assignmentID, Published: true}
	require.NoError(t, schema.SetSpecs([]models.ParameterSpec{
		{Name: "dataset", Kind: models.ParameterKindCategorical, Pool: []string{"flights", "weather", "census"}},
		{Name: "threshold", Kind: models.ParameterKindIntegerRange, Min: 5, Max: 20},
		{Name: "functions", Kind: models.ParameterKindSubsetOfPool, Pool: []string{"map", "filter", "fold", "scan"}, Choose: 2},
	}))
	return schema
}

func newTestVariantService(t *testing.T) (VariantService, *memorySchemaRepo, *memoryVariantRepo) {
	t.Helper()
	schemas := newMemorySchemaRepo()
	variants := newMemoryVariantRepo()
	return NewVariantService(schemas, variants, "2026-term1", zerolog.Nop()), schemas, variants
}

func TestVariantServiceGetOrCreateIsIdempotent(t *testing.T) {
	svc, schemas, variants := newTestVariantService(t)
	ctx := context.Background()

	schema := publishedSchema(t, "lab4")
	require.NoError(t, schemas.Create(ctx, &schema))

	first, err := svc.GetOrCreate(ctx, "lab4", "2021456789")
	require.NoError(t, err)
	require.NotZero(t, first.Seed)
	require.Len(t, first.Parameters, 3)

	second, err := svc.GetOrCreate(ctx, "lab4", "2021456789")
	require.NoError(t, err)
	require.Equal(t, first.Seed, second.Seed)
	require.Equal(t, first.Parameters, second.Parameters)

	stored, err := variants.ListByAssignment(ctx, "lab4")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestVariantServiceConcurrentFirstRequests(t *testing.T) {
	svc, schemas, variants := newTestVariantService(t)
	ctx := context.Background()

	schema := publishedSchema(t, "lab4")
	require.NoError(t, schemas.Create(ctx, &schema))

	const workers = 16
	seeds := make([]uint64, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			response, err := svc.GetOrCreate(ctx, "lab4", "2021456789")
			seeds[i], errs[i] = response.Seed, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, seeds[0], seeds[i])
	}

	stored, err := variants.ListByAssignment(ctx, "lab4")
	require.NoError(t, err)
	require.Len(t, stored, 1, "concurrent first requests must converge on one config")
}

func TestVariantServiceStudentsGetDistinctVariants(t *testing.T) {
	svc, schemas, _ := newTestVariantService(t)
	ctx := context.Background()

	schema := publishedSchema(t, "lab4")
	require.NoError(t, schemas.Create(ctx, &schema))

	alice, err := svc.GetOrCreate(ctx, "lab4", "alice")
	require.NoError(t, err)
	bob, err := svc.GetOrCreate(ctx, "lab4", "bob")
	require.NoError(t, err)

	require.NotEqual(t, alice.Seed, bob.Seed)
}

func TestVariantServiceRequiresPublishedSchema(t *testing.T) {
	svc, schemas, _ := newTestVariantService(t)
	ctx := context.Background()

	_, err := svc.GetOrCreate(ctx, "lab4", "2021456789")
	require.ErrorIs(t, err, ErrSchemaNotFound)

	draft := publishedSchema(t, "lab4")
	draft.Published = false
	require.NoError(t, schemas.Create(ctx, &draft))

	_, err = svc.GetOrCreate(ctx, "lab4", "2021456789")
	require.ErrorIs(t, err, ErrSchemaUnpublished)
}

func TestVariantServiceGetMissing(t *testing.T) {
	svc, _, _ := newTestVariantService(t)

	_, err := svc.Get(context.Background(), "lab4", "nobody")
	require.ErrorIs(t, err, ErrVariantNotFound)
}

func TestVariantServiceVerifyPassesForIntactConfig(t *testing.T) {
	svc, schemas, _ := newTestVariantService(t)
	ctx := context.Background()

	schema := publishedSchema(t, "lab4")
	require.NoError(t, schemas.Create(ctx, &schema))

	_, err := svc.GetOrCreate(ctx, "lab4", "2021456789")
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, "lab4", "2021456789"))
}

func TestVariantServiceVerifyDetectsSeedDrift(t *testing.T) {
	svc, schemas, variants := newTestVariantService(t)
	ctx := context.Background()

	schema := publishedSchema(t, "lab4")
	require.NoError(t, schemas.Create(ctx, &schema))

	_, err := svc.GetOrCreate(ctx, "lab4", "2021456789")
	require.NoError(t, err)

	stored, err := variants.GetByKey(ctx, "lab4", "2021456789")
	require.NoError(t, err)
	stored.Seed++
	variants.put(stored)

	require.ErrorIs(t, svc.Verify(ctx, "lab4", "2021456789"), ErrVariantDrift)
}

func TestVariantServiceVerifyDetectsParameterDrift(t *testing.T) {
	svc, schemas, variants := newTestVariantService(t)
	ctx := context.Background()

	schema := publishedSchema(t, "lab4")
	require.NoError(t, schemas.Create(ctx, &schema))

	_, err := svc.GetOrCreate(ctx, "lab4", "2021456789")
	require.NoError(t, err)

	stored, err := variants.GetByKey(ctx, "lab4", "2021456789")
	require.NoError(t, err)
	require.NoError(t, stored.SetParameterValues([]models.ParameterValue{
		{Name: "dataset", Kind: models.ParameterKindCategorical, Value: "tampered"},
	}))
	variants.put(stored)

	require.ErrorIs(t, svc.Verify(ctx, "lab4", "2021456789"), ErrVariantDrift)
}

func TestVariantServiceVerifyMissing(t *testing.T) {
	svc, _, _ := newTestVariantService(t)

	require.ErrorIs(t, svc.Verify(context.Background(), "lab4", "nobody"), ErrVariantNotFound)
}
