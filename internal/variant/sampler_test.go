package variant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unza-cs/grading-api/internal/models"
)

func labSpecs() []models.ParameterSpec {
	return []models.ParameterSpec{
		{Name: "dataset", Kind: models.ParameterKindCategorical, Pool: []string{"flights", "weather", "census"}},
		{Name: "threshold", Kind: models.ParameterKindIntegerRange, Min: 5, Max: 20},
		{Name: "alpha", Kind: models.ParameterKindFloatRange, Min: 0.1, Max: 0.9},
		{Name: "functions", Kind: models.ParameterKindSubsetOfPool, Pool: []string{"map", "filter", "fold", "scan", "zip"}, Choose: 3},
		{Name: "task_order", Kind: models.ParameterKindPermutation, Pool: []string{"parse", "transform", "report"}},
	}
}

func TestSampleIsDeterministic(t *testing.T) {
	first, err := Sample(labSpecs(), 0xdeadbeef)
	require.NoError(t, err)

	second, err := Sample(labSpecs(), 0xdeadbeef)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestSampleDiffersAcrossSeeds(t *testing.T) {
	first, err := Sample(labSpecs(), 1)
	require.NoError(t, err)

	second, err := Sample(labSpecs(), 2)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestSampleRespectsDomains(t *testing.T) {
	specs := labSpecs()
	subsetHits := make(map[string]int, len(specs[3].Pool))

	for seed := uint64(0); seed < 500; seed++ {
		values, err := Sample(specs, seed)
		require.NoError(t, err)
		require.Len(t, values, len(specs))

		dataset := values[0].Value.(string)
		require.Contains(t, specs[0].Pool, dataset)

		threshold := values[1].Value.(int64)
		require.GreaterOrEqual(t, threshold, int64(5))
		require.LessOrEqual(t, threshold, int64(20))

		alpha := values[2].Value.(float64)
		require.GreaterOrEqual(t, alpha, 0.1)
		require.Less(t, alpha, 0.9)

		subset := values[3].Value.([]string)
		require.Len(t, subset, 3)
		seen := make(map[string]struct{}, len(subset))
		for _, element := range subset {
			require.Contains(t, specs[3].Pool, element)
			_, dup := seen[element]
			require.False(t, dup, "subset must not repeat elements")
			seen[element] = struct{}{}
			subsetHits[element]++
		}

		permutation := values[4].Value.([]string)
		require.ElementsMatch(t, specs[4].Pool, permutation)
	}

	// No pool element is systematically excluded from the subsets.
	for _, element := range specs[3].Pool {
		require.Positive(t, subsetHits[element], "pool element %q never selected", element)
	}
}

func TestSampleCoversIntegerBounds(t *testing.T) {
	specs := []models.ParameterSpec{
		{Name: "n", Kind: models.ParameterKindIntegerRange, Min: 3, Max: 5},
	}

	hits := make(map[int64]int)
	for seed := uint64(0); seed < 300; seed++ {
		values, err := Sample(specs, seed)
		require.NoError(t, err)
		hits[values[0].Value.(int64)]++
	}

	// Both endpoints are reachable: the range is inclusive.
	require.Positive(t, hits[3])
	require.Positive(t, hits[4])
	require.Positive(t, hits[5])
	require.Len(t, hits, 3)
}

func TestSampleSingleElementDomains(t *testing.T) {
	specs := []models.ParameterSpec{
		{Name: "only", Kind: models.ParameterKindCategorical, Pool: []string{"solo"}},
		{Name: "fixed", Kind: models.ParameterKindIntegerRange, Min: 7, Max: 7},
		{Name: "all", Kind: models.ParameterKindSubsetOfPool, Pool: []string{"a", "b"}, Choose: 2},
		{Name: "one", Kind: models.ParameterKindPermutation, Pool: []string{"x"}},
	}

	values, err := Sample(specs, 42)
	require.NoError(t, err)
	require.Equal(t, "solo", values[0].Value)
	require.Equal(t, int64(7), values[1].Value)
	require.ElementsMatch(t, []string{"a", "b"}, values[2].Value)
	require.Equal(t, []string{"x"}, values[3].Value)
}

func TestSampleAppendOnlyStability(t *testing.T) {
	original := labSpecs()
	extended := append(labSpecs(), models.ParameterSpec{
		Name: "bonus", Kind: models.ParameterKindCategorical, Pool: []string{"yes", "no"},
	})

	before, err := Sample(original, 99)
	require.NoError(t, err)

	after, err := Sample(extended, 99)
	require.NoError(t, err)

	// Appending a parameter never disturbs draws for the ones before it.
	require.Equal(t, before, after[:len(before)])
}

func TestSampleRejectsInvalidSpecs(t *testing.T) {
	cases := []struct {
		name  string
		specs []models.ParameterSpec
	}{
		{"unnamed", []models.ParameterSpec{{Kind: models.ParameterKindCategorical, Pool: []string{"a"}}}},
		{"duplicate", []models.ParameterSpec{
			{Name: "p", Kind: models.ParameterKindCategorical, Pool: []string{"a"}},
			{Name: "p", Kind: models.ParameterKindCategorical, Pool: []string{"b"}},
		}},
		{"empty pool", []models.ParameterSpec{{Name: "p", Kind: models.ParameterKindCategorical}}},
		{"max below min", []models.ParameterSpec{{Name: "p", Kind: models.ParameterKindIntegerRange, Min: 10, Max: 3}}},
		{"choose zero", []models.ParameterSpec{{Name: "p", Kind: models.ParameterKindSubsetOfPool, Pool: []string{"a", "b"}}}},
		{"choose beyond pool", []models.ParameterSpec{{Name: "p", Kind: models.ParameterKindSubsetOfPool, Pool: []string{"a"}, Choose: 2}}},
		{"unknown kind", []models.ParameterSpec{{Name: "p", Kind: "mystery"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Sample(tc.specs, 1)
			require.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}
