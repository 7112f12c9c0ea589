package variant

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/unza-cs/grading-api/internal/models"
)

// ErrInvalidSchema indicates a schema whose specs cannot be sampled.
var ErrInvalidSchema = errors.New("invalid assignment schema")

// Sample draws one value per parameter spec from a generator seeded exactly
// once with the given seed. Draw order follows the declared spec order; that
// order is part of the contract, since every draw shifts the generator stream
// for all later parameters. Schemas are append-only once published.
func Sample(specs []models.ParameterSpec, seed uint64) ([]models.ParameterValue, error) {
	rng := rand.New(rand.NewPCG(seed, 0))

	values := make([]models.ParameterValue, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))

	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: unnamed parameter", ErrInvalidSchema)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidSchema, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		value, err := drawParameter(rng, spec)
		if err != nil {
			return nil, err
		}

		values = append(values, models.ParameterValue{
			Name:  spec.Name,
			Kind:  spec.Kind,
			Value: value,
		})
	}

	return values, nil
}

func drawParameter(rng *rand.Rand, spec models.ParameterSpec) (any, error) {
	switch spec.Kind {
	case models.ParameterKindCategorical:
		if len(spec.Pool) == 0 {
			return nil, fmt.Errorf("%w: parameter %q has an empty pool", ErrInvalidSchema, spec.Name)
		}
		return spec.Pool[rng.IntN(len(spec.Pool))], nil

	case models.ParameterKindIntegerRange:
		lo, hi := int64(spec.Min), int64(spec.Max)
		if hi < lo {
			return nil, fmt.Errorf("%w: parameter %q has max below min", ErrInvalidSchema, spec.Name)
		}
		// Bounds are inclusive; no rejection sampling.
		return lo + rng.Int64N(hi-lo+1), nil

	case models.ParameterKindFloatRange:
		if spec.Max < spec.Min {
			return nil, fmt.Errorf("%w: parameter %q has max below min", ErrInvalidSchema, spec.Name)
		}
		return spec.Min + rng.Float64()*(spec.Max-spec.Min), nil

	case models.ParameterKindSubsetOfPool:
		return drawSubset(rng, spec)

	case models.ParameterKindPermutation:
		if len(spec.Pool) == 0 {
			return nil, fmt.Errorf("%w: parameter %q has an empty pool", ErrInvalidSchema, spec.Name)
		}
		return shuffled(rng, spec.Pool), nil

	default:
		return nil, fmt.Errorf("%w: parameter %q has unknown kind %q", ErrInvalidSchema, spec.Name, spec.Kind)
	}
}

// drawSubset picks exactly Choose elements without replacement, preserving the
// draw order. The exact cardinality is what makes equal-effort variants
// structurally guaranteed, so a spec that could select a variable count is
// rejected outright.
func drawSubset(rng *rand.Rand, spec models.ParameterSpec) ([]string, error) {
	n := len(spec.Pool)
	if spec.Choose <= 0 || spec.Choose > n {
		return nil, fmt.Errorf("%w: parameter %q must choose between 1 and %d elements", ErrInvalidSchema, spec.Name, n)
	}

	pool := append([]string(nil), spec.Pool...)
	subset := make([]string, 0, spec.Choose)
	for i := 0; i < spec.Choose; i++ {
		j := i + rng.IntN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
		subset = append(subset, pool[i])
	}
	return subset, nil
}

// shuffled returns a uniform permutation via Fisher-Yates, consuming exactly
// len(domain)-1 generator values.
func shuffled(rng *rand.Rand, domain []string) []string {
	out := append([]string(nil), domain...)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
