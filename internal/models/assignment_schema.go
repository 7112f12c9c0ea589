package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ParameterKind enumerates the supported variant parameter kinds.
type ParameterKind string

const (
	ParameterKindCategorical  ParameterKind = "categorical"
	ParameterKindIntegerRange ParameterKind = "integer-range"
	ParameterKindFloatRange   ParameterKind = "float-range"
	ParameterKindSubsetOfPool ParameterKind = "subset-of-pool"
	ParameterKindPermutation  ParameterKind = "permutation"
)

// ParameterSpec declares a single parameter of an assignment schema. Specs are
// drawn in declared order; reordering published specs changes every downstream
// variant, so published schemas are immutable.
type ParameterSpec struct {
	Name             string        `json:"name"`
	Kind             ParameterKind `json:"kind"`
	Pool             []string      `json:"pool,omitempty"`
	Choose           int           `json:"choose,omitempty"`
	Min              float64       `json:"min,omitempty"`
	Max              float64       `json:"max,omitempty"`
	DifficultyWeight float64       `json:"difficulty_weight,omitempty"`
}

// AssignmentSchema stores the authored parameter schema for one assignment.
type AssignmentSchema struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AssignmentID string         `gorm:"size:128;not null;uniqueIndex" json:"assignment_id"`
	Title        string         `gorm:"size:255" json:"title"`
	Parameters   datatypes.JSON `gorm:"type:json;not null" json:"parameters"`
	Published    bool           `gorm:"not null;default:false" json:"published"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Specs decodes the ordered parameter specs.
func (s AssignmentSchema) Specs() ([]ParameterSpec, error) {
	if len(s.Parameters) == 0 {
		return nil, nil
	}

	var specs []ParameterSpec
	if err := json.Unmarshal(s.Parameters, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// SetSpecs encodes the ordered parameter specs.
func (s *AssignmentSchema) SetSpecs(specs []ParameterSpec) error {
	payload, err := json.Marshal(specs)
	if err != nil {
		return err
	}
	s.Parameters = datatypes.JSON(payload)
	return nil
}
