package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ParameterValue is one sampled parameter of a student variant. Values keep the
// order they were drawn in, which follows the schema's declared order.
type ParameterValue struct {
	Name  string        `json:"name"`
	Kind  ParameterKind `json:"kind"`
	Value any           `json:"value"`
}

// VariantConfig is the canonical per-(assignment, student) variant. It is
// created once and never edited; a stored config that no longer matches a fresh
// recomputation indicates corruption or tampering, not a legitimate change.
type VariantConfig struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AssignmentID string         `gorm:"size:128;not null;uniqueIndex:idx_variant_key,priority:1" json:"assignment_id"`
	StudentID    string         `gorm:"size:128;not null;uniqueIndex:idx_variant_key,priority:2" json:"student_id"`
	Seed         uint64         `gorm:"not null" json:"seed"`
	Parameters   datatypes.JSON `gorm:"type:json;not null" json:"parameters"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ParameterValues decodes the sampled parameters in draw order.
func (v VariantConfig) ParameterValues() ([]ParameterValue, error) {
	if len(v.Parameters) == 0 {
		return nil, nil
	}

	var values []ParameterValue
	if err := json.Unmarshal(v.Parameters, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// SetParameterValues encodes the sampled parameters.
func (v *VariantConfig) SetParameterValues(values []ParameterValue) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	v.Parameters = datatypes.JSON(payload)
	return nil
}

// CanonicalParameters re-encodes the stored parameters through the decoded
// form, yielding bytes that are stable across storage round trips. Two configs
// sampled from the same seed and schema produce identical canonical bytes.
func (v VariantConfig) CanonicalParameters() ([]byte, error) {
	values, err := v.ParameterValues()
	if err != nil {
		return nil, err
	}
	return json.Marshal(values)
}
