// Package variant implements deterministic per-student variant generation:
// seed derivation from stable identifiers and parameter sampling from an
// assignment schema. Both are pure functions so regeneration always reproduces
// the stored configuration exactly.
package variant

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// ErrInvalidIdentifier indicates an empty assignment or student identifier.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Identifiers never contain the unit separator, so the concatenation below is
// unambiguous.
const seedSeparator = "\x1f"

// DeriveSeed turns (assignment, student, salt) into a stable 64-bit seed by
// hashing the separated concatenation with SHA-256 and taking the first eight
// bytes big-endian. The hash makes the mapping one-way and gives every input
// character avalanche behavior.
func DeriveSeed(assignmentID, studentID, salt string) (uint64, error) {
	if assignmentID == "" || studentID == "" {
		return 0, ErrInvalidIdentifier
	}

	sum := sha256.Sum256([]byte(assignmentID + seedSeparator + salt + seedSeparator + studentID))
	return binary.BigEndian.Uint64(sum[:8]), nil
}
