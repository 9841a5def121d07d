package invoke

import (
	"strings"

	"github.com/google/uuid"
)

// IDGenerator produces activation IDs. Implemented by UUIDv7Generator
// (production) and testutil.FixedIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable activation IDs: a UUIDv7 rendered
// as 32 lowercase hex characters without hyphens.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new activation ID. Panics if the random source fails.
func (UUIDv7Generator) Generate() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}
