package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns sequential activation IDs shaped like real ones:
// 32 hex characters, "00000000000000000000000000000001" first.
//
// Thread-safety: FixedIDGenerator is safe for concurrent use.
type FixedIDGenerator struct {
	mu sync.Mutex
	n  uint64
}

// NewFixedIDGenerator creates a generator starting at 1.
func NewFixedIDGenerator() *FixedIDGenerator {
	return &FixedIDGenerator{}
}

// Generate returns the next ID.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%032x", g.n)
}
