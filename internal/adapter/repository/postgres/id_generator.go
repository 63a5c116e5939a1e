package postgres

import (
	"github.com/oklog/ulid/v2"

	"github.com/iho/mpay/internal/usecase"
)

// RunIDGenerator generates ULIDs stamped with the ledger clock.
type RunIDGenerator struct {
	clock usecase.Clock
}

// NewRunIDGenerator creates a new RunIDGenerator.
func NewRunIDGenerator(clock usecase.Clock) *RunIDGenerator {
	return &RunIDGenerator{clock: clock}
}

// Generate generates a new ULID.
func (g *RunIDGenerator) Generate() string {
	return ulid.MustNew(ulid.Timestamp(g.clock.Now()), ulid.DefaultEntropy()).String()
}
