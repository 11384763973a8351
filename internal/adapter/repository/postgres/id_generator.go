package postgres

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates time-ordered IDs for accounts, transactions,
// entries and outbox rows. IDs from the same millisecond still sort in
// generation order.
type ULIDGenerator struct {
	now func() time.Time
}

// NewULIDGenerator creates a generator on the wall clock.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{now: time.Now}
}

// Generate returns a new 26-character ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.MustNew(ulid.Timestamp(g.now()), ulid.DefaultEntropy()).String()
}
