package ecology

import "math/rand"

// Rand is the source of randomness used by the grid, agents and seeding.
// *rand.Rand satisfies it; tests may supply a scripted implementation.
type Rand interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewRand returns a deterministic source for the given seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
