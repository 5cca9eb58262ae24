package ecology

import (
	"crypto/rand"
	"encoding/hex"
)

// NewSimulationID returns a random 16-character hex ID.
func NewSimulationID() SimulationID {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return SimulationID(hex.EncodeToString(b))
}
