package ecology

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a kind name is not one of the three species.
var ErrUnknownKind = errors.New("unknown species kind")

// Kind is the name/identifier of a species.
type Kind string

const (
	Grazer       Kind = "grazer"
	MidPredator  Kind = "mid_predator"
	ApexPredator Kind = "apex_predator"
)

// Kinds lists every species in food-chain order, prey first.
var Kinds = []Kind{Grazer, MidPredator, ApexPredator}

// SpeciesParams holds the fixed life-history parameters of a kind.
type SpeciesParams struct {
	BreedingAge         int
	MaxAge              int
	BreedingProbability float64
	MaxLitterSize       int
	// Prey is the kind this species hunts. Empty for grazers.
	Prey Kind
	// FoodValue is the hunger level restored by eating one prey, and the
	// hunger a newborn starts with. Zero means the kind has no hunger.
	FoodValue int
	// Symbol is the single-character cell encoding used by CellKinds.
	Symbol byte
}

var speciesTable = map[Kind]SpeciesParams{
	Grazer: {
		BreedingAge:         5,
		MaxAge:              30,
		BreedingProbability: 0.06,
		MaxLitterSize:       5,
		Symbol:              'G',
	},
	MidPredator: {
		BreedingAge:         3,
		MaxAge:              50,
		BreedingProbability: 0.05,
		MaxLitterSize:       6,
		Prey:                Grazer,
		FoodValue:           6,
		Symbol:              'M',
	},
	ApexPredator: {
		BreedingAge:         3,
		MaxAge:              50,
		BreedingProbability: 0.15,
		MaxLitterSize:       6,
		Prey:                MidPredator,
		FoodValue:           6,
		Symbol:              'A',
	},
}

// emptySymbol encodes an empty cell in CellKinds output.
const emptySymbol = '.'

// Params returns the parameter row for k.
func (k Kind) Params() SpeciesParams {
	return speciesTable[k]
}

// Valid reports whether k is one of the known species.
func (k Kind) Valid() bool {
	_, ok := speciesTable[k]
	return ok
}

// IsPredator reports whether the kind hunts and therefore carries hunger.
func (k Kind) IsPredator() bool {
	return speciesTable[k].Prey != ""
}

// ParseKind converts a name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
