package ecology

import (
	"fmt"
	"sort"
	"strings"
)

// PopulationStats maps each kind to its number of agents on a grid.
type PopulationStats map[Kind]int

// ComputeStats tallies the kinds of every occupant of g. Counting from the
// grid rather than the live list means only placed agents are reported.
func ComputeStats(g GridView, lookup func(AgentID) *Agent) PopulationStats {
	stats := make(PopulationStats, len(Kinds))
	for _, k := range Kinds {
		stats[k] = 0
	}
	g.Occupied(func(_ Location, id AgentID) {
		if a := lookup(id); a != nil {
			stats[a.Kind]++
		}
	})
	return stats
}

// Count returns the number of agents of kind k.
func (s PopulationStats) Count(k Kind) int {
	return s[k]
}

// Total returns the number of agents of every kind.
func (s PopulationStats) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

// Clone returns an independent copy.
func (s PopulationStats) Clone() PopulationStats {
	out := make(PopulationStats, len(s))
	for k, c := range s {
		out[k] = c
	}
	return out
}

func (s PopulationStats) String() string {
	kinds := make([]string, 0, len(s))
	for k := range s {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s[Kind(k)]))
	}
	return strings.Join(parts, " ")
}

// ViabilityMode selects how a population is judged viable.
type ViabilityMode string

const (
	// ViabilityAllKinds requires every species to reach MinCount.
	ViabilityAllKinds ViabilityMode = "all"
	// ViabilityPredatorPrey requires grazers and at least one predator
	// species to reach MinCount.
	ViabilityPredatorPrey ViabilityMode = "predator-prey"
)

// Viability is the predicate that decides whether stepping continues.
type Viability struct {
	Mode     ViabilityMode `json:"mode" yaml:"mode" jsonschema:"enum=all,enum=predator-prey,default=all"`
	MinCount int           `json:"min_count" yaml:"min_count" jsonschema:"minimum=0,default=1"`
}

// DefaultViability requires at least one agent of every kind.
func DefaultViability() Viability {
	return Viability{Mode: ViabilityAllKinds, MinCount: 1}
}

// IsViable evaluates the predicate against stats.
func (v Viability) IsViable(stats PopulationStats) bool {
	threshold := v.MinCount
	if threshold < 1 {
		threshold = 1
	}
	switch v.Mode {
	case ViabilityPredatorPrey:
		if stats[Grazer] < threshold {
			return false
		}
		return stats[MidPredator] >= threshold || stats[ApexPredator] >= threshold
	default:
		for _, k := range Kinds {
			if stats[k] < threshold {
				return false
			}
		}
		return true
	}
}
