package ecology

// Agent is one animal on the grid. All three species share this type; the
// behaviour differences come from the kind's SpeciesParams.
type Agent struct {
	ID       AgentID  `json:"id"`
	Kind     Kind     `json:"kind"`
	Age      int      `json:"age"`
	Alive    bool     `json:"alive"`
	Location Location `json:"location"`
	// Hunger counts the steps a predator can go without eating. Always zero
	// for grazers.
	Hunger int `json:"hunger,omitempty"`
}

// newbornAgent creates an agent of age zero with full hunger.
func newbornAgent(id AgentID, kind Kind, loc Location) *Agent {
	return &Agent{
		ID:       id,
		Kind:     kind,
		Alive:    true,
		Location: loc,
		Hunger:   kind.Params().FoodValue,
	}
}

// seededAgent creates an agent for the initial population with a random age
// in [0, MaxAge) and, for predators, a random hunger in [1, FoodValue].
func seededAgent(id AgentID, kind Kind, loc Location, rnd Rand) *Agent {
	p := kind.Params()
	a := &Agent{
		ID:       id,
		Kind:     kind,
		Age:      rnd.Intn(p.MaxAge),
		Alive:    true,
		Location: loc,
	}
	if p.FoodValue > 0 {
		a.Hunger = rnd.Intn(p.FoodValue) + 1
	}
	return a
}

// CanBreed reports whether the agent has reached its breeding age.
func (a *Agent) CanBreed() bool {
	return a.Age >= a.Kind.Params().BreedingAge
}

// stepContext carries everything an agent may touch while acting.
type stepContext struct {
	current GridView
	next    *Grid
	rnd     Rand
	lookup  func(AgentID) *Agent
	// spawn allocates a newborn of kind at loc and records it in the sink.
	spawn func(kind Kind, loc Location) *Agent
}

// act advances the agent by one step: age, hunger, breeding, hunting and
// movement. Results are written to sc.next only.
func (a *Agent) act(sc *stepContext) {
	p := a.Kind.Params()

	a.Age++
	if a.Age > p.MaxAge {
		a.Alive = false
		return
	}

	if p.FoodValue > 0 {
		a.Hunger--
		if a.Hunger <= 0 {
			a.Alive = false
			return
		}
	}

	for i, n := 0, a.breed(p, sc.rnd); i < n; i++ {
		loc, ok := sc.next.FreeAdjacentLocation(a.Location, sc.rnd)
		if !ok {
			break
		}
		child := sc.spawn(a.Kind, loc)
		if p.FoodValue > 0 {
			child.Hunger = a.Hunger
		}
		mustPlace(sc.next, child.ID, loc)
	}

	dest, found := Location{}, false
	if p.Prey != "" {
		dest, found = a.hunt(p, sc)
	}
	if !found {
		dest, found = sc.next.FreeAdjacentLocation(a.Location, sc.rnd)
	}
	if !found {
		// overcrowded: nowhere to go and nothing to eat
		a.Alive = false
		return
	}
	a.Location = dest
	mustPlace(sc.next, a.ID, dest)
}

// breed returns the number of births this step.
func (a *Agent) breed(p SpeciesParams, rnd Rand) int {
	if a.Age >= p.BreedingAge && rnd.Float64() <= p.BreedingProbability {
		return rnd.Intn(p.MaxLitterSize) + 1
	}
	return 0
}

// hunt eats the first live prey found next to the agent on the current grid.
// The prey dies immediately. The returned location is the prey's cell when
// it is still free on the next grid.
func (a *Agent) hunt(p SpeciesParams, sc *stepContext) (Location, bool) {
	for _, where := range sc.current.AdjacentLocations(a.Location, sc.rnd) {
		id, err := sc.current.OccupantAt(where)
		if err != nil || id == NoAgent {
			continue
		}
		prey := sc.lookup(id)
		if prey == nil || prey.Kind != p.Prey || !prey.Alive {
			continue
		}

		prey.Alive = false
		// a prey that acted earlier this step has already been placed
		if occ, err := sc.next.OccupantAt(prey.Location); err == nil && occ == prey.ID {
			mustRemove(sc.next, prey.Location)
		}
		a.Hunger = p.FoodValue

		if occ, _ := sc.next.OccupantAt(where); occ == NoAgent {
			return where, true
		}
		return Location{}, false
	}
	return Location{}, false
}

func mustPlace(g *Grid, id AgentID, loc Location) {
	if err := g.Place(id, loc); err != nil {
		panic(err)
	}
}

func mustRemove(g *Grid, loc Location) {
	if err := g.Remove(loc); err != nil {
		panic(err)
	}
}
