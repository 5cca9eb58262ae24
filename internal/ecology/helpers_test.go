package ecology

// scriptedRand is a predictable Rand: Float64 always returns the same
// value, Intn returns 0 unless overridden and Shuffle keeps the input order.
type scriptedRand struct {
	float float64
	intn  func(n int) int
}

func (r *scriptedRand) Float64() float64 { return r.float }

func (r *scriptedRand) Intn(n int) int {
	if r.intn != nil {
		return r.intn(n)
	}
	return 0
}

func (r *scriptedRand) Shuffle(n int, swap func(i, j int)) {}

// noBreeding never passes a breeding draw.
func noBreeding() *scriptedRand { return &scriptedRand{float: 0.99} }

// emptyConfig describes a width x height field with nothing seeded.
func emptyConfig(width, height int) Config {
	cfg := DefaultConfig()
	cfg.Width = width
	cfg.Height = height
	cfg.Seed = 1
	cfg.Creation = CreationProbabilities{}
	return cfg
}

// actWorld wires agents into a stepContext for direct act() tests.
type actWorld struct {
	current  *Grid
	next     *Grid
	agents   map[AgentID]*Agent
	newborns []*Agent
	nextID   AgentID
}

func newActWorld(width, height int) *actWorld {
	return &actWorld{
		current: NewGrid(width, height),
		next:    NewGrid(width, height),
		agents:  make(map[AgentID]*Agent),
		nextID:  100,
	}
}

func (w *actWorld) add(a *Agent) *Agent {
	w.agents[a.ID] = a
	mustPlace(w.current, a.ID, a.Location)
	return a
}

func (w *actWorld) context(rnd Rand) *stepContext {
	return &stepContext{
		current: w.current,
		next:    w.next,
		rnd:     rnd,
		lookup:  func(id AgentID) *Agent { return w.agents[id] },
		spawn: func(kind Kind, loc Location) *Agent {
			w.nextID++
			a := newbornAgent(w.nextID, kind, loc)
			w.newborns = append(w.newborns, a)
			return a
		},
	}
}
