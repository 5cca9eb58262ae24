package ecology

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var (
	// ErrCellOccupied is returned when inserting onto a cell that already holds an agent.
	ErrCellOccupied = errors.New("cell is occupied")
	// ErrInvalidAgent is returned when an inserted agent's state breaks an invariant.
	ErrInvalidAgent = errors.New("invalid agent")
)

// SimulationID is a unique identifier for a simulation
type SimulationID string

// seedOrder is the order in which kinds are tried for each cell on reset.
var seedOrder = []Kind{ApexPredator, MidPredator, Grazer}

// Simulation owns the two grid buffers, the live agents and the step
// counter. All exported methods are safe to call from several goroutines;
// steps themselves never overlap.
type Simulation struct {
	mu     sync.Mutex
	id     SimulationID
	cfg    Config
	rnd    Rand
	logger Logger

	current *Grid
	next    *Grid

	// agents is the arena; order is the acting order of live agents.
	agents map[AgentID]*Agent
	order  []AgentID
	nextID AgentID

	step   int
	stats  PopulationStats
	viable bool

	notifier    *NotificationManager
	subscribers []string

	snapshotDir        string
	snapshotEveryNStep int

	stopCh    chan struct{}
	isRunning bool
}

// Option customises a Simulation at construction.
type Option func(*Simulation)

// WithRand replaces the seeded random source, e.g. with a scripted one in tests.
func WithRand(rnd Rand) Option {
	return func(s *Simulation) { s.rnd = rnd }
}

// WithLogger sets the logger used by the simulation.
func WithLogger(logger Logger) Option {
	return func(s *Simulation) { s.logger = orNoOp(logger) }
}

// WithID names the simulation; the name shows up in logs, events and snapshots.
func WithID(id SimulationID) Option {
	return func(s *Simulation) { s.id = id }
}

// NewSimulation validates cfg, builds both grids and seeds the initial
// population.
func NewSimulation(cfg Config, opts ...Option) (*Simulation, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &Simulation{
		logger: NewNoOpLogger(),
		agents: make(map[AgentID]*Agent),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cfg = cfg.Normalize(s.logger)
	if s.rnd == nil {
		s.rnd = NewRand(s.cfg.Seed)
	}
	s.current = NewGrid(s.cfg.Width, s.cfg.Height)
	s.next = NewGrid(s.cfg.Width, s.cfg.Height)

	s.resetLocked()
	return s, nil
}

func (s *Simulation) ID() SimulationID { return s.id }

// Config returns the normalised configuration.
func (s *Simulation) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Simulation) Width() int  { return s.cfg.Width }
func (s *Simulation) Height() int { return s.cfg.Height }

func (s *Simulation) lookup(id AgentID) *Agent {
	return s.agents[id]
}

func (s *Simulation) allocID() AgentID {
	s.nextID++
	return s.nextID
}

// Reset clears the step counter, both grids and the live agents, then seeds
// a new random population.
func (s *Simulation) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Simulation) resetLocked() {
	s.step = 0
	s.current.Clear()
	s.next.Clear()
	s.agents = make(map[AgentID]*Agent)
	s.order = nil
	s.nextID = 0

	for row := 0; row < s.cfg.Height; row++ {
		for col := 0; col < s.cfg.Width; col++ {
			loc := Location{Row: row, Col: col}
			for _, kind := range seedOrder {
				if s.rnd.Float64() < s.cfg.Creation.of(kind) {
					a := seededAgent(s.allocID(), kind, loc, s.rnd)
					s.agents[a.ID] = a
					s.order = append(s.order, a.ID)
					mustPlace(s.current, a.ID, loc)
					break
				}
			}
		}
	}
	// fixes who acts first for the rest of the run
	s.rnd.Shuffle(len(s.order), func(i, j int) { s.order[i], s.order[j] = s.order[j], s.order[i] })

	s.recomputeLocked()
	s.logger.Infof("simulation reset: simulation_id=%s size=%dx%d population=%s", s.id, s.cfg.Width, s.cfg.Height, s.stats)
}

func (s *Simulation) recomputeLocked() {
	s.stats = ComputeStats(s.current, s.lookup)
	s.viable = s.cfg.Viability.IsViable(s.stats)
}

// Step advances the simulation by one generation.
func (s *Simulation) Step() {
	s.mu.Lock()
	event := s.stepLocked()
	s.mu.Unlock()
	s.publish(event)
}

// RunFor steps up to n times, stopping early once the population is no
// longer viable. It returns the number of steps taken.
func (s *Simulation) RunFor(n int) int {
	taken := 0
	for taken < n {
		s.mu.Lock()
		if !s.viable {
			s.mu.Unlock()
			break
		}
		event := s.stepLocked()
		s.mu.Unlock()
		s.publish(event)
		taken++
	}
	return taken
}

func (s *Simulation) stepLocked() StepEvent {
	s.step++

	var newborns []*Agent
	sc := &stepContext{
		current: s.current,
		next:    s.next,
		rnd:     s.rnd,
		lookup:  s.lookup,
		spawn: func(kind Kind, loc Location) *Agent {
			a := newbornAgent(s.allocID(), kind, loc)
			newborns = append(newborns, a)
			return a
		},
	}

	// agents eaten earlier in the step are skipped
	for _, id := range slices.Clone(s.order) {
		if a := s.agents[id]; a.Alive {
			a.act(sc)
		}
	}

	live := s.order[:0]
	for _, id := range s.order {
		if s.agents[id].Alive {
			live = append(live, id)
		} else {
			delete(s.agents, id)
		}
	}
	for _, a := range newborns {
		s.agents[a.ID] = a
		live = append(live, a.ID)
	}
	s.order = live

	s.current, s.next = s.next, s.current
	s.next.Clear()

	wasViable := s.viable
	s.recomputeLocked()

	eventType := EventStep
	if wasViable && !s.viable {
		eventType = EventHalted
		s.logger.Infof("simulation no longer viable: simulation_id=%s step=%d population=%s", s.id, s.step, s.stats)
	}

	if s.snapshotEveryNStep > 0 && s.snapshotDir != "" && s.step%s.snapshotEveryNStep == 0 {
		if err := s.saveSnapshotLocked(); err != nil {
			s.logger.Errorf("periodic snapshot failed: simulation_id=%s step=%d error=%v", s.id, s.step, err)
		}
	}

	return s.eventLocked(eventType)
}

func (s *Simulation) eventLocked(eventType string) StepEvent {
	return StepEvent{
		SimulationID: s.id,
		Type:         eventType,
		Step:         s.step,
		Counts:       s.stats.Clone(),
		Viable:       s.viable,
		Width:        s.cfg.Width,
		Height:       s.cfg.Height,
		Cells:        s.cellKindsLocked(),
		Timestamp:    time.Now().Unix(),
	}
}

// StepCount returns the number of steps taken since the last reset or load.
func (s *Simulation) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Stats returns the per-kind counts of the current grid.
func (s *Simulation) Stats() PopulationStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Clone()
}

// IsViable reports whether the population still satisfies the viability policy.
func (s *Simulation) IsViable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viable
}

// CurrentGrid returns a copy of the current grid for read-only use.
func (s *Simulation) CurrentGrid() GridView {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := NewGrid(s.cfg.Width, s.cfg.Height)
	g.copyFrom(s.current)
	return g
}

// Agent returns a copy of the live agent with the given handle.
func (s *Simulation) Agent(id AgentID) (Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// AgentAt returns a copy of the agent on the current grid at loc.
func (s *Simulation) AgentAt(loc Location) (Agent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.current.OccupantAt(loc)
	if err != nil {
		return Agent{}, false, err
	}
	if a, ok := s.agents[id]; ok {
		return *a, true, nil
	}
	return Agent{}, false, nil
}

// Agents returns copies of the live agents in acting order.
func (s *Simulation) Agents() []Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentsLocked()
}

func (s *Simulation) agentsLocked() []Agent {
	out := make([]Agent, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.agents[id])
	}
	return out
}

// CellKinds encodes the current grid row by row, one symbol per cell:
// '.' empty, 'G' grazer, 'M' mid predator, 'A' apex predator.
func (s *Simulation) CellKinds() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cellKindsLocked()
}

func (s *Simulation) cellKindsLocked() string {
	buf := bytes.Repeat([]byte{emptySymbol}, s.cfg.Width*s.cfg.Height)
	s.current.Occupied(func(loc Location, id AgentID) {
		if a := s.agents[id]; a != nil {
			buf[loc.Row*s.cfg.Width+loc.Col] = a.Kind.Params().Symbol
		}
	})
	return string(buf)
}

// Insert places an agent on the current grid. A zero ID is replaced by a
// fresh handle. The agent must be alive, in bounds, on an empty cell and
// within its species' age and hunger limits.
func (s *Simulation) Insert(a Agent) (AgentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(a)
}

func (s *Simulation) insertLocked(a Agent) (AgentID, error) {
	if !a.Kind.Valid() {
		return NoAgent, fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
	p := a.Kind.Params()
	if !a.Alive {
		return NoAgent, fmt.Errorf("%w: agent must be alive", ErrInvalidAgent)
	}
	if a.Age < 0 || a.Age > p.MaxAge {
		return NoAgent, fmt.Errorf("%w: age %d outside [0,%d]", ErrInvalidAgent, a.Age, p.MaxAge)
	}
	if p.FoodValue > 0 && a.Hunger <= 0 {
		return NoAgent, fmt.Errorf("%w: predator hunger must be positive", ErrInvalidAgent)
	}
	if p.FoodValue == 0 {
		a.Hunger = 0
	}
	occ, err := s.current.OccupantAt(a.Location)
	if err != nil {
		return NoAgent, err
	}
	if occ != NoAgent {
		return NoAgent, fmt.Errorf("%w: %s", ErrCellOccupied, a.Location)
	}
	if a.ID == NoAgent {
		a.ID = s.allocID()
	} else if _, exists := s.agents[a.ID]; exists {
		return NoAgent, fmt.Errorf("%w: duplicate id %d", ErrInvalidAgent, a.ID)
	} else if a.ID > s.nextID {
		s.nextID = a.ID
	}

	stored := a
	s.agents[a.ID] = &stored
	s.order = append(s.order, a.ID)
	mustPlace(s.current, a.ID, a.Location)
	s.recomputeLocked()
	return a.ID, nil
}

// Spawn drops a new agent of kind on an empty cell, with a random age and
// hunger as in the initial population.
func (s *Simulation) Spawn(kind Kind, loc Location) (AgentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !kind.Valid() {
		return NoAgent, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return s.insertLocked(*seededAgent(NoAgent, kind, loc, s.rnd))
}

// RemoveAt removes the agent at loc from the live agents and from both grids.
// It reports whether an agent was removed.
func (s *Simulation) RemoveAt(loc Location) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.InBounds(loc) {
		return false, fmt.Errorf("%w: %s", ErrOutOfBounds, loc)
	}
	removed := s.removeAtLocked(loc)
	if removed {
		s.recomputeLocked()
	}
	return removed, nil
}

// clampSpan returns [c-radius, c+radius] intersected with [0, size-1]
// without overflowing. lo > hi means the span misses the grid.
func clampSpan(c, radius, size int) (lo, hi int) {
	lo, hi = 0, size-1
	if c > radius {
		lo = c - radius
	}
	if c < size-1-radius {
		hi = c + radius
	}
	return lo, hi
}

// ClearArea removes every agent in the square of the given radius around
// center. Cells outside the grid are ignored. It returns the number of
// agents removed.
func (s *Simulation) ClearArea(center Location, radius int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if radius < 0 {
		return 0
	}
	rowLo, rowHi := clampSpan(center.Row, radius, s.current.Height())
	colLo, colHi := clampSpan(center.Col, radius, s.current.Width())
	n := 0
	for row := rowLo; row <= rowHi; row++ {
		for col := colLo; col <= colHi; col++ {
			if s.removeAtLocked(Location{Row: row, Col: col}) {
				n++
			}
		}
	}
	if n > 0 {
		s.recomputeLocked()
	}
	return n
}

func (s *Simulation) removeAtLocked(loc Location) bool {
	id, _ := s.current.OccupantAt(loc)
	mustRemove(s.current, loc)
	mustRemove(s.next, loc)
	a, ok := s.agents[id]
	if !ok {
		return false
	}
	a.Alive = false
	delete(s.agents, id)
	s.order = slices.DeleteFunc(s.order, func(other AgentID) bool { return other == id })
	return true
}

// SetNotificationManager sets the manager step events are published to.
func (s *Simulation) SetNotificationManager(nm *NotificationManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = nm
}

// Subscribe limits step events to the given notifier IDs. With no IDs every
// registered notifier receives them.
func (s *Simulation) Subscribe(notifierIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = slices.Clone(notifierIDs)
}

func (s *Simulation) publish(event StepEvent) {
	s.mu.Lock()
	nm := s.notifier
	ids := s.subscribers
	s.mu.Unlock()

	if nm == nil {
		return
	}
	if len(ids) == 0 {
		ids = nm.ListNotifiers()
	}
	nm.Enqueue(event, ids)
}

// DefaultRunInterval replaces a non-positive interval passed to Run.
const DefaultRunInterval = 100 * time.Millisecond

// Run steps the simulation in a background goroutine every interval until
// Stop is called or the population stops being viable. It can be called
// again after stopping.
func (s *Simulation) Run(interval time.Duration) {
	if interval <= 0 {
		s.logger.Warnf("invalid run interval %v, using %v", interval, DefaultRunInterval)
		interval = DefaultRunInterval
	}
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.isRunning = true
	stopCh := s.stopCh
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if s.RunFor(1) == 0 {
					s.logger.Infof("simulation halted: simulation_id=%s step=%d", s.id, s.StepCount())
					s.markStopped(stopCh)
					return
				}
			case <-stopCh:
				return
			}
		}
	}()
}

func (s *Simulation) markStopped(stopCh chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == stopCh {
		s.isRunning = false
	}
}

// Stop stops a background run started with Run.
func (s *Simulation) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	close(s.stopCh)
	s.isRunning = false
}

// IsRunning reports whether a background run is active.
func (s *Simulation) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
