package ecology

import (
	"fmt"
	"sort"
	"sync"
)

// SimulationManager manages multiple named simulations, each isolated from
// the others.
type SimulationManager struct {
	mu          sync.RWMutex
	simulations map[SimulationID]*Simulation
	logger      Logger
}

// NewSimulationManager creates a new simulation manager
func NewSimulationManager() *SimulationManager {
	return NewSimulationManagerWithLogger(nil)
}

// NewSimulationManagerWithLogger creates a manager whose simulations log to logger
func NewSimulationManagerWithLogger(logger Logger) *SimulationManager {
	return &SimulationManager{
		simulations: make(map[SimulationID]*Simulation),
		logger:      orNoOp(logger),
	}
}

// CreateSimulation builds and registers a simulation.
// Returns an error if the ID is taken or the config is invalid.
func (sm *SimulationManager) CreateSimulation(id SimulationID, cfg Config) (*Simulation, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.simulations[id]; exists {
		return nil, fmt.Errorf("simulation with id %s already exists", id)
	}

	sim, err := NewSimulation(cfg, WithID(id), WithLogger(sm.logger))
	if err != nil {
		return nil, fmt.Errorf("creating simulation %s: %w", id, err)
	}
	sm.simulations[id] = sim
	return sim, nil
}

// ReplaceSimulation builds a simulation from cfg and installs it under id,
// stopping whatever ran there before.
func (sm *SimulationManager) ReplaceSimulation(id SimulationID, cfg Config) (*Simulation, error) {
	sim, err := NewSimulation(cfg, WithID(id), WithLogger(sm.logger))
	if err != nil {
		return nil, fmt.Errorf("creating simulation %s: %w", id, err)
	}

	sm.mu.Lock()
	old := sm.simulations[id]
	sm.simulations[id] = sim
	sm.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	return sim, nil
}

// GetSimulation retrieves a simulation by ID
func (sm *SimulationManager) GetSimulation(id SimulationID) (*Simulation, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sim, exists := sm.simulations[id]
	return sim, exists
}

// DeleteSimulation stops and removes a simulation
// Returns an error if the simulation doesn't exist
func (sm *SimulationManager) DeleteSimulation(id SimulationID) error {
	sm.mu.Lock()
	sim, exists := sm.simulations[id]
	delete(sm.simulations, id)
	sm.mu.Unlock()

	if !exists {
		return fmt.Errorf("simulation with id %s does not exist", id)
	}
	sim.Stop()
	return nil
}

// ListSimulations returns the IDs of all simulations, sorted
func (sm *SimulationManager) ListSimulations() []SimulationID {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ids := make([]SimulationID, 0, len(sm.simulations))
	for id := range sm.simulations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StopAll stops every background run.
func (sm *SimulationManager) StopAll() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, sim := range sm.simulations {
		sim.Stop()
	}
}
