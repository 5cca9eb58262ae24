package ecology

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrPersistence matches every *PersistenceError via errors.Is.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError reports a failed snapshot read, write or decode.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Snapshot is a point-in-time capture of a simulation: every live agent, the
// occupancy of the current grid and the step counter. It shares no memory
// with the simulation it was taken from.
type Snapshot struct {
	SimulationID SimulationID `json:"simulation_id"`
	Step         int          `json:"step"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	Agents       []Agent      `json:"agents"`
	// Cells is the current grid in row-major order; 0 marks an empty cell.
	Cells []AgentID `json:"cells"`
}

// Save captures the current state.
func (s *Simulation) Save() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Simulation) saveLocked() Snapshot {
	cells := make([]AgentID, len(s.current.cells))
	copy(cells, s.current.cells)
	return Snapshot{
		SimulationID: s.id,
		Step:         s.step,
		Width:        s.cfg.Width,
		Height:       s.cfg.Height,
		Agents:       s.agentsLocked(),
		Cells:        cells,
	}
}

// Load replaces the live agents, the current grid and the step counter with
// the snapshot's, and clears the updated grid. The snapshot is validated
// first; on error the simulation is left untouched.
func (s *Simulation) Load(snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateSnapshot(snapshot, s.cfg.Width, s.cfg.Height); err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}

	agents := make(map[AgentID]*Agent, len(snapshot.Agents))
	order := make([]AgentID, 0, len(snapshot.Agents))
	var maxID AgentID
	for _, a := range snapshot.Agents {
		stored := a
		agents[a.ID] = &stored
		order = append(order, a.ID)
		maxID = max(maxID, a.ID)
	}

	s.agents = agents
	s.order = order
	s.nextID = maxID
	copy(s.current.cells, snapshot.Cells)
	s.next.Clear()
	s.step = snapshot.Step
	s.recomputeLocked()

	s.logger.Infof("snapshot loaded: simulation_id=%s step=%d population=%s", s.id, s.step, s.stats)
	return nil
}

// ValidateSnapshot checks that a snapshot fits a width x height grid and is
// internally consistent: unique non-zero IDs, known kinds, live agents within
// their age and hunger limits, and grid cells that agree with agent
// locations in both directions.
func ValidateSnapshot(snapshot Snapshot, width, height int) error {
	if snapshot.Width != width || snapshot.Height != height {
		return fmt.Errorf("snapshot is %dx%d, simulation is %dx%d", snapshot.Width, snapshot.Height, width, height)
	}
	if len(snapshot.Cells) != width*height {
		return fmt.Errorf("snapshot has %d cells, want %d", len(snapshot.Cells), width*height)
	}
	if snapshot.Step < 0 {
		return fmt.Errorf("negative step counter %d", snapshot.Step)
	}

	seen := make(map[AgentID]struct{}, len(snapshot.Agents))
	for i, a := range snapshot.Agents {
		if a.ID == NoAgent {
			return fmt.Errorf("agent at index %d has empty ID", i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("duplicate agent ID: %d", a.ID)
		}
		seen[a.ID] = struct{}{}

		if !a.Kind.Valid() {
			return fmt.Errorf("agent %d has invalid kind %q", a.ID, a.Kind)
		}
		p := a.Kind.Params()
		if !a.Alive {
			return fmt.Errorf("agent %d is not alive", a.ID)
		}
		if a.Age < 0 || a.Age > p.MaxAge {
			return fmt.Errorf("agent %d has age %d outside [0,%d]", a.ID, a.Age, p.MaxAge)
		}
		if p.FoodValue > 0 && a.Hunger <= 0 {
			return fmt.Errorf("predator %d has non-positive hunger %d", a.ID, a.Hunger)
		}
		if p.FoodValue == 0 && a.Hunger != 0 {
			return fmt.Errorf("%s %d has hunger %d but does not hunt", a.Kind, a.ID, a.Hunger)
		}
		loc := a.Location
		if loc.Row < 0 || loc.Row >= height || loc.Col < 0 || loc.Col >= width {
			return fmt.Errorf("agent %d at %s: %w", a.ID, loc, ErrOutOfBounds)
		}
		if got := snapshot.Cells[loc.Row*width+loc.Col]; got != a.ID {
			return fmt.Errorf("agent %d at %s but cell holds %d", a.ID, loc, got)
		}
	}

	for i, id := range snapshot.Cells {
		if id == NoAgent {
			continue
		}
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("cell (%d,%d) references unknown agent %d", i/width, i%width, id)
		}
	}
	return nil
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(snapshot Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, &PersistenceError{Op: "encode", Err: err}
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, &PersistenceError{Op: "decode", Err: err}
	}
	return snapshot, nil
}

// WriteSnapshotFile writes the snapshot as JSON. The file is written to a
// temporary name in the same directory and renamed into place.
func WriteSnapshotFile(path string, snapshot Snapshot) error {
	data, err := EncodeSnapshotJSON(snapshot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// ReadSnapshotFile reads and decodes a JSON snapshot.
func ReadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, &PersistenceError{Op: "read", Path: path, Err: err}
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, &PersistenceError{Op: "decode", Path: path, Err: err}
	}
	return snapshot, nil
}

// SetSnapshotDir sets the directory SaveSnapshot and RestoreSnapshot use.
func (s *Simulation) SetSnapshotDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotDir = dir
}

// SetSnapshotEveryNSteps makes Step write a snapshot every n steps; 0
// disables periodic snapshots.
func (s *Simulation) SetSnapshotEveryNSteps(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotEveryNStep = n
}

// SnapshotPath returns the file the simulation snapshots to, or "" when no
// directory is configured.
func (s *Simulation) SnapshotPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotPathLocked()
}

func (s *Simulation) snapshotPathLocked() string {
	if s.snapshotDir == "" {
		return ""
	}
	name := string(s.id)
	if name == "" {
		name = "simulation"
	}
	return filepath.Join(s.snapshotDir, name+".json")
}

// SaveSnapshot writes the current state to SnapshotPath.
func (s *Simulation) SaveSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSnapshotLocked()
}

func (s *Simulation) saveSnapshotLocked() error {
	path := s.snapshotPathLocked()
	if path == "" {
		return &PersistenceError{Op: "write", Err: errors.New("snapshot directory not configured")}
	}
	if err := WriteSnapshotFile(path, s.saveLocked()); err != nil {
		return err
	}
	s.logger.Debugf("snapshot saved: simulation_id=%s step=%d path=%s", s.id, s.step, path)
	return nil
}

// RestoreSnapshot loads the state last written to SnapshotPath.
func (s *Simulation) RestoreSnapshot() error {
	path := s.SnapshotPath()
	if path == "" {
		return &PersistenceError{Op: "read", Err: errors.New("snapshot directory not configured")}
	}
	snapshot, err := ReadSnapshotFile(path)
	if err != nil {
		return err
	}
	return s.Load(snapshot)
}
