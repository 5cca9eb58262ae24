package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/daniacca/ecogrid/internal/ecology"
	"github.com/daniacca/ecogrid/internal/ecology/notifiers"
)

// extractSimID extracts the simulation ID from a path like "/sim/{simID}/..."
// Returns the simulation ID and the remaining path, or empty string if not found
func extractSimID(path string) (ecology.SimulationID, string) {
	rest, ok := strings.CutPrefix(path, "/sim/")
	if !ok {
		return "", ""
	}
	id, remaining, found := strings.Cut(rest, "/")
	if !found {
		return ecology.SimulationID(id), ""
	}
	return ecology.SimulationID(id), "/" + remaining
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "cannot encode: "+err.Error(), http.StatusInternalServerError)
	}
}

// statusFor maps ecology errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ecology.ErrCellOccupied):
		return http.StatusConflict
	case errors.Is(err, ecology.ErrOutOfBounds),
		errors.Is(err, ecology.ErrUnknownKind),
		errors.Is(err, ecology.ErrInvalidAgent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// positiveIntParam reads an optional positive integer query parameter.
func positiveIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + name + ": must be a positive integer")
	}
	return n, nil
}

type statusResponse struct {
	ID      ecology.SimulationID    `json:"id"`
	Step    int                     `json:"step"`
	Viable  bool                    `json:"viable"`
	Running bool                    `json:"running"`
	Width   int                     `json:"width"`
	Height  int                     `json:"height"`
	Counts  ecology.PopulationStats `json:"counts"`
}

func simulationStatus(sim *ecology.Simulation) statusResponse {
	return statusResponse{
		ID:      sim.ID(),
		Step:    sim.StepCount(),
		Viable:  sim.IsViable(),
		Running: sim.IsRunning(),
		Width:   sim.Width(),
		Height:  sim.Height(),
		Counts:  sim.Stats(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// lookupSimulation resolves the simulation named in the path, writing the
// error response itself when it cannot.
func (s *Server) lookupSimulation(w http.ResponseWriter, r *http.Request) (*ecology.Simulation, bool) {
	simID, _ := extractSimID(r.URL.Path)
	if simID == "" {
		http.Error(w, "simulation ID is required in path: /sim/{simID}/...", http.StatusBadRequest)
		return nil, false
	}
	sim, exists := s.manager.GetSimulation(simID)
	if !exists {
		http.Error(w, "simulation not found", http.StatusNotFound)
		return nil, false
	}
	return sim, true
}

// POST /sim/{simID}
// Body: optional Config JSON; missing fields keep their defaults.
// Creates the simulation, or replaces an existing one with a fresh field.
func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	simID, _ := extractSimID(r.URL.Path)
	if simID == "" {
		http.Error(w, "simulation ID is required in path: /sim/{simID}", http.StatusBadRequest)
		return
	}
	s.createSimulation(w, r, simID)
}

func (s *Server) createSimulation(w http.ResponseWriter, r *http.Request, simID ecology.SimulationID) {
	defer r.Body.Close()

	cfg := ecology.DefaultConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid config json: "+err.Error(), http.StatusBadRequest)
		return
	}

	_, existed := s.manager.GetSimulation(simID)
	sim, err := s.manager.ReplaceSimulation(simID, cfg)
	if err != nil {
		http.Error(w, "cannot create simulation: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.configureSimulation(sim)

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
		s.logger.Infof("Simulation replaced: sim_id=%s size=%dx%d", simID, sim.Width(), sim.Height())
	} else {
		s.logger.Infof("Simulation created: sim_id=%s size=%dx%d", simID, sim.Width(), sim.Height())
	}
	writeJSON(w, status, simulationStatus(sim))
}

// DELETE /sim/{simID}
func (s *Server) handleDeleteSimulation(w http.ResponseWriter, r *http.Request) {
	simID, _ := extractSimID(r.URL.Path)
	if err := s.manager.DeleteSimulation(simID); err != nil {
		s.logger.Warnf("Failed to delete simulation: sim_id=%s error=%v", simID, err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Infof("Simulation deleted: sim_id=%s", simID)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("simulation deleted"))
}

// POST /sim/{simID}/step?n=1
// Steps unconditionally, even when the population is no longer viable.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	n, err := positiveIntParam(r, "n", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for i := 0; i < n; i++ {
		sim.Step()
	}
	writeJSON(w, http.StatusOK, simulationStatus(sim))
}

type runResponse struct {
	statusResponse
	StepsTaken int `json:"steps_taken"`
}

// POST /sim/{simID}/run?steps=500
// Steps until the count is reached or the population stops being viable.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	steps, err := positiveIntParam(r, "steps", 500)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	taken := sim.RunFor(steps)
	s.logger.Debugf("Simulation run: sim_id=%s requested=%d taken=%d", sim.ID(), steps, taken)
	writeJSON(w, http.StatusOK, runResponse{statusResponse: simulationStatus(sim), StepsTaken: taken})
}

// POST /sim/{simID}/start?interval=100
// Start stepping in the background every interval milliseconds (default 100ms)
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	ms, err := positiveIntParam(r, "interval", 100)
	if err != nil {
		http.Error(w, "invalid interval: must be a positive integer (milliseconds)", http.StatusBadRequest)
		return
	}
	interval := time.Duration(ms) * time.Millisecond

	sim.Run(interval)
	s.logger.Infof("Simulation started: sim_id=%s interval=%v", sim.ID(), interval)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("simulation started"))
}

// POST /sim/{simID}/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	sim.Stop()
	s.logger.Infof("Simulation stopped: sim_id=%s step=%d", sim.ID(), sim.StepCount())

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("simulation stopped"))
}

// GET /sim/{simID}/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, simulationStatus(sim))
}

type gridResponse struct {
	Step   int    `json:"step"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Cells  string `json:"cells"`
}

// GET /sim/{simID}/grid[?format=text]
// Returns the field as one symbol per cell, row-major. The text format
// prints one row per line.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	cells := sim.CellKinds()
	width := sim.Width()

	if r.URL.Query().Get("format") == "text" {
		var b strings.Builder
		for i := 0; i < len(cells); i += width {
			b.WriteString(cells[i : i+width])
			b.WriteByte('\n')
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(b.String()))
		return
	}

	writeJSON(w, http.StatusOK, gridResponse{
		Step:   sim.StepCount(),
		Width:  width,
		Height: sim.Height(),
		Cells:  cells,
	})
}

// GET /sim/{simID}/agents
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": sim.Agents()})
}

// POST /sim/{simID}/agents
// Body: { "kind": "grazer", "row": 3, "col": 4 }
type spawnAgentRequest struct {
	Kind string `json:"kind"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

func (s *Server) handleSpawnAgent(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}

	var req spawnAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := ecology.ParseKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := sim.Spawn(kind, ecology.NewLocation(req.Row, req.Col))
	if err != nil {
		http.Error(w, "cannot spawn agent: "+err.Error(), statusFor(err))
		return
	}
	agent, _ := sim.Agent(id)
	s.logger.Debugf("Agent spawned: sim_id=%s kind=%s location=%s", sim.ID(), kind, agent.Location)

	writeJSON(w, http.StatusCreated, agent)
}

// DELETE /sim/{simID}/cell?row=&col=[&radius=]
// Removes the agent on one cell, or every agent within radius of it.
func (s *Server) handleRemoveCell(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	row, errRow := strconv.Atoi(q.Get("row"))
	col, errCol := strconv.Atoi(q.Get("col"))
	if errRow != nil || errCol != nil {
		http.Error(w, "row and col are required integers", http.StatusBadRequest)
		return
	}
	radius := 0
	if raw := q.Get("radius"); raw != "" {
		var err error
		if radius, err = strconv.Atoi(raw); err != nil || radius < 0 {
			http.Error(w, "invalid radius: must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	center := ecology.NewLocation(row, col)
	removed := 0
	if radius == 0 {
		hit, err := sim.RemoveAt(center)
		if err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		if hit {
			removed = 1
		}
	} else {
		removed = sim.ClearArea(center, radius)
	}
	s.logger.Debugf("Cells cleared: sim_id=%s center=%s radius=%d removed=%d", sim.ID(), center, radius, removed)

	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// POST /sim/{simID}/snapshot
// Triggers a synchronous snapshot save
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	sim.SetSnapshotDir(s.snapshotDir)

	if err := sim.SaveSnapshot(); err != nil {
		s.logger.Errorf("Failed to save snapshot: sim_id=%s error=%v", sim.ID(), err)
		http.Error(w, "failed to save snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}

	path := sim.SnapshotPath()
	s.logger.Debugf("Snapshot saved: sim_id=%s path=%s", sim.ID(), path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "path": path})
}

// GET /sim/{simID}/snapshot
// Returns the raw snapshot JSON if it exists
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	sim.SetSnapshotDir(s.snapshotDir)

	data, err := os.ReadFile(sim.SnapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "snapshot not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// POST /sim/{simID}/restore
// Loads the stored snapshot back into the simulation. An invalid snapshot
// leaves the simulation untouched.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.lookupSimulation(w, r)
	if !ok {
		return
	}
	if s.snapshotDir == "" {
		http.Error(w, "snapshot directory not configured", http.StatusInternalServerError)
		return
	}
	sim.SetSnapshotDir(s.snapshotDir)

	if err := sim.RestoreSnapshot(); err != nil {
		s.logger.Errorf("Failed to restore snapshot: sim_id=%s error=%v", sim.ID(), err)
		status := http.StatusUnprocessableEntity
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		http.Error(w, "failed to restore snapshot: "+err.Error(), status)
		return
	}
	s.logger.Infof("Snapshot restored: sim_id=%s step=%d", sim.ID(), sim.StepCount())
	writeJSON(w, http.StatusOK, simulationStatus(sim))
}

// GET /sims lists all simulation IDs.
// POST /sims creates a simulation under a random ID; the body is as for POST /sim/{simID}.
func (s *Server) handleSimulations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		simIDs := s.manager.ListSimulations()
		ids := make([]string, len(simIDs))
		for i, id := range simIDs {
			ids[i] = string(id)
		}
		writeJSON(w, http.StatusOK, map[string][]string{"simulations": ids})
	case http.MethodPost:
		s.createSimulation(w, r, ecology.NewSimulationID())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /schema/config
// Returns the JSON Schema of the simulation config accepted by POST /sim/{simID}
func (s *Server) handleConfigSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := ecology.ConfigSchemaJSON()
	if err != nil {
		http.Error(w, "cannot build schema: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(data)
}

// handleSimulationRoutes routes requests to simulation-specific handlers
// Handles paths like /sim/{simID}/step, /sim/{simID}/grid, etc.
func (s *Server) handleSimulationRoutes(w http.ResponseWriter, r *http.Request) {
	simID, remainingPath := extractSimID(r.URL.Path)
	if simID == "" {
		http.Error(w, "simulation ID is required in path: /sim/{simID}/...", http.StatusBadRequest)
		return
	}

	switch {
	case remainingPath == "" && r.Method == http.MethodPost:
		s.handleCreateSimulation(w, r)
	case remainingPath == "" && r.Method == http.MethodDelete:
		s.handleDeleteSimulation(w, r)
	case remainingPath == "/step" && r.Method == http.MethodPost:
		s.handleStep(w, r)
	case remainingPath == "/run" && r.Method == http.MethodPost:
		s.handleRun(w, r)
	case remainingPath == "/start" && r.Method == http.MethodPost:
		s.handleStart(w, r)
	case remainingPath == "/stop" && r.Method == http.MethodPost:
		s.handleStop(w, r)
	case remainingPath == "/stats" && r.Method == http.MethodGet:
		s.handleStats(w, r)
	case remainingPath == "/grid" && r.Method == http.MethodGet:
		s.handleGrid(w, r)
	case remainingPath == "/agents" && r.Method == http.MethodGet:
		s.handleListAgents(w, r)
	case remainingPath == "/agents" && r.Method == http.MethodPost:
		s.handleSpawnAgent(w, r)
	case remainingPath == "/cell" && r.Method == http.MethodDelete:
		s.handleRemoveCell(w, r)
	case remainingPath == "/snapshot" && r.Method == http.MethodPost:
		s.handleSaveSnapshot(w, r)
	case remainingPath == "/snapshot" && r.Method == http.MethodGet:
		s.handleGetSnapshot(w, r)
	case remainingPath == "/restore" && r.Method == http.MethodPost:
		s.handleRestoreSnapshot(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// handleNotifiersRoutes handles notifier management endpoints
func (s *Server) handleNotifiersRoutes(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/notifiers" && r.Method == http.MethodGet:
		s.handleListNotifiers(w, r)
	case r.URL.Path == "/notifiers" && r.Method == http.MethodPost:
		s.handleRegisterNotifier(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifiers/") && r.Method == http.MethodDelete:
		s.handleUnregisterNotifier(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GET /notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	notifierIDs := s.globalNotifierMgr.ListNotifiers()
	list := make([]map[string]string, 0, len(notifierIDs))
	for _, id := range notifierIDs {
		if notifier, exists := s.globalNotifierMgr.GetNotifier(id); exists {
			list = append(list, map[string]string{"id": id, "type": notifier.Type()})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifiers": list})
}

// POST /notifiers
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://...", "halted_only": true } }
type registerNotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req registerNotifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier ecology.Notifier
	switch req.Type {
	case "webhook":
		url, ok := req.Config["url"].(string)
		if !ok || url == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		wh := notifiers.NewWebhookNotifier(req.ID, url)
		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if vStr, ok := v.(string); ok {
					wh.SetHeader(k, vStr)
				}
			}
		}
		if haltedOnly, ok := req.Config["halted_only"].(bool); ok {
			wh.SetHaltedOnly(haltedOnly)
		}
		notifier = wh
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.globalNotifierMgr.RegisterNotifier(notifier); err != nil {
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	notifierID := strings.TrimPrefix(r.URL.Path, "/notifiers/")
	if notifierID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}
	if notifierID == rendererNotifierID {
		http.Error(w, "the renderer notifier cannot be removed", http.StatusBadRequest)
		return
	}

	if err := s.globalNotifierMgr.UnregisterNotifier(notifierID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier unregistered"))
}
