package main

import (
	"net/http"

	"github.com/daniacca/ecogrid/internal/ecology"
	"github.com/daniacca/ecogrid/internal/ecology/notifiers"
)

// rendererNotifierID is the WebSocket notifier every simulation streams to.
const rendererNotifierID = "renderer"

// Server represents the HTTP server for ecogrid
type Server struct {
	manager            *ecology.SimulationManager
	globalNotifierMgr  *ecology.NotificationManager
	renderer           *notifiers.WebSocketNotifier
	snapshotDir        string
	snapshotEverySteps int
	logger             *Logger
}

// NewServer creates a new server instance with the renderer WebSocket
// notifier already registered.
func NewServer(logger *Logger) *Server {
	ecologyLogger := &ecologyLoggerAdapter{logger: logger}
	globalMgr := ecology.NewNotificationManagerWithLogger(ecologyLogger)
	renderer := notifiers.NewWebSocketNotifier(rendererNotifierID)
	if err := globalMgr.RegisterNotifier(renderer); err != nil {
		logger.Errorf("Failed to register renderer notifier: %v", err)
	}
	return &Server{
		manager:           ecology.NewSimulationManagerWithLogger(ecologyLogger),
		globalNotifierMgr: globalMgr,
		renderer:          renderer,
		logger:            logger,
	}
}

// SetSnapshotDir sets the snapshot directory for all simulations
func (s *Server) SetSnapshotDir(dir string) {
	s.snapshotDir = dir
}

// SetSnapshotEverySteps sets the snapshot frequency for all simulations
func (s *Server) SetSnapshotEverySteps(steps int) {
	s.snapshotEverySteps = steps
}

// SetAllowedOrigins sets the browser origins accepted on /ws
func (s *Server) SetAllowedOrigins(origins []string) {
	s.renderer.SetAllowedOrigins(origins)
}

// configureSimulation wires a new simulation to the shared notifiers and
// the snapshot settings.
func (s *Server) configureSimulation(sim *ecology.Simulation) {
	sim.SetNotificationManager(s.globalNotifierMgr)
	if s.snapshotDir != "" {
		sim.SetSnapshotDir(s.snapshotDir)
	}
	if s.snapshotEverySteps >= 0 {
		sim.SetSnapshotEveryNSteps(s.snapshotEverySteps)
	}
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/sims", s.handleSimulations)
	mux.HandleFunc("/sim/", s.handleSimulationRoutes)
	mux.HandleFunc("/schema/config", s.handleConfigSchema)
	mux.HandleFunc("/notifiers", s.handleNotifiersRoutes)
	mux.HandleFunc("/notifiers/", s.handleNotifiersRoutes)
	// read-only renderer feed; browser origins are checked by the notifier
	mux.Handle("/ws", s.renderer)
	return mux
}

// Close stops every simulation and shuts the notifiers down
func (s *Server) Close() error {
	s.manager.StopAll()
	return s.globalNotifierMgr.Close()
}
