package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/daniacca/ecogrid/internal/ecology"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	Addr               string
	DefaultSimID       string
	ConfigFile         string
	SnapshotDir        string
	SnapshotEverySteps int
	LogLevel           string
	AllowedOrigins     []string
}

// configResolver defines how to resolve a single configuration value
type configResolver struct {
	flagName    string
	envVarName  string
	defaultVal  string
	description string
	setter      func(*ServerConfig, string)
}

func serverResolvers() []configResolver {
	// To add a new option, add a resolver here
	return []configResolver{
		{
			flagName:    "addr",
			envVarName:  "ECOGRID_ADDR",
			defaultVal:  ":8080",
			description: "HTTP listen address (e.g. :8080, 0.0.0.0:8080)",
			setter:      func(c *ServerConfig, v string) { c.Addr = v },
		},
		{
			flagName:    "sim-id",
			envVarName:  "ECOGRID_SIM_ID",
			defaultVal:  "default",
			description: "ID of the simulation created at startup from -config-file",
			setter:      func(c *ServerConfig, v string) { c.DefaultSimID = v },
		},
		{
			flagName:    "config-file",
			envVarName:  "ECOGRID_CONFIG_FILE",
			defaultVal:  "",
			description: "optional YAML or JSON simulation config to load at startup",
			setter:      func(c *ServerConfig, v string) { c.ConfigFile = v },
		},
		{
			flagName:    "snapshot-dir",
			envVarName:  "ECOGRID_SNAPSHOT_DIR",
			defaultVal:  "./data",
			description: "Directory where simulation snapshots are stored",
			setter:      func(c *ServerConfig, v string) { c.SnapshotDir = v },
		},
		{
			flagName:    "snapshot-every-steps",
			envVarName:  "ECOGRID_SNAPSHOT_EVERY_STEPS",
			defaultVal:  "0",
			description: "How often to write snapshots (in steps); 0 disables periodic snapshots",
			setter: func(c *ServerConfig, v string) {
				val, err := strconv.Atoi(v)
				if err != nil || val < 0 {
					val = 0
				}
				c.SnapshotEverySteps = val
			},
		},
		{
			flagName:    "log-level",
			envVarName:  "ECOGRID_LOG_LEVEL",
			defaultVal:  "info",
			description: "Log level: debug, info, warn, error",
			setter:      func(c *ServerConfig, v string) { c.LogLevel = v },
		},
		{
			flagName:    "ws-origins",
			envVarName:  "ECOGRID_WS_ORIGINS",
			defaultVal:  "",
			description: "Comma-separated origins allowed to open /ws; empty means same host only, * allows any",
			setter: func(c *ServerConfig, v string) {
				c.AllowedOrigins = nil
				for _, o := range strings.Split(v, ",") {
					if o = strings.TrimSpace(o); o != "" {
						c.AllowedOrigins = append(c.AllowedOrigins, o)
					}
				}
			},
		},
	}
}

// loadServerConfig resolves every option from the command line, then the
// environment, then its default.
func loadServerConfig(args []string) (ServerConfig, error) {
	cfg := ServerConfig{}
	resolvers := serverResolvers()

	fs := flag.NewFlagSet("ecogrid-server", flag.ContinueOnError)
	flagVars := make(map[string]*string, len(resolvers))
	for _, resolver := range resolvers {
		flagVars[resolver.flagName] = fs.String(resolver.flagName, "", resolver.description)
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	for _, resolver := range resolvers {
		var value string
		if *flagVars[resolver.flagName] != "" {
			value = *flagVars[resolver.flagName]
		} else if envValue := os.Getenv(resolver.envVarName); envValue != "" {
			value = envValue
		} else {
			value = resolver.defaultVal
		}
		resolver.setter(&cfg, value)
	}

	return cfg, nil
}

// applyInitialConfig loads a simulation config file and installs it under id,
// replacing any simulation already registered there.
func (s *Server) applyInitialConfig(path string, id ecology.SimulationID) error {
	cfg, err := ecology.LoadConfigFile(path)
	if err != nil {
		return err
	}
	sim, err := s.manager.ReplaceSimulation(id, cfg)
	if err != nil {
		return err
	}
	s.configureSimulation(sim)
	s.logger.Infof("Simulation loaded from file: sim_id=%s path=%s size=%dx%d", id, path, sim.Width(), sim.Height())
	return nil
}
