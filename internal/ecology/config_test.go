package ecology

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// recordingLogger captures warnings for assertions.
type recordingLogger struct {
	NoOpLogger
	warnings []string
}

func (l *recordingLogger) Warnf(format string, v ...any) {
	l.warnings = append(l.warnings, format)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Width != 80 || cfg.Height != 80 {
		t.Errorf("Expected 80x80, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Creation.ApexPredator != 0.04 || cfg.Creation.MidPredator != 0.10 || cfg.Creation.Grazer != 0.20 {
		t.Errorf("Unexpected creation probabilities: %+v", cfg.Creation)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfig_NormalizeInvalidDimensions(t *testing.T) {
	logger := &recordingLogger{}
	cfg := DefaultConfig()
	cfg.Width = 0
	cfg.Height = -3
	cfg.Seed = 99

	got := cfg.Normalize(logger)

	if got.Width != DefaultWidth || got.Height != DefaultHeight {
		t.Errorf("Expected default dimensions, got %dx%d", got.Width, got.Height)
	}
	if len(logger.warnings) != 1 {
		t.Errorf("Expected 1 warning, got %d", len(logger.warnings))
	}
	if got.Seed != 99 {
		t.Errorf("Expected seed to be kept, got %d", got.Seed)
	}
}

func TestConfig_NormalizeFillsSeedAndViability(t *testing.T) {
	cfg := Config{Width: 10, Height: 10}
	got := cfg.Normalize(nil)
	if got.Seed == 0 {
		t.Error("Expected a seed to be chosen")
	}
	if got.Viability.Mode != ViabilityAllKinds || got.Viability.MinCount != 1 {
		t.Errorf("Expected default viability, got %+v", got.Viability)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"negative probability", func(c *Config) { c.Creation.Grazer = -0.1 }, "grazer"},
		{"probability above one", func(c *Config) { c.Creation.ApexPredator = 1.5 }, "apex_predator"},
		{"unknown mode", func(c *Config) { c.Viability.Mode = "sometimes" }, "viability mode"},
		{"negative min count", func(c *Config) { c.Viability.MinCount = -1 }, "min_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Expected error mentioning %q, got %v", tt.errSub, err)
			}
		})
	}
}

func TestLoadConfigFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	data := `
width: 40
height: 30
seed: 12345
creation:
  grazer: 0.3
  apex_predator: 0.01
viability:
  mode: predator-prey
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 30 || cfg.Seed != 12345 {
		t.Errorf("Unexpected dimensions/seed: %+v", cfg)
	}
	if cfg.Creation.Grazer != 0.3 || cfg.Creation.ApexPredator != 0.01 {
		t.Errorf("Unexpected creation probabilities: %+v", cfg.Creation)
	}
	if cfg.Creation.MidPredator != 0.10 {
		t.Errorf("Expected unset mid predator probability to keep default, got %v", cfg.Creation.MidPredator)
	}
	if cfg.Viability.Mode != ViabilityPredatorPrey || cfg.Viability.MinCount != 1 {
		t.Errorf("Unexpected viability: %+v", cfg.Viability)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.json")
	data := `{"width": 20, "height": 20, "seed": 7, "creation": {"grazer": 0.5, "mid_predator": 0.2, "apex_predator": 0.1}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if cfg.Width != 20 || cfg.Creation.MidPredator != 0.2 {
		t.Errorf("Unexpected config: %+v", cfg)
	}
}

func TestLoadConfigFile_Errors(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("creation:\n  grazer: 2\n"), 0o644)
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("Expected validation error for probability 2")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.yaml")
	os.WriteFile(garbage, []byte("width: [1, 2"), 0o644)
	if _, err := LoadConfigFile(garbage); err == nil {
		t.Error("Expected parse error")
	}
}

func TestValidateConfig_CollectsAllIssues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Creation.Grazer = 2
	cfg.Creation.MidPredator = -1
	cfg.Viability.MinCount = -5

	err := ValidateConfig(cfg)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}
	if len(verr.Issues) != 3 {
		t.Errorf("Expected 3 issues, got %v", verr.Issues)
	}
	if !strings.HasPrefix(err.Error(), "config validation errors: ") {
		t.Errorf("Unexpected message: %v", err)
	}
}

func TestNewSimulationID(t *testing.T) {
	a, b := NewSimulationID(), NewSimulationID()
	if len(a) != 16 {
		t.Errorf("Expected 16 hex characters, got %q", a)
	}
	if a == b {
		t.Error("Expected distinct IDs")
	}
}
