package ecology

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth  = 80
	DefaultHeight = 80
)

// CreationProbabilities are the per-cell chances of seeding each kind.
// Cells are tried in the order apex, mid, grazer.
type CreationProbabilities struct {
	Grazer       float64 `json:"grazer" yaml:"grazer" jsonschema:"minimum=0,maximum=1,default=0.2"`
	MidPredator  float64 `json:"mid_predator" yaml:"mid_predator" jsonschema:"minimum=0,maximum=1,default=0.1"`
	ApexPredator float64 `json:"apex_predator" yaml:"apex_predator" jsonschema:"minimum=0,maximum=1,default=0.04"`
}

// Config describes a simulation.
type Config struct {
	Width  int `json:"width" yaml:"width" jsonschema:"default=80"`
	Height int `json:"height" yaml:"height" jsonschema:"default=80"`
	// Seed drives every random draw. Zero picks a seed from the clock.
	Seed      int64                 `json:"seed,omitempty" yaml:"seed,omitempty"`
	Creation  CreationProbabilities `json:"creation" yaml:"creation"`
	Viability Viability             `json:"viability" yaml:"viability"`
}

// DefaultConfig returns an 80x80 field with the classic seeding densities.
func DefaultConfig() Config {
	return Config{
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Creation: CreationProbabilities{
			Grazer:       0.20,
			MidPredator:  0.10,
			ApexPredator: 0.04,
		},
		Viability: DefaultViability(),
	}
}

// Normalize substitutes defaults for values that cannot be used as-is.
// Non-positive dimensions fall back to 80x80 with a warning; a zero seed is
// replaced by a clock-derived one so the run can be reproduced from logs.
func (c Config) Normalize(logger Logger) Config {
	logger = orNoOp(logger)
	if c.Width <= 0 || c.Height <= 0 {
		logger.Warnf("invalid grid dimensions %dx%d, using defaults %dx%d", c.Width, c.Height, DefaultWidth, DefaultHeight)
		c.Width = DefaultWidth
		c.Height = DefaultHeight
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
		logger.Debugf("no seed configured, using %d", c.Seed)
	}
	if c.Viability.Mode == "" {
		c.Viability.Mode = ViabilityAllKinds
	}
	if c.Viability.MinCount == 0 {
		c.Viability.MinCount = 1
	}
	return c
}

// LoadConfigFile reads a YAML (or JSON) config file. Fields missing from the
// file keep their DefaultConfig values.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (p CreationProbabilities) of(k Kind) float64 {
	switch k {
	case Grazer:
		return p.Grazer
	case MidPredator:
		return p.MidPredator
	case ApexPredator:
		return p.ApexPredator
	}
	return 0
}
