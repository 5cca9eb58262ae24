package ecology

import (
	"fmt"
	"strings"
)

// ValidationError collects every problem found in a config.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid config: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "config validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(format string, v ...any) {
	e.Issues = append(e.Issues, fmt.Sprintf(format, v...))
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// ValidateConfig checks the fields Normalize cannot repair and returns a
// *ValidationError listing all of them.
func ValidateConfig(c Config) error {
	err := &ValidationError{}

	for _, k := range Kinds {
		if p := c.Creation.of(k); p < 0 || p > 1 {
			err.Add("creation probability for %s must be in [0,1], got %v", k, p)
		}
	}

	switch c.Viability.Mode {
	case "", ViabilityAllKinds, ViabilityPredatorPrey:
	default:
		err.Add("unknown viability mode %q", c.Viability.Mode)
	}
	if c.Viability.MinCount < 0 {
		err.Add("viability min_count must not be negative, got %d", c.Viability.MinCount)
	}

	if err.HasIssues() {
		return err
	}
	return nil
}
