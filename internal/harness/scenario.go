package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/interlock/internal/ir"
)

// Scenario defines a conformance test scenario: a system, how long to run
// it, and what its trace must look like.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is the CUE package directory holding the system.
	// Resolved relative to the scenario file by LoadScenario.
	Specs string `yaml:"specs"`

	// Seed drives the choice among maximal interactions.
	Seed uint64 `yaml:"seed,omitempty"`

	// Cycles is how many cycles to run.
	Cycles int64 `yaml:"cycles"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Port is a "Type.port" spec (every_cycle_contains, never_alone, fire_count).
	Port string `yaml:"port,omitempty"`

	// Ports are "Type.port" specs (fires_together).
	Ports []string `yaml:"ports,omitempty"`

	// Code is the expected runtime error code (deadlock). Empty matches any deadlock.
	Code string `yaml:"code,omitempty"`

	// Count is the expected number of cycles (cycle_count, fire_count).
	Count int `yaml:"count,omitempty"`

	// Component is a component id (final_state).
	Component string `yaml:"component,omitempty"`

	// State is the expected control state (final_state).
	State string `yaml:"state,omitempty"`

	// Expect holds expected variable values (final_state).
	// Subset match: only the listed variables are checked.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEveryCycleContains = "every_cycle_contains"
	AssertNeverAlone         = "never_alone"
	AssertFiresTogether      = "fires_together"
	AssertFireCount          = "fire_count"
	AssertCycleCount         = "cycle_count"
	AssertDeadlock           = "deadlock"
	AssertFinalState         = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// KnownFields catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) {
		scenario.Specs = filepath.Join(filepath.Dir(path), scenario.Specs)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Specs == "" {
		return fmt.Errorf("specs directory is required")
	}
	if s.Cycles <= 0 {
		return fmt.Errorf("cycles must be positive")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	info, err := os.Stat(s.Specs)
	if err != nil {
		return fmt.Errorf("specs directory not found: %s", s.Specs)
	}
	if !info.IsDir() {
		return fmt.Errorf("specs must be a directory: %s", s.Specs)
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEveryCycleContains, AssertNeverAlone:
		return checkSpec(index, a.Type, a.Port)
	case AssertFireCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		return checkSpec(index, a.Type, a.Port)
	case AssertFiresTogether:
		if len(a.Ports) < 2 {
			return fmt.Errorf("assertions[%d]: at least two ports are required for %s", index, a.Type)
		}
		for _, p := range a.Ports {
			if err := checkSpec(index, a.Type, p); err != nil {
				return err
			}
		}
	case AssertCycleCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertDeadlock:
	case AssertFinalState:
		if a.Component == "" {
			return fmt.Errorf("assertions[%d]: component is required for %s", index, a.Type)
		}
		if a.State == "" && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: state or expect is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func checkSpec(index int, typ, spec string) error {
	if spec == "" {
		return fmt.Errorf("assertions[%d]: port is required for %s", index, typ)
	}
	if _, err := ir.ParsePortSpec(spec); err != nil {
		return fmt.Errorf("assertions[%d]: %w", index, err)
	}
	return nil
}
