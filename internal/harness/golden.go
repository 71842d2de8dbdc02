package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/interlock/internal/ir"
)

// TraceSnapshot is the part of a run compared against golden files: which
// ports fired in which cycle, and how the run ended. Interaction ids and
// candidate counts are left out.
type TraceSnapshot struct {
	ScenarioName string
	Deadlock     string
	Trace        []TraceEvent
}

// toCanonical converts the snapshot to an ir.Object for canonical JSON.
func (s *TraceSnapshot) toCanonical() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, event := range s.Trace {
		fired := make(ir.Array, len(event.Fired))
		for j, f := range event.Fired {
			fired[j] = ir.String(f)
		}
		trace[i] = ir.Object{
			"cycle": ir.Int(event.Cycle),
			"fired": fired,
		}
	}

	obj := ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         trace,
	}
	if s.Deadlock != "" {
		obj["deadlock"] = ir.String(s.Deadlock)
	}
	return obj
}

func marshalSnapshot(s *TraceSnapshot) ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonical())
}

// SnapshotJSON returns the canonical JSON compared against golden files.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	return marshalSnapshot(&TraceSnapshot{
		ScenarioName: scenarioName,
		Deadlock:     result.Deadlock,
		Trace:        result.Trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
