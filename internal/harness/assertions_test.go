package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interlock/internal/ir"
)

// event builds a trace event from "test-Type-n.port" references.
func event(cycle int64, fired ...string) TraceEvent {
	e := TraceEvent{Cycle: cycle, Fired: fired}
	for _, f := range fired {
		dot := strings.LastIndex(f, ".")
		ref := strings.TrimPrefix(f[:dot], HandlePrefix+"-")
		typ := ref[:strings.LastIndex(ref, "-")]
		e.Specs = append(e.Specs, typ+f[dot:])
	}
	return e
}

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		event(1, "test-Counter-1.tick"),
		event(2, "test-Counter-1.tick"),
		event(3, "test-Counter-1.tick", "test-Sampler-1.sample"),
	}
}

func TestEventHelper(t *testing.T) {
	e := event(3, "test-Counter-1.tick", "test-Sampler-1.sample")
	assert.Equal(t, []string{"Counter.tick", "Sampler.sample"}, e.Specs)
}

func TestAssertEveryCycleContains(t *testing.T) {
	assert.NoError(t, assertEveryCycleContains(sampleTrace(), Assertion{Type: AssertEveryCycleContains, Port: "Counter.tick"}))

	err := assertEveryCycleContains(sampleTrace(), Assertion{Type: AssertEveryCycleContains, Port: "Sampler.sample"})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "missing from cycle 1", aerr.Actual)
}

func TestAssertEveryCycleContains_EmptyTrace(t *testing.T) {
	err := assertEveryCycleContains(nil, Assertion{Type: AssertEveryCycleContains, Port: "Counter.tick"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cycles ran")
}

func TestAssertNeverAlone(t *testing.T) {
	assert.NoError(t, assertNeverAlone(sampleTrace(), Assertion{Type: AssertNeverAlone, Port: "Sampler.sample"}))

	err := assertNeverAlone(sampleTrace(), Assertion{Type: AssertNeverAlone, Port: "Counter.tick"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fired alone in cycle 1")
}

func TestAssertFiresTogether(t *testing.T) {
	trace := []TraceEvent{
		event(1, "test-A-1.a", "test-B-1.b"),
		event(2, "test-C-1.c"),
	}
	assert.NoError(t, assertFiresTogether(trace, Assertion{Type: AssertFiresTogether, Ports: []string{"A.a", "B.b"}}))

	err := assertFiresTogether(trace, Assertion{Type: AssertFiresTogether, Ports: []string{"A.a", "C.c"}})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "cycle 1 fired [A.a] without [C.c]", aerr.Actual)
}

func TestAssertFireCount(t *testing.T) {
	assert.NoError(t, assertFireCount(sampleTrace(), Assertion{Type: AssertFireCount, Port: "Sampler.sample", Count: 1}))
	assert.NoError(t, assertFireCount(sampleTrace(), Assertion{Type: AssertFireCount, Port: "Ghost.boo", Count: 0}))

	err := assertFireCount(sampleTrace(), Assertion{Type: AssertFireCount, Port: "Counter.tick", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fired in 3 cycles")
}

func TestAssertCycleCount(t *testing.T) {
	assert.NoError(t, assertCycleCount(sampleTrace(), Assertion{Type: AssertCycleCount, Count: 3}))
	assert.Error(t, assertCycleCount(sampleTrace(), Assertion{Type: AssertCycleCount, Count: 4}))
}

func TestAssertDeadlock(t *testing.T) {
	deadlocked := &Result{Deadlock: "NO_ENABLED_PORTS"}
	completed := &Result{}

	assert.NoError(t, assertDeadlock(deadlocked, Assertion{Type: AssertDeadlock}))
	assert.NoError(t, assertDeadlock(deadlocked, Assertion{Type: AssertDeadlock, Code: "NO_ENABLED_PORTS"}))

	err := assertDeadlock(deadlocked, Assertion{Type: AssertDeadlock, Code: "NO_MAXIMAL_INTERACTIONS"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock NO_ENABLED_PORTS")

	err = assertDeadlock(completed, Assertion{Type: AssertDeadlock})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run completed")
}

func TestAssertFinalState(t *testing.T) {
	result := NewResult()
	result.Components["test-Counter-1"] = FinalState{
		State:     "run",
		Variables: ir.Object{"count": ir.Int(4), "label": ir.String("c")},
	}

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{"state only", Assertion{Component: "test-Counter-1", State: "run"}, ""},
		{"variable subset", Assertion{Component: "test-Counter-1", Expect: map[string]any{"count": 4}}, ""},
		{"all variables", Assertion{Component: "test-Counter-1", Expect: map[string]any{"count": 4, "label": "c"}}, ""},
		{"wrong state", Assertion{Component: "test-Counter-1", State: "idle"}, "state run"},
		{"wrong value", Assertion{Component: "test-Counter-1", Expect: map[string]any{"count": 3}}, "test-Counter-1.count = 3"},
		{"unknown variable", Assertion{Component: "test-Counter-1", Expect: map[string]any{"other": 1}}, "test-Counter-1.other"},
		{"unknown component", Assertion{Component: "test-Ghost-1", State: "run"}, "no such component"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertFinalState
			err := assertFinalState(result, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertEveryCycleContains, Port: "Counter.tick"},
		{Type: AssertCycleCount, Count: 9},
		{Type: "eventually"},
	})
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertions[1]")
	assert.Contains(t, failures[1], `assertions[2]: unknown assertion type "eventually"`)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertCycleCount,
		Expected: "2 cycles",
		Actual:   "1 cycles",
		Trace:    []TraceEvent{event(1, "test-A-1.a", "test-B-1.b")},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: cycle_count")
	assert.Contains(t, msg, "Expected: 2 cycles")
	assert.Contains(t, msg, "Actual: 1 cycles")
	assert.Contains(t, msg, "[1] A.a B.b")
}
