package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/interlock/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Cycle, strings.Join(event.Specs, " "))
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// the failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEveryCycleContains:
		return assertEveryCycleContains(result.Trace, a)
	case AssertNeverAlone:
		return assertNeverAlone(result.Trace, a)
	case AssertFiresTogether:
		return assertFiresTogether(result.Trace, a)
	case AssertFireCount:
		return assertFireCount(result.Trace, a)
	case AssertCycleCount:
		return assertCycleCount(result.Trace, a)
	case AssertDeadlock:
		return assertDeadlock(result, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEveryCycleContains checks the port fires in every cycle.
// An empty trace fails: there is nothing the port could have fired in.
func assertEveryCycleContains(trace []TraceEvent, a Assertion) error {
	if len(trace) == 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s in every cycle", a.Port),
			Actual:   "no cycles ran",
		}
	}
	for _, event := range trace {
		if !slices.Contains(event.Specs, a.Port) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s in every cycle", a.Port),
				Actual:   fmt.Sprintf("missing from cycle %d", event.Cycle),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertNeverAlone checks that each cycle firing the port also fires
// some other port.
func assertNeverAlone(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if slices.Contains(event.Specs, a.Port) && len(event.Fired) == 1 {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s always fires with another port", a.Port),
				Actual:   fmt.Sprintf("fired alone in cycle %d", event.Cycle),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertFiresTogether checks that in each cycle the ports fire all
// together or not at all.
func assertFiresTogether(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		var present, missing []string
		for _, p := range a.Ports {
			if slices.Contains(event.Specs, p) {
				present = append(present, p)
			} else {
				missing = append(missing, p)
			}
		}
		if len(present) > 0 && len(missing) > 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%v fire together", a.Ports),
				Actual:   fmt.Sprintf("cycle %d fired %v without %v", event.Cycle, present, missing),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertFireCount checks the number of cycles in which the port fires.
func assertFireCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if slices.Contains(event.Specs, a.Port) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s fired in %d cycles", a.Port, a.Count),
			Actual:   fmt.Sprintf("fired in %d cycles", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertCycleCount(trace []TraceEvent, a Assertion) error {
	if len(trace) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d cycles", a.Count),
			Actual:   fmt.Sprintf("%d cycles", len(trace)),
			Trace:    trace,
		}
	}
	return nil
}

func assertDeadlock(result *Result, a Assertion) error {
	expected := "deadlock"
	if a.Code != "" {
		expected = "deadlock " + a.Code
	}
	switch {
	case result.Deadlock == "":
		return &AssertionError{Type: a.Type, Expected: expected, Actual: "run completed", Trace: result.Trace}
	case a.Code != "" && a.Code != result.Deadlock:
		return &AssertionError{Type: a.Type, Expected: expected, Actual: "deadlock " + result.Deadlock, Trace: result.Trace}
	}
	return nil
}

// assertFinalState checks the component's control state and a subset of
// its variables.
func assertFinalState(result *Result, a Assertion) error {
	final, ok := result.Components[a.Component]
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("component %s", a.Component),
			Actual:   "no such component",
		}
	}
	if a.State != "" && final.State != a.State {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s in state %s", a.Component, a.State),
			Actual:   fmt.Sprintf("state %s", final.State),
		}
	}

	expect, err := ir.FromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	for name, want := range expect.(ir.Object) {
		got, ok := final.Variables[name]
		if !ok || !reflect.DeepEqual(got, want) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s.%s = %v", a.Component, name, want),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}
