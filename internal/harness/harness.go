package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/interlock/internal/compiler"
	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
	"github.com/roach88/interlock/internal/runner"
	"github.com/roach88/interlock/internal/testutil"
)

// HandlePrefix prefixes every component handle in a harness run.
const HandlePrefix = "test"

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Load and compile the CUE system in scenario.Specs
//  2. Validate it, failing on any validation error
//  3. Run it with the scenario seed and fixed handles
//  4. Evaluate assertions against the trace and final state
//
// A deadlock ends the run but is not an error: it is recorded in
// Result.Deadlock so scenarios can assert on it.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	sys, err := compiler.Load(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	if verrs := compiler.Validate(sys); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i := range verrs {
			errs[i] = verrs[i]
		}
		return nil, fmt.Errorf("invalid specs: %w", errors.Join(errs...))
	}

	out, runErr := runner.Run(ctx, sys, runner.Options{
		Seed:    scenario.Seed,
		Cycles:  scenario.Cycles,
		Handles: testutil.NewFixedHandleGenerator(HandlePrefix),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	})

	result := NewResult()
	if runErr != nil {
		var rerr *engine.RuntimeError
		if out == nil || !engine.IsDeadlock(runErr) || !errors.As(runErr, &rerr) {
			return nil, fmt.Errorf("run failed: %w", runErr)
		}
		result.Deadlock = string(rerr.Code)
	}

	for _, in := range out.Interactions {
		result.Trace = append(result.Trace, traceEvent(in))
	}
	for _, a := range out.Components {
		final := FinalState{State: a.State()}
		if c, ok := sys.Component(a.Type()); ok && len(c.Variables) > 0 {
			final.Variables = make(ir.Object, len(c.Variables))
			for name := range c.Variables {
				if v, ok := a.Variable(name); ok {
					final.Variables[name] = v
				}
			}
		}
		result.Components[string(a.ID())] = final
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func traceEvent(in *ir.Interaction) TraceEvent {
	fired := make([]string, 0, len(in.Firings))
	for _, f := range in.Firings {
		fired = append(fired, ir.PortRef{Component: f.Component, Port: f.Port}.String())
	}
	slices.Sort(fired)
	return TraceEvent{
		Cycle:      in.Cycle,
		Fired:      fired,
		Specs:      in.Specs(),
		Candidates: in.Candidates,
	}
}
