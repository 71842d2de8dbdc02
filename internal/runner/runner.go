// Package runner starts a compiled system: one automaton per declared
// instance, attached to a fresh coordinator with the data and resource
// stages, run for a fixed number of cycles.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/interlock/internal/automaton"
	"github.com/roach88/interlock/internal/compiler"
	"github.com/roach88/interlock/internal/coordinator"
	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

// ErrNoCycles is returned when a run is requested without a cycle bound.
var ErrNoCycles = errors.New("cycles must be positive")

// Options configures a run.
type Options struct {
	// Seed drives the choice among maximal interactions.
	Seed uint64

	// Cycles is how many cycles to run. Must be positive.
	Cycles int64

	// Recorder also receives registrations and cycles, e.g. a store.Store.
	Recorder coordinator.Recorder

	// Handles generates component ids. Defaults to sequential "Type-n" ids.
	Handles coordinator.HandleGenerator

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is what a run produced. It is returned even when the run fails,
// holding the cycles solved before the failure.
type Result struct {
	Interactions []*ir.Interaction
	Components   []*automaton.Automaton
	GlueHash     string
}

// Run instantiates sys and runs it.
func Run(ctx context.Context, sys *compiler.System, opts Options) (*Result, error) {
	if opts.Cycles <= 0 {
		return nil, ErrNoCycles
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handles := opts.Handles
	if handles == nil {
		handles = coordinator.NewSequentialGenerator()
	}

	eng, err := engine.New(engine.WithSeed(opts.Seed), engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	mem := &coordinator.MemoryRecorder{}
	var rec coordinator.Recorder = mem
	if opts.Recorder != nil {
		rec = coordinator.Recorders{mem, opts.Recorder}
	}

	coord, err := coordinator.New(
		coordinator.WithEngine(eng),
		coordinator.WithLogger(logger),
		coordinator.WithHandleGenerator(handles),
		coordinator.WithRecorder(rec),
		coordinator.WithMaxCycles(opts.Cycles),
		coordinator.WithStages(
			coordinator.NewDataStage(),
			coordinator.NewResourceStage(coordinator.NewCapacityAllocator(sys.Capacities)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create coordinator: %w", err)
	}

	res := &Result{}
	for _, c := range sys.Components {
		for range sys.InstanceCount(c.Behaviour.Type) {
			a := automaton.New(c.Behaviour,
				automaton.WithVariables(c.Variables),
				automaton.WithIncrements(increments(c.Updates)...),
				automaton.WithLogger(logger))
			if _, err := a.Attach(ctx, coord); err != nil {
				return res, err
			}
			res.Components = append(res.Components, a)
		}
	}

	if err := coord.SpecifyGlue(sys.Glue); err != nil {
		return res, fmt.Errorf("specify glue: %w", err)
	}

	err = coord.Execute(ctx)
	res.Interactions = mem.Interactions()
	res.GlueHash = eng.GlueHash()
	logger.Info("run finished",
		"cycles", len(res.Interactions),
		"components", len(res.Components),
		"error", err)
	return res, err
}

func increments(updates []compiler.Update) []automaton.Increment {
	out := make([]automaton.Increment, len(updates))
	for i, u := range updates {
		out[i] = automaton.Increment{Port: u.Port, Variable: u.Variable, Delta: u.Delta}
	}
	return out
}
