package automaton

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interlock/internal/coordinator"
	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counter counts its ticks and exports the count.
func counter() *ir.Behaviour {
	return &ir.Behaviour{
		Type:        "Counter",
		States:      []string{"idle"},
		Initial:     "idle",
		Ports:       []ir.PortDecl{{ID: "tick", Kind: ir.PortEnforceable}},
		Transitions: []ir.TransitionDecl{{Port: "tick", From: "idle", To: "idle"}},
		DataOut:     []ir.DataDecl{{Name: "count", Type: "int"}},
	}
}

// sampler reads the count when it is at least 2.
func sampler() *ir.Behaviour {
	return &ir.Behaviour{
		Type:    "Sampler",
		States:  []string{"waiting", "done"},
		Initial: "waiting",
		Ports: []ir.PortDecl{
			{ID: "sample", Kind: ir.PortEnforceable},
			{ID: "reset", Kind: ir.PortEnforceable},
		},
		Transitions: []ir.TransitionDecl{
			{Port: "sample", From: "waiting", To: "done", Guard: "enough"},
			{Port: "reset", From: "done", To: "waiting"},
		},
		DataIn:         []ir.DataDecl{{Name: "count", Type: "int"}},
		GuardData:      map[string][]string{"sample": {"count"}},
		TransitionData: map[string][]string{"sample": {"count"}},
		Guards:         map[string]ir.GuardDecl{"enough": {Data: "count", Op: "ge", Value: 2}},
	}
}

func TestAutomatonWithCoordinator(t *testing.T) {
	eng, err := engine.New(engine.WithSeed(1), engine.WithLogger(quiet()))
	require.NoError(t, err)
	rec := &coordinator.MemoryRecorder{}
	c, err := coordinator.New(
		coordinator.WithEngine(eng),
		coordinator.WithLogger(quiet()),
		coordinator.WithHandleGenerator(coordinator.NewSequentialGenerator()),
		coordinator.WithStages(coordinator.NewDataStage()),
		coordinator.WithRecorder(rec),
		coordinator.WithMaxCycles(4),
	)
	require.NoError(t, err)
	ctx := context.Background()

	cnt := New(counter(),
		WithVariables(ir.Object{"count": ir.Int(0)}),
		WithIncrements(Increment{Port: "tick", Variable: "count", Delta: 1}),
		WithLogger(quiet()))
	smp := New(sampler(), WithLogger(quiet()))

	_, err = cnt.Attach(ctx, c)
	require.NoError(t, err)
	_, err = smp.Attach(ctx, c)
	require.NoError(t, err)
	require.NoError(t, c.SpecifyGlue(&ir.Glue{Wires: []ir.Wire{{
		From: ir.DataSpec{Type: "Counter", Data: "count"},
		To:   ir.DataSpec{Type: "Sampler", Data: "count"},
	}}}))

	require.NoError(t, c.Execute(ctx))

	// the counter ticks every cycle; the sampler fires once the count reaches 2
	assert.Equal(t, []string{"tick", "tick", "tick", "tick"}, cnt.History())
	assert.Equal(t, []string{"", "", "sample", "reset"}, smp.History())

	v, ok := smp.Variable("count")
	require.True(t, ok)
	assert.Equal(t, ir.Int(2), v)
	assert.Equal(t, "waiting", smp.State())

	count, err := cnt.GetData(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(4), count)
	assert.Len(t, rec.Interactions(), 4)
}

func TestAutomatonExecuteRejectsDisabledPort(t *testing.T) {
	a := New(sampler())
	err := a.Execute(context.Background(), "reset", nil)
	assert.Error(t, err)
	assert.Equal(t, "waiting", a.State())

	require.NoError(t, a.Execute(context.Background(), ir.NoPort, nil))
	assert.Equal(t, []string{""}, a.History())
}

func TestAutomatonGetData(t *testing.T) {
	a := New(counter())
	_, err := a.GetData(context.Background(), "count")
	assert.Error(t, err, "exported but never set")

	_, err = a.GetData(context.Background(), "secret")
	assert.Error(t, err, "not exported")
}

func TestAutomatonCheckEnabledness(t *testing.T) {
	a := New(sampler())
	rows := []ir.Object{{"count": ir.Int(1)}, {"count": ir.Int(2)}}

	got, err := a.CheckEnabledness(context.Background(), "sample", rows)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, got)

	got, err = a.CheckEnabledness(context.Background(), "reset", rows)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, got, "reset is not enabled while waiting")

	_, err = a.CheckEnabledness(context.Background(), "sample", []ir.Object{{"count": ir.String("x")}})
	assert.Error(t, err)
}
