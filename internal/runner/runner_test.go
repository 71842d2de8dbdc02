package runner

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interlock/internal/compiler"
	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
	"github.com/roach88/interlock/internal/store"
)

const sampling = `
component: Counter: {
	states: ["run"]
	ports: {tick: "enforceable"}
	transitions: [{port: "tick", from: "run", to: "run"}]
	data_out: {count: int}
	variables: {count: 0}
	updates: {tick: {count: 1}}
}

component: Sampler: {
	states: ["idle"]
	ports: {sample: "enforceable"}
	transitions: [{port: "sample", from: "idle", to: "idle", guard: "enough"}]
	data_in: {count: int}
	guard_data: {sample: ["count"]}
	guards: {enough: {data: "count", op: "ge", value: 2}}
}

glue: {
	require: [{effect: "Sampler.sample", causes: [["Counter.tick"]]}]
	accept: [
		{effect: "Counter.tick", causes: ["Sampler.sample"]},
		{effect: "Sampler.sample", causes: ["Counter.tick"]},
	]
	wires: [{from: "Counter.count", to: "Sampler.count"}]
}
`

const oneShot = `
component: Fuse: {
	states: ["armed", "blown"]
	ports: {blow: "enforceable"}
	transitions: [{port: "blow", from: "armed", to: "blown"}]
}
`

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func compile(t *testing.T, src string) *compiler.System {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	sys, err := compiler.CompileSystem(v)
	require.NoError(t, err)
	require.Empty(t, compiler.Validate(sys))
	return sys
}

func specs(in []*ir.Interaction) [][]string {
	out := make([][]string, len(in))
	for i, x := range in {
		out[i] = x.Specs()
	}
	return out
}

func TestRunSampling(t *testing.T) {
	res, err := Run(context.Background(), compile(t, sampling), Options{
		Seed:   1,
		Cycles: 4,
		Logger: quiet(),
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"Counter.tick"},
		{"Counter.tick"},
		{"Counter.tick", "Sampler.sample"},
		{"Counter.tick", "Sampler.sample"},
	}, specs(res.Interactions))

	require.Len(t, res.Components, 2)
	count, ok := res.Components[0].Variable("count")
	require.True(t, ok)
	assert.Equal(t, ir.Int(4), count)
	assert.Equal(t, ir.ComponentID("Counter-1"), res.Components[0].ID())
	assert.NotEmpty(t, res.GlueHash)
}

func TestRunJournalsToStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"), store.WithRunID("run-1"))
	require.NoError(t, err)
	defer st.Close()

	res, err := Run(ctx, compile(t, sampling), Options{Seed: 1, Cycles: 3, Recorder: st, Logger: quiet()})
	require.NoError(t, err)

	cycles, err := st.ReadCycles(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, cycles, 3)
	for i, c := range cycles {
		assert.Equal(t, res.Interactions[i], c.Interaction())
		assert.Equal(t, res.GlueHash, c.GlueHash)
	}

	regs, err := st.ReadRegistrations(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, regs, 2)
}

func TestRunDeadlock(t *testing.T) {
	res, err := Run(context.Background(), compile(t, oneShot), Options{Cycles: 5, Logger: quiet()})
	require.Error(t, err)
	assert.True(t, engine.IsRuntimeError(err, engine.ErrCodeNoEnabledPorts))

	require.NotNil(t, res)
	assert.Len(t, res.Interactions, 1, "the cycles solved before the deadlock are kept")
	assert.Equal(t, "blown", res.Components[0].State())
}

func TestRunNeedsCycles(t *testing.T) {
	_, err := Run(context.Background(), compile(t, oneShot), Options{})
	assert.ErrorIs(t, err, ErrNoCycles)
}
