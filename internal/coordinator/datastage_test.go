package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
)

func TestDataStagePairsWithAcceptableProducer(t *testing.T) {
	rec := &MemoryRecorder{}
	c := newCoordinator(t, WithMaxCycles(1), WithStages(NewDataStage()), WithRecorder(rec))

	low := join(t, c, producer(), false)
	low.export("value", ir.Int(1))
	high := join(t, c, producer(), false)
	high.export("value", ir.Int(5))
	cons := join(t, c, consumer(), false)
	require.NoError(t, c.SpecifyGlue(valueWire()))

	require.NoError(t, c.Execute(context.Background()))

	require.Len(t, rec.Interactions(), 1)
	in := rec.Interactions()[0]
	get := ir.PortRef{Component: cons.ID(), Port: "get"}
	assert.True(t, in.Fires(cons.ID(), "get"))
	assert.Equal(t, []ir.PortRef{{Component: high.ID(), Port: "put"}}, in.ProducersFor(get))
	assert.Equal(t, []ir.Object{{"value": ir.Int(5)}}, cons.Received())
}

func TestDataStageDisablesRefusedPort(t *testing.T) {
	rec := &MemoryRecorder{}
	c := newCoordinator(t, WithMaxCycles(1), WithStages(NewDataStage()), WithRecorder(rec))

	p := join(t, c, producer(), false)
	p.export("value", ir.Int(1))
	cons := join(t, c, consumer(), false)
	require.NoError(t, c.SpecifyGlue(valueWire()))

	require.NoError(t, c.Execute(context.Background()))

	in := rec.Interactions()[0]
	assert.Equal(t, []string{"Producer.put"}, in.Specs())
	assert.Equal(t, []string{ir.NoPort}, cons.Fired())
}

func TestDataStageAsksGuardChecker(t *testing.T) {
	rec := &MemoryRecorder{}
	c := newCoordinator(t, WithMaxCycles(1), WithStages(NewDataStage()), WithRecorder(rec))
	ctx := context.Background()

	p1 := join(t, c, producer(), false)
	p1.export("value", ir.Int(7))
	p2 := join(t, c, producer(), false)
	p2.export("value", ir.Int(9))

	// the declared guard would accept both; the component only takes 7
	b := consumer()
	ch := &checker{fake: newFake(c, b, false), want: 7}
	id, err := c.Register(ctx, ch, b)
	require.NoError(t, err)
	ch.mu.Lock()
	ch.id = id
	ch.mu.Unlock()
	require.NoError(t, c.Inform(ctx, id, "s", nil))
	require.NoError(t, c.SpecifyGlue(valueWire()))

	require.NoError(t, c.Execute(ctx))

	in := rec.Interactions()[0]
	assert.Equal(t, []ir.PortRef{{Component: p1.ID(), Port: "put"}},
		in.ProducersFor(ir.PortRef{Component: id, Port: "get"}))
	assert.Equal(t, 1, ch.calls)
}

func TestDataStageRejectsMistypedData(t *testing.T) {
	c := newCoordinator(t, WithMaxCycles(1), WithStages(NewDataStage()))

	p := join(t, c, producer(), false)
	p.export("value", ir.String("five"))
	join(t, c, consumer(), false)
	require.NoError(t, c.SpecifyGlue(valueWire()))

	err := c.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrCodeDataUnavailable, ProtocolErrorCodeOf(err))
}

func TestDataStageMissingData(t *testing.T) {
	c := newCoordinator(t, WithMaxCycles(1), WithStages(NewDataStage()))

	join(t, c, producer(), false)
	join(t, c, consumer(), false)
	require.NoError(t, c.SpecifyGlue(valueWire()))

	err := c.Execute(context.Background())
	assert.Equal(t, ErrCodeDataUnavailable, ProtocolErrorCodeOf(err))
}

func TestCrossProduct(t *testing.T) {
	src := func(id string) engine.DataSource {
		return engine.DataSource{Producer: ir.PortRef{Component: ir.ComponentID(id), Port: "put"}, Data: "v"}
	}
	rows := crossProduct([][]engine.DataSource{
		{src("a"), src("b")},
		{src("x"), src("y"), src("z")},
	})
	require.Len(t, rows, 6)
	assert.Equal(t, []engine.DataSource{src("a"), src("x")}, rows[0])
	assert.Equal(t, []engine.DataSource{src("b"), src("z")}, rows[5])

	assert.Equal(t, [][]engine.DataSource{{}}, crossProduct(nil))
}

func TestReportEnabled(t *testing.T) {
	b := &ir.Behaviour{
		Type:    "T",
		States:  []string{"s", "u"},
		Initial: "s",
		Ports: []ir.PortDecl{
			{ID: "p", Kind: ir.PortEnforceable},
			{ID: "q", Kind: ir.PortEnforceable},
			{ID: "tick", Kind: ir.PortSpontaneous},
		},
		Transitions: []ir.TransitionDecl{
			{Port: "p", From: "s", To: "u"},
			{Port: "q", From: "s", To: "s"},
			{Port: "tick", From: "s", To: "s"},
		},
	}
	r := Report{State: "s"}
	assert.Equal(t, []string{"p", "q"}, r.Enabled(b))
	r.Disable("q")
	r.Disable("q")
	assert.Equal(t, []string{"q"}, r.Disabled)
	assert.Equal(t, []string{"p"}, r.Enabled(b))
	assert.Empty(t, (&Report{State: "u"}).Enabled(b))
}
