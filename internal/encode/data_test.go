package encode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interlock/internal/bdd"
	"github.com/roach88/interlock/internal/ir"
)

func valueWire() *ir.Glue {
	return &ir.Glue{Wires: []ir.Wire{{
		From: ir.DataSpec{Type: "Producer", Data: "value"},
		To:   ir.DataSpec{Type: "Consumer", Data: "value"},
	}}}
}

func TestBuildAllocatesPairs(t *testing.T) {
	s := newSpace(t)
	register(t, s, "p1", producer())
	register(t, s, "p2", producer())
	register(t, s, "c1", consumer())

	e := NewDataEncoder()
	_, err := e.Build(s, valueWire(), nil)
	require.NoError(t, err)

	pairs := e.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, ir.PortRef{Component: "c1", Port: "get"}, pairs[0].Consumer)
	assert.Equal(t, ir.PortRef{Component: "p1", Port: "put"}, pairs[0].Producer)
	assert.Equal(t, map[string]string{"value": "value"}, pairs[0].Data)
	assert.Equal(t, 6, pairs[0].Index, "d-variables follow the state and port positions")

	// a second build reuses the same d-variables
	_, err = e.Build(s, valueWire(), nil)
	require.NoError(t, err)
	assert.Len(t, e.Pairs(), 2)
	assert.Equal(t, 8, s.Len())
}

func TestBuildSkipsSameInstance(t *testing.T) {
	s := newSpace(t)
	b := single("Relay", "pass")
	b.DataIn = []ir.DataDecl{{Name: "in", Type: "int"}}
	b.DataOut = []ir.DataDecl{{Name: "out", Type: "int"}}
	b.TransitionData = map[string][]string{"pass": {"in"}}
	register(t, s, "r1", b)
	register(t, s, "r2", b)

	g := &ir.Glue{Wires: []ir.Wire{{
		From: ir.DataSpec{Type: "Relay", Data: "out"},
		To:   ir.DataSpec{Type: "Relay", Data: "in"},
	}}}
	e := NewDataEncoder()
	_, err := e.Build(s, g, nil)
	require.NoError(t, err)

	for _, p := range e.Pairs() {
		assert.NotEqual(t, p.Consumer.Component, p.Producer.Component)
	}
	assert.Len(t, e.Pairs(), 2)
}

func TestDataImplications(t *testing.T) {
	s := newSpace(t)
	p1 := register(t, s, "p1", producer())
	c1 := register(t, s, "c1", consumer())

	e := NewDataEncoder()
	f, err := e.Build(s, valueWire(), nil)
	require.NoError(t, err)
	d := e.Pairs()[0].Index
	pp, pc := port(t, s, p1, "put"), port(t, s, c1, "get")

	assert.True(t, holds(s, f, map[int]bool{d: true, pp: true, pc: true}))
	assert.False(t, holds(s, f, map[int]bool{d: true, pp: false}), "d requires the producer")
	assert.False(t, holds(s, f, map[int]bool{d: true, pc: false}), "d requires the consumer")
	assert.False(t, holds(s, f, map[int]bool{pc: true, d: false}), "consumer needs a pairing")
	assert.True(t, holds(s, f, map[int]bool{pp: true, pc: false, d: false}), "producer fires alone")
}

func TestConsumerWithoutProducerCannotFire(t *testing.T) {
	s := newSpace(t)
	c1 := register(t, s, "c1", consumer())

	e := NewDataEncoder()
	f, err := e.Build(s, nil, nil)
	require.NoError(t, err)
	assert.False(t, holds(s, f, map[int]bool{port(t, s, c1, "get"): true}))
}

func TestBuildWireErrors(t *testing.T) {
	s := newSpace(t)
	register(t, s, "p1", producer())
	register(t, s, "c1", consumer())

	tests := []struct {
		name string
		wire ir.Wire
		code string
	}{
		{"unknown source type", ir.Wire{From: ir.DataSpec{Type: "Nope", Data: "v"}, To: ir.DataSpec{Type: "Consumer", Data: "value"}}, ErrCodeNoInstances},
		{"unknown source data", ir.Wire{From: ir.DataSpec{Type: "Producer", Data: "v"}, To: ir.DataSpec{Type: "Consumer", Data: "value"}}, ErrCodeUnknownData},
		{"unknown target type", ir.Wire{From: ir.DataSpec{Type: "Producer", Data: "value"}, To: ir.DataSpec{Type: "Nope", Data: "value"}}, ErrCodeNoInstances},
		{"unknown target data", ir.Wire{From: ir.DataSpec{Type: "Producer", Data: "value"}, To: ir.DataSpec{Type: "Consumer", Data: "v"}}, ErrCodeUnknownData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDataEncoder().Build(s, &ir.Glue{Wires: []ir.Wire{tt.wire}}, nil)
			assert.Equal(t, tt.code, ConfigErrorCode(err))
		})
	}
}

func TestEncodeDisabledCombinations(t *testing.T) {
	s := newSpace(t)
	p1 := register(t, s, "p1", producer())
	p2 := register(t, s, "p2", producer())
	c1 := register(t, s, "c1", consumer())

	e := NewDataEncoder()
	perm, err := e.Build(s, valueWire(), nil)
	require.NoError(t, err)
	m := s.Manager()

	neutral, err := e.EncodeDisabledCombinations(s, c1, "get", nil)
	require.NoError(t, err)
	assert.True(t, m.IsTrue(neutral))

	off, err := e.EncodeDisabledCombinations(s, c1, "get", map[ir.ComponentID][]string{p1: {"put"}})
	require.NoError(t, err)

	d1, _ := e.Lookup(ir.PortRef{Component: c1, Port: "get"}, ir.PortRef{Component: p1, Port: "put"})
	d2, _ := e.Lookup(ir.PortRef{Component: c1, Port: "get"}, ir.PortRef{Component: p2, Port: "put"})
	f := m.And(perm, off)
	pc := port(t, s, c1, "get")
	assert.False(t, holds(s, f, map[int]bool{d1.Index: true}))
	assert.True(t, holds(s, f, map[int]bool{pc: true, d2.Index: true}), "the other producer still serves")

	_, err = e.EncodeDisabledCombinations(s, c1, "get", map[ir.ComponentID][]string{"ghost": {"put"}})
	assert.Equal(t, ErrCodeUnknownComponent, ConfigErrorCode(err))

	_, err = e.EncodeDisabledCombinations(s, c1, "get", map[ir.ComponentID][]string{p1: {"nope"}})
	assert.Equal(t, ErrCodeUnknownPort, ConfigErrorCode(err))

	_, err = e.EncodeDisabledCombinations(s, "ghost", "get", map[ir.ComponentID][]string{p1: {"put"}})
	assert.Equal(t, ErrCodeUnknownComponent, ConfigErrorCode(err))
}

func TestEncodeDisabledRow(t *testing.T) {
	s := newSpace(t)
	p1 := register(t, s, "p1", producer())
	c1 := register(t, s, "c1", consumer())

	e := NewDataEncoder()
	perm, err := e.Build(s, valueWire(), nil)
	require.NoError(t, err)
	m := s.Manager()

	row, err := e.EncodeDisabledRow(s, c1, "get", []ir.PortRef{{Component: p1, Port: "put"}})
	require.NoError(t, err)
	assert.False(t, holds(s, m.And(perm, row), map[int]bool{port(t, s, c1, "get"): true}),
		"with its only producer ruled out the consumer cannot fire")

	_, err = e.EncodeDisabledRow(s, c1, "get", nil)
	require.Error(t, err)
	_, err = e.EncodeDisabledRow(s, c1, "get", []ir.PortRef{{Component: "ghost", Port: "put"}})
	assert.Equal(t, ErrCodeUnknownComponent, ConfigErrorCode(err))
}

func TestRetirePairs(t *testing.T) {
	s := newSpace(t)
	p1 := register(t, s, "p1", producer())
	register(t, s, "p2", producer())
	c1 := register(t, s, "c1", consumer())

	e := NewDataEncoder()
	_, err := e.Build(s, valueWire(), nil)
	require.NoError(t, err)
	retired := e.Pairs()[0]

	require.NoError(t, s.Retire(p1))
	e.Retire(s, p1)

	live := e.Pairs()
	require.Len(t, live, 1)
	assert.Equal(t, ir.ComponentID("p2"), live[0].Producer.Component)

	f, err := e.Build(s, valueWire(), nil)
	require.NoError(t, err)
	assert.False(t, holds(s, f, map[int]bool{retired.Index: true}), "retired d-variables are pinned false")

	cube := bdd.Cube(make([]bdd.Value, s.Len()))
	cube[retired.Index] = bdd.One
	cube[live[0].Index] = bdd.One
	assert.Equal(t, []ir.Pairing{{
		Consumer: ir.PortRef{Component: c1, Port: "get"},
		Producer: ir.PortRef{Component: "p2", Port: "put"},
	}}, e.Pairings(cube))
}

func TestAtMost(t *testing.T) {
	s := newSpace(t)
	require.NoError(t, s.Manager().Grow(3))
	m := s.Manager()

	f := AtMost(m, []Term{{Index: 0, Amount: 2}, {Index: 1, Amount: 2}, {Index: 2, Amount: 3}}, 4)
	assert.True(t, holds(s, f, map[int]bool{0: true, 1: true, 2: false}))
	assert.False(t, holds(s, f, map[int]bool{0: true, 2: true}))
	assert.True(t, holds(s, f, map[int]bool{0: false, 1: false, 2: true}))
	// models: {}, {0}, {1}, {2}, {0,1}
	assert.Equal(t, int64(5), m.Satcount(f).Int64())

	assert.True(t, m.IsFalse(AtMost(m, nil, -1)))
	assert.True(t, m.IsTrue(AtMost(m, nil, 0)))
}
