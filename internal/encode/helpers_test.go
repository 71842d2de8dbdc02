package encode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/interlock/internal/bdd"
	"github.com/roach88/interlock/internal/ir"
)

func newSpace(t *testing.T) *Space {
	t.Helper()
	m, err := bdd.New(0)
	require.NoError(t, err)
	return NewSpace(m)
}

// single returns a one-state type whose only enforceable port loops on it.
func single(typ, port string) *ir.Behaviour {
	return &ir.Behaviour{
		Type:        typ,
		States:      []string{"s"},
		Initial:     "s",
		Ports:       []ir.PortDecl{{ID: port, Kind: ir.PortEnforceable}},
		Transitions: []ir.TransitionDecl{{Port: port, From: "s", To: "s"}},
	}
}

// twoState is the S1/S2 component with p1 enabled in S1 and p2 in S2.
func twoState() *ir.Behaviour {
	return &ir.Behaviour{
		Type:    "Toggle",
		States:  []string{"S1", "S2"},
		Initial: "S1",
		Ports: []ir.PortDecl{
			{ID: "p1", Kind: ir.PortEnforceable},
			{ID: "p2", Kind: ir.PortEnforceable},
		},
		Transitions: []ir.TransitionDecl{
			{Port: "p1", From: "S1", To: "S2"},
			{Port: "p2", From: "S2", To: "S1"},
		},
	}
}

func producer() *ir.Behaviour {
	b := single("Producer", "put")
	b.DataOut = []ir.DataDecl{{Name: "value", Type: "int"}}
	return b
}

func consumer() *ir.Behaviour {
	b := single("Consumer", "get")
	b.DataIn = []ir.DataDecl{{Name: "value", Type: "int"}}
	b.GuardData = map[string][]string{"get": {"value"}}
	return b
}

func register(t *testing.T, s *Space, id string, b *ir.Behaviour) ir.ComponentID {
	t.Helper()
	_, err := s.Allocate(ir.ComponentID(id), b)
	require.NoError(t, err)
	return ir.ComponentID(id)
}

// holds reports whether f is satisfiable with the given positions fixed.
func holds(s *Space, f bdd.Formula, fixed map[int]bool) bool {
	m := s.Manager()
	lits := []bdd.Formula{f}
	for idx, v := range fixed {
		if v {
			lits = append(lits, m.Var(idx))
		} else {
			lits = append(lits, m.NVar(idx))
		}
	}
	return !m.IsFalse(m.And(lits...))
}

func port(t *testing.T, s *Space, id ir.ComponentID, p string) int {
	t.Helper()
	idx, ok := s.PortIndex(id, p)
	require.True(t, ok)
	return idx
}

// firing fixes every live port position: the listed ones true, the rest false.
func firing(t *testing.T, s *Space, on ...int) map[int]bool {
	t.Helper()
	out := make(map[int]bool)
	for _, idx := range s.PortPositions() {
		out[idx] = false
	}
	for _, idx := range on {
		out[idx] = true
	}
	return out
}
