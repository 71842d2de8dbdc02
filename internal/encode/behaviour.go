package encode

import (
	"github.com/roach88/interlock/internal/bdd"
	"github.com/roach88/interlock/internal/ir"
)

// exactlyState is state-var(state) ∧ ¬state-var(other states).
func exactlyState(m *bdd.Manager, slots *Slots, state string) bdd.Formula {
	lits := make([]bdd.Formula, 0, len(slots.StateOrder))
	for _, other := range slots.StateOrder {
		if other == state {
			lits = append(lits, m.Var(slots.States[other]))
		} else {
			lits = append(lits, m.NVar(slots.States[other]))
		}
	}
	return m.And(lits...)
}

// onlyPort is port-var(port) ∧ ¬port-var(other ports of the component).
func onlyPort(m *bdd.Manager, slots *Slots, port string) bdd.Formula {
	lits := make([]bdd.Formula, 0, len(slots.PortOrder))
	for _, other := range slots.PortOrder {
		if other == port {
			lits = append(lits, m.Var(slots.Ports[other]))
		} else {
			lits = append(lits, m.NVar(slots.Ports[other]))
		}
	}
	return m.And(lits...)
}

// noPorts negates every enforceable port of the component.
func noPorts(m *bdd.Manager, slots *Slots) bdd.Formula {
	lits := make([]bdd.Formula, 0, len(slots.PortOrder))
	for _, port := range slots.PortOrder {
		lits = append(lits, m.NVar(slots.Ports[port]))
	}
	return m.And(lits...)
}

// BehaviourFormula encodes the valid (state, active port) combinations of a
// registered component. In every state exactly one state variable is true
// and at most one port fires, and only a port enabled in that state. The
// idle case, no port firing, is allowed in every state.
func BehaviourFormula(s *Space, id ir.ComponentID) (bdd.Formula, error) {
	slots, ok := s.Slots(id)
	if !ok {
		return bdd.Formula{}, configErr(ErrCodeNoBehaviour, "", "component %s must be registered before its behaviour is encoded", id)
	}
	m := s.Manager()

	idle := noPorts(m, slots)
	enabled := slots.Behaviour.StatePorts()

	disjuncts := make([]bdd.Formula, 0, len(slots.StateOrder))
	for _, state := range slots.StateOrder {
		choices := []bdd.Formula{idle}
		for _, port := range enabled[state] {
			choices = append(choices, onlyPort(m, slots, port))
		}
		disjuncts = append(disjuncts, m.And(exactlyState(m, slots, state), m.Or(choices...)))
	}

	f := m.Or(disjuncts...)
	if err := m.Err(); err != nil {
		return bdd.Formula{}, err
	}
	return f, nil
}
