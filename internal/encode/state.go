package encode

import (
	"github.com/roach88/interlock/internal/bdd"
	"github.com/roach88/interlock/internal/ir"
)

// CurrentStateFormula encodes one component's report for this cycle: it is
// in state and none of the disabled ports may fire. Disabled ports that are
// declared but not enforceable carry no variable and are ignored.
func CurrentStateFormula(s *Space, id ir.ComponentID, state string, disabled []string) (bdd.Formula, error) {
	slots, ok := s.Slots(id)
	if !ok {
		return bdd.Formula{}, configErr(ErrCodeUnknownComponent, "", "component %s is not registered", id)
	}
	if _, ok := slots.States[state]; !ok {
		return bdd.Formula{}, configErr(ErrCodeUnknownState, "", "component %s has no state %q", id, state)
	}

	m := s.Manager()
	lits := []bdd.Formula{exactlyState(m, slots, state)}
	for _, port := range disabled {
		idx, ok := slots.Ports[port]
		if !ok {
			if _, declared := slots.Behaviour.Port(port); declared {
				continue
			}
			return bdd.Formula{}, configErr(ErrCodeUnknownPort, string(id)+"."+port, "disabled port is not declared")
		}
		lits = append(lits, m.NVar(idx))
	}

	f := m.And(lits...)
	if err := m.Err(); err != nil {
		return bdd.Formula{}, err
	}
	return f, nil
}
