package encode

import (
	"fmt"
	"slices"

	"github.com/roach88/interlock/internal/bdd"
	"github.com/roach88/interlock/internal/ir"
)

// VarKind tells what a variable position stands for.
type VarKind uint8

const (
	KindState VarKind = iota + 1
	KindPort
	KindData
)

func (k VarKind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindPort:
		return "port"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Var describes one allocated variable position.
type Var struct {
	Index     int
	Kind      VarKind
	Component ir.ComponentID
	Type      string
	Name      string
	Retired   bool
}

// Slots holds the variable positions of one registered component.
type Slots struct {
	ID         ir.ComponentID
	Behaviour  *ir.Behaviour
	StateOrder []string
	PortOrder  []string
	States     map[string]int
	Ports      map[string]int
}

// Space is the shared variable space. It is not safe for concurrent use;
// the engine serialises access.
type Space struct {
	mgr   *bdd.Manager
	vars  []Var
	comps map[ir.ComponentID]*Slots
	order []ir.ComponentID
	types map[string]*ir.Behaviour
}

// NewSpace creates an empty variable space over mgr.
func NewSpace(mgr *bdd.Manager) *Space {
	return &Space{
		mgr:   mgr,
		comps: make(map[ir.ComponentID]*Slots),
		types: make(map[string]*ir.Behaviour),
	}
}

// Manager returns the decision-diagram manager backing the space.
func (s *Space) Manager() *bdd.Manager {
	return s.mgr
}

// Len returns the number of allocated positions, retired ones included.
func (s *Space) Len() int {
	return len(s.vars)
}

// Allocate assigns one variable per state and then one per enforceable port
// of a newly registered component.
func (s *Space) Allocate(id ir.ComponentID, b *ir.Behaviour) (*Slots, error) {
	if b == nil {
		return nil, configErr(ErrCodeNoBehaviour, "", "component %s registered without a behaviour", id)
	}
	if err := b.Check(); err != nil {
		return nil, configErr(ErrCodeNoBehaviour, "", "component %s: %v", id, err)
	}
	if _, ok := s.comps[id]; ok {
		return nil, configErr(ErrCodeDuplicate, "", "component %s is already registered", id)
	}

	slots := &Slots{
		ID:         id,
		Behaviour:  b,
		StateOrder: slices.Clone(b.States),
		PortOrder:  b.EnforceablePorts(),
		States:     make(map[string]int, len(b.States)),
		Ports:      make(map[string]int),
	}
	for _, state := range slots.StateOrder {
		slots.States[state] = s.push(Var{Kind: KindState, Component: id, Type: b.Type, Name: state})
	}
	for _, port := range slots.PortOrder {
		slots.Ports[port] = s.push(Var{Kind: KindPort, Component: id, Type: b.Type, Name: port})
	}

	if err := s.mgr.Grow(len(s.vars)); err != nil {
		return nil, err
	}

	s.comps[id] = slots
	s.order = append(s.order, id)
	if _, ok := s.types[b.Type]; !ok {
		s.types[b.Type] = b
	}
	return slots, nil
}

// AllocateData assigns a fresh d-variable for a consumer/producer pairing.
func (s *Space) AllocateData(consumer, producer ir.PortRef) (int, error) {
	idx := s.push(Var{
		Kind:      KindData,
		Component: consumer.Component,
		Name:      consumer.String() + "<-" + producer.String(),
	})
	if err := s.mgr.Grow(len(s.vars)); err != nil {
		return 0, err
	}
	return idx, nil
}

func (s *Space) push(v Var) int {
	v.Index = len(s.vars)
	s.vars = append(s.vars, v)
	return v.Index
}

// Retire removes a component. Its positions stay allocated but are marked
// retired and are never handed out again.
func (s *Space) Retire(id ir.ComponentID) error {
	slots, ok := s.comps[id]
	if !ok {
		return configErr(ErrCodeUnknownComponent, "", "component %s is not registered", id)
	}
	for _, idx := range slots.States {
		s.vars[idx].Retired = true
	}
	for _, idx := range slots.Ports {
		s.vars[idx].Retired = true
	}
	delete(s.comps, id)
	s.order = slices.DeleteFunc(s.order, func(c ir.ComponentID) bool { return c == id })
	return nil
}

// RetireVar marks a single position retired.
func (s *Space) RetireVar(idx int) {
	if idx >= 0 && idx < len(s.vars) {
		s.vars[idx].Retired = true
	}
}

// Var returns the description of position idx.
func (s *Space) Var(idx int) (Var, bool) {
	if idx < 0 || idx >= len(s.vars) {
		return Var{}, false
	}
	return s.vars[idx], true
}

// Slots returns the positions of a live component.
func (s *Space) Slots(id ir.ComponentID) (*Slots, bool) {
	slots, ok := s.comps[id]
	return slots, ok
}

// Components returns live components in registration order.
func (s *Space) Components() []ir.ComponentID {
	return slices.Clone(s.order)
}

// Instances returns live components of a type in registration order.
func (s *Space) Instances(typ string) []ir.ComponentID {
	var out []ir.ComponentID
	for _, id := range s.order {
		if s.comps[id].Behaviour.Type == typ {
			out = append(out, id)
		}
	}
	return out
}

// TypeBehaviour returns the behaviour of a component type seen at
// registration, even if no instance is live any more.
func (s *Space) TypeBehaviour(typ string) (*ir.Behaviour, bool) {
	b, ok := s.types[typ]
	return b, ok
}

// PortPositions returns the live port positions in allocation order.
func (s *Space) PortPositions() []int {
	var out []int
	for _, v := range s.vars {
		if v.Kind == KindPort && !v.Retired {
			out = append(out, v.Index)
		}
	}
	return out
}

// PortIndex returns the position of a component's enforceable port.
func (s *Space) PortIndex(id ir.ComponentID, port string) (int, bool) {
	slots, ok := s.comps[id]
	if !ok {
		return 0, false
	}
	idx, ok := slots.Ports[port]
	return idx, ok
}

// PortVar returns the literal of a component's enforceable port.
func (s *Space) PortVar(id ir.ComponentID, port string) (bdd.Formula, error) {
	if _, ok := s.comps[id]; !ok {
		return bdd.Formula{}, configErr(ErrCodeUnknownComponent, "", "component %s is not registered", id)
	}
	idx, ok := s.PortIndex(id, port)
	if !ok {
		return bdd.Formula{}, configErr(ErrCodeUnknownPort, string(id)+"."+port, "not an enforceable port")
	}
	return s.mgr.Var(idx), nil
}

// StateVar returns the literal of a component's state.
func (s *Space) StateVar(id ir.ComponentID, state string) (bdd.Formula, error) {
	slots, ok := s.comps[id]
	if !ok {
		return bdd.Formula{}, configErr(ErrCodeUnknownComponent, "", "component %s is not registered", id)
	}
	idx, ok := slots.States[state]
	if !ok {
		return bdd.Formula{}, configErr(ErrCodeUnknownState, "", "component %s has no state %q", id, state)
	}
	return s.mgr.Var(idx), nil
}

// PortInstances returns the live (component, port) instances of a port spec,
// in registration order.
func (s *Space) PortInstances(spec ir.PortSpec) []ir.PortRef {
	var out []ir.PortRef
	for _, id := range s.order {
		slots := s.comps[id]
		if slots.Behaviour.Type != spec.Type {
			continue
		}
		if _, ok := slots.Ports[spec.Port]; ok {
			out = append(out, ir.PortRef{Component: id, Port: spec.Port})
		}
	}
	return out
}

// Owner returns the live component port behind a port position.
func (s *Space) Owner(idx int) (ir.Firing, error) {
	v, ok := s.Var(idx)
	if !ok || v.Kind != KindPort {
		return ir.Firing{}, fmt.Errorf("position %d is not a port", idx)
	}
	if v.Retired {
		return ir.Firing{}, fmt.Errorf("position %d belongs to a retired component", idx)
	}
	return ir.Firing{Component: v.Component, Type: v.Type, Port: v.Name}, nil
}
