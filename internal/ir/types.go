package ir

import (
	"fmt"
	"slices"
)

// ComponentID is the opaque identity handed out at registration.
type ComponentID string

// PortKind distinguishes ports that take part in interactions from the rest.
type PortKind string

const (
	// PortEnforceable ports are fired only when the engine chooses them.
	PortEnforceable PortKind = "enforceable"
	// PortSpontaneous ports are triggered by the environment, never by the engine.
	PortSpontaneous PortKind = "spontaneous"
	// PortInternal ports are fired by the component itself.
	PortInternal PortKind = "internal"
)

// PortDecl declares a port of a component type.
type PortDecl struct {
	ID   string   `json:"id" validate:"required"`
	Kind PortKind `json:"kind" validate:"required,oneof=enforceable spontaneous internal"`
}

// TransitionDecl is one edge of the behaviour automaton.
type TransitionDecl struct {
	Port  string `json:"port" validate:"required"`
	From  string `json:"from" validate:"required"`
	To    string `json:"to" validate:"required"`
	Guard string `json:"guard,omitempty"`
}

// DataDecl declares a datum a component consumes (DataIn) or exports (DataOut).
//
// For outgoing data, Ports lists the ports at which the datum is available.
// An empty list exports the datum at every enforceable port.
type DataDecl struct {
	Name  string   `json:"name" validate:"required"`
	Type  string   `json:"type" validate:"required,oneof=int string bool"`
	Ports []string `json:"ports,omitempty"`
}

// GuardDecl is a comparison of one datum against a constant.
type GuardDecl struct {
	Data  string `json:"data" validate:"required"`
	Op    string `json:"op" validate:"required,oneof=eq ne lt le gt ge"`
	Value int64  `json:"value"`
}

// ResourceRequest is what a port asks a resource allocator for before it may fire.
type ResourceRequest struct {
	Resource string `json:"resource" validate:"required"`
	Amount   int64  `json:"amount" validate:"gte=0"`
}

// Behaviour describes one component type: its states, ports, transitions and
// the data its ports read for guards and transitions.
type Behaviour struct {
	Type        string           `json:"type" validate:"required"`
	States      []string         `json:"states" validate:"required,min=1,dive,required"`
	Initial     string           `json:"initial" validate:"required"`
	Ports       []PortDecl       `json:"ports" validate:"dive"`
	Transitions []TransitionDecl `json:"transitions" validate:"dive"`
	DataIn      []DataDecl       `json:"data_in,omitempty" validate:"dive"`
	DataOut     []DataDecl       `json:"data_out,omitempty" validate:"dive"`

	// GuardData maps a port to the incoming data its guard reads.
	GuardData map[string][]string `json:"guard_data,omitempty"`

	// TransitionData maps a port to the incoming data its transition consumes.
	TransitionData map[string][]string `json:"transition_data,omitempty"`

	Guards    map[string]GuardDecl       `json:"guards,omitempty" validate:"dive"`
	Resources map[string]ResourceRequest `json:"resources,omitempty" validate:"dive"`
}

// Port returns the declaration of a port.
func (b *Behaviour) Port(id string) (PortDecl, bool) {
	for _, p := range b.Ports {
		if p.ID == id {
			return p, true
		}
	}
	return PortDecl{}, false
}

// HasState reports whether the behaviour declares the state.
func (b *Behaviour) HasState(state string) bool {
	return slices.Contains(b.States, state)
}

// EnforceablePorts returns the enforceable port ids in declaration order.
func (b *Behaviour) EnforceablePorts() []string {
	var ports []string
	for _, p := range b.Ports {
		if p.Kind == PortEnforceable {
			ports = append(ports, p.ID)
		}
	}
	return ports
}

// IsEnforceable reports whether id names an enforceable port.
func (b *Behaviour) IsEnforceable(id string) bool {
	p, ok := b.Port(id)
	return ok && p.Kind == PortEnforceable
}

// StatePorts maps every state to the enforceable ports with a transition
// leaving it. States without such transitions map to an empty slice.
// Port order follows the declaration order of Ports.
func (b *Behaviour) StatePorts() map[string][]string {
	out := make(map[string][]string, len(b.States))
	for _, s := range b.States {
		out[s] = []string{}
	}
	for _, port := range b.EnforceablePorts() {
		for _, t := range b.Transitions {
			if t.Port != port {
				continue
			}
			if !slices.Contains(out[t.From], port) {
				out[t.From] = append(out[t.From], port)
			}
		}
	}
	return out
}

// TransitionFor returns the transition fired by port from state.
func (b *Behaviour) TransitionFor(state, port string) (TransitionDecl, bool) {
	for _, t := range b.Transitions {
		if t.From == state && t.Port == port {
			return t, true
		}
	}
	return TransitionDecl{}, false
}

// DataOutDecl returns the outgoing datum with the given name.
func (b *Behaviour) DataOutDecl(name string) (DataDecl, bool) {
	for _, d := range b.DataOut {
		if d.Name == name {
			return d, true
		}
	}
	return DataDecl{}, false
}

// DataInDecl returns the incoming datum with the given name.
func (b *Behaviour) DataInDecl(name string) (DataDecl, bool) {
	for _, d := range b.DataIn {
		if d.Name == name {
			return d, true
		}
	}
	return DataDecl{}, false
}

// ExportPorts returns the enforceable ports at which an outgoing datum is available.
func (b *Behaviour) ExportPorts(data string) []string {
	d, ok := b.DataOutDecl(data)
	if !ok {
		return nil
	}
	if len(d.Ports) == 0 {
		return b.EnforceablePorts()
	}
	return d.Ports
}

// DataNeeds returns every incoming datum a port reads, guard data first,
// without duplicates.
func (b *Behaviour) DataNeeds(port string) []string {
	var out []string
	for _, name := range b.GuardData[port] {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, name := range b.TransitionData[port] {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// Check verifies the structural invariants the encoders rely on: unique
// states and ports, a declared initial state, transitions over declared
// states and ports, and data references that resolve.
func (b *Behaviour) Check() error {
	if b.Type == "" {
		return fmt.Errorf("behaviour type is required")
	}
	if len(b.States) == 0 {
		return fmt.Errorf("behaviour %s: at least one state is required", b.Type)
	}
	seen := make(map[string]bool, len(b.States))
	for _, s := range b.States {
		if seen[s] {
			return fmt.Errorf("behaviour %s: duplicate state %q", b.Type, s)
		}
		seen[s] = true
	}
	if !seen[b.Initial] {
		return fmt.Errorf("behaviour %s: initial state %q is not declared", b.Type, b.Initial)
	}

	ports := make(map[string]bool, len(b.Ports))
	for _, p := range b.Ports {
		if p.ID == "" {
			return fmt.Errorf("behaviour %s: port with empty id", b.Type)
		}
		if ports[p.ID] {
			return fmt.Errorf("behaviour %s: duplicate port %q", b.Type, p.ID)
		}
		ports[p.ID] = true
	}

	for i, t := range b.Transitions {
		if !ports[t.Port] {
			return fmt.Errorf("behaviour %s: transitions[%d] uses undeclared port %q", b.Type, i, t.Port)
		}
		if !seen[t.From] || !seen[t.To] {
			return fmt.Errorf("behaviour %s: transitions[%d] %s -> %s uses undeclared state", b.Type, i, t.From, t.To)
		}
		if t.Guard != "" {
			if _, ok := b.Guards[t.Guard]; !ok {
				return fmt.Errorf("behaviour %s: transitions[%d] references unknown guard %q", b.Type, i, t.Guard)
			}
		}
	}

	for _, d := range b.DataOut {
		for _, p := range d.Ports {
			if !ports[p] {
				return fmt.Errorf("behaviour %s: data %q exported at undeclared port %q", b.Type, d.Name, p)
			}
		}
	}

	for _, table := range []map[string][]string{b.GuardData, b.TransitionData} {
		for port, names := range table {
			if !ports[port] {
				return fmt.Errorf("behaviour %s: data needs declared for undeclared port %q", b.Type, port)
			}
			for _, name := range names {
				if _, ok := b.DataInDecl(name); !ok {
					return fmt.Errorf("behaviour %s: port %q reads undeclared data %q", b.Type, port, name)
				}
			}
		}
	}

	for port := range b.Resources {
		if !ports[port] {
			return fmt.Errorf("behaviour %s: resource request for undeclared port %q", b.Type, port)
		}
	}
	return nil
}

// Holds evaluates the comparison against v. Only integer data can be compared.
func (g GuardDecl) Holds(v Value) (bool, error) {
	n, ok := AsInt(v)
	if !ok {
		return false, fmt.Errorf("guard on %q: want int data, got %s", g.Data, TypeName(v))
	}
	switch g.Op {
	case "eq":
		return n == g.Value, nil
	case "ne":
		return n != g.Value, nil
	case "lt":
		return n < g.Value, nil
	case "le":
		return n <= g.Value, nil
	case "gt":
		return n > g.Value, nil
	case "ge":
		return n >= g.Value, nil
	default:
		return false, fmt.Errorf("guard on %q: unknown operator %q", g.Data, g.Op)
	}
}
