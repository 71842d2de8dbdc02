package ir

import "slices"

// NoPort is the port id passed to a component that does not take part in
// the chosen interaction.
const NoPort = ""

// PortRef names a port of one component instance.
type PortRef struct {
	Component ComponentID `json:"component"`
	Port      string      `json:"port"`
}

// String renders the reference as "component.port".
func (p PortRef) String() string {
	return string(p.Component) + "." + p.Port
}

// Firing is one port fired in an interaction.
type Firing struct {
	Component ComponentID `json:"component"`
	Type      string      `json:"type"`
	Port      string      `json:"port"`
}

// Pairing is one data pairing exercised by an interaction: the consumer port
// reads data exported by the producer port.
type Pairing struct {
	Consumer PortRef `json:"consumer"`
	Producer PortRef `json:"producer"`
}

// Interaction is the outcome of one engine cycle.
type Interaction struct {
	Cycle      int64     `json:"cycle"`
	ID         string    `json:"id"`
	Firings    []Firing  `json:"firings"`
	Pairings   []Pairing `json:"pairings,omitempty"`
	Candidates int       `json:"candidates"`
}

// Fires reports whether the interaction fires the port of the component.
func (i *Interaction) Fires(component ComponentID, port string) bool {
	for _, f := range i.Firings {
		if f.Component == component && f.Port == port {
			return true
		}
	}
	return false
}

// PortOf returns the port a component fires, or NoPort.
func (i *Interaction) PortOf(component ComponentID) string {
	for _, f := range i.Firings {
		if f.Component == component {
			return f.Port
		}
	}
	return NoPort
}

// Specs returns the sorted "Type.port" specs fired by the interaction.
func (i *Interaction) Specs() []string {
	out := make([]string, 0, len(i.Firings))
	for _, f := range i.Firings {
		out = append(out, f.Type+"."+f.Port)
	}
	slices.Sort(out)
	return out
}

// ProducersFor returns the producer ports paired with a consumer port.
func (i *Interaction) ProducersFor(consumer PortRef) []PortRef {
	var out []PortRef
	for _, p := range i.Pairings {
		if p.Consumer == consumer {
			out = append(out, p.Producer)
		}
	}
	return out
}
