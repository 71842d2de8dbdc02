package ir

import (
	"fmt"
	"strings"
)

// PortSpec names a port of a component type ("Type.port"), independent of
// any instance.
type PortSpec struct {
	Type string `json:"type"`
	Port string `json:"port"`
}

// String renders the port as "Type.port".
func (p PortSpec) String() string {
	return p.Type + "." + p.Port
}

// ParsePortSpec parses "Type.port".
func ParsePortSpec(s string) (PortSpec, error) {
	typ, port, ok := strings.Cut(s, ".")
	if !ok || typ == "" || port == "" {
		return PortSpec{}, fmt.Errorf("invalid port spec %q: want Type.port", s)
	}
	return PortSpec{Type: typ, Port: port}, nil
}

// DataSpec names a datum of a component type ("Type.data").
type DataSpec struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// String renders the datum as "Type.data".
func (d DataSpec) String() string {
	return d.Type + "." + d.Data
}

// ParseDataSpec parses "Type.data".
func ParseDataSpec(s string) (DataSpec, error) {
	typ, data, ok := strings.Cut(s, ".")
	if !ok || typ == "" || data == "" {
		return DataSpec{}, fmt.Errorf("invalid data spec %q: want Type.data", s)
	}
	return DataSpec{Type: typ, Data: data}, nil
}

// Require states that the effect port may only fire together with one of
// the cause clauses. A clause lists the cause ports that must fire together;
// a port listed k times requires k distinct instances of its type. An empty
// clause requires nothing.
type Require struct {
	Effect PortSpec     `json:"effect"`
	Causes [][]PortSpec `json:"causes"`
}

// Accept states which ports may fire together with the effect port. Every
// enforceable port not listed is forbidden from co-firing with it.
type Accept struct {
	Effect PortSpec   `json:"effect"`
	Causes []PortSpec `json:"causes"`
}

// Wire routes an outgoing datum of one component type to an incoming datum
// of another.
type Wire struct {
	From DataSpec `json:"from"`
	To   DataSpec `json:"to"`
}

// Glue is the already-parsed connector description.
type Glue struct {
	Requires []Require `json:"requires"`
	Accepts  []Accept  `json:"accepts"`
	Wires    []Wire    `json:"wires,omitempty"`
}

// WiresInto returns the wires delivering the incoming datum (typ, data).
func (g *Glue) WiresInto(typ, data string) []Wire {
	var out []Wire
	for _, w := range g.Wires {
		if w.To.Type == typ && w.To.Data == data {
			out = append(out, w)
		}
	}
	return out
}

// Cardinalities collapses a clause into distinct cause specs and how many
// instances of each the clause requires, in first-appearance order.
func Cardinalities(clause []PortSpec) ([]PortSpec, []int) {
	var specs []PortSpec
	var counts []int
	for _, p := range clause {
		found := false
		for i, s := range specs {
			if s == p {
				counts[i]++
				found = true
				break
			}
		}
		if !found {
			specs = append(specs, p)
			counts = append(counts, 1)
		}
	}
	return specs, counts
}
