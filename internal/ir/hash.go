package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content identity. The version suffix allows the
// hashed shape to change without colliding with older journals.
const (
	DomainGlue        = "interlock/glue/v1"
	DomainBehaviour   = "interlock/behaviour/v1"
	DomainInteraction = "interlock/interaction/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func specArray(specs []PortSpec) Array {
	arr := make(Array, len(specs))
	for i, s := range specs {
		arr[i] = String(s.String())
	}
	return arr
}

// GlueObject renders glue as a Value tree. Macro order is kept: it is part
// of what the user wrote.
func GlueObject(g *Glue) Object {
	requires := make(Array, 0, len(g.Requires))
	for _, r := range g.Requires {
		causes := make(Array, 0, len(r.Causes))
		for _, clause := range r.Causes {
			causes = append(causes, specArray(clause))
		}
		requires = append(requires, Object{
			"effect": String(r.Effect.String()),
			"causes": causes,
		})
	}

	accepts := make(Array, 0, len(g.Accepts))
	for _, a := range g.Accepts {
		accepts = append(accepts, Object{
			"effect": String(a.Effect.String()),
			"causes": specArray(a.Causes),
		})
	}

	wires := make(Array, 0, len(g.Wires))
	for _, w := range g.Wires {
		wires = append(wires, Object{
			"from": String(w.From.String()),
			"to":   String(w.To.String()),
		})
	}

	return Object{
		"requires": requires,
		"accepts":  accepts,
		"wires":    wires,
	}
}

// GlueHash returns the content hash of a glue description.
func GlueHash(g *Glue) (string, error) {
	canonical, err := MarshalCanonical(GlueObject(g))
	if err != nil {
		return "", fmt.Errorf("GlueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGlue, canonical), nil
}

// BehaviourHash returns the content hash of a component type's automaton
// shape: states, initial state, ports and transitions.
func BehaviourHash(b *Behaviour) (string, error) {
	states := make(Array, len(b.States))
	for i, s := range b.States {
		states[i] = String(s)
	}
	ports := make(Array, len(b.Ports))
	for i, p := range b.Ports {
		ports[i] = Object{"id": String(p.ID), "kind": String(string(p.Kind))}
	}
	transitions := make(Array, len(b.Transitions))
	for i, t := range b.Transitions {
		transitions[i] = Object{
			"port":  String(t.Port),
			"from":  String(t.From),
			"to":    String(t.To),
			"guard": String(t.Guard),
		}
	}

	canonical, err := MarshalCanonical(Object{
		"type":        String(b.Type),
		"states":      states,
		"initial":     String(b.Initial),
		"ports":       ports,
		"transitions": transitions,
	})
	if err != nil {
		return "", fmt.Errorf("BehaviourHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBehaviour, canonical), nil
}

// InteractionID identifies the interaction chosen in a cycle. Firings are
// hashed in component order so the ID does not depend on discovery order.
func InteractionID(cycle int64, firings []Firing) (string, error) {
	sorted := slices.Clone(firings)
	slices.SortFunc(sorted, func(a, b Firing) int {
		if a.Component != b.Component {
			if a.Component < b.Component {
				return -1
			}
			return 1
		}
		if a.Port < b.Port {
			return -1
		}
		if a.Port > b.Port {
			return 1
		}
		return 0
	})

	arr := make(Array, len(sorted))
	for i, f := range sorted {
		arr[i] = Object{
			"component": String(string(f.Component)),
			"type":      String(f.Type),
			"port":      String(f.Port),
		}
	}

	canonical, err := MarshalCanonical(Object{
		"cycle":   Int(cycle),
		"firings": arr,
	})
	if err != nil {
		return "", fmt.Errorf("InteractionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInteraction, canonical), nil
}

// MustGlueHash is like GlueHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGlueHash(g *Glue) string {
	h, err := GlueHash(g)
	if err != nil {
		panic(err)
	}
	return h
}

// MustInteractionID is like InteractionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInteractionID(cycle int64, firings []Firing) string {
	id, err := InteractionID(cycle, firings)
	if err != nil {
		panic(err)
	}
	return id
}
