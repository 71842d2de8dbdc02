// Package testutil holds deterministic helpers for tests and the harness.
package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/interlock/internal/ir"
)

// FixedHandleGenerator hands out predictable component handles of the form
// "<prefix>-<Type>-<n>", numbering each type from 1.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same generator produces byte-identical traces.
//
// Thread-safety: Generate is safe for concurrent use.
type FixedHandleGenerator struct {
	prefix string

	mu   sync.Mutex
	next map[string]int
}

// NewFixedHandleGenerator creates a generator with the given prefix.
//
// If prefix is empty, handles start with "test".
func NewFixedHandleGenerator(prefix string) *FixedHandleGenerator {
	if prefix == "" {
		prefix = "test"
	}
	return &FixedHandleGenerator{prefix: prefix, next: make(map[string]int)}
}

// Generate returns the next handle for typ.
//
// Implements coordinator.HandleGenerator.
func (g *FixedHandleGenerator) Generate(typ string) ir.ComponentID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[typ]++
	return ir.ComponentID(fmt.Sprintf("%s-%s-%d", g.prefix, typ, g.next[typ]))
}
