package coordinator

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/interlock/internal/ir"
)

// HandleGenerator hands out component identities at registration.
type HandleGenerator interface {
	Generate(typ string) ir.ComponentID
}

// UUIDv7Generator generates time-sortable UUIDv7 handles.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a fresh UUIDv7. Panics if the random source fails.
func (UUIDv7Generator) Generate(string) ir.ComponentID {
	return ir.ComponentID(uuid.Must(uuid.NewV7()).String())
}

// SequentialGenerator numbers handles per type: "Type-1", "Type-2", ...
// Handles are stable across runs with the same registration order.
type SequentialGenerator struct {
	mu   sync.Mutex
	next map[string]int
}

// NewSequentialGenerator creates a generator with every counter at zero.
func NewSequentialGenerator() *SequentialGenerator {
	return &SequentialGenerator{next: make(map[string]int)}
}

// Generate returns the next handle for typ.
func (g *SequentialGenerator) Generate(typ string) ir.ComponentID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[typ]++
	return ir.ComponentID(fmt.Sprintf("%s-%d", typ, g.next[typ]))
}
