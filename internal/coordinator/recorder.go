package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/interlock/internal/ir"
)

// Registration events passed to Recorder.RecordRegistration.
const (
	EventRegistered   = "registered"
	EventDeregistered = "deregistered"
)

// Recorder receives membership changes and solved cycles, typically to
// journal them.
type Recorder interface {
	RecordRegistration(ctx context.Context, id ir.ComponentID, typ, event string) error
	RecordCycle(ctx context.Context, glueHash string, in *ir.Interaction) error
}

// Recorders fans out to several recorders, joining their errors.
type Recorders []Recorder

func (rs Recorders) RecordRegistration(ctx context.Context, id ir.ComponentID, typ, event string) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordRegistration(ctx, id, typ, event))
	}
	return errors.Join(errs...)
}

func (rs Recorders) RecordCycle(ctx context.Context, glueHash string, in *ir.Interaction) error {
	var errs []error
	for _, r := range rs {
		errs = append(errs, r.RecordCycle(ctx, glueHash, in))
	}
	return errors.Join(errs...)
}

// MemoryRecorder keeps every solved interaction in memory.
type MemoryRecorder struct {
	mu           sync.Mutex
	interactions []*ir.Interaction
}

func (m *MemoryRecorder) RecordRegistration(context.Context, ir.ComponentID, string, string) error {
	return nil
}

func (m *MemoryRecorder) RecordCycle(_ context.Context, _ string, in *ir.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, in)
	return nil
}

// Interactions returns the recorded interactions in cycle order.
func (m *MemoryRecorder) Interactions() []*ir.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ir.Interaction(nil), m.interactions...)
}
