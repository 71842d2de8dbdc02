package store

import (
	"context"
	"fmt"

	"github.com/roach88/interlock/internal/ir"
)

// Run describes how a run was started.
type Run struct {
	RunID string
	Seed  uint64
	Specs string
}

// Registration is one membership change of a run.
type Registration struct {
	Seq           int64
	RunID         string
	ComponentID   ir.ComponentID
	ComponentType string
	Event         string
}

// Cycle is one solved cycle of a run.
type Cycle struct {
	RunID         string
	Cycle         int64
	InteractionID string
	GlueHash      string
	Candidates    int
	Firings       []ir.Firing
	Pairings      []ir.Pairing
}

// WriteRun records how a run was started. Rewriting a run id is an error.
func (s *Store) WriteRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, seed, specs)
		VALUES (?, ?, ?)
	`,
		r.RunID,
		int64(r.Seed),
		r.Specs,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// RecordRun records the store's own run.
func (s *Store) RecordRun(ctx context.Context, seed uint64, specs string) error {
	return s.WriteRun(ctx, Run{RunID: s.runID, Seed: seed, Specs: specs})
}

// WriteRegistration appends a membership change. Seq is assigned by the
// database; the value in reg is ignored.
func (s *Store) WriteRegistration(ctx context.Context, reg Registration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (run_id, component_id, component_type, event)
		VALUES (?, ?, ?, ?)
	`,
		reg.RunID,
		string(reg.ComponentID),
		reg.ComponentType,
		reg.Event,
	)
	if err != nil {
		return fmt.Errorf("write registration: %w", err)
	}
	return nil
}

// WriteCycle inserts a solved cycle.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting the same
// (run, cycle) is silently ignored.
func (s *Store) WriteCycle(ctx context.Context, c Cycle) error {
	firings, err := marshalFirings(c.Firings)
	if err != nil {
		return fmt.Errorf("write cycle: %w", err)
	}
	pairings, err := marshalPairings(c.Pairings)
	if err != nil {
		return fmt.Errorf("write cycle: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cycles
		(run_id, cycle, interaction_id, glue_hash, candidates, firings, pairings)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, cycle) DO NOTHING
	`,
		c.RunID,
		c.Cycle,
		c.InteractionID,
		c.GlueHash,
		c.Candidates,
		firings,
		pairings,
	)
	if err != nil {
		return fmt.Errorf("write cycle: %w", err)
	}
	return nil
}

// RecordRegistration journals a membership change under the store's run id.
func (s *Store) RecordRegistration(ctx context.Context, id ir.ComponentID, typ, event string) error {
	return s.WriteRegistration(ctx, Registration{
		RunID:         s.runID,
		ComponentID:   id,
		ComponentType: typ,
		Event:         event,
	})
}

// RecordCycle journals a solved interaction under the store's run id.
func (s *Store) RecordCycle(ctx context.Context, glueHash string, in *ir.Interaction) error {
	return s.WriteCycle(ctx, Cycle{
		RunID:         s.runID,
		Cycle:         in.Cycle,
		InteractionID: in.ID,
		GlueHash:      glueHash,
		Candidates:    in.Candidates,
		Firings:       in.Firings,
		Pairings:      in.Pairings,
	})
}
