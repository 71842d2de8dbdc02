package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/interlock/internal/ir"
)

var (
	// ErrNoRuns is returned by LatestRun on an empty journal.
	ErrNoRuns = errors.New("journal has no runs")

	// ErrRunNotFound is returned by ReadRun for an unknown run id.
	ErrRunNotFound = errors.New("run not found")
)

// ReadRun returns how a run was started.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	var seed int64
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, seed, specs FROM runs WHERE run_id = ?
	`, runID).Scan(&r.RunID, &seed, &r.Specs)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	r.Seed = uint64(seed)
	return r, nil
}

// ReadCycles returns the cycles of a run ordered by cycle number.
// A positive limit keeps only the first limit cycles.
//
// Returns an empty slice (not nil) if the run has no cycles.
func (s *Store) ReadCycles(ctx context.Context, runID string, limit int) ([]Cycle, error) {
	query := `
		SELECT run_id, cycle, interaction_id, glue_hash, candidates, firings, pairings
		FROM cycles
		WHERE run_id = ?
		ORDER BY cycle ASC
	`
	args := []any{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

// ReadRegistrations returns the membership changes of a run in order.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadRegistrations(ctx context.Context, runID string) ([]Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, run_id, component_id, component_type, event
		FROM registrations
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", err)
	}
	defer rows.Close()

	regs := []Registration{}
	for rows.Next() {
		var r Registration
		var id string
		if err := rows.Scan(&r.Seq, &r.RunID, &id, &r.ComponentType, &r.Event); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		r.ComponentID = ir.ComponentID(id)
		regs = append(regs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, nil
}

// LatestRun returns the run id whose first registration was written last.
func (s *Store) LatestRun(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id
		FROM registrations
		GROUP BY run_id
		ORDER BY MIN(seq) DESC
		LIMIT 1
	`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}

func scanCycle(rows *sql.Rows) (Cycle, error) {
	var c Cycle
	var firings, pairings string
	if err := rows.Scan(&c.RunID, &c.Cycle, &c.InteractionID, &c.GlueHash, &c.Candidates, &firings, &pairings); err != nil {
		return Cycle{}, fmt.Errorf("scan cycle: %w", err)
	}
	var err error
	if c.Firings, err = unmarshalFirings(firings); err != nil {
		return Cycle{}, err
	}
	if c.Pairings, err = unmarshalPairings(pairings); err != nil {
		return Cycle{}, err
	}
	return c, nil
}

// Interaction rebuilds the interaction a cycle row records.
func (c Cycle) Interaction() *ir.Interaction {
	return &ir.Interaction{
		Cycle:      c.Cycle,
		ID:         c.InteractionID,
		Firings:    c.Firings,
		Pairings:   c.Pairings,
		Candidates: c.Candidates,
	}
}
