// Package engine is the symbolic solver of the interlock coordinator.
//
// The engine owns the formula slots of a system:
//
//   - one behaviour formula per registered component
//   - the glue formula, rebuilt whenever membership or glue changes
//   - the permanent data formula (d-variable implications)
//   - one current-state formula per component, replaced every cycle
//   - the temporary constraints added by stages, cleared every cycle
//
// The total constraint is the conjunction of the first three slots. Each
// RunOneIteration conjoins it with the current-state and temporary slots,
// enumerates the satisfying cubes, reduces them to the antichain of maximal
// port sets and picks one uniformly at random.
//
// Deadlock policy: no maximal interaction at all, or a single maximal
// interaction that fires nothing, is fatal. The caller must stop its loop.
//
// Thread-safety: every exported method takes the engine lock, so stages and
// informing components may call in from any goroutine. Cycles themselves are
// strictly sequential; the coordinator never overlaps two RunOneIteration
// calls.
package engine
