// Package bdd is the decision-diagram manager shared by every encoder.
//
// It wraps github.com/dalzilio/rudd behind a mutex so concurrent informs
// cannot interleave node-table mutations, grows the variable space
// monotonically, enumerates satisfying assignments as ternary cubes, and
// keeps an arena of retained formulas addressed by stable Refs.
//
// Formulas that are not retained are dropped as soon as the caller lets go
// of them; the engine only retains what sits in its total, current-state and
// temporary slots.
package bdd
