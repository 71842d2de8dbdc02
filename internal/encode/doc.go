// Package encode turns component behaviour, glue, reported state and data
// wiring into boolean formulas over one shared variable space.
//
// Space allocates variables: every state and then every enforceable port of
// a component, in registration order, followed later by one d-variable per
// data pairing. Positions are append-only; a deregistered component's
// positions are retired and never reused.
//
// The encoders are pure functions of the Space (plus the glue), except
// DataEncoder, which remembers the pairings it has allocated so the same
// consumer/producer pair always maps to the same d-variable.
package encode
