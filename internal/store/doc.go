// Package store provides a SQLite-backed journal of coordinator runs.
//
// The journal is append-only and keyed by run id:
//   - Registrations: every component registered or deregistered, in order
//   - Cycles: one row per solved cycle with the chosen interaction
//
// The engine never reads the journal back; it is an audit trail for the
// trace command and for tests.
//
// # Ordering
//
// Queries order by seq (registrations) and cycle (cycles), never by wall
// time, so reading a journal twice yields identical results.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Firings and pairings are stored as canonical JSON produced by
// ir.MarshalCanonical.
package store
