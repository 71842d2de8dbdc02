// Package ir provides the shared vocabulary of the interlock coordination engine.
//
// It holds the descriptors components register with (Behaviour), the glue
// that constrains them (Require/Accept macros and data Wires), the records an
// engine cycle produces (Interaction, Firing, Pairing) and the sealed data
// Value types that travel over data wires.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in data values - use Int for numbers
//   - Component identity is opaque (ComponentID); type names are plain strings
//   - All JSON tags use snake_case
//   - Content identity (GlueHash, InteractionID) uses canonical JSON with
//     domain-separated SHA-256
package ir
