// Package harness provides conformance testing for interlock systems.
//
// The harness loads a CUE system, runs it for a fixed number of cycles with
// a fixed seed and predictable component handles, and checks the resulting
// interaction trace against the scenario's assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs: ../specs/pipeline
//	seed: 7
//	cycles: 4
//	assertions:
//	  - type: every_cycle_contains
//	    port: Counter.tick
//	  - type: fires_together
//	    ports: [Sampler.sample, Counter.tick]
//	  - type: final_state
//	    component: test-Counter-1
//	    state: run
//	    expect: { count: 4 }
//
// The specs path names a CUE package directory and is resolved relative to
// the scenario file.
//
// # Assertion Types
//
//   - every_cycle_contains: the port fires in every cycle
//   - never_alone: whenever the port fires, some other port fires with it
//   - fires_together: in each cycle, the ports fire all together or not at all
//   - fire_count: the port fires in exactly count cycles
//   - cycle_count: the run produced exactly count cycles
//   - deadlock: the run ended in a deadlock, with the given code if set
//   - final_state: a component ends in a state and/or with variable values
//
// Ports are written "Type.port" and match any instance of the type.
//
// # Deterministic Testing
//
// Every run uses the scenario seed and handles of the form
// "test-<Type>-<n>", so identical scenarios produce identical traces.
// Traces are compared against golden files with RunWithGolden.
package harness
