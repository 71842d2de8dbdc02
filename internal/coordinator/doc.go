// Package coordinator runs the cycle protocol around the symbolic engine.
//
// Components register with a behaviour, inform the coordinator of their
// state once per cycle and receive an Execute callback for every cycle: the
// port they fire, or NoPort. The solver goroutine waits on a barrier until
// every live component has informed, runs the configured stages, asks the
// engine for one maximal interaction and dispatches it.
//
// Membership changes requested while the solver runs are queued on a gate
// and applied between cycles, so a cycle never sees a half-registered
// component.
//
// Per component the protocol is a two-state machine:
//
//	idle --Inform--> informed --(cycle solved)--> idle
//
// A second Inform in the informed state is a DUPLICATE_INFORM protocol error.
package coordinator
