package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/interlock/internal/ir"
)

// RuntimeError is a failure detected while solving a cycle.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Cycle is the cycle being solved.
	Cycle int64

	// Component is set when the error concerns one component.
	Component ir.ComponentID
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNoMaximalInteractions means the combined formula is unsatisfiable.
	ErrCodeNoMaximalInteractions RuntimeErrorCode = "NO_MAXIMAL_INTERACTIONS"

	// ErrCodeNoEnabledPorts means the only maximal interaction fires nothing.
	ErrCodeNoEnabledPorts RuntimeErrorCode = "NO_ENABLED_PORTS"

	// ErrCodeMissingCurrentState means a live component has not informed.
	ErrCodeMissingCurrentState RuntimeErrorCode = "MISSING_CURRENT_STATE"

	// ErrCodeTooManyCubes means enumeration exceeded the configured bound.
	ErrCodeTooManyCubes RuntimeErrorCode = "TOO_MANY_CUBES"

	// ErrCodeNotCompiled means a cycle was requested before Compile.
	ErrCodeNotCompiled RuntimeErrorCode = "NOT_COMPILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s (cycle=%d, component=%s)", e.Code, e.Message, e.Cycle, e.Component)
	}
	return fmt.Sprintf("%s: %s (cycle=%d)", e.Code, e.Message, e.Cycle)
}

// IsDeadlock reports whether err is one of the two deadlock failures.
// Uses errors.As to handle wrapped errors.
func IsDeadlock(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoMaximalInteractions || re.Code == ErrCodeNoEnabledPorts
	}
	return false
}

// IsRuntimeError reports whether err wraps a RuntimeError with the code.
func IsRuntimeError(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

func newDeadlock(cycle int64, code RuntimeErrorCode) *RuntimeError {
	msg := "no maximal interactions"
	if code == ErrCodeNoEnabledPorts {
		msg = "no enabled ports"
	}
	return &RuntimeError{Code: code, Message: msg, Cycle: cycle}
}
