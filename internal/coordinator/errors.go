package coordinator

import (
	"errors"
	"fmt"

	"github.com/roach88/interlock/internal/ir"
)

// ProtocolError is a violation of the component callback contract.
type ProtocolError struct {
	// Code identifies the error category.
	Code ProtocolErrorCode

	// Component is the component involved, if any.
	Component ir.ComponentID

	// Port is the port involved, if any.
	Port string

	// Message is a human-readable description.
	Message string
}

// ProtocolErrorCode categorizes protocol errors.
type ProtocolErrorCode string

const (
	ErrCodeDuplicateInform       ProtocolErrorCode = "DUPLICATE_INFORM"
	ErrCodeUnregisteredComponent ProtocolErrorCode = "UNREGISTERED_COMPONENT"
	ErrCodeUnknownState          ProtocolErrorCode = "UNKNOWN_STATE"
	ErrCodeUnknownPort           ProtocolErrorCode = "UNKNOWN_PORT"
	ErrCodeEmptyPort             ProtocolErrorCode = "EMPTY_PORT"
	ErrCodeComponentlessPort     ProtocolErrorCode = "COMPONENTLESS_PORT"
	ErrCodeNotRunning            ProtocolErrorCode = "NOT_RUNNING"
	ErrCodeAlreadyRunning        ProtocolErrorCode = "ALREADY_RUNNING"
	ErrCodeStopped               ProtocolErrorCode = "STOPPED"
	ErrCodeDataUnavailable       ProtocolErrorCode = "DATA_UNAVAILABLE"
)

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	switch {
	case e.Component != "" && e.Port != "":
		return fmt.Sprintf("%s: %s (component=%s, port=%s)", e.Code, e.Message, e.Component, e.Port)
	case e.Component != "":
		return fmt.Sprintf("%s: %s (component=%s)", e.Code, e.Message, e.Component)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsProtocolError reports whether err wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ProtocolErrorCodeOf returns the code of a wrapped ProtocolError, or "".
func ProtocolErrorCodeOf(err error) ProtocolErrorCode {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func protocolErr(code ProtocolErrorCode, id ir.ComponentID, port, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Component: id, Port: port, Message: fmt.Sprintf(format, args...)}
}
