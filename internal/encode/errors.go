package encode

import (
	"errors"
	"fmt"
)

// Configuration error codes.
const (
	ErrCodeMissingEffect    = "MISSING_EFFECT"
	ErrCodeMissingCauses    = "MISSING_CAUSES"
	ErrCodeNoInstances      = "NO_INSTANCES"
	ErrCodeUnknownPort      = "UNKNOWN_PORT"
	ErrCodeUnknownComponent = "UNKNOWN_COMPONENT"
	ErrCodeUnknownState     = "UNKNOWN_STATE"
	ErrCodeNoBehaviour      = "NO_BEHAVIOUR"
	ErrCodeDuplicate        = "DUPLICATE_COMPONENT"
	ErrCodeUnknownData      = "UNKNOWN_DATA"
)

// ConfigError reports glue or registration input the encoders cannot use.
// It is raised while formulas are computed and is never retried.
type ConfigError struct {
	Code    string
	Message string
	Port    string
}

func (e *ConfigError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Port, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func configErr(code, port, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Port: port, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrorCode returns the code of a wrapped ConfigError, or "".
func ConfigErrorCode(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
