package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/interlock/internal/compiler"
)

// LoadResult is a compiled system and where it came from.
type LoadResult struct {
	System    *compiler.System
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSystem loads and compiles the CUE system in dir. It does not run the
// validation rules; see compiler.Validate. Every failure is a *LoadError.
func LoadSystem(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	value, err := compiler.Build(dir)
	if err != nil {
		return nil, convertCompileError(err, ErrCodeLoadFailed)
	}
	sys, err := compiler.CompileSystem(value)
	if err != nil {
		return nil, convertCompileError(err, ErrCodeGeneric)
	}
	return &LoadResult{System: sys, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles returns the .cue files directly in dir. CUE loads one
// package per directory, so subdirectories are not searched.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, fallback string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: fallback, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
// Validation rules use the compiler's E1xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeInvalidType      = "E011" // Unsupported data type (e.g., float)
	ErrCodeInvalidComponent = "E012" // Malformed component block
	ErrCodeInvalidGlue      = "E013" // Malformed glue block
	ErrCodeInvalidInstances = "E014" // Malformed instances or capacity block
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	head := field
	if i := strings.IndexAny(field, ".["); i >= 0 {
		head = field[:i]
	}
	switch head {
	case "cue":
		return ErrCodeBuildFailed
	case "type":
		return ErrCodeInvalidType
	case "component", "states", "initial", "ports", "transitions", "variables",
		"data_in", "data_out", "guards", "guard_data", "transition_data", "resources", "updates":
		return ErrCodeInvalidComponent
	case "glue", "require", "accept", "wires":
		return ErrCodeInvalidGlue
	case "instances", "capacity":
		return ErrCodeInvalidInstances
	default:
		return ErrCodeGeneric
	}
}
