package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/interlock/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate a CUE system",
		Long: `Compile the CUE system in a directory and check it against the
validation rules: component structure, data and guard references, glue
port and wire references, instance counts and resource capacities.

All validation errors are reported, not just the first.

Exit codes:
  0 - System is valid
  1 - Validation errors found
  2 - Command error (directory not found, CUE does not compile)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, err := LoadSystem(specsDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	for _, c := range loadResult.System.Components {
		formatter.VerboseLog("Validating component: %s (%d instance(s))",
			c.Behaviour.Type, loadResult.System.InstanceCount(c.Behaviour.Type))
	}

	if errs := compiler.Validate(loadResult.System); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	return outputValidateSuccess(formatter, loadResult)
}

// ValidateSpecsDir loads and validates the system in specsDir.
// The error is non-nil only when the system cannot be loaded.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	loadResult, err := LoadSystem(specsDir)
	if err != nil {
		return nil, err
	}
	return compiler.Validate(loadResult.System), nil
}

// outputLoadError reports a LoadSystem failure as a command error.
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
		message = loadErr.Error()
	}
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, "failed to load specs", err)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, loadResult *LoadResult) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true})
	}
	sys := loadResult.System
	fmt.Fprintf(formatter.Writer, "✓ System valid: %d component type(s), %d require, %d accept, %d wire(s)\n",
		len(sys.Components), len(sys.Glue.Requires), len(sys.Glue.Accepts), len(sys.Glue.Wires))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
