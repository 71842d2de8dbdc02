package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/interlock/internal/compiler"
	"github.com/roach88/interlock/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledComponent is one component type of a compiled system.
type CompiledComponent struct {
	Type      string        `json:"type"`
	Hash      string        `json:"hash"`
	Instances int           `json:"instances"`
	Behaviour *ir.Behaviour `json:"behaviour"`
	Variables ir.Object     `json:"variables,omitempty"`
}

// CompilationResult is the IR of a compiled system.
type CompilationResult struct {
	Components []CompiledComponent `json:"components"`
	Glue       *ir.Glue            `json:"glue"`
	GlueHash   string              `json:"glue_hash"`
	Capacities map[string]int64    `json:"capacities,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile a CUE system to IR",
		Long: `Compile and validate the CUE system in a directory and print its IR:
every component behaviour with its content hash, and the glue with its hash.

The glue hash is the one journalled with every cycle by "interlock run".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, err := LoadSystem(specsDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	if errs := compiler.Validate(loadResult.System); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	result, err := compileResult(loadResult.System)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to hash system", err)
	}
	for _, c := range result.Components {
		formatter.VerboseLog("Compiled component: %s %s", c.Type, c.Hash)
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d component type(s)\n\n", len(result.Components))
	for _, c := range result.Components {
		fmt.Fprintf(w, "  %s x%d: %d state(s), %d port(s), %d transition(s)  %s\n",
			c.Type, c.Instances, len(c.Behaviour.States), len(c.Behaviour.Ports),
			len(c.Behaviour.Transitions), shortHash(c.Hash))
	}
	fmt.Fprintf(w, "\nGlue: %d require, %d accept, %d wire(s)  %s\n",
		len(result.Glue.Requires), len(result.Glue.Accepts), len(result.Glue.Wires), shortHash(result.GlueHash))
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote IR to %s\n", opts.Output)
	}
	return nil
}

func compileResult(sys *compiler.System) (*CompilationResult, error) {
	result := &CompilationResult{
		Components: make([]CompiledComponent, 0, len(sys.Components)),
		Glue:       sys.Glue,
		Capacities: sys.Capacities,
	}
	for _, c := range sys.Components {
		hash, err := ir.BehaviourHash(c.Behaviour)
		if err != nil {
			return nil, err
		}
		result.Components = append(result.Components, CompiledComponent{
			Type:      c.Behaviour.Type,
			Hash:      hash,
			Instances: sys.InstanceCount(c.Behaviour.Type),
			Behaviour: c.Behaviour,
			Variables: c.Variables,
		})
	}
	hash, err := ir.GlueHash(sys.Glue)
	if err != nil {
		return nil, err
	}
	result.GlueHash = hash
	return result, nil
}

// shortHash abbreviates a content hash for text output.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// writeIRToFile writes the compilation result as indented JSON.
// (canonical JSON without indentation is used only for hashing)
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
