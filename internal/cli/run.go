package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/interlock/internal/compiler"
	"github.com/roach88/interlock/internal/coordinator"
	"github.com/roach88/interlock/internal/engine"
	"github.com/roach88/interlock/internal/ir"
	"github.com/roach88/interlock/internal/runner"
	"github.com/roach88/interlock/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Cycles      int64
	Seed        uint64
	Database    string
	RunID       string
	MetricsAddr string
	Trace       bool

	// Handles allows overriding the component handle generator (for testing).
	// If nil, handles are sequential "Type-n" ids.
	Handles coordinator.HandleGenerator
}

// RunInteraction is one solved cycle in run output.
type RunInteraction struct {
	Cycle      int64    `json:"cycle"`
	ID         string   `json:"id"`
	Fired      []string `json:"fired"`
	Candidates int      `json:"candidates"`
}

// RunResult holds the run command output.
type RunResult struct {
	RunID        string           `json:"run_id,omitempty"`
	GlueHash     string           `json:"glue_hash"`
	Interactions []RunInteraction `json:"interactions"`
	Deadlock     string           `json:"deadlock,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Run a CUE system for a number of cycles",
		Long: `Compile and validate the CUE system in a directory, start one automaton
per declared instance and run the coordinator for --cycles cycles.

Each solved cycle is printed. With --db the registrations and cycles are
journalled to SQLite under a fresh run id (see "interlock trace").

Exit codes:
  0 - All cycles ran
  1 - The run stopped early (deadlock or runtime error)
  2 - Command error (invalid specs, database errors)

Examples:
  interlock run ./specs --cycles 20 --seed 7
  interlock run ./specs --cycles 1000 --db ./journal.db --metrics-addr :9090
  interlock run ./specs --cycles 5 --trace 2> spans.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystem(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Cycles, "cycles", 10, "number of cycles to run")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "seed for choosing among maximal interactions")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id to journal under (default: a fresh UUIDv7)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "export OpenTelemetry spans to stderr")

	return cmd
}

func runSystem(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Cycles <= 0 {
		return NewExitError(ExitCommandError, "--cycles must be positive")
	}

	sys, err := loadValid(formatter, specsDir)
	if err != nil {
		return err
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Trace {
		shutdown, err := setupTracing(cmd.ErrOrStderr())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to set up tracing", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("error flushing spans", "error", err)
			}
		}()
	}

	if opts.MetricsAddr != "" {
		srv, _, err := serveMetrics(opts.MetricsAddr, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runOpts := runner.Options{
		Seed:    opts.Seed,
		Cycles:  opts.Cycles,
		Handles: opts.Handles,
		Logger:  logger,
	}

	result := RunResult{Interactions: []RunInteraction{}}
	if opts.Database != "" {
		var storeOpts []store.Option
		if opts.RunID != "" {
			storeOpts = append(storeOpts, store.WithRunID(opts.RunID))
		}
		st, err := store.Open(opts.Database, storeOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		if err := st.RecordRun(ctx, opts.Seed, specsDir); err != nil {
			return WrapExitError(ExitCommandError, "failed to journal run", err)
		}
		runOpts.Recorder = st
		result.RunID = st.RunID()
		logger.Info("journalling run", "db", opts.Database, "run_id", st.RunID())
	}

	out, runErr := runner.Run(ctx, sys, runOpts)
	if out == nil {
		return WrapExitError(ExitCommandError, "failed to start run", runErr)
	}
	result.GlueHash = out.GlueHash
	for _, in := range out.Interactions {
		result.Interactions = append(result.Interactions, runInteraction(in))
	}

	var rerr *engine.RuntimeError
	if runErr != nil && engine.IsDeadlock(runErr) && errors.As(runErr, &rerr) {
		result.Deadlock = string(rerr.Code)
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, in := range result.Interactions {
			fmt.Fprintf(formatter.Writer, "cycle %d: %s\n", in.Cycle, strings.Join(in.Fired, " "))
		}
		if result.Deadlock != "" {
			fmt.Fprintf(formatter.Writer, "deadlock after %d cycle(s): %s\n", len(result.Interactions), result.Deadlock)
		}
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, context.Canceled):
		logger.Info("run interrupted", "cycles", len(result.Interactions))
		return nil
	default:
		return WrapExitError(ExitFailure, "run stopped", runErr)
	}
}

// loadValid loads and validates a system, reporting problems through
// the formatter.
func loadValid(formatter *OutputFormatter, specsDir string) (*compiler.System, error) {
	loadResult, err := LoadSystem(specsDir)
	if err != nil {
		return nil, outputLoadError(formatter, err)
	}
	if errs := compiler.Validate(loadResult.System); len(errs) > 0 {
		_ = outputValidationErrors(formatter, errs)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid specs: %d validation error(s)", len(errs)))
	}
	return loadResult.System, nil
}

func runInteraction(in *ir.Interaction) RunInteraction {
	fired := make([]string, 0, len(in.Firings))
	for _, f := range in.Firings {
		fired = append(fired, ir.PortRef{Component: f.Component, Port: f.Port}.String())
	}
	return RunInteraction{
		Cycle:      in.Cycle,
		ID:         in.ID,
		Fired:      fired,
		Candidates: in.Candidates,
	}
}
