package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/interlock/internal/runner"
	"github.com/roach88/interlock/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
}

// ReplayMismatch is the first cycle where the rerun diverged.
type ReplayMismatch struct {
	Cycle    int64  `json:"cycle"`
	Journal  string `json:"journal"`
	Replayed string `json:"replayed"`
}

// ReplayResult holds the replay result for one run.
type ReplayResult struct {
	RunID         string          `json:"run_id"`
	Seed          uint64          `json:"seed"`
	Specs         string          `json:"specs"`
	Cycles        int             `json:"cycles"`
	Replayed      int             `json:"replayed"`
	Deterministic bool            `json:"deterministic"`
	Mismatch      *ReplayMismatch `json:"mismatch,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [specs-dir]",
		Short: "Rerun a journalled run and verify determinism",
		Long: `Rerun a run journalled with "interlock run --db" using the same seed and
the same number of cycles, and compare every interaction id with the journal.

The specs directory defaults to the one the run was started with.

Exit codes:
  0 - The rerun produced the journalled interactions
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, run not found, invalid specs)

Examples:
  interlock replay --db ./journal.db
  interlock replay --db ./journal.db --run 0190b3c2-... ./specs`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			specsDir := ""
			if len(args) == 1 {
				specsDir = args[0]
			}
			return runReplay(opts, specsDir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to replay (default: latest run)")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runID := opts.RunID
	if runID == "" {
		if runID, err = st.LatestRun(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to find latest run", err)
		}
	}
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if specsDir == "" {
		specsDir = run.Specs
	}
	journal, err := st.ReadCycles(ctx, runID, 0)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cycles", err)
	}

	sys, err := loadValid(formatter, specsDir)
	if err != nil {
		return err
	}

	result := ReplayResult{
		RunID:         runID,
		Seed:          run.Seed,
		Specs:         specsDir,
		Cycles:        len(journal),
		Deterministic: true,
	}

	if len(journal) > 0 {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		if opts.Verbose {
			logger = newLogger(opts.RootOptions, formatter.GetErrWriter())
		}
		out, runErr := runner.Run(ctx, sys, runner.Options{
			Seed:   run.Seed,
			Cycles: int64(len(journal)),
			Logger: logger,
		})
		if out == nil {
			return WrapExitError(ExitCommandError, "failed to start replay", runErr)
		}
		result.Replayed = len(out.Interactions)

		for i, c := range journal {
			replayed := ""
			if i < len(out.Interactions) {
				replayed = out.Interactions[i].ID
			}
			if replayed != c.InteractionID {
				result.Deterministic = false
				result.Mismatch = &ReplayMismatch{Cycle: c.Cycle, Journal: c.InteractionID, Replayed: replayed}
				break
			}
		}
		if runErr != nil {
			formatter.VerboseLog("replay stopped early: %v", runErr)
		}
	}

	return outputReplay(formatter, result)
}

func outputReplay(f *OutputFormatter, result ReplayResult) error {
	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Deterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_DETERMINISM", Message: "determinism verification failed"}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else {
		w := f.Writer
		fmt.Fprintf(w, "Replay of run %s (seed %d, %s)\n", result.RunID, result.Seed, result.Specs)
		fmt.Fprintf(w, "  Journalled cycles: %d\n", result.Cycles)
		fmt.Fprintf(w, "  Replayed cycles:   %d\n", result.Replayed)
		if m := result.Mismatch; m != nil {
			fmt.Fprintf(w, "  First difference at cycle %d: journal %s, replay %s\n",
				m.Cycle, shortHash(m.Journal), shortHash(m.Replayed))
		}
		fmt.Fprintln(w)
		if result.Deterministic {
			fmt.Fprintln(w, "✓ Run verified deterministic")
		} else {
			fmt.Fprintln(w, "✗ Determinism verification failed")
		}
	}

	if !result.Deterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}
