package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/interlock/internal/ir"
	"github.com/roach88/interlock/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
	Limit    int
	Port     string // optional - only cycles firing this "Type.port"
}

// TraceCycle is one journalled cycle in the trace timeline.
type TraceCycle struct {
	Cycle         int64          `json:"cycle"`
	InteractionID string         `json:"interaction_id"`
	Fired         []string       `json:"fired"`
	Candidates    int            `json:"candidates"`
	Pairings      []TracePairing `json:"pairings,omitempty"`
}

// TracePairing is a data pairing: the consumer port read data exported by
// the producer port.
type TracePairing struct {
	Consumer string `json:"consumer"`
	Producer string `json:"producer"`
}

// TraceMembership is one registration or deregistration.
type TraceMembership struct {
	Seq       int64  `json:"seq"`
	Component string `json:"component"`
	Type      string `json:"type"`
	Event     string `json:"event"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID      string            `json:"run_id"`
	Seed       *uint64           `json:"seed,omitempty"`
	Specs      string            `json:"specs,omitempty"`
	GlueHashes []string          `json:"glue_hashes"`
	Membership []TraceMembership `json:"membership"`
	Timeline   []TraceCycle      `json:"timeline"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print a journalled run",
		Long: `Print the membership changes and solved cycles of a run journalled
with "interlock run --db".

The output includes:
- Membership: registrations and deregistrations in order
- Timeline: each cycle's fired ports and data pairings
- Glue hashes: the distinct glue versions the run used

Examples:
  interlock trace --db ./journal.db
  interlock trace --db ./journal.db --run 0190b3c2-... --limit 20
  interlock trace --db ./journal.db --port Sampler.sample --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default: latest run)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many cycles (0 = all)")
	cmd.Flags().StringVar(&opts.Port, "port", "", "only show cycles firing this Type.port")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var portFilter ir.PortSpec
	if opts.Port != "" {
		spec, err := ir.ParsePortSpec(opts.Port)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --port", err)
		}
		portFilter = spec
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runID := opts.RunID
	if runID == "" {
		runID, err = st.LatestRun(ctx)
		if errors.Is(err, store.ErrNoRuns) {
			if opts.Format == "json" {
				return newFormatter(opts.RootOptions, cmd.OutOrStdout(), nil).Success(TraceResult{
					GlueHashes: []string{},
					Membership: []TraceMembership{},
					Timeline:   []TraceCycle{},
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No runs found in database.")
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find latest run", err)
		}
	}

	result, err := buildTrace(ctx, st, runID, opts.Limit, portFilter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter, result)
	return nil
}

// buildTrace reads a run from the journal. The limit applies before the
// port filter.
func buildTrace(ctx context.Context, st *store.Store, runID string, limit int, port ir.PortSpec) (TraceResult, error) {
	result := TraceResult{
		RunID:      runID,
		GlueHashes: []string{},
		Membership: []TraceMembership{},
		Timeline:   []TraceCycle{},
	}

	run, err := st.ReadRun(ctx, runID)
	switch {
	case err == nil:
		result.Seed = &run.Seed
		result.Specs = run.Specs
	case !errors.Is(err, store.ErrRunNotFound):
		return TraceResult{}, err
	}

	regs, err := st.ReadRegistrations(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}
	for _, r := range regs {
		result.Membership = append(result.Membership, TraceMembership{
			Seq:       r.Seq,
			Component: string(r.ComponentID),
			Type:      r.ComponentType,
			Event:     r.Event,
		})
	}

	cycles, err := st.ReadCycles(ctx, runID, limit)
	if err != nil {
		return TraceResult{}, err
	}
	for _, c := range cycles {
		if len(result.GlueHashes) == 0 || result.GlueHashes[len(result.GlueHashes)-1] != c.GlueHash {
			result.GlueHashes = append(result.GlueHashes, c.GlueHash)
		}
		if port.Port != "" && !firesSpec(c.Firings, port) {
			continue
		}
		result.Timeline = append(result.Timeline, traceCycle(c))
	}
	return result, nil
}

func firesSpec(firings []ir.Firing, spec ir.PortSpec) bool {
	for _, f := range firings {
		if f.Type == spec.Type && f.Port == spec.Port {
			return true
		}
	}
	return false
}

func traceCycle(c store.Cycle) TraceCycle {
	tc := TraceCycle{
		Cycle:         c.Cycle,
		InteractionID: c.InteractionID,
		Fired:         make([]string, 0, len(c.Firings)),
		Candidates:    c.Candidates,
	}
	for _, f := range c.Firings {
		tc.Fired = append(tc.Fired, ir.PortRef{Component: f.Component, Port: f.Port}.String())
	}
	for _, p := range c.Pairings {
		tc.Pairings = append(tc.Pairings, TracePairing{
			Consumer: p.Consumer.String(),
			Producer: p.Producer.String(),
		})
	}
	return tc
}

// outputTraceText outputs the trace result as text.
func outputTraceText(f *OutputFormatter, result TraceResult) {
	w := f.Writer

	fmt.Fprintf(w, "Trace for run: %s\n", result.RunID)
	if result.Seed != nil {
		fmt.Fprintf(w, "Seed: %d  Specs: %s\n", *result.Seed, result.Specs)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Membership:")
	for _, m := range result.Membership {
		fmt.Fprintf(w, "  [%d] %s %s (%s)\n", m.Seq, m.Event, m.Component, m.Type)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Timeline:")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no cycles)")
	}
	for _, c := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s\n", c.Cycle, strings.Join(c.Fired, " "))
		if f.Verbose {
			fmt.Fprintf(w, "      id=%s candidates=%d\n", shortHash(c.InteractionID), c.Candidates)
			for _, p := range c.Pairings {
				fmt.Fprintf(w, "      %s <- %s\n", p.Consumer, p.Producer)
			}
		}
	}

	if len(result.GlueHashes) > 1 {
		fmt.Fprintf(w, "\nGlue changed %d time(s) during the run\n", len(result.GlueHashes)-1)
	}
}
