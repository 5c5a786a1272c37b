package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/covenanthq/covenant/internal/engine"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Action string // optional - filter to one action
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <specs-dir>",
		Short: "Show per-iteration slot values for a solve",
		Long: `Run the solver with iteration tracing and print every pass's slot
values. Useful for understanding why a commitment set converges slowly
or oscillates.

Examples:
  covenant trace ./specs
  covenant trace ./specs --action work
  covenant trace ./specs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action")

	return cmd
}

func runTraceCmd(opts *TraceOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	bundle, err := loadValidBundle(formatter, specsDir)
	if err != nil {
		return err
	}

	settlement, err := solveBundle(cmd.Context(), opts.RootOptions, bundle, engine.WithTrace())
	if err != nil {
		return outputSolveError(formatter, bundle, err)
	}

	if opts.Action != "" {
		settlement.Trace = filterTrace(settlement.Trace, opts.Action)
	}

	if formatter.Format == "json" {
		return formatter.Success(settlement)
	}

	writeTraceText(formatter, settlement)
	return nil
}

// filterTrace keeps only slot values for the given action.
func filterTrace(trace []engine.Iteration, action string) []engine.Iteration {
	out := make([]engine.Iteration, len(trace))
	for i, iter := range trace {
		filtered := engine.Iteration{N: iter.N}
		for _, v := range iter.Values {
			if v.Action == action {
				filtered.Values = append(filtered.Values, v)
			}
		}
		out[i] = filtered
	}
	return out
}

func writeTraceText(formatter *OutputFormatter, settlement *engine.Settlement) {
	fmt.Fprintf(formatter.Writer, "Group %s converged in %d iteration(s)\n", settlement.GroupID, settlement.Iterations)

	for _, iter := range settlement.Trace {
		fmt.Fprintf(formatter.Writer, "\nIteration %d\n", iter.N)
		tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  USER\tACTION\tUNIT\tAMOUNT\tEFFECTIVE")
		for _, v := range iter.Values {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", v.User, v.Action, v.Unit, v.Amount, strings.Join(v.Effective, ","))
		}
		tw.Flush()
	}
}
