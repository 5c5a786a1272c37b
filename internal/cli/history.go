package cli

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/covenanthq/covenant/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	GroupID  string
	RunID    string // optional - show one settlement in full
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted settlements for a group",
		Long: `List every persisted settlement for a group in run order, or show a
single run in full with --run.

Examples:
  covenant history --db ./covenant.db --group team-alpha
  covenant history --db ./covenant.db --group team-alpha --run 0190a1b2-...
  covenant history --db ./covenant.db --group team-alpha --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.GroupID, "group", "", "group id (required)")
	_ = cmd.MarkFlagRequired("group")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one settlement in full")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.RunID != "" {
		return showSettlement(ctx, formatter, st, opts.RunID)
	}

	rows, err := st.ListSettlements(ctx, opts.GroupID)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list settlements", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(formatter.Writer, "No settlements for group %s.\n", opts.GroupID)
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRUN\tITERATIONS\tLIABILITIES\tSET HASH")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", row.Seq, row.RunID, row.Iterations, len(row.Records), shortHash(row.CommitmentSetHash))
	}
	tw.Flush()
	return nil
}

func showSettlement(ctx context.Context, formatter *OutputFormatter, st *store.Store, runID string) error {
	row, err := st.ReadSettlement(ctx, runID)
	if err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("settlement not found: %v", err))
	}

	if formatter.Format == "json" {
		return formatter.Success(row)
	}

	fmt.Fprintf(formatter.Writer, "Run %s (group %s, seq %d, %d iteration(s))\n", row.RunID, row.GroupID, row.Seq, row.Iterations)
	fmt.Fprintf(formatter.Writer, "Commitment set %s\n", row.CommitmentSetHash)
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tACTION\tUNIT\tAMOUNT")
	for _, r := range row.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.User, r.Action, r.Unit, r.Amount)
	}
	tw.Flush()
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
