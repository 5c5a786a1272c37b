package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/covenanthq/covenant/internal/compiler"
	"github.com/covenanthq/covenant/internal/engine"
	"github.com/covenanthq/covenant/internal/pact"
	"github.com/covenanthq/covenant/internal/store"
)

// SettleOptions holds flags for the settle command.
type SettleOptions struct {
	*RootOptions
	Database string
	GroupID  string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs store.RunIDGenerator
}

// SettleResult describes a persisted settlement.
type SettleResult struct {
	RunID             string          `json:"run_id"`
	Group             string          `json:"group"`
	CommitmentSetHash string          `json:"commitment_set_hash"`
	Iterations        int             `json:"iterations"`
	Persisted         bool            `json:"persisted"`
	Liabilities       []engine.Record `json:"liabilities"`
}

// NewSettleCommand creates the settle command.
func NewSettleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Solve a stored group and persist the settlement",
		Long: `Load a group's active commitments from the store, run the solver, and
write the settlement and its liability rows under a fresh run id. The
settlement records the content hash of the commitment set it was
computed from.

Exit codes:
  0 - Converged; settlement persisted
  1 - Non-convergence (nothing persisted)
  2 - Command error (database missing, unknown group, etc.)

Examples:
  covenant settle --db ./covenant.db --group team-alpha
  covenant settle --db ./covenant.db --group team-alpha --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettle(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.GroupID, "group", "", "group id to settle (required)")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func runSettle(opts *SettleOptions, cmd *cobra.Command) error {
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

	group, err := st.ReadGroup(ctx, opts.GroupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("group not found: %s", opts.GroupID))
		}
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read group", err)
	}
	members, err := st.ReadMembers(ctx, group.ID)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read members", err)
	}
	commitments, err := st.ReadActiveCommitments(ctx, group.ID)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read commitments", err)
	}

	formatter.VerboseLog("Settling %s: %d member(s), %d active commitment(s)", group.ID, len(members), len(commitments))

	var engineOpts []engine.Option
	if opts.Verbose {
		engineOpts = append(engineOpts, engine.WithLogger(slog.Default()))
	}
	eng := engine.New(engineOpts...)
	settlement, err := eng.Solve(ctx, engine.Input{
		GroupID:     group.ID,
		Members:     memberIDs(members),
		Commitments: commitments,
		Roster:      rosterFromMembers(members),
	})
	if err != nil {
		return outputSolveError(formatter, &compiler.Bundle{Group: group, Members: members, Commitments: commitments}, err)
	}

	setHash, err := pact.CommitmentSetHash(commitments)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to hash commitment set", err)
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = store.UUIDv7Generator{}
	}
	runID := runIDs.Generate()

	persisted, err := st.WriteSettlement(ctx, runID, setHash, settlement)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to persist settlement", err)
	}

	result := SettleResult{
		RunID:             runID,
		Group:             group.ID,
		CommitmentSetHash: setHash,
		Iterations:        settlement.Iterations,
		Persisted:         persisted,
		Liabilities:       settlement.Records,
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Run %s\n", result.RunID)
	writeSettlementTable(formatter, settlement)
	return nil
}
