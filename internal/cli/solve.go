package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/covenanthq/covenant/internal/compiler"
	"github.com/covenanthq/covenant/internal/engine"
	"github.com/covenanthq/covenant/internal/pact"
)

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve <specs-dir>",
		Short: "Compute the settlement for a commitment spec",
		Long: `Load group and commitment specs, run the solver, and print the
resulting settlement.

Exit codes:
  0 - Converged; settlement printed
  1 - Validation failure or non-convergence
  2 - Command error (invalid paths, bad CUE, etc.)

Examples:
  covenant solve ./specs
  covenant solve ./specs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSolve(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	bundle, err := loadValidBundle(formatter, specsDir)
	if err != nil {
		return err
	}

	settlement, err := solveBundle(cmd.Context(), opts, bundle)
	if err != nil {
		return outputSolveError(formatter, bundle, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(settlement)
	}
	writeSettlementTable(formatter, settlement)
	return nil
}

// loadValidBundle loads a spec directory and fails on any compile or
// validation error. Solving an invalid bundle would produce garbage, so
// solve-family commands refuse rather than warn.
func loadValidBundle(formatter *OutputFormatter, specsDir string) (*compiler.Bundle, error) {
	loadResult, loadErrors := LoadBundle(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return nil, outputCommandError(formatter, loadErr.Code, loadErr.Message)
		}
		return nil, outputCommandError(formatter, ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Loaded %d commitment(s) for group %s", len(loadResult.Bundle.Commitments), loadResult.Bundle.Group.ID)

	if validationErrors := compiler.Validate(loadResult.Bundle); len(validationErrors) > 0 {
		return nil, outputValidationErrors(formatter, validationErrors)
	}
	return loadResult.Bundle, nil
}

// solveBundle runs the engine over a compiled bundle.
func solveBundle(ctx context.Context, opts *RootOptions, bundle *compiler.Bundle, engineOpts ...engine.Option) (*engine.Settlement, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Verbose {
		engineOpts = append(engineOpts, engine.WithLogger(slog.Default()))
	}

	eng := engine.New(engineOpts...)
	return eng.Solve(ctx, engine.Input{
		GroupID:     bundle.Group.ID,
		Members:     memberIDs(bundle.Members),
		Commitments: bundle.Commitments,
		Roster:      rosterFromMembers(bundle.Members),
	})
}

// outputSolveError renders a solve failure. Non-convergence is reported
// with recursion diagnostics so the author can see which commitments feed
// each other; anything else is a command error.
func outputSolveError(formatter *OutputFormatter, bundle *compiler.Bundle, err error) error {
	var ce *engine.ConvergenceError
	if errors.As(err, &ce) {
		details := convergenceDetails(bundle, ce)
		_ = formatter.Error(ErrCodeNoConvergence, err.Error(), details)
		if formatter.Format != "json" {
			for _, d := range details {
				fmt.Fprintf(formatter.Writer, "  %s\n", d)
			}
		}
		return WrapExitError(ExitFailure, "settlement did not converge", err)
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, "solve failed", err)
}

// convergenceDetails summarizes the mutual-recursion structure behind a
// non-convergence error.
func convergenceDetails(bundle *compiler.Bundle, ce *engine.ConvergenceError) []string {
	details := []string{
		fmt.Sprintf("worst slot: %s %s/%s moved %s in the final pass", ce.User, ce.Slot.Action, ce.Slot.Unit, ce.Residual),
	}
	for _, w := range compiler.AnalyzeRecursion(bundle.Commitments) {
		details = append(details, w.Message)
	}
	return details
}

// writeSettlementTable renders a settlement as an aligned text table.
func writeSettlementTable(formatter *OutputFormatter, settlement *engine.Settlement) {
	fmt.Fprintf(formatter.Writer, "Group %s settled in %d iteration(s)\n", settlement.GroupID, settlement.Iterations)
	if len(settlement.Records) == 0 {
		fmt.Fprintln(formatter.Writer, "No liabilities.")
		return
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tACTION\tUNIT\tAMOUNT\tEFFECTIVE")
	for _, r := range settlement.Records {
		name := string(r.User)
		if r.Username != "" && r.Username != name {
			name = fmt.Sprintf("%s (%s)", name, r.Username)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, r.Action, r.Unit, r.Amount, strings.Join(r.Effective, ","))
	}
	tw.Flush()
}

// memberIDs projects the member list to engine input order.
func memberIDs(members []pact.Member) []pact.UserID {
	ids := make([]pact.UserID, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids
}

// memberRoster resolves usernames for settlement materialization.
type memberRoster map[pact.UserID]string

func (r memberRoster) Username(id pact.UserID) string {
	return r[id]
}

func rosterFromMembers(members []pact.Member) engine.Roster {
	roster := make(memberRoster, len(members))
	for _, m := range members {
		roster[m.UserID] = m.Username
	}
	return roster
}
