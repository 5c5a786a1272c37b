package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/covenanthq/covenant/internal/compiler"
	"github.com/covenanthq/covenant/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// ImportResult summarizes what an import wrote.
type ImportResult struct {
	Group       string `json:"group"`
	Members     int    `json:"members"`
	Imported    int    `json:"imported"`
	AlreadyKnew int    `json:"already_known"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <specs-dir>",
		Short: "Load commitment specs into the store",
		Long: `Compile and validate specs, then write the group, its members, and its
commitments into the SQLite store. Commitments are content-addressed;
re-importing the same spec is a no-op.

Examples:
  covenant import --db ./covenant.db ./specs
  covenant import --db ./covenant.db ./specs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImport(opts *ImportOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	bundle, err := loadValidBundle(formatter, specsDir)
	if err != nil {
		return err
	}

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

	result, err := importBundleToStore(ctx, st, bundle)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "import failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(importSummary(result))
}

func importBundleToStore(ctx context.Context, st *store.Store, bundle *compiler.Bundle) (ImportResult, error) {
	result := ImportResult{Group: bundle.Group.ID}

	if err := st.UpsertGroup(ctx, bundle.Group); err != nil {
		return result, err
	}
	for _, m := range bundle.Members {
		if err := st.UpsertMember(ctx, bundle.Group.ID, m); err != nil {
			return result, err
		}
		result.Members++
	}
	for _, c := range bundle.Commitments {
		inserted, err := st.WriteCommitment(ctx, bundle.Group.ID, c)
		if err != nil {
			return result, err
		}
		if inserted {
			result.Imported++
		} else {
			result.AlreadyKnew++
		}
	}
	return result, nil
}

func importSummary(r ImportResult) string {
	return fmt.Sprintf("Imported group %s: %d member(s), %d new commitment(s), %d already known",
		r.Group, r.Members, r.Imported, r.AlreadyKnew)
}
