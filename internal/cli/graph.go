package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/covenanthq/covenant/internal/compiler"
)

// GraphResult holds the dependency graph output.
type GraphResult struct {
	Group       string                      `json:"group"`
	Commitments int                         `json:"commitments"`
	Edges       map[string][]string         `json:"edges"`
	Warnings    []compiler.RecursionWarning `json:"warnings,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <specs-dir>",
		Short: "Show commitment dependencies and recursion diagnostics",
		Long: `Print the reads-from graph between commitments: which commitments
read slots that other commitments' promises write. Mutually recursive
groups are flagged; they are the usual suspects when a solve fails to
converge.

Examples:
  covenant graph ./specs
  covenant graph ./specs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runGraph(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	bundle, err := loadValidBundle(formatter, specsDir)
	if err != nil {
		return err
	}

	result := GraphResult{
		Group:       bundle.Group.ID,
		Commitments: len(bundle.Commitments),
		Edges:       compiler.DependencyEdges(bundle.Commitments),
		Warnings:    compiler.AnalyzeRecursion(bundle.Commitments),
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	writeGraphText(formatter, result)
	return nil
}

func writeGraphText(formatter *OutputFormatter, result GraphResult) {
	fmt.Fprintf(formatter.Writer, "Group %s: %d commitment(s)\n", result.Group, result.Commitments)

	ids := make([]string, 0, len(result.Edges))
	for id := range result.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		deps := result.Edges[id]
		if len(deps) == 0 {
			fmt.Fprintf(formatter.Writer, "  %s reads nothing\n", id)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s reads from %s\n", id, strings.Join(deps, ", "))
	}

	if len(result.Warnings) == 0 {
		fmt.Fprintln(formatter.Writer, "No mutual recursion.")
		return
	}
	fmt.Fprintln(formatter.Writer)
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w.Message)
	}
}
