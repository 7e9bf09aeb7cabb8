package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beadloom/internal/diffsnap"
)

var (
	diffSince    string
	diffSnapshot string
	diffJSON     bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show what changed in the graph",
	Long: `Compares the current graph against either a git ref's committed
YAML shards (--since) or a stored snapshot (--snapshot). Defaults to
--since HEAD~1 when neither is given.`,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffSince, "since", "", "Git ref to diff the live graph against (default: HEAD~1)")
	diffCmd.Flags().StringVar(&diffSnapshot, "snapshot", "", "Stored snapshot id to diff the live graph against")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "Emit JSON instead of a rendered report")
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, _, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	var result *diffsnap.Diff
	if diffSnapshot != "" {
		result, err = diffsnap.DiffAgainstLive(ctx, st, diffSnapshot)
	} else {
		since := diffSince
		if since == "" {
			since = "HEAD~1"
		}
		result, err = diffsnap.DiffAgainstRef(ctx, root, since)
	}
	if err != nil {
		return fmt.Errorf("diffing: %w", err)
	}

	if diffJSON {
		return printJSON(result)
	}
	fmt.Print(renderDiffRich(result))
	return nil
}

func renderDiffRich(d *diffsnap.Diff) string {
	if !d.HasChanges() {
		return fmt.Sprintf("No changes since %s.\n", d.SinceLabel)
	}

	out := fmt.Sprintf("Changes since %s:\n\n", d.SinceLabel)
	for _, n := range d.Nodes {
		switch n.ChangeType {
		case "added":
			out += fmt.Sprintf("+ %s (%s)\n", n.RefID, n.Kind)
		case "removed":
			out += fmt.Sprintf("- %s (%s)\n", n.RefID, n.Kind)
		case "changed":
			out += fmt.Sprintf("~ %s: %q -> %q\n", n.RefID, n.OldSummary, n.NewSummary)
		}
	}
	for _, e := range d.Edges {
		switch e.ChangeType {
		case "added":
			out += fmt.Sprintf("+ %s --%s--> %s\n", e.Src, e.Kind, e.Dst)
		case "removed":
			out += fmt.Sprintf("- %s --%s--> %s\n", e.Src, e.Kind, e.Dst)
		}
	}
	if d.SymbolsAdded != 0 || d.SymbolsRemoved != 0 {
		out += fmt.Sprintf("\nsymbols: +%d -%d\n", d.SymbolsAdded, d.SymbolsRemoved)
	}
	return out
}
