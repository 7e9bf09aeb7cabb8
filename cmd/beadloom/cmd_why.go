package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"beadloom/internal/impact"
)

var (
	whyReverse bool
	whyJSON    bool
)

var whyCmd = &cobra.Command{
	Use:   "why REF_ID",
	Short: "Show a ref_id's upstream and downstream impact",
	Long: `Runs a bidirectional BFS from REF_ID: upstream (what it depends
on, via outgoing edges) and downstream (what depends on it, via incoming
edges), plus aggregated coverage and staleness metrics.

--reverse swaps which tree prints first; it does not change which edges
are followed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWhy,
}

func init() {
	whyCmd.Flags().BoolVar(&whyReverse, "reverse", false, "Print the downstream tree before the upstream tree")
	whyCmd.Flags().BoolVar(&whyJSON, "json", false, "Emit JSON instead of a rendered tree")
}

func runWhy(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, _, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := impact.Analyze(ctx, st, args[0], impact.Options{})
	if err != nil {
		return fmt.Errorf("analyzing impact: %w", err)
	}

	if whyJSON {
		return printJSON(result)
	}
	fmt.Print(renderImpactRich(result, whyReverse))
	return nil
}

var (
	whyHeadingStyle = lipgloss.NewStyle().Bold(true)
	whyDimStyle     = lipgloss.NewStyle().Faint(true)
)

// renderImpactRich renders an impact.Result as a human-readable tree —
// impact.Analyze deliberately returns plain data with no rendering
// function, so the CLI owns this the same way it owns ctx's Markdown
// rendering.
func renderImpactRich(result *impact.Result, reverse bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n", whyHeadingStyle.Render(result.Node.RefID))
	fmt.Fprintf(&sb, "%s — %s\n\n", result.Node.Kind, result.Node.Summary)

	sections := []struct {
		title string
		trees []impact.TreeNode
	}{
		{"Upstream (depends on)", result.Upstream},
		{"Downstream (depended on by)", result.Downstream},
	}
	if reverse {
		sections[0], sections[1] = sections[1], sections[0]
	}

	for _, section := range sections {
		fmt.Fprintf(&sb, "%s\n", whyHeadingStyle.Render(section.title))
		if len(section.trees) == 0 {
			sb.WriteString(whyDimStyle.Render("  (none)") + "\n")
		}
		for _, node := range section.trees {
			renderImpactTree(&sb, node, 1)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "%s\n", whyHeadingStyle.Render("Impact summary"))
	fmt.Fprintf(&sb, "  downstream: %d direct, %d transitive\n", result.Impact.DownstreamDirect, result.Impact.DownstreamTransitive)
	fmt.Fprintf(&sb, "  doc coverage: %.0f%%\n", result.Impact.DocCoverage*100)
	fmt.Fprintf(&sb, "  stale: %d\n", result.Impact.StaleCount)

	return sb.String()
}

func renderImpactTree(sb *strings.Builder, node impact.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	edge := ""
	if node.EdgeKind != "" {
		edge = whyDimStyle.Render(fmt.Sprintf(" (%s)", node.EdgeKind))
	}
	fmt.Fprintf(sb, "%s- %s%s\n", indent, node.RefID, edge)
	for _, child := range node.Children {
		renderImpactTree(sb, child, depth+1)
	}
}
