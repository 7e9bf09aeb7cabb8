package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"beadloom/internal/contextbundle"
)

var (
	ctxDepth     int
	ctxMaxNodes  int
	ctxMaxChunks int
	ctxJSON      bool
	ctxMarkdown  bool
	ctxRaw       bool
)

var ctxCmd = &cobra.Command{
	Use:   "ctx REF_ID...",
	Short: "Assemble a context bundle for one or more ref_ids",
	Long: `Builds a size-bounded context bundle: a BFS subgraph around the
given ref_ids plus their relevant doc chunks, code symbols, sync status,
and applicable architecture rules.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCtx,
}

func init() {
	ctxCmd.Flags().IntVar(&ctxDepth, "depth", 0, "BFS traversal depth (default: component default)")
	ctxCmd.Flags().IntVar(&ctxMaxNodes, "max-nodes", 0, "Cap on visited nodes (default: component default)")
	ctxCmd.Flags().IntVar(&ctxMaxChunks, "max-chunks", 0, "Cap on returned text chunks (default: component default)")
	ctxCmd.Flags().BoolVar(&ctxJSON, "json", false, "Emit JSON instead of Markdown")
	ctxCmd.Flags().BoolVar(&ctxMarkdown, "markdown", true, "Emit Markdown (default)")
	ctxCmd.Flags().BoolVar(&ctxRaw, "raw", false, "Skip terminal styling; emit plain Markdown for piping")
}

func runCtx(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, _, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	bundle, err := contextbundle.Build(ctx, st, args, contextbundle.Options{
		Depth:     ctxDepth,
		MaxNodes:  ctxMaxNodes,
		MaxChunks: ctxMaxChunks,
	})
	if err != nil {
		return fmt.Errorf("building context: %w", err)
	}
	applyFreshnessWarning(ctx, st, root, bundle)

	if ctxJSON {
		return printJSON(bundle)
	}

	markdown := renderBundleMarkdown(bundle)
	if ctxRaw {
		fmt.Print(markdown)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Print(markdown)
		return nil
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		fmt.Print(markdown)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

// renderBundleMarkdown renders a bundle as human-readable Markdown — the
// CLI's own rendering, since contextbundle.Bundle is transport-agnostic.
func renderBundleMarkdown(b *contextbundle.Bundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", b.Focus.RefID)
	fmt.Fprintf(&sb, "**Kind:** %s\n\n%s\n\n", b.Focus.Kind, b.Focus.Summary)

	if b.Warning != "" {
		fmt.Fprintf(&sb, "> ⚠ %s\n\n", b.Warning)
	}

	if len(b.Graph.Nodes) > 0 {
		sb.WriteString("## Graph\n\n")
		for _, n := range b.Graph.Nodes {
			fmt.Fprintf(&sb, "- `%s` (%s) — %s\n", n.RefID, n.Kind, n.Summary)
		}
		sb.WriteString("\n")
		for _, e := range b.Graph.Edges {
			fmt.Fprintf(&sb, "- `%s` --%s--> `%s`\n", e.Src, e.Kind, e.Dst)
		}
		sb.WriteString("\n")
	}

	if len(b.TextChunks) > 0 {
		sb.WriteString("## Documentation\n\n")
		for _, c := range b.TextChunks {
			heading := c.Heading
			if heading == "" {
				heading = c.DocPath
			}
			fmt.Fprintf(&sb, "### %s\n\n%s\n\n", heading, c.Content)
		}
	}

	if len(b.CodeSymbols) > 0 {
		sb.WriteString("## Code symbols\n\n")
		for _, s := range b.CodeSymbols {
			fmt.Fprintf(&sb, "- `%s` (%s) — %s:%d-%d\n", s.SymbolName, s.Kind, s.FilePath, s.LineStart, s.LineEnd)
		}
		sb.WriteString("\n")
	}

	if len(b.Constraints) > 0 {
		sb.WriteString("## Constraints\n\n")
		for _, c := range b.Constraints {
			fmt.Fprintf(&sb, "- [%s] %s — %s\n", c.Severity, c.Name, c.Description)
		}
		sb.WriteString("\n")
	}

	if len(b.SyncStatus.StaleDocs) > 0 {
		sb.WriteString("## Stale docs\n\n")
		for _, d := range b.SyncStatus.StaleDocs {
			fmt.Fprintf(&sb, "- %s ↔ %s\n", d.DocPath, d.CodePath)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
