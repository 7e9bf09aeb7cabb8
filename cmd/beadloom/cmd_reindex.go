package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beadloom/internal/index"
)

var (
	reindexFull    bool
	reindexDocsDir string
	reindexReport  bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Refresh the graph, docs, and code index",
	Long: `Runs a full or incremental reindex: reloads the graph YAML shards,
re-chunks documentation, re-parses code symbols, and recomputes derived
node fields (routes, git activity, test mapping).

Incremental reindex (the default) only touches files whose content hash
changed since the last run. --report additionally scans doc chunks for
ref_id mentions with no touches_entity edge and proposes the link,
without creating it.`,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexFull, "full", false, "Force a full reindex, ignoring cached file hashes")
	reindexCmd.Flags().StringVar(&reindexDocsDir, "docs-dir", "", "Override the configured docs directory")
	reindexCmd.Flags().BoolVar(&reindexReport, "report", false, "Also report auto-link proposals: doc mentions of a ref_id with no touches_entity edge")
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, cfg, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := index.Reindex(ctx, st, root, cfg, reindexDocsDir, reindexFull)
	if err != nil {
		return fmt.Errorf("reindexing: %w", err)
	}

	if err := index.CollectFacts(ctx, st, root, cfg, externalFacts()); err != nil {
		return fmt.Errorf("collecting facts: %w", err)
	}

	if result.Unchanged {
		fmt.Println("No changes since the last reindex.")
	} else {
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		for _, e := range result.Errors {
			fmt.Printf("error: %s\n", e)
		}

		fmt.Printf("%d node(s), %d edge(s), %d doc(s), %d file(s) indexed, %d file(s) removed\n",
			result.NodesLoaded, result.EdgesLoaded, result.DocsIndexed, result.FilesIndexed, result.FilesDeleted)
	}

	if reindexReport {
		proposals, err := index.ProposeDocLinks(ctx, st)
		if err != nil {
			return fmt.Errorf("scanning for auto-link proposals: %w", err)
		}
		printDocLinkProposals(proposals)
	}
	return nil
}

func printDocLinkProposals(proposals []index.DocLinkProposal) {
	if len(proposals) == 0 {
		fmt.Println("\nNo auto-link proposals.")
		return
	}
	fmt.Printf("\n%d auto-link proposal(s):\n\n", len(proposals))
	for _, p := range proposals {
		fmt.Printf("  %s mentions %s with no touches_entity edge — add `%s touches_entity %s`?\n",
			p.DocPath, p.RefID, p.SrcRefID, p.RefID)
	}
}
