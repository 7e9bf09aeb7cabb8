package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beadloom/internal/store"
)

var (
	searchKind  string
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Full-text search over nodes and doc chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "Restrict results to a node kind")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Emit JSON instead of a plain list")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, _, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := store.Search(ctx, st.Q(), args[0], searchKind, searchLimit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if searchJSON {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s  %s\n", r.RefID, r.Snippet)
	}
	return nil
}
