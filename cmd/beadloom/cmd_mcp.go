package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"beadloom/internal/mcpserver"
)

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Serve beadloom's RPC tool surface over stdio",
	Long: `Runs the newline-delimited JSON request/response loop over
standard input/output, exposing get_context, get_graph, list_nodes,
sync_check, get_status, update_node, mark_synced, search, generate_docs,
prime, why, diff, and lint.`,
	RunE: runMCPServe,
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	root, cfg, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	srv := &mcpserver.Server{Store: st, Root: root, Cfg: cfg}
	return mcpserver.Serve(context.Background(), srv, os.Stdin, os.Stdout)
}
