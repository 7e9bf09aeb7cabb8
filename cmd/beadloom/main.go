// Package main implements the beadloom CLI - the command-line entry point
// for the architecture-graph index, context assembler, and rule engine.
//
// This file holds the entry point and command registration; each verb's
// implementation lives in its own cmd_*.go file.
//
// # File Index
//
//   - main.go        - Entry point, rootCmd, global flags, lifecycle hooks
//   - cmd_init.go    - init command, bootstrap/import/preset flows
//   - cmd_reindex.go - reindex command
//   - cmd_ctx.go     - ctx command
//   - cmd_lint.go    - lint command
//   - cmd_why.go     - why command, impact tree rendering
//   - cmd_diff.go    - diff command
//   - cmd_doctor.go  - doctor command, health rollups
//   - cmd_search.go  - search command
//   - cmd_docs.go    - docs {audit|generate|polish} subcommands
//   - cmd_cigate.go  - ci-gate command, non-interactive lint+audit+drift wrapper
//   - cmd_mcp.go     - mcp-serve command
//   - helpers.go     - shared store/workspace plumbing, exit codes
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"beadloom/internal/logging"
)

var (
	verbose   bool
	workspace string
	timeout   time.Duration

	logger *zap.Logger
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "beadloom",
	Short: "beadloom - architecture graph index, context assembler, and rule engine",
	Long: `beadloom maintains a hand-authored architecture graph next to your
code, keeps it in sync with what actually changed, and serves bounded
context bundles to humans, CI, and coding agents alike.

Run "beadloom init" in a new project, then "beadloom reindex" whenever
code or docs move.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		level := logging.LevelInfo
		if verbose {
			level = logging.LevelDebug
		}
		root, err := resolveWorkspace()
		if err != nil {
			return err
		}
		if err := logging.Initialize(root, level, false); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "Operation timeout")

	rootCmd.AddCommand(
		initCmd,
		reindexCmd,
		ctxCmd,
		lintCmd,
		whyCmd,
		diffCmd,
		doctorCmd,
		searchCmd,
		docsCmd,
		ciGateCmd,
		mcpServeCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
