package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beadloom/internal/index"
	"beadloom/internal/rules"
	"beadloom/internal/store"
)

var (
	lintStrict    bool
	lintNoReindex bool
	lintFormat    string
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Evaluate architecture rules against the current graph",
	Long: `Runs every enabled rule in .beadloom/_graph/rules.yml against the
indexed graph and resolved imports. --strict exits 1 when any violation
is found, at any severity; without it, only "error"-severity violations
affect the exit code.`,
	RunE: runLint,
}

func init() {
	lintCmd.Flags().BoolVar(&lintStrict, "strict", false, "Exit 1 on any violation regardless of severity")
	lintCmd.Flags().BoolVar(&lintNoReindex, "no-reindex", false, "Skip the incremental reindex before linting")
	lintCmd.Flags().StringVar(&lintFormat, "format", "rich", "Output format: rich, json, porcelain")
}

func runLint(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, cfg, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	if !lintNoReindex {
		if _, err := index.Reindex(ctx, st, root, cfg, "", false); err != nil {
			return fmt.Errorf("reindexing before lint: %w", err)
		}
	}

	result, err := rules.Lint(ctx, st)
	if err != nil {
		return fmt.Errorf("linting: %w", err)
	}

	switch lintFormat {
	case "json":
		out, err := rules.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "porcelain":
		if out := rules.FormatPorcelain(result); out != "" {
			fmt.Println(out)
		}
	case "rich", "":
		fmt.Print(rules.FormatRich(result))
	default:
		return newConfigError("unknown --format %q (want rich, json, or porcelain)", lintFormat)
	}

	if hasGateViolation(result, lintStrict) {
		return &violationsError{err: fmt.Errorf("%d rule violation(s) found", len(result.Violations))}
	}
	return nil
}

// hasGateViolation decides whether lint's findings should fail the CI gate.
// --strict treats every severity as a failure; otherwise only "error"
// severity does (warnings and info are reported but don't gate).
func hasGateViolation(result *rules.Result, strict bool) bool {
	if strict {
		return len(result.Violations) > 0
	}
	for _, v := range result.Violations {
		if v.Severity == store.SeverityError {
			return true
		}
	}
	return false
}
