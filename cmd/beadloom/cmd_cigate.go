package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beadloom/internal/docsaudit"
	"beadloom/internal/index"
	"beadloom/internal/rules"
	"beadloom/internal/syncdrift"
)

var ciGateNoReindex bool

var ciGateCmd = &cobra.Command{
	Use:   "ci-gate",
	Short: "Non-interactive gate: lint + docs audit + drift check",
	Long: `Runs lint, docs audit, and the sync/drift check in sequence and
exits non-zero if any of the three reports a finding. Intended for CI
pipelines that want one command instead of wiring three.`,
	RunE: runCIGate,
}

func init() {
	ciGateCmd.Flags().BoolVar(&ciGateNoReindex, "no-reindex", false, "Skip the incremental reindex before gating")
}

func runCIGate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, cfg, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	if !ciGateNoReindex {
		if _, err := index.Reindex(ctx, st, root, cfg, "", false); err != nil {
			return fmt.Errorf("reindexing before ci-gate: %w", err)
		}
	}

	var failures int

	lintResult, err := rules.Lint(ctx, st)
	if err != nil {
		return fmt.Errorf("linting: %w", err)
	}
	fmt.Print(rules.FormatRich(lintResult))
	if len(lintResult.Violations) > 0 {
		failures += len(lintResult.Violations)
	}

	report, err := docsaudit.Audit(ctx, st, root)
	if err != nil {
		return fmt.Errorf("auditing docs: %w", err)
	}
	fmt.Printf("\ndocs audit: scanned %d file(s), %d mismatch(es)\n", report.FilesScanned, len(report.Mismatches))
	for _, m := range report.Mismatches {
		fmt.Printf("  %s:%d: says %s=%s, registry has %s\n", m.FilePath, m.Line, m.FactName, m.Value, m.RegisteredValue)
	}
	failures += len(report.Mismatches)

	drift, err := syncdrift.Check(ctx, st, root)
	if err != nil {
		return fmt.Errorf("checking drift: %w", err)
	}
	fmt.Printf("\ndrift check: %d stale entr%s\n", len(drift), pluralY(len(drift)))
	for _, d := range drift {
		fmt.Printf("  %s / %s: %s\n", d.RefID, d.DocPath, d.Reason)
	}
	failures += len(drift)

	if failures > 0 {
		return &violationsError{err: fmt.Errorf("ci-gate: %d finding(s) across lint/docs audit/drift", failures)}
	}
	fmt.Println("\nci-gate: clean")
	return nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
