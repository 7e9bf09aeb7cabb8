package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"beadloom/internal/docs"
	"beadloom/internal/docsaudit"
)

var docsDirFlag string
var docsAuditJSON bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Documentation maintenance: audit, generate, polish",
}

var docsAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Scan docs for numeric claims that disagree with registered facts",
	Long: `Reads every markdown file under the project (skipping
node_modules, .git, and similar), extracts version strings and
proximity-matched numeric claims (language counts, tool counts, rule
counts...), and reports any that disagree with the value recorded in
the fact registry.`,
	RunE: runDocsAudit,
}

var docsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write doc stubs for every undocumented node",
	RunE:  runDocsGenerate,
}

var docsPolishCmd = &cobra.Command{
	Use:   "polish",
	Short: "Enrich generated doc stubs with node activity, routes, and tests",
	RunE:  runDocsPolish,
}

func init() {
	docsCmd.PersistentFlags().StringVar(&docsDirFlag, "docs-dir", "", "Docs directory relative to the project root (default: config's docs_dir)")
	docsAuditCmd.Flags().BoolVar(&docsAuditJSON, "json", false, "Emit JSON instead of a rendered report")

	docsCmd.AddCommand(docsAuditCmd, docsGenerateCmd, docsPolishCmd)
}

func runDocsAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, _, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := docsaudit.Audit(ctx, st, root)
	if err != nil {
		return fmt.Errorf("auditing docs: %w", err)
	}

	if docsAuditJSON {
		return printJSON(report)
	}

	fmt.Printf("scanned %d file(s), %d mention(s) found\n", report.FilesScanned, len(report.Mentions))
	if len(report.Mismatches) == 0 {
		fmt.Println("No mismatches.")
		return nil
	}
	fmt.Printf("\n%d mismatch(es):\n\n", len(report.Mismatches))
	for _, m := range report.Mismatches {
		fmt.Printf("%s:%d: says %s=%s, registry has %s\n", m.FilePath, m.Line, m.FactName, m.Value, m.RegisteredValue)
		fmt.Printf("    %s\n", m.Context)
	}
	return &violationsError{err: fmt.Errorf("%d doc mismatch(es) found", len(report.Mismatches))}
}

func runDocsGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, cfg, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	docsDir := docsDirFlag
	if docsDir == "" {
		docsDir = cfg.DocsDir
	}

	written, err := docs.GenerateStubs(ctx, st, root, docsDir)
	if err != nil {
		return fmt.Errorf("generating doc stubs: %w", err)
	}
	if len(written) == 0 {
		fmt.Println("Every node already has a doc.")
		return nil
	}
	fmt.Printf("Wrote %d doc stub(s):\n", len(written))
	for _, refID := range written {
		fmt.Printf("  %s\n", refID)
	}
	return nil
}

func runDocsPolish(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, _, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := docs.Polish(ctx, st, root, docsDirFlag)
	if err != nil {
		return fmt.Errorf("polishing docs: %w", err)
	}
	fmt.Printf("Polished %d doc(s), skipped %d already-edited doc(s).\n", len(result.Polished), len(result.Skipped))
	for _, p := range result.Polished {
		fmt.Printf("  %s\n", p)
	}
	return nil
}
