package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"beadloom/internal/graph"
	"beadloom/internal/index"
	"beadloom/internal/rules"
	"beadloom/internal/store"
	"beadloom/internal/syncdrift"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report overall project health and record a health rollup",
	Long: `Computes node/edge/doc counts, doc coverage, stale-doc count, and
isolated-node count; evaluates the rule engine; runs a handful of repo-health
checks (.beadloom/ present, db schema current, graph files parse, git
available); prints a summary with a fix hint per finding; and records it all
as a health snapshot for later trend comparison.`,
	RunE: runDoctor,
}

// finding is one doctor health-check result paired with the remediation
// text printed alongside it.
type finding struct {
	Message string
	Fix     string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, cfg, st, err := openProject()
	if err != nil {
		return err
	}
	defer st.Close()

	q := st.Q()

	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	edges, err := store.ListEdges(ctx, q)
	if err != nil {
		return fmt.Errorf("listing edges: %w", err)
	}
	allDocs, err := store.ListAllDocs(ctx, q)
	if err != nil {
		return fmt.Errorf("listing docs: %w", err)
	}

	drift, err := syncdrift.Check(ctx, st, root)
	if err != nil {
		return fmt.Errorf("checking drift: %w", err)
	}

	touched := map[string]bool{}
	for _, e := range edges {
		touched[e.SrcRefID] = true
		touched[e.DstRefID] = true
	}
	isolated := 0
	for _, n := range nodes {
		if !touched[n.RefID] {
			isolated++
		}
	}

	linked := map[string]bool{}
	for _, d := range allDocs {
		if d.RefID != "" {
			linked[d.RefID] = true
		}
	}
	coverage := 0.0
	if len(nodes) > 0 {
		coverage = float64(len(linked)) / float64(len(nodes))
	}

	snapshot := store.HealthSnapshot{
		TakenAt:       time.Now(),
		NodesCount:    len(nodes),
		EdgesCount:    len(edges),
		DocsCount:     len(allDocs),
		CoveragePct:   coverage,
		StaleCount:    len(drift),
		IsolatedCount: isolated,
	}

	previous, err := store.LatestHealthSnapshot(ctx, q)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("reading previous health snapshot: %w", err)
	}

	if err := store.InsertHealthSnapshot(ctx, q, snapshot); err != nil {
		return fmt.Errorf("recording health snapshot: %w", err)
	}

	lintResult, err := rules.Lint(ctx, st)
	if err != nil {
		return fmt.Errorf("linting: %w", err)
	}

	if err := index.CollectFacts(ctx, st, root, cfg, externalFacts()); err != nil {
		return fmt.Errorf("collecting facts: %w", err)
	}

	findings := repoHealthChecks(ctx, st, root)

	fmt.Printf("nodes:     %d\n", snapshot.NodesCount)
	fmt.Printf("edges:     %d\n", snapshot.EdgesCount)
	fmt.Printf("docs:      %d\n", snapshot.DocsCount)
	fmt.Printf("coverage:  %.0f%%\n", snapshot.CoveragePct*100)
	fmt.Printf("stale:     %d\n", snapshot.StaleCount)
	fmt.Printf("isolated:  %d\n", snapshot.IsolatedCount)

	if previous != nil {
		fmt.Printf("\nsince %s: nodes %+d, edges %+d, stale %+d\n",
			humanize.Time(previous.TakenAt),
			snapshot.NodesCount-previous.NodesCount,
			snapshot.EdgesCount-previous.EdgesCount,
			snapshot.StaleCount-previous.StaleCount)
	}

	fmt.Printf("\nrules: %d evaluated, %d violation(s)\n", lintResult.RulesEvaluated, len(lintResult.Violations))
	for _, v := range lintResult.Violations {
		fmt.Printf("  [%s] %s: %s\n", v.Severity, v.RuleName, v.Message)
		fmt.Printf("    fix: review .beadloom/_graph/rules.yml's %q rule and either satisfy it or adjust the matcher\n", v.RuleName)
	}

	fmt.Printf("\nrepo health: %d check(s), %d finding(s)\n", len(repoHealthCheckNames), len(findings))
	for _, f := range findings {
		fmt.Printf("  %s\n", f.Message)
		fmt.Printf("    fix: %s\n", f.Fix)
	}

	if len(findings) > 0 || len(lintResult.Violations) > 0 {
		return &violationsError{err: fmt.Errorf("doctor: %d rule violation(s), %d repo-health finding(s)", len(lintResult.Violations), len(findings))}
	}
	return nil
}

// repoHealthCheckNames labels the fixed set of checks repoHealthChecks
// runs, purely so the summary line can report "N checks" without
// recomputing the count from the function body.
var repoHealthCheckNames = []string{".beadloom/ present", "db schema current", "graph files parse", "git available"}

// repoHealthChecks implements spec §4's doctor checklist: ".beadloom/
// present, db schema current, graph files parse, git available". Each
// returned finding carries the fix instruction doctor prints alongside it.
func repoHealthChecks(ctx context.Context, st *store.Store, root string) []finding {
	var out []finding

	if _, err := os.Stat(filepath.Join(root, ".beadloom")); err != nil {
		out = append(out, finding{
			Message: ".beadloom/ directory is missing",
			Fix:     "run `beadloom init` in this directory to bootstrap it",
		})
	}

	if v, ok, err := st.MetaGet("schema_version"); err != nil {
		out = append(out, finding{
			Message: fmt.Sprintf("could not read schema_version: %v", err),
			Fix:     "the beadloom.db file may be corrupt; consider deleting .beadloom/beadloom.db and re-running `beadloom init`",
		})
	} else if !ok {
		out = append(out, finding{
			Message: "schema_version meta key is not set",
			Fix:     "re-open the store with a current beadloom build to stamp it",
		})
	} else if n, err := strconv.Atoi(v); err != nil || n != store.CurrentSchemaVersion {
		out = append(out, finding{
			Message: fmt.Sprintf("db schema_version %s does not match current version %d", v, store.CurrentSchemaVersion),
			Fix:     "upgrade beadloom and re-run `beadloom reindex --full` to migrate",
		})
	}

	dir := graph.GraphDir(root)
	if result, err := graph.Load(ctx, st, dir); err != nil {
		out = append(out, finding{
			Message: fmt.Sprintf("graph shards under %s failed to load: %v", dir, err),
			Fix:     "fix the reported YAML shard and re-run `beadloom doctor`",
		})
	} else {
		for _, e := range result.Errors {
			out = append(out, finding{
				Message: fmt.Sprintf("graph parse error: %s", e),
				Fix:     "fix the offending shard under .beadloom/_graph/ and re-run `beadloom reindex`",
			})
		}
	}

	if _, err := exec.LookPath("git"); err != nil {
		out = append(out, finding{
			Message: "git binary not found on PATH",
			Fix:     "install git; activity tracking and drift's hash-history checks need it",
		})
	}

	return out
}
