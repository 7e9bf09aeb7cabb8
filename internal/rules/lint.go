package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"beadloom/internal/logging"
	"beadloom/internal/store"
)

// Violation records a single rule breach found during evaluation (spec
// §4.H: "rule name, kind, severity, optional file/line and
// from_ref_id/to_ref_id, and a formatted message").
type Violation struct {
	RuleName   string
	RuleType   store.RuleType
	Severity   store.Severity
	FilePath   string // empty when the violation has no specific location
	LineNumber int    // 0 when FilePath is empty
	FromRefID  string
	ToRefID    string
	Message    string
}

// Result is the outcome of a Lint run.
type Result struct {
	Violations      []Violation
	RulesEvaluated  int
	FilesScanned    int
	ImportsResolved int
}

// Lint evaluates every enabled rule against the current store state.
// Deny rules are checked against resolved cross-module imports; require
// rules are checked against the node/edge graph.
func Lint(ctx context.Context, st *store.Store) (*Result, error) {
	log := logging.Get(logging.CategoryRules)
	q := st.Q()

	rules, err := store.ListEnabledRules(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}

	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	sourceDirs := map[string]string{}
	for _, n := range nodes {
		if n.Source != "" {
			sourceDirs[n.RefID] = n.Source
		}
	}

	imports, err := store.AllResolvedImports(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing resolved imports: %w", err)
	}

	filesScanned := map[string]bool{}
	for _, imp := range imports {
		filesScanned[imp.FilePath] = true
	}

	result := &Result{FilesScanned: len(filesScanned), ImportsResolved: len(imports)}

	for _, r := range rules {
		switch r.RuleType {
		case store.RuleTypeDeny:
			d, err := DecodeDeny(r)
			if err != nil {
				return nil, &ConfigError{Path: r.Name, Reason: err.Error()}
			}
			vs, err := evaluateDeny(r, d, nodes, sourceDirs, imports)
			if err != nil {
				return nil, err
			}
			result.Violations = append(result.Violations, vs...)
			result.RulesEvaluated++

		case store.RuleTypeRequire:
			req, err := DecodeRequire(r)
			if err != nil {
				return nil, &ConfigError{Path: r.Name, Reason: err.Error()}
			}
			vs, err := evaluateRequire(ctx, q, r, req, nodes)
			if err != nil {
				return nil, err
			}
			result.Violations = append(result.Violations, vs...)
			result.RulesEvaluated++

		default:
			return nil, &ConfigError{Path: r.Name, Reason: fmt.Sprintf("unknown rule type %q", r.RuleType)}
		}
	}

	sort.SliceStable(result.Violations, func(i, j int) bool {
		if result.Violations[i].RuleName != result.Violations[j].RuleName {
			return result.Violations[i].RuleName < result.Violations[j].RuleName
		}
		return result.Violations[i].FilePath < result.Violations[j].FilePath
	})

	log.Info("lint: %d rules evaluated, %d violations", result.RulesEvaluated, len(result.Violations))
	return result, nil
}

// evaluateDeny finds every resolved import whose source file's owning node
// matches d.From and whose resolved target node matches d.To.
func evaluateDeny(r store.Rule, d DenyRule, nodes []store.Node, sourceDirs map[string]string, imports []store.CodeImport) ([]Violation, error) {
	nodeByRefID := map[string]store.Node{}
	for _, n := range nodes {
		nodeByRefID[n.RefID] = n
	}

	var out []Violation
	for _, imp := range imports {
		if imp.ResolvedRefID == "" {
			continue
		}
		fromRefID := mapFileToNode(imp.FilePath, sourceDirs)
		if fromRefID == "" || fromRefID == imp.ResolvedRefID {
			continue
		}
		fromNode, ok := nodeByRefID[fromRefID]
		if !ok || !d.From.Matches(fromNode) {
			continue
		}
		toNode, ok := nodeByRefID[imp.ResolvedRefID]
		if !ok || !d.To.Matches(toNode) {
			continue
		}
		out = append(out, Violation{
			RuleName:   r.Name,
			RuleType:   store.RuleTypeDeny,
			Severity:   r.Severity,
			FilePath:   imp.FilePath,
			LineNumber: imp.LineNumber,
			FromRefID:  fromRefID,
			ToRefID:    imp.ResolvedRefID,
			Message:    fmt.Sprintf("%s imports %s (%s)", fromRefID, imp.ResolvedRefID, imp.ImportPath),
		})
	}
	return out, nil
}

// evaluateRequire finds every node matching req.For lacking an outgoing
// edge of req.EdgeKind (any kind, if unset) to a node matching req.HasEdgeTo.
func evaluateRequire(ctx context.Context, q store.Queryer, r store.Rule, req RequireRule, nodes []store.Node) ([]Violation, error) {
	var out []Violation
	for _, n := range nodes {
		if !req.For.Matches(n) {
			continue
		}
		outgoing, _, err := store.EdgesTouching(ctx, q, n.RefID)
		if err != nil {
			return nil, fmt.Errorf("listing edges for %s: %w", n.RefID, err)
		}

		satisfied := false
		for _, e := range outgoing {
			if req.EdgeKind != "" && e.Kind != req.EdgeKind {
				continue
			}
			target, err := store.GetNode(ctx, q, e.DstRefID)
			if err != nil {
				if err == store.ErrNotFound {
					continue
				}
				return nil, fmt.Errorf("fetching node %s: %w", e.DstRefID, err)
			}
			if req.HasEdgeTo.Matches(*target) {
				satisfied = true
				break
			}
		}
		if satisfied {
			continue
		}

		edgeDesc := "an edge"
		if req.EdgeKind != "" {
			edgeDesc = fmt.Sprintf("a %s edge", req.EdgeKind)
		}
		out = append(out, Violation{
			RuleName:  r.Name,
			RuleType:  store.RuleTypeRequire,
			Severity:  r.Severity,
			FromRefID: n.RefID,
			Message:   fmt.Sprintf("%s is missing %s to a matching node", n.RefID, edgeDesc),
		})
	}
	return out, nil
}

// mapFileToNode returns the ref_id whose source directory is the longest
// prefix match of filePath, mirroring vcs.mapFileToNode's file-ownership
// convention for the rule engine's own needs.
func mapFileToNode(filePath string, sourceDirs map[string]string) string {
	filePath = strings.TrimPrefix(filePath, "./")
	best, bestLen := "", 0
	for refID, src := range sourceDirs {
		src = strings.TrimSuffix(strings.TrimPrefix(src, "./"), "/")
		if src == "" {
			continue
		}
		if (filePath == src || strings.HasPrefix(filePath, src+"/")) && len(src) > bestLen {
			best, bestLen = refID, len(src)
		}
	}
	return best
}
