// Package contextbundle assembles component F's context bundles: a
// size-bounded BFS subgraph around one or more focus ref_ids, plus the
// text chunks, code symbols, routes, constraints, and sync status relevant
// to it.
package contextbundle

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"beadloom/internal/logging"
	"beadloom/internal/rules"
	"beadloom/internal/store"
)

// BundleVersion is the current bundle schema version. Spec §4.F bumps this
// to 2 from the original implementation's 1 to account for the added
// routes and constraints sections.
const BundleVersion = 2

const (
	// DefaultDepth is the BFS traversal depth below the focus set.
	DefaultDepth = 2
	// DefaultMaxNodes caps the number of nodes visited during BFS.
	DefaultMaxNodes = 20
	// DefaultMaxChunks caps the number of text chunks returned.
	DefaultMaxChunks = 10
)

// GraphNode is a bundle's minimal node projection.
type GraphNode struct {
	RefID   string `json:"ref_id"`
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
}

// GraphEdge is a bundle's edge projection.
type GraphEdge struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Kind string `json:"kind"`
}

// TextChunk is a bundle's chunk projection.
type TextChunk struct {
	DocPath string `json:"doc_path"`
	Section string `json:"section"`
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// CodeSymbolInfo is a bundle's code-symbol projection.
type CodeSymbolInfo struct {
	FilePath   string `json:"file_path"`
	SymbolName string `json:"symbol_name"`
	Kind       string `json:"kind"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
}

// StaleDoc names a doc/code pair that sync state reports as out of sync.
type StaleDoc struct {
	DocPath  string `json:"doc_path"`
	CodePath string `json:"code_path"`
}

// SyncStatus is the bundle's sync-freshness section.
type SyncStatus struct {
	StaleDocs   []StaleDoc `json:"stale_docs"`
	LastReindex string     `json:"last_reindex,omitempty"`
}

// Constraint is a bundle's projection of a rule relevant to the subgraph.
type Constraint struct {
	Name        string `json:"name"`
	RuleType    string `json:"rule_type"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity"`
}

// Focus is the bundle's primary-node section: the first focus ref_id's
// node fields plus whatever auxiliary extras the indexing driver attached.
type Focus struct {
	RefID    string      `json:"ref_id"`
	Kind     string      `json:"kind"`
	Summary  string      `json:"summary"`
	Activity interface{} `json:"activity,omitempty"`
	Tests    interface{} `json:"tests,omitempty"`
	Routes   interface{} `json:"routes,omitempty"`
}

// Bundle is the full context-bundle payload returned by Build.
type Bundle struct {
	Version     int              `json:"version"`
	Focus       Focus            `json:"focus"`
	Graph       Graph            `json:"graph"`
	TextChunks  []TextChunk      `json:"text_chunks"`
	CodeSymbols []CodeSymbolInfo `json:"code_symbols"`
	Routes      []interface{}    `json:"routes"`
	SyncStatus  SyncStatus       `json:"sync_status"`
	Constraints []Constraint     `json:"constraints"`
	Warning     string           `json:"warning,omitempty"`
}

// Graph is the bundle's subgraph section.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// NotFoundError is returned by Build when a focus ref_id does not exist.
// Suggestions holds up to five candidate ref_ids per spec §4.F.
type NotFoundError struct {
	RefID       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%q not found.", e.RefID)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" Did you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// Options controls Build's bounds; zero values fall back to defaults.
type Options struct {
	Depth     int
	MaxNodes  int
	MaxChunks int
}

func (o Options) withDefaults() Options {
	if o.Depth <= 0 {
		o.Depth = DefaultDepth
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = DefaultMaxNodes
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	return o
}

// Build assembles a context bundle for the given focus ref_ids. The first
// ref_id becomes the bundle's Focus; all of them seed the BFS subgraph.
func Build(ctx context.Context, st *store.Store, focusRefIDs []string, opts Options) (*Bundle, error) {
	log := logging.Get(logging.CategoryContext)
	opts = opts.withDefaults()
	q := st.Q()

	if len(focusRefIDs) == 0 {
		return nil, fmt.Errorf("at least one focus ref_id is required")
	}

	allNodes := map[string]store.Node{}
	nodesSlice, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, n := range nodesSlice {
		allNodes[n.RefID] = n
	}

	for _, rid := range focusRefIDs {
		if _, ok := allNodes[rid]; !ok {
			suggestions, serr := store.SuggestRefIDs(ctx, q, rid)
			if serr != nil {
				return nil, serr
			}
			return nil, &NotFoundError{RefID: rid, Suggestions: suggestions}
		}
	}

	subNodes, subEdges, err := bfsSubgraph(ctx, q, focusRefIDs, opts.Depth, opts.MaxNodes)
	if err != nil {
		return nil, err
	}

	subRefIDs := lo.Map(subNodes, func(n GraphNode, _ int) string { return n.RefID })
	dependsOnRefIDs := dependsOnNeighbors(subEdges, focusRefIDs)

	chunks, err := collectChunks(ctx, q, subRefIDs, dependsOnRefIDs, opts.MaxChunks)
	if err != nil {
		return nil, err
	}

	symbols, err := collectSymbols(ctx, q, subRefIDs)
	if err != nil {
		return nil, err
	}

	syncStatus, err := collectSyncStatus(ctx, q, subRefIDs)
	if err != nil {
		return nil, err
	}
	if lastReindex, ok, err := st.MetaGet(store.MetaLastReindexAt); err != nil {
		return nil, fmt.Errorf("reading last reindex time: %w", err)
	} else if ok {
		syncStatus.LastReindex = lastReindex
	}

	constraints, err := collectConstraints(ctx, q, subRefIDs, allNodes)
	if err != nil {
		return nil, err
	}

	routes := collectRoutes(subNodes, allNodes)

	focusNode := allNodes[focusRefIDs[0]]
	focus := Focus{
		RefID:   focusNode.RefID,
		Kind:    string(focusNode.Kind),
		Summary: focusNode.Summary,
	}
	if focusNode.Extra != nil {
		focus.Activity = focusNode.Extra["activity"]
		focus.Tests = focusNode.Extra["tests"]
		focus.Routes = focusNode.Extra["routes"]
	}

	log.Debug("built context bundle for %v: %d nodes, %d edges, %d chunks, %d symbols",
		focusRefIDs, len(subNodes), len(subEdges), len(chunks), len(symbols))

	return &Bundle{
		Version:     BundleVersion,
		Focus:       focus,
		Graph:       Graph{Nodes: subNodes, Edges: subEdges},
		TextChunks:  chunks,
		CodeSymbols: symbols,
		Routes:      routes,
		SyncStatus:  syncStatus,
		Constraints: constraints,
	}, nil
}

// dependsOnNeighbors returns the set of non-focus ref_ids at either end of
// any depends_on edge in edges, used to keep bundles compact (spec §4.F "Contextual
// summaries": prefer a node's summary over its chunk bodies for these).
func dependsOnNeighbors(edges []GraphEdge, focusRefIDs []string) map[string]bool {
	focus := map[string]bool{}
	for _, rid := range focusRefIDs {
		focus[rid] = true
	}
	out := map[string]bool{}
	for _, e := range edges {
		if e.Kind != string(store.EdgeKindDependsOn) {
			continue
		}
		if !focus[e.Src] {
			out[e.Src] = true
		}
		if !focus[e.Dst] {
			out[e.Dst] = true
		}
	}
	return out
}

// collectChunks gathers text chunks for refIDs, skipping the ref_ids in
// dependsOnRefIDs (even when another edge kind also reaches them) — those
// already carry a GraphNode.Summary, and pulling in their full chunk bodies
// too would bloat the bundle with detail the focus node doesn't need (spec
// §4.F "Contextual summaries").
func collectChunks(ctx context.Context, q store.Queryer, refIDs []string, dependsOnRefIDs map[string]bool, maxChunks int) ([]TextChunk, error) {
	wanted := make([]string, 0, len(refIDs))
	for _, rid := range refIDs {
		if dependsOnRefIDs[rid] {
			continue
		}
		wanted = append(wanted, rid)
	}
	if len(wanted) == 0 {
		return nil, nil
	}
	chunks, err := store.ChunksForRefIDs(ctx, q, wanted)
	if err != nil {
		return nil, fmt.Errorf("collecting chunks: %w", err)
	}
	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}

	out := make([]TextChunk, 0, len(chunks))
	for _, c := range chunks {
		docPath, err := docPathForChunk(ctx, q, c.DocID)
		if err != nil {
			return nil, err
		}
		out = append(out, TextChunk{
			DocPath: docPath,
			Section: string(c.Section),
			Heading: c.Heading,
			Content: c.Body,
		})
	}
	return out, nil
}

func docPathForChunk(ctx context.Context, q store.Queryer, docID int64) (string, error) {
	row := q.QueryRowContext(ctx, `SELECT path FROM docs WHERE id = ?`, docID)
	var path string
	if err := row.Scan(&path); err != nil {
		return "", fmt.Errorf("resolving doc path for chunk's doc %d: %w", docID, err)
	}
	return path, nil
}

func collectSymbols(ctx context.Context, q store.Queryer, refIDs []string) ([]CodeSymbolInfo, error) {
	if len(refIDs) == 0 {
		return nil, nil
	}
	symbols, err := store.SymbolsAnnotatedWith(ctx, q, refIDs)
	if err != nil {
		return nil, fmt.Errorf("collecting symbols: %w", err)
	}
	out := make([]CodeSymbolInfo, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, CodeSymbolInfo{
			FilePath:   s.FilePath,
			SymbolName: s.SymbolName,
			Kind:       string(s.Kind),
			LineStart:  s.LineStart,
			LineEnd:    s.LineEnd,
		})
	}
	return out, nil
}

func collectSyncStatus(ctx context.Context, q store.Queryer, refIDs []string) (SyncStatus, error) {
	status := SyncStatus{}
	for _, rid := range refIDs {
		rows, err := store.ListSyncStateForRefID(ctx, q, rid)
		if err != nil {
			return status, fmt.Errorf("checking sync status for %s: %w", rid, err)
		}
		for _, r := range rows {
			if r.Status == store.SyncStale {
				status.StaleDocs = append(status.StaleDocs, StaleDoc{DocPath: r.DocPath, CodePath: r.CodePath})
			}
		}
	}
	return status, nil
}

// collectConstraints implements spec §4.F's "every enabled rule whose
// matcher could apply to at least one subgraph ref_id": a deny rule
// matches when its from or to selects a subgraph node; a require rule
// matches when its for does.
func collectConstraints(ctx context.Context, q store.Queryer, subRefIDs []string, allNodes map[string]store.Node) ([]Constraint, error) {
	enabled, err := store.ListEnabledRules(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	if len(enabled) == 0 {
		return nil, nil
	}

	subNodes := make([]store.Node, 0, len(subRefIDs))
	for _, rid := range subRefIDs {
		if n, ok := allNodes[rid]; ok {
			subNodes = append(subNodes, n)
		}
	}

	var out []Constraint
	for _, r := range enabled {
		applies := false
		switch r.RuleType {
		case store.RuleTypeDeny:
			deny, derr := rules.DecodeDeny(r)
			if derr != nil {
				continue
			}
			applies = rules.MatchesAnyNode(deny.From, subNodes) || rules.MatchesAnyNode(deny.To, subNodes)
		case store.RuleTypeRequire:
			req, rerr := rules.DecodeRequire(r)
			if rerr != nil {
				continue
			}
			applies = rules.MatchesAnyNode(req.For, subNodes)
		}
		if applies {
			out = append(out, Constraint{
				Name:        r.Name,
				RuleType:    string(r.RuleType),
				Description: r.Description,
				Severity:    string(r.Severity),
			})
		}
	}
	return out, nil
}

// collectRoutes gathers the extra["routes"] payload of every subgraph
// node, flattened into a single list for the bundle's top-level routes
// section (spec §4.F bundle shape).
func collectRoutes(subNodes []GraphNode, allNodes map[string]store.Node) []interface{} {
	var out []interface{}
	for _, gn := range subNodes {
		n, ok := allNodes[gn.RefID]
		if !ok || n.Extra == nil {
			continue
		}
		raw, ok := n.Extra["routes"]
		if !ok {
			continue
		}
		switch routes := raw.(type) {
		case []interface{}:
			out = append(out, routes...)
		default:
			out = append(out, raw)
		}
	}
	return out
}

// Suggest exposes spec §4.F's suggestion algorithm directly, for callers
// that need it outside of Build's not-found path.
func Suggest(ctx context.Context, q store.Queryer, refID string) ([]string, error) {
	return store.SuggestRefIDs(ctx, q, refID)
}
