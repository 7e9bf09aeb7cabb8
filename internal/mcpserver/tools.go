package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"beadloom/internal/config"
	"beadloom/internal/contextbundle"
	"beadloom/internal/diffsnap"
	"beadloom/internal/docs"
	"beadloom/internal/impact"
	"beadloom/internal/index"
	"beadloom/internal/rules"
	"beadloom/internal/store"
	"beadloom/internal/syncdrift"
)

// Names is the fixed tool vocabulary spec §6 requires.
var Names = []string{
	"get_context", "get_graph", "list_nodes", "sync_check", "get_status",
	"update_node", "mark_synced", "search", "generate_docs", "prime",
	"why", "diff", "lint",
}

// Schemas returns the JSON-schema description of every tool. Dispatch has
// no discovery tool that serves them; the CLI counts them for the
// mcp_tool_count fact.
func Schemas() []ToolSchema {
	schema := func(props string) json.RawMessage {
		return json.RawMessage(`{"type":"object","properties":` + props + `}`)
	}
	return []ToolSchema{
		{Name: "get_context", Description: "Get a compact context bundle for a ref_id: graph, doc chunks, code symbols, sync status.",
			InputSchema: schema(`{"ref_id":{"type":"string"},"depth":{"type":"integer"},"max_nodes":{"type":"integer"},"max_chunks":{"type":"integer"}}`)},
		{Name: "get_graph", Description: "Get a subgraph around a node: nodes and edges as JSON.",
			InputSchema: schema(`{"ref_id":{"type":"string"},"depth":{"type":"integer"}}`)},
		{Name: "list_nodes", Description: "List all graph nodes, optionally filtered by kind.",
			InputSchema: schema(`{"kind":{"type":"string"}}`)},
		{Name: "sync_check", Description: "Check documentation-vs-code sync status, optionally for one ref_id.",
			InputSchema: schema(`{"ref_id":{"type":"string"}}`)},
		{Name: "get_status", Description: "Get project index statistics and documentation coverage.",
			InputSchema: schema(`{}`)},
		{Name: "update_node", Description: "Update a node's summary and/or tags.",
			InputSchema: schema(`{"ref_id":{"type":"string"},"summary":{"type":"string"},"tags":{"type":"array","items":{"type":"string"}}}`)},
		{Name: "mark_synced", Description: "Record the current code/doc hashes as the synced baseline for a ref_id.",
			InputSchema: schema(`{"ref_id":{"type":"string"}}`)},
		{Name: "search", Description: "Full-text search over node summaries and doc chunks.",
			InputSchema: schema(`{"query":{"type":"string"},"kind":{"type":"string"},"limit":{"type":"integer"}}`)},
		{Name: "generate_docs", Description: "Generate Markdown doc stubs for nodes with no linked documentation.",
			InputSchema: schema(`{"docs_dir":{"type":"string"}}`)},
		{Name: "prime", Description: "Get a project primer: top-level domains/services and overall status, for onboarding an agent.",
			InputSchema: schema(`{}`)},
		{Name: "why", Description: "Impact analysis: upstream/downstream dependencies of a ref_id.",
			InputSchema: schema(`{"ref_id":{"type":"string"},"depth":{"type":"integer"},"max_nodes":{"type":"integer"}}`)},
		{Name: "diff", Description: "Diff the current graph against a prior snapshot or git ref.",
			InputSchema: schema(`{"since":{"type":"string"},"snapshot_id":{"type":"string"}}`)},
		{Name: "lint", Description: "Evaluate architecture rules against the current graph and imports.",
			InputSchema: schema(`{"format":{"type":"string"}}`)},
	}
}

// Server bundles the state every tool handler needs.
type Server struct {
	Store *store.Store
	Root  string
	Cfg   *config.Config
}

// Dispatch routes one tool call to its handler and returns a JSON-
// serializable result, or an error describing what went wrong.
func (s *Server) Dispatch(ctx context.Context, tool string, args json.RawMessage) (interface{}, error) {
	switch tool {
	case "get_context":
		return s.getContext(ctx, args)
	case "get_graph":
		return s.getGraph(ctx, args)
	case "list_nodes":
		return s.listNodes(ctx, args)
	case "sync_check":
		return s.syncCheck(ctx, args)
	case "get_status":
		return s.getStatus(ctx)
	case "update_node":
		return s.updateNode(ctx, args)
	case "mark_synced":
		return s.markSynced(ctx, args)
	case "search":
		return s.search(ctx, args)
	case "generate_docs":
		return s.generateDocs(ctx, args)
	case "prime":
		return s.prime(ctx)
	case "why":
		return s.why(ctx, args)
	case "diff":
		return s.diff(ctx, args)
	case "lint":
		return s.lint(ctx)
	default:
		return nil, fmt.Errorf("unknown tool: %s", tool)
	}
}

func unmarshalArgs(args json.RawMessage, out interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) getContext(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		RefID     string `json:"ref_id"`
		Depth     int    `json:"depth"`
		MaxNodes  int    `json:"max_nodes"`
		MaxChunks int    `json:"max_chunks"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.RefID == "" {
		return nil, fmt.Errorf("ref_id is required")
	}
	bundle, err := contextbundle.Build(ctx, s.Store, []string{in.RefID}, contextbundle.Options{
		Depth: in.Depth, MaxNodes: in.MaxNodes, MaxChunks: in.MaxChunks,
	})
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

func (s *Server) getGraph(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		RefID string `json:"ref_id"`
		Depth int    `json:"depth"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.RefID == "" {
		return nil, fmt.Errorf("ref_id is required")
	}
	graph, err := contextbundle.Subgraph(ctx, s.Store.Q(), []string{in.RefID}, in.Depth, 0)
	if err != nil {
		return nil, err
	}
	return graph, nil
}

func (s *Server) listNodes(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		Kind string `json:"kind"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	nodes, err := store.ListNodes(ctx, s.Store.Q())
	if err != nil {
		return nil, err
	}

	type row struct {
		RefID   string `json:"ref_id"`
		Kind    string `json:"kind"`
		Summary string `json:"summary"`
	}
	var out []row
	for _, n := range nodes {
		if in.Kind != "" && string(n.Kind) != in.Kind {
			continue
		}
		out = append(out, row{RefID: n.RefID, Kind: string(n.Kind), Summary: n.Summary})
	}
	return out, nil
}

func (s *Server) syncCheck(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		RefID string `json:"ref_id"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	entries, err := syncdrift.Check(ctx, s.Store, s.Root)
	if err != nil {
		return nil, err
	}
	if in.RefID == "" {
		return entries, nil
	}
	var out []syncdrift.DriftEntry
	for _, e := range entries {
		if e.RefID == in.RefID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Server) getStatus(ctx context.Context) (interface{}, error) {
	q := s.Store.Q()
	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, err
	}
	edges, err := store.ListEdges(ctx, q)
	if err != nil {
		return nil, err
	}
	allDocs, err := store.ListAllDocs(ctx, q)
	if err != nil {
		return nil, err
	}
	symbolsCount, err := store.CountSymbols(ctx, q)
	if err != nil {
		return nil, err
	}
	syncRows, err := store.ListAllSyncState(ctx, q)
	if err != nil {
		return nil, err
	}

	staleCount := 0
	for _, r := range syncRows {
		if r.Status == store.SyncStale {
			staleCount++
		}
	}

	covered := map[string]bool{}
	for _, d := range allDocs {
		if d.RefID != "" {
			covered[d.RefID] = true
		}
	}

	lastReindex, _, _ := s.Store.MetaGet(store.MetaLastReindexAt)
	version, _, _ := s.Store.MetaGet(store.MetaBeadloomVersion)

	return map[string]interface{}{
		"nodes_count":      len(nodes),
		"edges_count":      len(edges),
		"docs_count":       len(allDocs),
		"symbols_count":    symbolsCount,
		"stale_count":      staleCount,
		"doc_coverage":     len(covered),
		"last_reindex":     lastReindex,
		"beadloom_version": version,
	}, nil
}

func (s *Server) updateNode(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		RefID   string   `json:"ref_id"`
		Summary string   `json:"summary"`
		Tags    []string `json:"tags"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.RefID == "" {
		return nil, fmt.Errorf("ref_id is required")
	}

	q := s.Store.Q()
	n, err := store.GetNode(ctx, q, in.RefID)
	if err != nil {
		return nil, err
	}
	if in.Summary != "" {
		n.Summary = in.Summary
	}
	if in.Tags != nil {
		if n.Extra == nil {
			n.Extra = map[string]interface{}{}
		}
		n.Extra["tags"] = in.Tags
	}
	if err := store.UpsertNode(ctx, q, *n); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ref_id": n.RefID, "updated": true}, nil
}

func (s *Server) markSynced(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		RefID string `json:"ref_id"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.RefID == "" {
		return nil, fmt.Errorf("ref_id is required")
	}

	q := s.Store.Q()
	rows, err := store.ListSyncStateForRefID(ctx, q, in.RefID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	marked := 0
	for _, r := range rows {
		codeEntry, err := store.GetFileIndexEntry(ctx, q, r.CodePath)
		if err != nil && err != store.ErrNotFound {
			return nil, err
		}
		docEntry, err := store.GetFileIndexEntry(ctx, q, r.DocPath)
		if err != nil && err != store.ErrNotFound {
			return nil, err
		}
		tokens, err := store.SymbolTokensForRefID(ctx, q, in.RefID)
		if err != nil {
			return nil, err
		}
		symbolsHash := store.HashSymbolSet(tokens)

		var codeHash, docHash string
		if codeEntry != nil {
			codeHash = codeEntry.Hash
		}
		if docEntry != nil {
			docHash = docEntry.Hash
		}
		if err := store.MarkSynced(ctx, q, r.DocPath, r.CodePath, codeHash, docHash, symbolsHash, now); err != nil {
			return nil, err
		}
		marked++
	}
	return map[string]interface{}{"ref_id": in.RefID, "marked": marked}, nil
}

func (s *Server) search(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		Query string `json:"query"`
		Kind  string `json:"kind"`
		Limit int    `json:"limit"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	results, err := store.Search(ctx, s.Store.Q(), in.Query, in.Kind, in.Limit)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Server) generateDocs(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		DocsDir string `json:"docs_dir"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	docsDir := in.DocsDir
	if docsDir == "" {
		docsDir = s.Cfg.DocsDir
	}
	written, err := docs.GenerateStubs(ctx, s.Store, s.Root, docsDir)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"generated": written}, nil
}

func (s *Server) prime(ctx context.Context) (interface{}, error) {
	q := s.Store.Q()
	nodes, err := store.ListNodes(ctx, q)
	if err != nil {
		return nil, err
	}

	type topLevel struct {
		RefID   string `json:"ref_id"`
		Kind    string `json:"kind"`
		Summary string `json:"summary"`
	}
	var domains, services []topLevel
	for _, n := range nodes {
		tl := topLevel{RefID: n.RefID, Kind: string(n.Kind), Summary: n.Summary}
		switch n.Kind {
		case store.KindDomain:
			domains = append(domains, tl)
		case store.KindService:
			services = append(services, tl)
		}
	}

	status, err := s.getStatus(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"domains":  domains,
		"services": services,
		"status":   status,
	}, nil
}

func (s *Server) why(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		RefID    string `json:"ref_id"`
		Depth    int    `json:"depth"`
		MaxNodes int    `json:"max_nodes"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}
	if in.RefID == "" {
		return nil, fmt.Errorf("ref_id is required")
	}
	result, err := impact.Analyze(ctx, s.Store, in.RefID, impact.Options{Depth: in.Depth, MaxNodes: in.MaxNodes})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Server) diff(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		Since      string `json:"since"`
		SnapshotID string `json:"snapshot_id"`
	}
	if err := unmarshalArgs(args, &in); err != nil {
		return nil, err
	}

	if in.SnapshotID != "" {
		return diffsnap.DiffAgainstLive(ctx, s.Store, in.SnapshotID)
	}

	since := in.Since
	if since == "" {
		since = "HEAD~1"
	}
	return diffsnap.DiffAgainstRef(ctx, s.Root, since)
}

func (s *Server) lint(ctx context.Context) (interface{}, error) {
	return rules.Lint(ctx, s.Store)
}

// EnsureConfig loads config.Config lazily, used by callers constructing a
// Server outside the CLI's normal startup path.
func EnsureConfig(root string) (*config.Config, error) {
	return config.Load(root)
}

// ReindexForServer runs a reindex using the same driver the CLI `reindex`
// verb uses, for callers that want to refresh the store before serving.
func ReindexForServer(ctx context.Context, st *store.Store, root string, cfg *config.Config, full bool) (*index.Result, error) {
	return index.Reindex(ctx, st, root, cfg, "", full)
}
