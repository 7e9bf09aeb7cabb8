package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// NodeKind is the fixed vocabulary for nodes.kind (spec §3).
type NodeKind string

const (
	KindDomain  NodeKind = "domain"
	KindFeature NodeKind = "feature"
	KindService NodeKind = "service"
	KindEntity  NodeKind = "entity"
	KindADR     NodeKind = "adr"
)

var validNodeKinds = map[NodeKind]bool{
	KindDomain: true, KindFeature: true, KindService: true, KindEntity: true, KindADR: true,
}

// Node is a row of the nodes table.
type Node struct {
	RefID   string
	Kind    NodeKind
	Summary string
	Source  string // empty means NULL
	Extra   map[string]interface{}
}

func (n *Node) extraJSON() (string, error) {
	if n.Extra == nil {
		return "{}", nil
	}
	data, err := json.Marshal(n.Extra)
	if err != nil {
		return "", fmt.Errorf("marshaling extra for %s: %w", n.RefID, err)
	}
	return string(data), nil
}

// UpsertNode inserts or replaces a node. extra is merged by the caller
// before calling this (spec §3: "reindex-produced keys overwrite; unrelated
// keys survive" is a merge policy the indexing driver applies, not the
// store — the store simply persists whatever map it is given).
func UpsertNode(ctx context.Context, q Queryer, n Node) error {
	if !validNodeKinds[n.Kind] {
		return fmt.Errorf("%w: node kind %q", ErrInvalidKind, n.Kind)
	}
	extra, err := n.extraJSON()
	if err != nil {
		return err
	}

	var source sql.NullString
	if n.Source != "" {
		source = sql.NullString{String: n.Source, Valid: true}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO nodes (ref_id, kind, summary, source, extra)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ref_id) DO UPDATE SET
			kind = excluded.kind,
			summary = excluded.summary,
			source = excluded.source,
			extra = excluded.extra
	`, n.RefID, string(n.Kind), n.Summary, source, extra)
	if err != nil {
		return fmt.Errorf("upserting node %s: %w", n.RefID, err)
	}
	return nil
}

// GetNode fetches a node by ref_id. Returns ErrNotFound if absent.
func GetNode(ctx context.Context, q Queryer, refID string) (*Node, error) {
	row := q.QueryRowContext(ctx, `SELECT ref_id, kind, summary, source, extra FROM nodes WHERE ref_id = ?`, refID)
	return scanNode(row)
}

func scanNode(row *sql.Row) (*Node, error) {
	var (
		n      Node
		kind   string
		source sql.NullString
		extra  string
	)
	if err := row.Scan(&n.RefID, &kind, &n.Summary, &source, &extra); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning node: %w", err)
	}
	n.Kind = NodeKind(kind)
	if source.Valid {
		n.Source = source.String
	}
	n.Extra = map[string]interface{}{}
	if extra != "" {
		if err := json.Unmarshal([]byte(extra), &n.Extra); err != nil {
			return nil, fmt.Errorf("unmarshaling extra for %s: %w", n.RefID, err)
		}
	}
	return &n, nil
}

// ListNodes returns every node, ordered by ref_id for deterministic output.
func ListNodes(ctx context.Context, q Queryer) ([]Node, error) {
	rows, err := q.QueryContext(ctx, `SELECT ref_id, kind, summary, source, extra FROM nodes ORDER BY ref_id`)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var (
			n      Node
			kind   string
			source sql.NullString
			extra  string
		)
		if err := rows.Scan(&n.RefID, &kind, &n.Summary, &source, &extra); err != nil {
			return nil, fmt.Errorf("scanning node row: %w", err)
		}
		n.Kind = NodeKind(kind)
		if source.Valid {
			n.Source = source.String
		}
		n.Extra = map[string]interface{}{}
		if extra != "" {
			if err := json.Unmarshal([]byte(extra), &n.Extra); err != nil {
				return nil, fmt.Errorf("unmarshaling extra for %s: %w", n.RefID, err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListRefIDs is a cheap projection of ListNodes used by suggestion lookups.
func ListRefIDs(ctx context.Context, q Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT ref_id FROM nodes ORDER BY ref_id`)
	if err != nil {
		return nil, fmt.Errorf("listing ref ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RefIDBySource looks up a node by its exact source path, used by the
// import resolver's directory-match fallback strategy. Returns
// ErrNotFound if no node declares that source.
func RefIDBySource(ctx context.Context, q Queryer, source string) (string, error) {
	var refID string
	err := q.QueryRowContext(ctx, `SELECT ref_id FROM nodes WHERE source = ?`, source).Scan(&refID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up node by source %s: %w", source, err)
	}
	return refID, nil
}

// DeleteNode removes a node; FK cascade removes its edges, nulls chunk/doc
// links, per the schema.
func DeleteNode(ctx context.Context, q Queryer, refID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM nodes WHERE ref_id = ?`, refID)
	if err != nil {
		return fmt.Errorf("deleting node %s: %w", refID, err)
	}
	return nil
}

// maxSuggestions is the cap spec §4.F places on the suggestion list.
const maxSuggestions = 5

// SuggestRefIDs implements spec §4.F's "suggestion on miss" algorithm:
// prefix matches first (case-insensitive), then ref_ids within Levenshtein
// distance max(len(query)/2, 3), ordered (prefix, then distance),
// deduplicated, capped at 5.
func SuggestRefIDs(ctx context.Context, q Queryer, query string) ([]string, error) {
	all, err := ListRefIDs(ctx, q)
	if err != nil {
		return nil, err
	}

	lowerQuery := strings.ToLower(query)
	threshold := len(query) / 2
	if threshold < 3 {
		threshold = 3
	}

	seen := map[string]bool{}
	var prefixed, others []string

	for _, id := range all {
		lowerID := strings.ToLower(id)
		if strings.HasPrefix(lowerID, lowerQuery) || strings.HasPrefix(lowerQuery, lowerID) {
			if !seen[id] {
				seen[id] = true
				prefixed = append(prefixed, id)
			}
			continue
		}
		if d := levenshtein(lowerQuery, lowerID); d <= threshold {
			if !seen[id] {
				seen[id] = true
				others = append(others, id)
			}
		}
	}

	sort.Strings(prefixed)
	sort.SliceStable(others, func(i, j int) bool {
		di := levenshtein(lowerQuery, strings.ToLower(others[i]))
		dj := levenshtein(lowerQuery, strings.ToLower(others[j]))
		if di != dj {
			return di < dj
		}
		return others[i] < others[j]
	})

	out := append(prefixed, others...)
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out, nil
}

// levenshtein computes the classic edit distance between a and b.
func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	la, lb := len(ar), len(br)

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
