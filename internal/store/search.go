package store

import (
	"context"
	"fmt"
	"strings"
)

// SearchResult is one row returned by Search.
type SearchResult struct {
	RefID string
	Snippet string
}

// RebuildSearchIndex replaces the FTS5 search_index with one row per node,
// containing its summary concatenated with the text of all its chunks
// (spec §4.E: "the search index is rebuilt with one row per node...").
func RebuildSearchIndex(ctx context.Context, q Queryer) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM search_index`); err != nil {
		return fmt.Errorf("clearing search index: %w", err)
	}

	nodes, err := ListNodes(ctx, q)
	if err != nil {
		return err
	}

	for _, n := range nodes {
		chunks, err := ChunksForRefIDs(ctx, q, []string{n.RefID})
		if err != nil {
			return err
		}

		var body strings.Builder
		body.WriteString(n.Summary)
		for _, c := range chunks {
			body.WriteByte('\n')
			body.WriteString(c.Body)
		}

		if _, err := q.ExecContext(ctx, `INSERT INTO search_index (ref_id, body) VALUES (?, ?)`, n.RefID, body.String()); err != nil {
			return fmt.Errorf("indexing node %s: %w", n.RefID, err)
		}
	}
	return nil
}

// Search runs a full-text query over node summaries/chunk bodies,
// optionally filtered to a node kind, capped at limit results.
func Search(ctx context.Context, q Queryer, query string, kind string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	sqlQuery := `
		SELECT search_index.ref_id, snippet(search_index, 1, '[', ']', '...', 10)
		FROM search_index
		JOIN nodes ON nodes.ref_id = search_index.ref_id
		WHERE search_index MATCH ?
	`
	args := []interface{}{query}
	if kind != "" {
		sqlQuery += ` AND nodes.kind = ?`
		args = append(args, kind)
	}
	sqlQuery += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.RefID, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
