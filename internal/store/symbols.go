package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SymbolKind is the fixed vocabulary for code_symbols.kind (spec §3).
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolClass     SymbolKind = "class"
	SymbolType      SymbolKind = "type"
	SymbolRoute     SymbolKind = "route"
	SymbolComponent SymbolKind = "component"
)

// CodeSymbol is a row of the code_symbols table.
type CodeSymbol struct {
	ID          int64
	FilePath    string
	SymbolName  string
	Kind        SymbolKind
	LineStart   int
	LineEnd     int
	Annotations map[string]string
	FileHash    string
}

// ReplaceSymbolsForFile deletes every existing symbol row for path and
// inserts the given set (spec §3 Lifecycles: symbols are fully rewritten
// on any reindex pass touching their file).
func ReplaceSymbolsForFile(ctx context.Context, q Queryer, path string, symbols []CodeSymbol) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM code_symbols WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("clearing symbols for %s: %w", path, err)
	}
	for _, s := range symbols {
		ann := "{}"
		if s.Annotations != nil {
			data, err := json.Marshal(s.Annotations)
			if err != nil {
				return fmt.Errorf("marshaling annotations for %s: %w", s.SymbolName, err)
			}
			ann = string(data)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO code_symbols (file_path, symbol_name, kind, line_start, line_end, annotations, file_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, path, s.SymbolName, string(s.Kind), s.LineStart, s.LineEnd, ann, s.FileHash)
		if err != nil {
			return fmt.Errorf("inserting symbol %s: %w", s.SymbolName, err)
		}
	}
	return nil
}

// SymbolsAnnotatedWith returns every symbol with an annotation value (under
// any key) equal to one of refIDs, deduplicated by (file_path,
// symbol_name) as spec §4.F requires for symbol collection.
// Used by the context assembler to gather symbols annotated to subgraph
// ref_ids (via domain/service/feature keys) or directly to a ref_id.
func SymbolsAnnotatedWith(ctx context.Context, q Queryer, refIDs []string) ([]CodeSymbol, error) {
	all, err := allSymbols(ctx, q)
	if err != nil {
		return nil, err
	}

	wanted := map[string]bool{}
	for _, id := range refIDs {
		wanted[id] = true
	}

	seen := map[string]bool{}
	var out []CodeSymbol
	for _, s := range all {
		matched := false
		for _, v := range s.Annotations {
			if wanted[v] {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		key := s.FilePath + "\x00" + s.SymbolName
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out, nil
}

// CountSymbols returns the total number of code_symbols rows, used by
// snapshot capture to record a point-in-time symbol count (spec §3 Graph
// snapshot entity).
func CountSymbols(ctx context.Context, q Queryer) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM code_symbols`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting symbols: %w", err)
	}
	return count, nil
}

func allSymbols(ctx context.Context, q Queryer) ([]CodeSymbol, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, file_path, symbol_name, kind, line_start, line_end, annotations, file_hash
		FROM code_symbols ORDER BY file_path, symbol_name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	var out []CodeSymbol
	for rows.Next() {
		var (
			s    CodeSymbol
			kind string
			ann  string
		)
		if err := rows.Scan(&s.ID, &s.FilePath, &s.SymbolName, &kind, &s.LineStart, &s.LineEnd, &ann, &s.FileHash); err != nil {
			return nil, fmt.Errorf("scanning symbol row: %w", err)
		}
		s.Kind = SymbolKind(kind)
		s.Annotations = map[string]string{}
		if ann != "" {
			json.Unmarshal([]byte(ann), &s.Annotations)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SymbolTokensForFile returns the (name, kind) tokens of every symbol
// currently stored for path, used to compute a fresh symbols_hash.
func SymbolTokensForFile(ctx context.Context, q Queryer, path string) ([]SymbolToken, error) {
	rows, err := q.QueryContext(ctx, `SELECT symbol_name, kind FROM code_symbols WHERE file_path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("listing symbol tokens for %s: %w", path, err)
	}
	defer rows.Close()

	var out []SymbolToken
	for rows.Next() {
		var t SymbolToken
		if err := rows.Scan(&t.Name, &t.Kind); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SymbolTokensForRefID returns the tokens of every symbol annotated with
// refID (by any annotation value, per the context assembler's matching
// rule), in (file_path, symbol_name) order; HashSymbolSet sorts tokens
// itself, so the order does not affect the hash.
func SymbolTokensForRefID(ctx context.Context, q Queryer, refID string) ([]SymbolToken, error) {
	symbols, err := SymbolsAnnotatedWith(ctx, q, []string{refID})
	if err != nil {
		return nil, err
	}
	tokens := make([]SymbolToken, len(symbols))
	for i, s := range symbols {
		tokens[i] = SymbolToken{Name: s.SymbolName, Kind: string(s.Kind)}
	}
	return tokens, nil
}

// FirstSymbolAnnotations returns the annotations of the first symbol row
// recorded for path (LIMIT 1, matching the original resolver's lookup),
// or nil if path has no recorded symbols.
func FirstSymbolAnnotations(ctx context.Context, q Queryer, path string) (map[string]string, error) {
	row := q.QueryRowContext(ctx, `SELECT annotations FROM code_symbols WHERE file_path = ? LIMIT 1`, path)
	var ann string
	if err := row.Scan(&ann); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up annotations for %s: %w", path, err)
	}
	out := map[string]string{}
	if ann != "" {
		if err := json.Unmarshal([]byte(ann), &out); err != nil {
			return nil, fmt.Errorf("unmarshaling annotations for %s: %w", path, err)
		}
	}
	return out, nil
}

// DistinctSymbolFilePaths returns every distinct file_path recorded in
// code_symbols, used by the fact registry's language_count (distinct file
// extensions observed across indexed code).
func DistinctSymbolFilePaths(ctx context.Context, q Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT file_path FROM code_symbols`)
	if err != nil {
		return nil, fmt.Errorf("listing distinct symbol file paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteSymbolsForFile removes every symbol row for path.
func DeleteSymbolsForFile(ctx context.Context, q Queryer, path string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM code_symbols WHERE file_path = ?`, path)
	if err != nil {
		return fmt.Errorf("deleting symbols for %s: %w", path, err)
	}
	return nil
}

// TruncateSymbols removes every code_symbols row. Used by full reindex.
func TruncateSymbols(ctx context.Context, q Queryer) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM code_symbols`); err != nil {
		return fmt.Errorf("truncating symbols: %w", err)
	}
	return nil
}
