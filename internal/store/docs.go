package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DocKind is the fixed vocabulary for docs.kind (spec §3).
type DocKind string

const (
	DocKindFeature      DocKind = "feature"
	DocKindDomain       DocKind = "domain"
	DocKindService      DocKind = "service"
	DocKindADR          DocKind = "adr"
	DocKindArchitecture DocKind = "architecture"
	DocKindOther        DocKind = "other"
)

// Doc is a row of the docs table.
type Doc struct {
	ID          int64
	Path        string
	Kind        DocKind
	RefID       string // empty means NULL
	ContentHash string
	Metadata    map[string]interface{}
}

// UpsertDoc inserts or replaces a doc by its unique path, returning its id.
func UpsertDoc(ctx context.Context, q Queryer, d Doc) (int64, error) {
	meta := "{}"
	if d.Metadata != nil {
		data, err := json.Marshal(d.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshaling metadata for %s: %w", d.Path, err)
		}
		meta = string(data)
	}

	var refID sql.NullString
	if d.RefID != "" {
		refID = sql.NullString{String: d.RefID, Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO docs (path, kind, ref_id, content_hash, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind = excluded.kind,
			ref_id = excluded.ref_id,
			content_hash = excluded.content_hash,
			metadata = excluded.metadata
	`, d.Path, string(d.Kind), refID, d.ContentHash, meta)
	if err != nil {
		return 0, fmt.Errorf("upserting doc %s: %w", d.Path, err)
	}

	row := q.QueryRowContext(ctx, `SELECT id FROM docs WHERE path = ?`, d.Path)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("fetching id for doc %s: %w", d.Path, err)
	}
	return id, nil
}

// GetDocByPath fetches a doc by its path.
func GetDocByPath(ctx context.Context, q Queryer, path string) (*Doc, error) {
	row := q.QueryRowContext(ctx, `SELECT id, path, kind, ref_id, content_hash, metadata FROM docs WHERE path = ?`, path)
	return scanDocRow(row)
}

func scanDocRow(row *sql.Row) (*Doc, error) {
	var (
		d     Doc
		kind  string
		refID sql.NullString
		meta  string
	)
	if err := row.Scan(&d.ID, &d.Path, &kind, &refID, &d.ContentHash, &meta); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning doc: %w", err)
	}
	d.Kind = DocKind(kind)
	if refID.Valid {
		d.RefID = refID.String
	}
	d.Metadata = map[string]interface{}{}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for %s: %w", d.Path, err)
		}
	}
	return &d, nil
}

// ListDocsForRefIDs returns every doc linked to one of the given ref_ids,
// ordered by path for determinism.
func ListDocsForRefIDs(ctx context.Context, q Queryer, refIDs []string) ([]Doc, error) {
	if len(refIDs) == 0 {
		return nil, nil
	}
	query, args := inClause(`SELECT id, path, kind, ref_id, content_hash, metadata FROM docs WHERE ref_id IN (`, refIDs, `) ORDER BY path`)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing docs for ref ids: %w", err)
	}
	defer rows.Close()

	var out []Doc
	for rows.Next() {
		var (
			d     Doc
			kind  string
			refID sql.NullString
			meta  string
		)
		if err := rows.Scan(&d.ID, &d.Path, &kind, &refID, &d.ContentHash, &meta); err != nil {
			return nil, fmt.Errorf("scanning doc row: %w", err)
		}
		d.Kind = DocKind(kind)
		if refID.Valid {
			d.RefID = refID.String
		}
		d.Metadata = map[string]interface{}{}
		if meta != "" {
			json.Unmarshal([]byte(meta), &d.Metadata)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListAllDocs returns every doc, ordered by path.
func ListAllDocs(ctx context.Context, q Queryer) ([]Doc, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, path, kind, ref_id, content_hash, metadata FROM docs ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing docs: %w", err)
	}
	defer rows.Close()

	var out []Doc
	for rows.Next() {
		var (
			d     Doc
			kind  string
			refID sql.NullString
			meta  string
		)
		if err := rows.Scan(&d.ID, &d.Path, &kind, &refID, &d.ContentHash, &meta); err != nil {
			return nil, fmt.Errorf("scanning doc row: %w", err)
		}
		d.Kind = DocKind(kind)
		if refID.Valid {
			d.RefID = refID.String
		}
		d.Metadata = map[string]interface{}{}
		if meta != "" {
			json.Unmarshal([]byte(meta), &d.Metadata)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDoc removes a doc by path; cascades to its chunks.
func DeleteDoc(ctx context.Context, q Queryer, path string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM docs WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("deleting doc %s: %w", path, err)
	}
	return nil
}

// TruncateDocs removes every doc row (and cascades to chunks). Used by full
// reindex (spec §4.E: derived tables are truncated before rebuilding).
func TruncateDocs(ctx context.Context, q Queryer) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM docs`); err != nil {
		return fmt.Errorf("truncating docs: %w", err)
	}
	return nil
}

// inClause builds a "prefix (?, ?, ...) suffix" query and matching args
// slice for a variable-length IN list. Shared by every accessor that
// filters on a caller-supplied ref_id set.
func inClause(prefix string, values []string, suffix string) (string, []interface{}) {
	placeholders := make([]byte, 0, len(values)*2)
	args := make([]interface{}, len(values))
	for i, v := range values {
		if i > 0 {
			placeholders = append(placeholders, ',', '?')
		} else {
			placeholders = append(placeholders, '?')
		}
		args[i] = v
	}
	return prefix + string(placeholders) + suffix, args
}
