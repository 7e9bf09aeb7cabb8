package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CodeImport is a row of the code_imports table.
type CodeImport struct {
	FilePath      string
	LineNumber    int
	ImportPath    string
	ResolvedRefID string // empty means NULL/unresolved
	FileHash      string
}

// ReplaceImportsForFile deletes every existing import row for path and
// inserts the given set.
func ReplaceImportsForFile(ctx context.Context, q Queryer, path string, imports []CodeImport) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM code_imports WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("clearing imports for %s: %w", path, err)
	}
	for _, imp := range imports {
		var resolved sql.NullString
		if imp.ResolvedRefID != "" {
			resolved = sql.NullString{String: imp.ResolvedRefID, Valid: true}
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO code_imports (file_path, line_number, import_path, resolved_ref_id, file_hash)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(file_path, line_number, import_path) DO UPDATE SET
				resolved_ref_id = excluded.resolved_ref_id,
				file_hash = excluded.file_hash
		`, path, imp.LineNumber, imp.ImportPath, resolved, imp.FileHash)
		if err != nil {
			return fmt.Errorf("inserting import %s:%d: %w", path, imp.LineNumber, err)
		}
	}
	return nil
}

// ImportsResolvingTo returns every import row whose resolved_ref_id equals
// toRefID, used by the rule engine to find cross-module imports.
func ImportsResolvingTo(ctx context.Context, q Queryer, toRefID string) ([]CodeImport, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT file_path, line_number, import_path, resolved_ref_id, file_hash
		FROM code_imports WHERE resolved_ref_id = ? ORDER BY file_path, line_number
	`, toRefID)
	if err != nil {
		return nil, fmt.Errorf("listing imports resolving to %s: %w", toRefID, err)
	}
	return scanImports(rows)
}

// AllResolvedImports returns every import with a non-null resolved_ref_id,
// used by the rule engine and impact analyzer for a full-repo import scan.
func AllResolvedImports(ctx context.Context, q Queryer) ([]CodeImport, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT file_path, line_number, import_path, resolved_ref_id, file_hash
		FROM code_imports WHERE resolved_ref_id IS NOT NULL ORDER BY file_path, line_number
	`)
	if err != nil {
		return nil, fmt.Errorf("listing resolved imports: %w", err)
	}
	return scanImports(rows)
}

func scanImports(rows *sql.Rows) ([]CodeImport, error) {
	defer rows.Close()
	var out []CodeImport
	for rows.Next() {
		var (
			imp      CodeImport
			resolved sql.NullString
		)
		if err := rows.Scan(&imp.FilePath, &imp.LineNumber, &imp.ImportPath, &resolved, &imp.FileHash); err != nil {
			return nil, fmt.Errorf("scanning import row: %w", err)
		}
		if resolved.Valid {
			imp.ResolvedRefID = resolved.String
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

// DeleteImportsForFile removes every import row for path.
func DeleteImportsForFile(ctx context.Context, q Queryer, path string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM code_imports WHERE file_path = ?`, path)
	if err != nil {
		return fmt.Errorf("deleting imports for %s: %w", path, err)
	}
	return nil
}

// TruncateImports removes every code_imports row. Used by full reindex.
func TruncateImports(ctx context.Context, q Queryer) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM code_imports`); err != nil {
		return fmt.Errorf("truncating imports: %w", err)
	}
	return nil
}
