package store

import (
	"context"
	"fmt"
)

// FileIndexEntry is a row of the file_index table: a (path → hash,
// mtime_ns) pair the incremental driver uses to skip unchanged files.
type FileIndexEntry struct {
	Path    string
	Hash    string
	MtimeNs int64
}

// UpsertFileIndexEntry records or updates a tracked file's hash/mtime.
func UpsertFileIndexEntry(ctx context.Context, q Queryer, e FileIndexEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO file_index (path, hash, mtime_ns) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, mtime_ns = excluded.mtime_ns
	`, e.Path, e.Hash, e.MtimeNs)
	if err != nil {
		return fmt.Errorf("upserting file index entry %s: %w", e.Path, err)
	}
	return nil
}

// GetFileIndexEntry fetches the tracked entry for path, if any.
func GetFileIndexEntry(ctx context.Context, q Queryer, path string) (*FileIndexEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT path, hash, mtime_ns FROM file_index WHERE path = ?`, path)
	var e FileIndexEntry
	if err := row.Scan(&e.Path, &e.Hash, &e.MtimeNs); err != nil {
		return nil, wrapNotFound(err, "file index entry")
	}
	return &e, nil
}

// ListFileIndex returns every tracked file, including the reserved
// ParserFingerprintKey pseudo-entry if present.
func ListFileIndex(ctx context.Context, q Queryer) ([]FileIndexEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT path, hash, mtime_ns FROM file_index ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing file index: %w", err)
	}
	defer rows.Close()

	var out []FileIndexEntry
	for rows.Next() {
		var e FileIndexEntry
		if err := rows.Scan(&e.Path, &e.Hash, &e.MtimeNs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteFileIndexEntry removes a tracked file's row (used when a file is
// deleted from disk during incremental reindex).
func DeleteFileIndexEntry(ctx context.Context, q Queryer, path string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM file_index WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("deleting file index entry %s: %w", path, err)
	}
	return nil
}

// TruncateFileIndex removes every file_index row, including the parser
// fingerprint entry. Used by full reindex before it recomputes everything.
func TruncateFileIndex(ctx context.Context, q Queryer) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM file_index`); err != nil {
		return fmt.Errorf("truncating file index: %w", err)
	}
	return nil
}
