package store

import (
	"context"
	"fmt"
	"time"
)

// SyncStatus is the fixed vocabulary for sync_state.status (spec §3).
type SyncStatus string

const (
	SyncOK    SyncStatus = "ok"
	SyncStale SyncStatus = "stale"
)

// SyncState is a row of the sync_state table.
type SyncState struct {
	DocPath        string
	CodePath       string
	RefID          string
	CodeHashAtSync string
	DocHashAtSync  string
	SyncedAt       time.Time
	Status         SyncStatus
	SymbolsHash    string
}

// GetSyncState fetches a row by its (doc_path, code_path) key.
func GetSyncState(ctx context.Context, q Queryer, docPath, codePath string) (*SyncState, error) {
	row := q.QueryRowContext(ctx, `
		SELECT doc_path, code_path, ref_id, code_hash_at_sync, doc_hash_at_sync, synced_at, status, symbols_hash
		FROM sync_state WHERE doc_path = ? AND code_path = ?
	`, docPath, codePath)

	var (
		s        SyncState
		syncedAt string
		status   string
	)
	if err := row.Scan(&s.DocPath, &s.CodePath, &s.RefID, &s.CodeHashAtSync, &s.DocHashAtSync, &syncedAt, &status, &s.SymbolsHash); err != nil {
		return nil, wrapNotFound(err, "sync state")
	}
	s.Status = SyncStatus(status)
	t, err := time.Parse(time.RFC3339, syncedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing synced_at: %w", err)
	}
	s.SyncedAt = t
	return &s, nil
}

// UpsertSyncStateRow creates a row on first observation of a (doc, code)
// pair, or updates status/symbols_hash on an existing one. Baseline
// hashes (CodeHashAtSync/DocHashAtSync) are only rewritten by
// MarkSynced — incremental reindex must not touch them (spec §3 invariant).
func UpsertSyncStateRow(ctx context.Context, q Queryer, s SyncState) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sync_state (doc_path, code_path, ref_id, code_hash_at_sync, doc_hash_at_sync, synced_at, status, symbols_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_path, code_path) DO UPDATE SET
			status = excluded.status,
			symbols_hash = excluded.symbols_hash
	`, s.DocPath, s.CodePath, s.RefID, s.CodeHashAtSync, s.DocHashAtSync, s.SyncedAt.Format(time.RFC3339), string(s.Status), s.SymbolsHash)
	if err != nil {
		return fmt.Errorf("upserting sync state %s/%s: %w", s.DocPath, s.CodePath, err)
	}
	return nil
}

// MarkSynced rewrites the baseline hashes and synced_at for an existing
// (doc, code) pair, setting status to ok. This is the only path that may
// mutate code_hash_at_sync/doc_hash_at_sync (spec §4.G Layer 1).
func MarkSynced(ctx context.Context, q Queryer, docPath, codePath, codeHash, docHash, symbolsHash string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE sync_state SET
			code_hash_at_sync = ?, doc_hash_at_sync = ?, symbols_hash = ?, synced_at = ?, status = 'ok'
		WHERE doc_path = ? AND code_path = ?
	`, codeHash, docHash, symbolsHash, at.Format(time.RFC3339), docPath, codePath)
	if err != nil {
		return fmt.Errorf("marking synced %s/%s: %w", docPath, codePath, err)
	}
	return nil
}

// ListSyncStateForRefID returns every sync_state row for a ref_id.
func ListSyncStateForRefID(ctx context.Context, q Queryer, refID string) ([]SyncState, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT doc_path, code_path, ref_id, code_hash_at_sync, doc_hash_at_sync, synced_at, status, symbols_hash
		FROM sync_state WHERE ref_id = ? ORDER BY doc_path, code_path
	`, refID)
	if err != nil {
		return nil, fmt.Errorf("listing sync state for %s: %w", refID, err)
	}
	defer rows.Close()
	return scanSyncStates(rows)
}

// ListAllSyncState returns every sync_state row, ordered for determinism.
func ListAllSyncState(ctx context.Context, q Queryer) ([]SyncState, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT doc_path, code_path, ref_id, code_hash_at_sync, doc_hash_at_sync, synced_at, status, symbols_hash
		FROM sync_state ORDER BY ref_id, doc_path, code_path
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sync state: %w", err)
	}
	defer rows.Close()
	return scanSyncStates(rows)
}

func scanSyncStates(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]SyncState, error) {
	var out []SyncState
	for rows.Next() {
		var (
			s        SyncState
			syncedAt string
			status   string
		)
		if err := rows.Scan(&s.DocPath, &s.CodePath, &s.RefID, &s.CodeHashAtSync, &s.DocHashAtSync, &syncedAt, &status, &s.SymbolsHash); err != nil {
			return nil, fmt.Errorf("scanning sync state row: %w", err)
		}
		s.Status = SyncStatus(status)
		if t, err := time.Parse(time.RFC3339, syncedAt); err == nil {
			s.SyncedAt = t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func wrapNotFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if err.Error() == "sql: no rows in result set" {
		return ErrNotFound
	}
	return fmt.Errorf("reading %s: %w", what, err)
}
