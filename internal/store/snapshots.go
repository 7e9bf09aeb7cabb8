package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GraphSnapshot is a row of the graph_snapshots table: an immutable
// capture of the full node/edge set plus a symbol count, for diffing
// (spec §3/§4.J).
type GraphSnapshot struct {
	ID           string
	Label        string // empty means no label
	CreatedAt    time.Time
	NodesJSON    string
	EdgesJSON    string
	SymbolsCount int
}

// NewSnapshotID mints a fresh snapshot id.
func NewSnapshotID() string {
	return uuid.NewString()
}

// InsertSnapshot stores a new immutable graph snapshot.
func InsertSnapshot(ctx context.Context, q Queryer, s GraphSnapshot) error {
	if s.ID == "" {
		s.ID = NewSnapshotID()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO graph_snapshots (id, label, created_at, nodes_json, edges_json, symbols_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, nullableString(s.Label), s.CreatedAt.Format(time.RFC3339), s.NodesJSON, s.EdgesJSON, s.SymbolsCount)
	if err != nil {
		return fmt.Errorf("inserting snapshot %s: %w", s.ID, err)
	}
	return nil
}

// GetSnapshot fetches a snapshot by id.
func GetSnapshot(ctx context.Context, q Queryer, id string) (*GraphSnapshot, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, label, created_at, nodes_json, edges_json, symbols_count
		FROM graph_snapshots WHERE id = ?
	`, id)

	var (
		s         GraphSnapshot
		label     *string
		createdAt string
	)
	if err := row.Scan(&s.ID, &label, &createdAt, &s.NodesJSON, &s.EdgesJSON, &s.SymbolsCount); err != nil {
		return nil, wrapNotFound(err, "snapshot")
	}
	if label != nil {
		s.Label = *label
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		s.CreatedAt = t
	}
	return &s, nil
}

// ListSnapshots returns every snapshot, newest first.
func ListSnapshots(ctx context.Context, q Queryer) ([]GraphSnapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, label, created_at, nodes_json, edges_json, symbols_count
		FROM graph_snapshots ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []GraphSnapshot
	for rows.Next() {
		var (
			s         GraphSnapshot
			label     *string
			createdAt string
		)
		if err := rows.Scan(&s.ID, &label, &createdAt, &s.NodesJSON, &s.EdgesJSON, &s.SymbolsCount); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if label != nil {
			s.Label = *label
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			s.CreatedAt = t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// HealthSnapshot is a row of the health_snapshots table: a historical
// rollup of repo health, written by `doctor` (spec §3).
type HealthSnapshot struct {
	TakenAt       time.Time
	NodesCount    int
	EdgesCount    int
	DocsCount     int
	CoveragePct   float64
	StaleCount    int
	IsolatedCount int
}

// InsertHealthSnapshot records a health rollup.
func InsertHealthSnapshot(ctx context.Context, q Queryer, h HealthSnapshot) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO health_snapshots (taken_at, nodes_count, edges_count, docs_count, coverage_pct, stale_count, isolated_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, h.TakenAt.Format(time.RFC3339), h.NodesCount, h.EdgesCount, h.DocsCount, h.CoveragePct, h.StaleCount, h.IsolatedCount)
	if err != nil {
		return fmt.Errorf("inserting health snapshot: %w", err)
	}
	return nil
}

// LatestHealthSnapshot returns the most recent health rollup, if any.
func LatestHealthSnapshot(ctx context.Context, q Queryer) (*HealthSnapshot, error) {
	row := q.QueryRowContext(ctx, `
		SELECT taken_at, nodes_count, edges_count, docs_count, coverage_pct, stale_count, isolated_count
		FROM health_snapshots ORDER BY taken_at DESC LIMIT 1
	`)
	var (
		h       HealthSnapshot
		takenAt string
	)
	if err := row.Scan(&takenAt, &h.NodesCount, &h.EdgesCount, &h.DocsCount, &h.CoveragePct, &h.StaleCount, &h.IsolatedCount); err != nil {
		return nil, wrapNotFound(err, "health snapshot")
	}
	if t, err := time.Parse(time.RFC3339, takenAt); err == nil {
		h.TakenAt = t
	}
	return &h, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
