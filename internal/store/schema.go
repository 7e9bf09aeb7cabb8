package store

import "fmt"

// CurrentSchemaVersion is gated in meta under key "schema_version".
// Migrations are forward-only (spec §6 "Persisted store").
const CurrentSchemaVersion = 1

const baseSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	ref_id   TEXT PRIMARY KEY,
	kind     TEXT NOT NULL CHECK (kind IN ('domain','feature','service','entity','adr')),
	summary  TEXT NOT NULL DEFAULT '',
	source   TEXT,
	extra    TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS edges (
	src_ref_id TEXT NOT NULL REFERENCES nodes(ref_id) ON DELETE CASCADE,
	dst_ref_id TEXT NOT NULL REFERENCES nodes(ref_id) ON DELETE CASCADE,
	kind       TEXT NOT NULL CHECK (kind IN ('part_of','depends_on','uses','implements','touches_entity','touches_code')),
	PRIMARY KEY (src_ref_id, dst_ref_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src_ref_id);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst_ref_id);

CREATE TABLE IF NOT EXISTS docs (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	path     TEXT NOT NULL UNIQUE,
	kind     TEXT NOT NULL CHECK (kind IN ('feature','domain','service','adr','architecture','other')),
	ref_id   TEXT REFERENCES nodes(ref_id) ON DELETE SET NULL,
	content_hash TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_docs_ref ON docs(ref_id);

CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id      INTEGER NOT NULL REFERENCES docs(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	heading     TEXT NOT NULL DEFAULT '',
	section     TEXT NOT NULL CHECK (section IN ('spec','invariants','api','tests','constraints','other')),
	body        TEXT NOT NULL DEFAULT '',
	node_ref_id TEXT REFERENCES nodes(ref_id) ON DELETE SET NULL,
	UNIQUE (doc_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_node ON chunks(node_ref_id);

CREATE TABLE IF NOT EXISTS code_symbols (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path   TEXT NOT NULL,
	symbol_name TEXT NOT NULL,
	kind        TEXT NOT NULL CHECK (kind IN ('function','class','type','route','component')),
	line_start  INTEGER NOT NULL,
	line_end    INTEGER NOT NULL,
	annotations TEXT NOT NULL DEFAULT '{}',
	file_hash   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON code_symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON code_symbols(symbol_name);

CREATE TABLE IF NOT EXISTS code_imports (
	file_path       TEXT NOT NULL,
	line_number     INTEGER NOT NULL,
	import_path     TEXT NOT NULL,
	resolved_ref_id TEXT REFERENCES nodes(ref_id) ON DELETE SET NULL,
	file_hash       TEXT NOT NULL,
	PRIMARY KEY (file_path, line_number, import_path)
);
CREATE INDEX IF NOT EXISTS idx_imports_resolved ON code_imports(resolved_ref_id);

CREATE TABLE IF NOT EXISTS sync_state (
	doc_path          TEXT NOT NULL,
	code_path         TEXT NOT NULL,
	ref_id            TEXT NOT NULL REFERENCES nodes(ref_id) ON DELETE CASCADE,
	code_hash_at_sync TEXT NOT NULL DEFAULT '',
	doc_hash_at_sync  TEXT NOT NULL DEFAULT '',
	synced_at         TEXT NOT NULL,
	status            TEXT NOT NULL CHECK (status IN ('ok','stale')),
	symbols_hash      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (doc_path, code_path)
);
CREATE INDEX IF NOT EXISTS idx_sync_ref ON sync_state(ref_id);

CREATE TABLE IF NOT EXISTS rules (
	name        TEXT PRIMARY KEY,
	rule_type   TEXT NOT NULL CHECK (rule_type IN ('deny','require')),
	description TEXT NOT NULL DEFAULT '',
	severity    TEXT NOT NULL DEFAULT 'error' CHECK (severity IN ('error','warning','info')),
	rule_json   TEXT NOT NULL,
	enabled     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_index (
	path      TEXT PRIMARY KEY,
	hash      TEXT NOT NULL,
	mtime_ns  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_snapshots (
	id            TEXT PRIMARY KEY,
	label         TEXT,
	created_at    TEXT NOT NULL,
	nodes_json    TEXT NOT NULL,
	edges_json    TEXT NOT NULL,
	symbols_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS health_snapshots (
	taken_at        TEXT PRIMARY KEY,
	nodes_count     INTEGER NOT NULL,
	edges_count     INTEGER NOT NULL,
	docs_count      INTEGER NOT NULL,
	coverage_pct    REAL NOT NULL,
	stale_count     INTEGER NOT NULL,
	isolated_count  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fact_registry (
	fact_key    TEXT PRIMARY KEY,
	fact_value  TEXT NOT NULL,
	source      TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
	ref_id UNINDEXED,
	body
);
`

// ensureSchema creates every table if absent (idempotent per spec §4.A's
// "ensure_schema" contract and invariant 4) and records the current schema
// version, running any pending migrations first.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(baseSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	version, err := s.metaGetInt("schema_version")
	if err != nil {
		return err
	}

	for _, m := range pendingMigrations {
		if m.version <= version {
			continue
		}
		if err := m.apply(s.db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		version = m.version
	}

	return s.metaSetInt("schema_version", CurrentSchemaVersion)
}
