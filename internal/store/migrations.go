package store

import "database/sql"

// migration is a single forward-only schema change, gated on the
// "schema_version" meta key. Grounded on the teacher's
// internal/store/migrations.go pattern (PRAGMA table_info introspection
// plus ALTER TABLE ADD COLUMN for additive changes).
type migration struct {
	version int
	name    string
	apply   func(db *sql.DB) error
}

// pendingMigrations is empty for schema version 1 (the initial schema in
// schema.go already reflects spec §3 in full). Future additive changes
// append here; nothing removes or renames an existing column in place.
var pendingMigrations = []migration{}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
