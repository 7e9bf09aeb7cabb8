// Package store is beadloom's persistent store (component A): schema
// management, hashing utilities, meta key/value, and transactional access
// to every other table. It is the single source of truth; every other
// package reads and writes through it.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a single-writer, concurrent-reader SQLite connection pool.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the beadloom database at path,
// applies the teacher-grounded pragma set, and ensures the schema is
// current. One Store should be used per process; the core is explicitly
// single-writer (spec §5).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}

	// Single-writer discipline: SQLite WAL allows one writer and many
	// readers, but database/sql pools connections independently of that,
	// so we pin the pool to one connection and let SQLite's own locking
	// do the rest.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path the store was opened against.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the raw *sql.DB for callers that need ad-hoc queries (search
// index, diagnostics). Prefer the typed accessors elsewhere in this
// package when one exists.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic, which is re-raised after rollback).
// Graph-loader batches and full-reindex table rewrites both use this to
// satisfy spec §4.B/§4.E's "visible as a whole or not at all" contract.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
