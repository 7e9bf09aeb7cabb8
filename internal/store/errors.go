package store

import "errors"

// Sentinel errors for callers to test with errors.Is without depending on
// message text. ErrNotFound is returned by lookups that find no row, and
// ErrInvalidKind wraps a rejected node or edge kind. ErrDuplicate and
// ErrFKViolation are not returned by any operation in this package:
// constraint failures surface as the SQLite driver's own errors.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrDuplicate     = errors.New("store: duplicate key")
	ErrFKViolation   = errors.New("store: foreign key violation")
	ErrInvalidKind   = errors.New("store: invalid kind")
)
