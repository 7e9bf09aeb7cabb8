package index

import (
	"context"
	"strings"

	"beadloom/internal/code"
	"beadloom/internal/store"
)

// ComputeFingerprint digests the sorted list of extensions with a currently
// loadable grammar (spec §4.E: "a digest of the sorted list of currently
// available grammar extensions"). Installing or losing a grammar changes
// this digest, which forces the next incremental reindex to upgrade to a
// full one.
func ComputeFingerprint() string {
	exts := code.SupportedExtensions()
	return store.HashBytes([]byte(strings.Join(exts, ",")))
}

// fingerprintChanged reports whether the stored parser fingerprint (file_index's
// reserved __parser_fingerprint__ entry) differs from the current one, along
// with the current one for storing back after a reindex.
func fingerprintChanged(ctx context.Context, q store.Queryer) (changed bool, current string, err error) {
	current = ComputeFingerprint()
	entry, err := store.GetFileIndexEntry(ctx, q, store.ParserFingerprintKey)
	if err != nil {
		if err == store.ErrNotFound {
			return true, current, nil
		}
		return false, current, err
	}
	return entry.Hash != current, current, nil
}

// storeFingerprint records the current parser fingerprint under the
// reserved file_index key, overwriting whatever was there before.
func storeFingerprint(ctx context.Context, q store.Queryer, fingerprint string) error {
	return store.UpsertFileIndexEntry(ctx, q, store.FileIndexEntry{
		Path: store.ParserFingerprintKey,
		Hash: fingerprint,
	})
}
